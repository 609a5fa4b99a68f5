package checkin

import "time"

const (
	TypeGym       = "gym"
	TypeClassOnly = "class_only"
	TypePT        = "pt"

	MethodManual = "manual"
	MethodQR     = "qr"
)

// Checkin is one visit record. GrantID points at the entitlement that
// admitted the member; BookingID is set when a session booking did.
type Checkin struct {
	ID           int        `db:"id" json:"id"`
	BranchID     int        `db:"branch_id" json:"branch_id"`
	UserID       int        `db:"user_id" json:"user_id"`
	Type         string     `db:"type" json:"type"`
	GrantID      *int       `db:"grant_id" json:"grant_id,omitempty"`
	BookingID    *int       `db:"booking_id" json:"booking_id,omitempty"`
	CheckinTime  time.Time  `db:"checkin_time" json:"checkin_time"`
	CheckoutTime *time.Time `db:"checkout_time" json:"checkout_time,omitempty"`
	Method       string     `db:"method" json:"method"`
}

type CheckinWithUser struct {
	Checkin
	UserName  string `db:"user_name" json:"user_name"`
	UserEmail string `db:"user_email" json:"user_email"`
}

// BookingRef is the slice of a booking a check-in validates against.
type BookingRef struct {
	ID       int       `db:"id"`
	UserID   int       `db:"user_id"`
	GrantID  int       `db:"grant_id"`
	Status   string    `db:"status"`
	Kind     string    `db:"kind"`
	StartsAt time.Time `db:"starts_at"`
}

// ScanRequest is the member self check-in payload; the user comes from
// the token and the method is always qr.
type ScanRequest struct {
	BranchID  int    `json:"branch_id" binding:"required,min=1"`
	Type      string `json:"type" binding:"required,oneof=gym class_only pt"`
	BookingID *int   `json:"booking_id" binding:"omitempty,min=1"`
}

type CheckInRequest struct {
	UserID    int    `json:"user_id" binding:"required,min=1"`
	BranchID  int    `json:"branch_id" binding:"required,min=1"`
	Type      string `json:"type" binding:"required,oneof=gym class_only pt"`
	BookingID *int   `json:"booking_id" binding:"omitempty,min=1"`
	Method    string `json:"method" binding:"omitempty,oneof=manual qr"`
}
