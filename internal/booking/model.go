package booking

import "time"

const (
	StatusConfirmed  = "confirmed"
	StatusWaitlisted = "waitlisted"
	StatusAttended   = "attended"
	StatusCancelled  = "cancelled"
	StatusNoShow     = "no_show"
)

// Booking ties a user to a session instance and to the grant funding
// it. Confirmed bookings have already debited their grant; waitlisted
// ones only hold a resolved candidate, debited at promotion time.
type Booking struct {
	ID          int       `db:"id" json:"id"`
	UserID      int       `db:"user_id" json:"user_id"`
	InstanceID  int       `db:"session_instance_id" json:"session_instance_id"`
	GrantID     int       `db:"grant_id" json:"grant_id"`
	Status      string    `db:"status" json:"status"`
	WaitlistPos *int      `db:"waitlist_pos" json:"waitlist_pos,omitempty"`
	RequestedAt time.Time `db:"requested_at" json:"requested_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

type BookingWithDetails struct {
	Booking
	UserName  string    `db:"user_name" json:"user_name"`
	UserEmail string    `db:"user_email" json:"user_email"`
	ClassName string    `db:"class_name" json:"class_name"`
	Kind      string    `db:"kind" json:"kind"`
	StartsAt  time.Time `db:"starts_at" json:"starts_at"`
}

// SessionInfo is the locked snapshot of an instance a booking
// transition runs against.
type SessionInfo struct {
	InstanceID int       `db:"id"`
	TemplateID int       `db:"template_id"`
	Capacity   int       `db:"capacity"`
	StartsAt   time.Time `db:"starts_at"`
	EndsAt     time.Time `db:"ends_at"`
	Kind       string    `db:"kind"`
	ClassName  string    `db:"class_name"`
	BranchID   int       `db:"branch_id"`
}

type RequestBookingRequest struct {
	GrantID *int `json:"grant_id" binding:"omitempty,min=1"`
}

type BookingResult struct {
	Booking *Booking `json:"booking"`
	// Promoted is set on cancellation when a waitlisted booking took
	// the freed spot.
	Promoted *Booking `json:"promoted,omitempty"`
}
