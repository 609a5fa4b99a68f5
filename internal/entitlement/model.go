package entitlement

import "time"

const (
	KindMembership = "membership"
	KindClassPass  = "class_pass"
	KindPTBundle   = "pt_bundle"

	PurposeGym   = "gym"
	PurposeClass = "class"
	PurposePT    = "pt"

	StatusActive    = "active"
	StatusExpired   = "expired"
	StatusFrozen    = "frozen"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
)

// Grant is one unit of prepaid access: a membership window, a class
// pass, or a PT bundle. Total is nil for unlimited grants; Used is the
// only stored counter and the remaining balance is always derived.
type Grant struct {
	ID             int        `db:"id" json:"id"`
	UserID         int        `db:"user_id" json:"user_id"`
	Kind           string     `db:"kind" json:"kind"`
	Purpose        string     `db:"purpose" json:"purpose"`
	Total          *int       `db:"total" json:"total"`
	Used           int        `db:"used" json:"used"`
	StartDate      time.Time  `db:"start_date" json:"start_date"`
	ExpireDate     *time.Time `db:"expire_date" json:"expire_date"`
	Status         string     `db:"status" json:"status"`
	TransactionRef string     `db:"transaction_ref" json:"transaction_ref,omitempty"`
	FrozenUntil    *time.Time `db:"frozen_until" json:"frozen_until,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// Remaining returns the units left on the grant, or nil for unlimited.
func (g *Grant) Remaining() *int {
	if g.Total == nil {
		return nil
	}
	left := *g.Total - g.Used
	if left < 0 {
		left = 0
	}
	return &left
}

func (g *Grant) Unlimited() bool {
	return g.Total == nil
}

// Usable reports whether the grant can fund a debit right now.
func (g *Grant) Usable(now time.Time) bool {
	if g.Status != StatusActive {
		return false
	}
	if now.Before(g.StartDate) {
		return false
	}
	if g.ExpireDate != nil && !now.Before(*g.ExpireDate) {
		return false
	}
	if g.Total != nil && g.Used >= *g.Total {
		return false
	}
	return true
}

type PurchaseRequest struct {
	UserID         int        `json:"user_id" binding:"required,min=1"`
	Kind           string     `json:"kind" binding:"required,oneof=membership class_pass pt_bundle"`
	Purposes       []string   `json:"purposes" binding:"required,min=1,dive,oneof=gym class pt"`
	Total          *int       `json:"total" binding:"omitempty,min=1"`
	StartDate      time.Time  `json:"start_date" binding:"required"`
	ExpireDate     *time.Time `json:"expire_date"`
	TransactionRef string     `json:"transaction_ref"`
}

type FreezeRequest struct {
	Until  time.Time `json:"until" binding:"required"`
	Reason string    `json:"reason"`
}

type AdjustRequest struct {
	Amount int `json:"amount" binding:"required,min=1"`
}

// BalanceSummary is the member-facing view of what a user can still
// spend, per purpose. A nil counter means unlimited.
type BalanceSummary struct {
	UserID       int     `json:"user_id"`
	GymAccess    bool    `json:"gym_access"`
	ClassCredits *int    `json:"class_credits"`
	PTSessions   *int    `json:"pt_sessions"`
	Grants       []Grant `json:"grants"`
}
