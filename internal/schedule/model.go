package schedule

import "time"

const (
	KindClass = "class"
	KindPT    = "pt"
)

// Template describes a recurring or one-off session offering at a
// branch. Weekday is set for weekly recurrence, SpecificDate for
// one-offs; exactly one of the two is set.
type Template struct {
	ID           int        `db:"id" json:"id"`
	BranchID     int        `db:"branch_id" json:"branch_id"`
	Kind         string     `db:"kind" json:"kind"`
	ClassName    string     `db:"class_name" json:"class_name"`
	InstructorID int        `db:"instructor_id" json:"instructor_id"`
	Weekday      *int       `db:"weekday" json:"weekday,omitempty"`
	SpecificDate *time.Time `db:"specific_date" json:"specific_date,omitempty"`
	StartTime    string     `db:"start_time" json:"start_time"`
	EndTime      string     `db:"end_time" json:"end_time"`
	Capacity     int        `db:"capacity" json:"capacity"`
	Room         string     `db:"room" json:"room"`
	Active       bool       `db:"active" json:"active"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

// Instance is one concrete dated occurrence of a template. Capacity is
// snapshotted at materialization time so later template edits never
// change a session members already booked into.
type Instance struct {
	ID          int       `db:"id" json:"id"`
	TemplateID  int       `db:"template_id" json:"template_id"`
	SessionDate time.Time `db:"session_date" json:"session_date"`
	StartsAt    time.Time `db:"starts_at" json:"starts_at"`
	EndsAt      time.Time `db:"ends_at" json:"ends_at"`
	Capacity    int       `db:"capacity" json:"capacity"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

type InstanceWithDetails struct {
	Instance
	ClassName   string `db:"class_name" json:"class_name"`
	Kind        string `db:"kind" json:"kind"`
	Room        string `db:"room" json:"room"`
	BranchID    int    `db:"branch_id" json:"branch_id"`
	BookedCount int    `db:"booked_count" json:"booked_count"`
	Available   int    `json:"available"`
	IsFull      bool   `json:"is_full"`
}

type CreateTemplateRequest struct {
	BranchID     int    `json:"branch_id" binding:"required,min=1"`
	Kind         string `json:"kind" binding:"required,oneof=class pt"`
	ClassName    string `json:"class_name" binding:"required,max=100"`
	InstructorID int    `json:"instructor_id" binding:"required,min=1"`
	Weekday      *int   `json:"weekday" binding:"omitempty,min=0,max=6"`
	SpecificDate string `json:"specific_date" binding:"omitempty,datetime=2006-01-02"`
	StartTime    string `json:"start_time" binding:"required,datetime=15:04"`
	EndTime      string `json:"end_time" binding:"required,datetime=15:04"`
	Capacity     int    `json:"capacity" binding:"required,min=1"`
	Room         string `json:"room" binding:"max=50"`
}
