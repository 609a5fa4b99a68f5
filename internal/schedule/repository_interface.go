package schedule

import (
	"context"
	"time"
)

type Repository interface {
	CreateTemplate(ctx context.Context, tpl *Template) (*Template, error)
	GetTemplate(ctx context.Context, id int) (*Template, error)
	ListTemplates(ctx context.Context, branchID int) ([]Template, error)
	DeactivateTemplate(ctx context.Context, id int) error

	// InsertInstance is idempotent on (template_id, session_date); the
	// existing row is returned when the instance was already there.
	InsertInstance(ctx context.Context, inst *Instance) (*Instance, error)
	GetInstance(ctx context.Context, id int) (*Instance, error)
	GetInstanceByTemplateAndDate(ctx context.Context, templateID int, date time.Time) (*Instance, error)
	ListUpcoming(ctx context.Context, branchID int, from, to time.Time) ([]InstanceWithDetails, error)
}
