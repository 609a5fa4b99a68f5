package schedule

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

var (
	ErrTemplateNotFound = errors.New("session template not found")
	ErrInstanceNotFound = errors.New("session instance not found")
)

const templateColumns = `id, branch_id, kind, class_name, instructor_id, weekday, specific_date, start_time, end_time, capacity, room, active, created_at`

const instanceColumns = `id, template_id, session_date, starts_at, ends_at, capacity, created_at`

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateTemplate(ctx context.Context, tpl *Template) (*Template, error) {
	query := `
		INSERT INTO session_templates (branch_id, kind, class_name, instructor_id, weekday, specific_date, start_time, end_time, capacity, room, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, true)
		RETURNING ` + templateColumns

	var created Template
	err := r.db.GetContext(ctx, &created, query,
		tpl.BranchID, tpl.Kind, tpl.ClassName, tpl.InstructorID,
		tpl.Weekday, tpl.SpecificDate, tpl.StartTime, tpl.EndTime,
		tpl.Capacity, tpl.Room,
	)
	if err != nil {
		return nil, err
	}

	return &created, nil
}

func (r *repository) GetTemplate(ctx context.Context, id int) (*Template, error) {
	var tpl Template
	err := r.db.GetContext(ctx, &tpl,
		`SELECT `+templateColumns+` FROM session_templates WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTemplateNotFound
		}
		return nil, err
	}
	return &tpl, nil
}

func (r *repository) ListTemplates(ctx context.Context, branchID int) ([]Template, error) {
	templates := []Template{}
	err := r.db.SelectContext(ctx, &templates,
		`SELECT `+templateColumns+` FROM session_templates WHERE branch_id = $1 ORDER BY class_name, start_time`, branchID)
	if err != nil {
		return nil, err
	}
	return templates, nil
}

func (r *repository) DeactivateTemplate(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE session_templates SET active = false WHERE id = $1 AND active = true`, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrTemplateNotFound
	}
	return nil
}

func (r *repository) InsertInstance(ctx context.Context, inst *Instance) (*Instance, error) {
	// Two materializations of the same date race on the unique key;
	// the loser falls through to the re-select and both return the
	// same row.
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO session_instances (template_id, session_date, starts_at, ends_at, capacity)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (template_id, session_date) DO NOTHING
	`, inst.TemplateID, inst.SessionDate, inst.StartsAt, inst.EndsAt, inst.Capacity)
	if err != nil {
		return nil, err
	}

	return r.GetInstanceByTemplateAndDate(ctx, inst.TemplateID, inst.SessionDate)
}

func (r *repository) GetInstance(ctx context.Context, id int) (*Instance, error) {
	var inst Instance
	err := r.db.GetContext(ctx, &inst,
		`SELECT `+instanceColumns+` FROM session_instances WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInstanceNotFound
		}
		return nil, err
	}
	return &inst, nil
}

func (r *repository) GetInstanceByTemplateAndDate(ctx context.Context, templateID int, date time.Time) (*Instance, error) {
	var inst Instance
	err := r.db.GetContext(ctx, &inst,
		`SELECT `+instanceColumns+` FROM session_instances WHERE template_id = $1 AND session_date = $2`,
		templateID, date)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInstanceNotFound
		}
		return nil, err
	}
	return &inst, nil
}

func (r *repository) ListUpcoming(ctx context.Context, branchID int, from, to time.Time) ([]InstanceWithDetails, error) {
	instances := []InstanceWithDetails{}
	err := r.db.SelectContext(ctx, &instances, `
		SELECT i.id, i.template_id, i.session_date, i.starts_at, i.ends_at, i.capacity, i.created_at,
		       t.class_name, t.kind, t.room, t.branch_id,
		       COUNT(b.id) FILTER (WHERE b.status = 'confirmed') AS booked_count
		FROM session_instances i
		JOIN session_templates t ON t.id = i.template_id
		LEFT JOIN bookings b ON b.session_instance_id = i.id
		WHERE t.branch_id = $1 AND i.starts_at >= $2 AND i.starts_at < $3
		GROUP BY i.id, t.class_name, t.kind, t.room, t.branch_id
		ORDER BY i.starts_at ASC
	`, branchID, from, to)
	if err != nil {
		return nil, err
	}

	for idx := range instances {
		instances[idx].Available = instances[idx].Capacity - instances[idx].BookedCount
		instances[idx].IsFull = instances[idx].Available <= 0
	}

	return instances, nil
}
