package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// ErrNotFound is returned when an operation targets a task id that does not exist.
var ErrNotFound = errors.New("task not found")

const taskColumns = `id, name, description, frequency, assigned_to, points, completed`

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) List(ctx context.Context) ([]Task, error) {
	result := []Task{}
	err := r.db.SelectContext(ctx, &result, `SELECT `+taskColumns+` FROM tasks ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return result, nil
}

func (r *Repository) Get(ctx context.Context, id int64) (Task, error) {
	var t Task
	err := r.db.GetContext(ctx, &t, r.db.Rebind(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return Task{}, ErrNotFound
	}
	if err != nil {
		return Task{}, fmt.Errorf("get task %d: %w", id, err)
	}
	return t, nil
}

// Scores sums completed points per side. A side matches when assigned_to
// contains its letter, case-insensitively, so "AB" counts for both.
func (r *Repository) Scores(ctx context.Context) (Scores, error) {
	var sums struct {
		A int64 `db:"score_a"`
		B int64 `db:"score_b"`
	}
	err := r.db.GetContext(ctx, &sums, `
		SELECT
			COALESCE(SUM(CASE WHEN UPPER(assigned_to) LIKE '%A%' THEN points ELSE 0 END), 0) AS score_a,
			COALESCE(SUM(CASE WHEN UPPER(assigned_to) LIKE '%B%' THEN points ELSE 0 END), 0) AS score_b
		FROM tasks
		WHERE completed = TRUE
	`)
	if err != nil {
		return Scores{}, fmt.Errorf("compute scores: %w", err)
	}
	return Scores{Difference: sums.A - sums.B}, nil
}

func (r *Repository) Create(ctx context.Context, in TaskInput) (Task, error) {
	const insert = `INSERT INTO tasks (name, description, frequency, assigned_to, points, completed)
		VALUES (?, ?, ?, ?, ?, FALSE)`
	args := []any{in.Name, in.Description, in.Frequency, in.AssignedTo, in.Points}

	var id int64
	if r.db.DriverName() == "postgres" {
		err := r.db.QueryRowxContext(ctx, r.db.Rebind(insert+` RETURNING id`), args...).Scan(&id)
		if err != nil {
			return Task{}, fmt.Errorf("insert task: %w", err)
		}
	} else {
		res, err := r.db.ExecContext(ctx, r.db.Rebind(insert), args...)
		if err != nil {
			return Task{}, fmt.Errorf("insert task: %w", err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return Task{}, fmt.Errorf("insert task: %w", err)
		}
	}

	return Task{
		ID:          id,
		Name:        in.Name,
		Description: in.Description,
		Frequency:   in.Frequency,
		AssignedTo:  in.AssignedTo,
		Points:      in.Points,
		Completed:   false,
	}, nil
}

// Update overwrites the writable fields of a task. completed is never touched.
func (r *Repository) Update(ctx context.Context, id int64, in TaskInput) (Task, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE tasks
		SET name = ?, description = ?, frequency = ?, assigned_to = ?, points = ?
		WHERE id = ?
	`), in.Name, in.Description, in.Frequency, in.AssignedTo, in.Points, id)
	if err != nil {
		return Task{}, fmt.Errorf("update task %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return Task{}, fmt.Errorf("update task %d: %w", id, err)
	}
	if affected == 0 {
		return Task{}, ErrNotFound
	}
	return r.Get(ctx, id)
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM tasks WHERE id = ?`), id); err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	return nil
}

// Complete marks a task done. completedBy is accepted but not stored.
// Completing an already completed task succeeds again with the same result.
func (r *Repository) Complete(ctx context.Context, id int64, completedBy string) (Completion, error) {
	var current struct {
		AssignedTo sql.NullString `db:"assigned_to"`
		Points     int64          `db:"points"`
	}
	err := r.db.GetContext(ctx, &current, r.db.Rebind(`SELECT assigned_to, points FROM tasks WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return Completion{}, ErrNotFound
	}
	if err != nil {
		return Completion{}, fmt.Errorf("load task %d: %w", id, err)
	}

	if _, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE tasks SET completed = TRUE WHERE id = ?`), id); err != nil {
		return Completion{}, fmt.Errorf("complete task %d: %w", id, err)
	}

	return Completion{ID: id, Completed: true, Points: current.Points}, nil
}
