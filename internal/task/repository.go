package task

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/redmonkez12/taskboard-api/internal/database"
)

// Repository is the task persistence contract. Every operation takes
// the owner id and only ever touches that user's rows.
type Repository interface {
	List(ctx context.Context, userID uuid.UUID, status *Status) ([]Task, error)
	Get(ctx context.Context, userID uuid.UUID, id int64) (*Task, error)
	Create(ctx context.Context, t *Task) error
	Update(ctx context.Context, t *Task) error
	Delete(ctx context.Context, userID uuid.UUID, id int64) error
}

// BunRepository is the postgres implementation of Repository
type BunRepository struct {
	db *bun.DB
}

func NewRepository(db *bun.DB) *BunRepository {
	return &BunRepository{db: db}
}

// List returns the user's tasks, newest first, optionally filtered by
// status
func (r *BunRepository) List(ctx context.Context, userID uuid.UUID, status *Status) ([]Task, error) {
	var dbTasks []database.Task

	q := r.db.NewSelect().
		Model(&dbTasks).
		Where("user_id = ?", userID)

	if status != nil {
		q = q.Where("status = ?", string(*status))
	}

	err := q.Order("created_at DESC").Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	tasks := make([]Task, 0, len(dbTasks))
	for i := range dbTasks {
		tasks = append(tasks, *mapDBTaskToModel(&dbTasks[i]))
	}

	return tasks, nil
}

// Get returns the task if it exists and belongs to the user
func (r *BunRepository) Get(ctx context.Context, userID uuid.UUID, id int64) (*Task, error) {
	dbTask := new(database.Task)
	err := r.db.NewSelect().
		Model(dbTask).
		Where("id = ?", id).
		Where("user_id = ?", userID).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	return mapDBTaskToModel(dbTask), nil
}

// Create persists a new task and fills in the store-assigned fields
func (r *BunRepository) Create(ctx context.Context, t *Task) error {
	now := time.Now()
	dbTask := &database.Task{
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		DueDate:     t.DueDate,
		UserID:      t.UserID,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err := r.db.NewInsert().
		Model(dbTask).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	*t = *mapDBTaskToModel(dbTask)
	return nil
}

// Update overwrites the mutable fields, guarded by the version read
// earlier. A version mismatch means a concurrent writer won; if the
// row is gone entirely the caller sees ErrNotFound instead.
func (r *BunRepository) Update(ctx context.Context, t *Task) error {
	result, err := r.db.NewUpdate().
		Model((*database.Task)(nil)).
		Set("title = ?", t.Title).
		Set("description = ?", t.Description).
		Set("status = ?", string(t.Status)).
		Set("due_date = ?", t.DueDate).
		Set("version = version + 1").
		Set("updated_at = NOW()").
		Where("id = ?", t.ID).
		Where("user_id = ?", t.UserID).
		Where("version = ?", t.Version).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}

	if rowsAffected == 0 {
		// Lost the race: distinguish deleted from concurrently updated
		if _, err := r.Get(ctx, t.UserID, t.ID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return ErrNotFound
			}
			return err
		}
		return ErrConflict
	}

	return nil
}

// Delete removes the task if it belongs to the user
func (r *BunRepository) Delete(ctx context.Context, userID uuid.UUID, id int64) error {
	result, err := r.db.NewDelete().
		Model((*database.Task)(nil)).
		Where("id = ?", id).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// mapDBTaskToModel converts database model to domain model
func mapDBTaskToModel(dbt *database.Task) *Task {
	return &Task{
		ID:          dbt.ID,
		Title:       dbt.Title,
		Description: dbt.Description,
		Status:      Status(dbt.Status),
		DueDate:     dbt.DueDate,
		UserID:      dbt.UserID,
		Version:     dbt.Version,
		CreatedAt:   dbt.CreatedAt,
		UpdatedAt:   dbt.UpdatedAt,
	}
}

var _ Repository = (*BunRepository)(nil)
