package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"todoapi/internal/model"
)

// TaskRepository defines task persistence operations. Every query is keyed by
// the owning user id, so a task that exists but belongs to someone else is
// indistinguishable from one that does not exist.
type TaskRepository interface {
	Create(ctx context.Context, task *model.Task) error
	FindByID(ctx context.Context, userID, id uuid.UUID) (*model.Task, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Task, error)
	Update(ctx context.Context, task *model.Task) error
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

type taskRepository struct {
	db *gorm.DB
}

// NewTaskRepository creates a new task repository.
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &taskRepository{db: db}
}

// Create creates a new task.
func (r *taskRepository) Create(ctx context.Context, task *model.Task) error {
	return r.db.WithContext(ctx).Create(task).Error
}

// FindByID finds a task by ID scoped to its owner.
func (r *taskRepository) FindByID(ctx context.Context, userID, id uuid.UUID) (*model.Task, error) {
	var task model.Task
	if err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// ListByUser lists all tasks owned by a user, oldest first.
func (r *taskRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// Update saves all fields of an existing task.
func (r *taskRepository) Update(ctx context.Context, task *model.Task) error {
	return r.db.WithContext(ctx).Save(task).Error
}

// Delete removes a task scoped to its owner. Returns gorm.ErrRecordNotFound
// when no row matched.
func (r *taskRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&model.Task{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
