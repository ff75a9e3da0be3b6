package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"todoapi/internal/cache"
	"todoapi/internal/errors"
	"todoapi/internal/model"
	"todoapi/internal/repository"
)

const taskListCacheTTL = time.Minute

// Cache is the subset of cache operations the task service depends on.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Ensure the Redis-backed client satisfies Cache
var _ Cache = (*cache.Client)(nil)

// UpdateTaskInput carries the fields of a partial update. Nil pointers mean
// "leave unchanged", so completed=false and completed-absent stay distinct.
type UpdateTaskInput struct {
	Title       *string
	Description *string
	Completed   *bool
}

// TaskService handles per-user task operations. Callers are expected to have
// already passed the ownership check; the service additionally scopes every
// repository call by user id.
type TaskService interface {
	ListTasks(ctx context.Context, userID uuid.UUID) ([]model.Task, error)
	CreateTask(ctx context.Context, userID uuid.UUID, title, description string, completed bool) (*model.Task, error)
	GetTask(ctx context.Context, userID, id uuid.UUID) (*model.Task, error)
	UpdateTask(ctx context.Context, userID, id uuid.UUID, input UpdateTaskInput) (*model.Task, error)
	DeleteTask(ctx context.Context, userID, id uuid.UUID) error
	ToggleCompletion(ctx context.Context, userID, id uuid.UUID) (*model.Task, error)
}

type taskService struct {
	taskRepo repository.TaskRepository
	cache    Cache
}

// NewTaskService creates a new task service.
func NewTaskService(taskRepo repository.TaskRepository, cache Cache) TaskService {
	return &taskService{
		taskRepo: taskRepo,
		cache:    cache,
	}
}

func (s *taskService) listCacheKey(userID uuid.UUID) string {
	return fmt.Sprintf("tasks:%s", userID.String())
}

func (s *taskService) invalidateList(ctx context.Context, userID uuid.UUID) {
	_ = s.cache.Delete(ctx, s.listCacheKey(userID))
}

// ListTasks returns all tasks owned by the user, with cache-aside reads.
func (s *taskService) ListTasks(ctx context.Context, userID uuid.UUID) ([]model.Task, error) {
	if data, _ := s.cache.Get(ctx, s.listCacheKey(userID)); data != nil {
		var cached []model.Task
		if err := json.Unmarshal(data, &cached); err == nil {
			return cached, nil
		}
	}

	tasks, err := s.taskRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []model.Task{}
	}

	if payload, err := json.Marshal(tasks); err == nil {
		_ = s.cache.Set(ctx, s.listCacheKey(userID), payload, taskListCacheTTL)
	}

	return tasks, nil
}

// CreateTask creates a task owned by the user.
func (s *taskService) CreateTask(ctx context.Context, userID uuid.UUID, title, description string, completed bool) (*model.Task, error) {
	task := &model.Task{
		ID:          uuid.New(),
		UserID:      userID,
		Title:       title,
		Description: description,
		Completed:   completed,
	}

	if err := s.taskRepo.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	s.invalidateList(ctx, userID)
	return task, nil
}

// GetTask returns the task if it belongs to the user.
func (s *taskService) GetTask(ctx context.Context, userID, id uuid.UUID) (*model.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, userID, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrTaskNotFound
		}
		return nil, err
	}
	return task, nil
}

// UpdateTask applies only the supplied fields and bumps updated_at.
func (s *taskService) UpdateTask(ctx context.Context, userID, id uuid.UUID, input UpdateTaskInput) (*model.Task, error) {
	task, err := s.GetTask(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if input.Title != nil {
		task.Title = *input.Title
	}
	if input.Description != nil {
		task.Description = *input.Description
	}
	if input.Completed != nil {
		task.Completed = *input.Completed
	}

	if err := s.taskRepo.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}

	s.invalidateList(ctx, userID)
	return task, nil
}

// DeleteTask removes the task if it belongs to the user.
func (s *taskService) DeleteTask(ctx context.Context, userID, id uuid.UUID) error {
	if err := s.taskRepo.Delete(ctx, userID, id); err != nil {
		if err == gorm.ErrRecordNotFound {
			return errors.ErrTaskNotFound
		}
		return err
	}

	s.invalidateList(ctx, userID)
	return nil
}

// ToggleCompletion flips the completed flag and returns the updated task.
func (s *taskService) ToggleCompletion(ctx context.Context, userID, id uuid.UUID) (*model.Task, error) {
	task, err := s.GetTask(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	task.Completed = !task.Completed

	if err := s.taskRepo.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("toggle task: %w", err)
	}

	s.invalidateList(ctx, userID)
	return task, nil
}
