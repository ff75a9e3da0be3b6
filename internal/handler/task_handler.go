package handler

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"todoapi/internal/auth"
	"todoapi/internal/errors"
	"todoapi/internal/service"
)

// TaskHandler handles per-user task endpoints.
type TaskHandler struct {
	taskService service.TaskService
}

// NewTaskHandler creates a new task handler.
func NewTaskHandler(taskService service.TaskService) *TaskHandler {
	return &TaskHandler{taskService: taskService}
}

// CreateTaskRequest represents a task creation request.
type CreateTaskRequest struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	Completed   bool   `json:"completed"`
}

// UpdateTaskRequest represents a partial task update. Absent fields are left
// unchanged.
type UpdateTaskRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Completed   *bool   `json:"completed"`
}

// ToggleResponse represents the result of toggling a task's completion.
type ToggleResponse struct {
	ID        string `json:"id"`
	Completed bool   `json:"completed"`
	Message   string `json:"message"`
}

// ownerID enforces tenant isolation: the user_id path segment must match the
// identity in the caller's token before any lookup happens, so a mismatch is
// always Forbidden, never NotFound.
func ownerID(c echo.Context) (uuid.UUID, error) {
	claims, err := auth.CurrentUser(c)
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}
	if c.Param("user_id") != claims.UserID {
		he := errors.MapErrorToHTTP(errors.ErrForbidden)
		return uuid.Nil, echo.NewHTTPError(he.StatusCode, he.ToErrorResponse())
	}
	id, err := uuid.Parse(claims.UserID)
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}
	return id, nil
}

// taskID parses the task id path segment.
func taskID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid task id")
	}
	return id, nil
}

// ListTasks godoc
// @Summary List the user's tasks
// @Tags tasks
// @Produce json
// @Security BearerAuth
// @Param user_id path string true "User ID"
// @Success 200 {array} model.Task
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /{user_id}/tasks [get]
func (h *TaskHandler) ListTasks(c echo.Context) error {
	uid, err := ownerID(c)
	if err != nil {
		return err
	}

	tasks, err := h.taskService.ListTasks(c.Request().Context(), uid)
	if err != nil {
		he := errors.MapErrorToHTTP(err)
		return echo.NewHTTPError(he.StatusCode, he.ToErrorResponse())
	}

	return c.JSON(http.StatusOK, tasks)
}

// CreateTask godoc
// @Summary Create a task
// @Tags tasks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param user_id path string true "User ID"
// @Param request body CreateTaskRequest true "Task data"
// @Success 200 {object} model.Task
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /{user_id}/tasks [post]
func (h *TaskHandler) CreateTask(c echo.Context) error {
	uid, err := ownerID(c)
	if err != nil {
		return err
	}

	var req CreateTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	task, err := h.taskService.CreateTask(c.Request().Context(), uid, req.Title, req.Description, req.Completed)
	if err != nil {
		he := errors.MapErrorToHTTP(err)
		return echo.NewHTTPError(he.StatusCode, he.ToErrorResponse())
	}

	return c.JSON(http.StatusOK, task)
}

// GetTask godoc
// @Summary Get a task
// @Tags tasks
// @Produce json
// @Security BearerAuth
// @Param user_id path string true "User ID"
// @Param id path string true "Task ID"
// @Success 200 {object} model.Task
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /{user_id}/tasks/{id} [get]
func (h *TaskHandler) GetTask(c echo.Context) error {
	uid, err := ownerID(c)
	if err != nil {
		return err
	}

	id, err := taskID(c)
	if err != nil {
		return err
	}

	task, err := h.taskService.GetTask(c.Request().Context(), uid, id)
	if err != nil {
		he := errors.MapErrorToHTTP(err)
		return echo.NewHTTPError(he.StatusCode, he.ToErrorResponse())
	}

	return c.JSON(http.StatusOK, task)
}

// UpdateTask godoc
// @Summary Update a task
// @Tags tasks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param user_id path string true "User ID"
// @Param id path string true "Task ID"
// @Param request body UpdateTaskRequest true "Fields to update"
// @Success 200 {object} model.Task
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /{user_id}/tasks/{id} [put]
func (h *TaskHandler) UpdateTask(c echo.Context) error {
	uid, err := ownerID(c)
	if err != nil {
		return err
	}

	id, err := taskID(c)
	if err != nil {
		return err
	}

	var req UpdateTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	task, err := h.taskService.UpdateTask(c.Request().Context(), uid, id, service.UpdateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		Completed:   req.Completed,
	})
	if err != nil {
		he := errors.MapErrorToHTTP(err)
		return echo.NewHTTPError(he.StatusCode, he.ToErrorResponse())
	}

	return c.JSON(http.StatusOK, task)
}

// DeleteTask godoc
// @Summary Delete a task
// @Tags tasks
// @Produce json
// @Security BearerAuth
// @Param user_id path string true "User ID"
// @Param id path string true "Task ID"
// @Success 200 {object} map[string]string
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /{user_id}/tasks/{id} [delete]
func (h *TaskHandler) DeleteTask(c echo.Context) error {
	uid, err := ownerID(c)
	if err != nil {
		return err
	}

	id, err := taskID(c)
	if err != nil {
		return err
	}

	if err := h.taskService.DeleteTask(c.Request().Context(), uid, id); err != nil {
		he := errors.MapErrorToHTTP(err)
		return echo.NewHTTPError(he.StatusCode, he.ToErrorResponse())
	}

	return c.JSON(http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Task %s deleted successfully", id),
	})
}

// ToggleCompletion godoc
// @Summary Toggle a task's completion flag
// @Tags tasks
// @Produce json
// @Security BearerAuth
// @Param user_id path string true "User ID"
// @Param id path string true "Task ID"
// @Success 200 {object} ToggleResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /{user_id}/tasks/{id}/complete [patch]
func (h *TaskHandler) ToggleCompletion(c echo.Context) error {
	uid, err := ownerID(c)
	if err != nil {
		return err
	}

	id, err := taskID(c)
	if err != nil {
		return err
	}

	task, err := h.taskService.ToggleCompletion(c.Request().Context(), uid, id)
	if err != nil {
		he := errors.MapErrorToHTTP(err)
		return echo.NewHTTPError(he.StatusCode, he.ToErrorResponse())
	}

	state := "incomplete"
	if task.Completed {
		state = "completed"
	}

	return c.JSON(http.StatusOK, ToggleResponse{
		ID:        task.ID.String(),
		Completed: task.Completed,
		Message:   fmt.Sprintf("Task %s marked as %s", task.ID, state),
	})
}
