package task

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/redmonkez12/taskboard-api/internal/auth"
	"github.com/redmonkez12/taskboard-api/internal/httputil"
	"github.com/redmonkez12/taskboard-api/internal/logging"
	"github.com/redmonkez12/taskboard-api/internal/metrics"
)

const maxTitleLength = 200

// Handler exposes ownership-scoped task CRUD. The owner id always
// comes from the validated token claims, never from the request body.
type Handler struct {
	repo      Repository
	collector *metrics.Collector
	logger    *logging.Logger
}

func NewHandler(repo Repository, collector *metrics.Collector, logger *logging.Logger) *Handler {
	return &Handler{repo: repo, collector: collector, logger: logger}
}

// CreateTaskRequest represents the task creation request body
type CreateTaskRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date"`
}

// UpdateTaskRequest represents the task update request body
type UpdateTaskRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	DueDate     *time.Time `json:"due_date"`
}

// List returns the caller's tasks, newest first, optionally filtered
// by ?status=
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	var statusFilter *Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := ParseStatus(raw)
		if err != nil {
			httputil.RespondErrorWithCode(w, "invalid status filter", httputil.CodeValidationFailed, http.StatusBadRequest)
			return
		}
		statusFilter = &status
	}

	tasks, err := h.repo.List(r.Context(), userID, statusFilter)
	if err != nil {
		logger.Error("failed to list tasks", "error", err.Error())
		httputil.RespondErrorWithCode(w, "failed to list tasks", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	httputil.RespondJSON(w, tasks, http.StatusOK)
}

// Get returns one task. Tasks owned by other users are reported as not
// found, never as forbidden.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	id, err := taskID(r)
	if err != nil {
		httputil.RespondErrorWithCode(w, "invalid task id", httputil.CodeValidationFailed, http.StatusBadRequest)
		return
	}

	t, err := h.repo.Get(r.Context(), userID, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httputil.RespondErrorWithCode(w, "task not found", httputil.CodeNotFound, http.StatusNotFound)
			return
		}
		logger.Error("failed to get task", "error", err.Error())
		httputil.RespondErrorWithCode(w, "failed to get task", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	httputil.RespondJSON(w, t, http.StatusOK)
}

// Create persists a new task with status Todo
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	if err := validateTitle(req.Title); err != nil {
		httputil.RespondErrorWithCode(w, err.Error(), httputil.CodeValidationFailed, http.StatusBadRequest)
		return
	}

	t := &Task{
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Status:      StatusTodo,
		DueDate:     req.DueDate,
		UserID:      userID,
	}

	if err := h.repo.Create(r.Context(), t); err != nil {
		logger.Error("failed to create task", "error", err.Error())
		httputil.RespondErrorWithCode(w, "failed to create task", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Info("task created", "task_id", t.ID)
	h.collector.RecordTaskCreated()

	w.Header().Set("Location", fmt.Sprintf("/api/task/%d", t.ID))
	httputil.RespondJSON(w, t, http.StatusCreated)
}

// Update overwrites all mutable fields of an owned task
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	id, err := taskID(r)
	if err != nil {
		httputil.RespondErrorWithCode(w, "invalid task id", httputil.CodeValidationFailed, http.StatusBadRequest)
		return
	}

	var req UpdateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	if err := validateTitle(req.Title); err != nil {
		httputil.RespondErrorWithCode(w, err.Error(), httputil.CodeValidationFailed, http.StatusBadRequest)
		return
	}
	status, err := ParseStatus(req.Status)
	if err != nil {
		httputil.RespondErrorWithCode(w, err.Error(), httputil.CodeValidationFailed, http.StatusBadRequest)
		return
	}

	existing, err := h.repo.Get(r.Context(), userID, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httputil.RespondErrorWithCode(w, "task not found", httputil.CodeNotFound, http.StatusNotFound)
			return
		}
		logger.Error("failed to get task for update", "error", err.Error())
		httputil.RespondErrorWithCode(w, "failed to update task", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	existing.Title = strings.TrimSpace(req.Title)
	existing.Description = req.Description
	existing.Status = status
	existing.DueDate = req.DueDate

	if err := h.repo.Update(r.Context(), existing); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			httputil.RespondErrorWithCode(w, "task not found", httputil.CodeNotFound, http.StatusNotFound)
		case errors.Is(err, ErrConflict):
			h.collector.RecordUpdateConflict()
			httputil.RespondErrorWithCode(w, "task was modified concurrently", httputil.CodeConflict, http.StatusConflict)
		default:
			logger.Error("failed to update task", "error", err.Error())
			httputil.RespondErrorWithCode(w, "failed to update task", httputil.CodeInternalError, http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Delete removes an owned task
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	id, err := taskID(r)
	if err != nil {
		httputil.RespondErrorWithCode(w, "invalid task id", httputil.CodeValidationFailed, http.StatusBadRequest)
		return
	}

	if err := h.repo.Delete(r.Context(), userID, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			httputil.RespondErrorWithCode(w, "task not found", httputil.CodeNotFound, http.StatusNotFound)
			return
		}
		logger.Error("failed to delete task", "error", err.Error())
		httputil.RespondErrorWithCode(w, "failed to delete task", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func taskID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func validateTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrTitleRequired
	}
	if len(title) > maxTitleLength {
		return ErrTitleTooLong
	}
	return nil
}
