package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/flextime/internal/middleware"
	"github.com/hitoshi/flextime/internal/model"
)

// TaskServiceInterface はタスクハンドラーが必要とするサービスインターフェース。
type TaskServiceInterface interface {
	List(ctx context.Context, userID int64, force bool) ([]model.Task, error)
	Create(ctx context.Context, userID int64, title, description, dueDate string) (*model.Task, error)
	Toggle(ctx context.Context, t *model.Task) (*model.Task, error)
	ToggleByID(ctx context.Context, userID, id int64) (*model.Task, error)
	Delete(ctx context.Context, id int64) error
}

// TaskHandler はタスク管理のHTTPハンドラー。
type TaskHandler struct {
	service TaskServiceInterface
}

// NewTaskHandler はTaskHandlerを生成する。
func NewTaskHandler(service TaskServiceInterface) *TaskHandler {
	return &TaskHandler{service: service}
}

// createTaskRequest はタスク作成リクエストのボディ。dueDateは空またはYYYY-MM-DD。
type createTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	DueDate     string `json:"dueDate"`
}

// ListTasks はタスク一覧を返す。
// GET /api/tasks
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	tasks, err := h.service.List(r.Context(), userID, forceRefresh(r))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

// CreateTask はタスクを作成する。
// POST /api/tasks
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	var req createTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	task, err := h.service.Create(r.Context(), userID, req.Title, req.Description, req.DueDate)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

// ToggleTask はタスクの完了状態を反転する。
// ボディに現在のタスクがあればその内容で更新し、なければ一覧から探す。
// PUT /api/tasks/{id}/toggle
func (h *TaskHandler) ToggleTask(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	rawID := chi.URLParam(r, "id")
	id, ok := middleware.ParseID(rawID)
	if !ok {
		middleware.WriteInvalidID(w, rawID)
		return
	}

	var updated *model.Task
	if r.ContentLength == 0 {
		updated, err = h.service.ToggleByID(r.Context(), userID, id)
	} else {
		var current model.Task
		if !decodeJSON(w, r, &current) {
			return
		}
		current.ID = id
		updated, err = h.service.Toggle(r.Context(), &current)
	}
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteTask はタスクを削除する。
// DELETE /api/tasks/{id}
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	rawID := chi.URLParam(r, "id")
	id, ok := middleware.ParseID(rawID)
	if !ok {
		middleware.WriteInvalidID(w, rawID)
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		middleware.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
