package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/flextime/internal/middleware"
	"github.com/hitoshi/flextime/internal/model"
)

// --- モック定義 ---

type mockTaskService struct {
	listFn       func(ctx context.Context, userID int64, force bool) ([]model.Task, error)
	createFn     func(ctx context.Context, userID int64, title, description, dueDate string) (*model.Task, error)
	toggleFn     func(ctx context.Context, t *model.Task) (*model.Task, error)
	toggleByIDFn func(ctx context.Context, userID, id int64) (*model.Task, error)
	deleteFn     func(ctx context.Context, id int64) error
}

func (m *mockTaskService) List(ctx context.Context, userID int64, force bool) ([]model.Task, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID, force)
	}
	return []model.Task{}, nil
}

func (m *mockTaskService) Create(ctx context.Context, userID int64, title, description, dueDate string) (*model.Task, error) {
	if m.createFn != nil {
		return m.createFn(ctx, userID, title, description, dueDate)
	}
	return &model.Task{}, nil
}

func (m *mockTaskService) Toggle(ctx context.Context, t *model.Task) (*model.Task, error) {
	if m.toggleFn != nil {
		return m.toggleFn(ctx, t)
	}
	return t, nil
}

func (m *mockTaskService) ToggleByID(ctx context.Context, userID, id int64) (*model.Task, error) {
	if m.toggleByIDFn != nil {
		return m.toggleByIDFn(ctx, userID, id)
	}
	return &model.Task{ID: id}, nil
}

func (m *mockTaskService) Delete(ctx context.Context, id int64) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

// withUser はセッションミドルウェア通過後と同じコンテキストを持つリクエストを返す。
func withUser(r *http.Request, userID int64) *http.Request {
	return r.WithContext(middleware.ContextWithUserID(r.Context(), userID))
}

// withURLParam はchiのURLパラメータを設定する。
func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// --- テスト ---

func TestTaskHandler_ListTasks(t *testing.T) {
	var gotUser int64
	var gotForce bool
	svc := &mockTaskService{
		listFn: func(ctx context.Context, userID int64, force bool) ([]model.Task, error) {
			gotUser, gotForce = userID, force
			return []model.Task{{ID: 1, Title: "Write report", Status: model.TaskPending}}, nil
		},
	}
	h := NewTaskHandler(svc)

	req := withUser(httptest.NewRequest(http.MethodGet, "/api/tasks?refresh=true", nil), 5)
	w := httptest.NewRecorder()
	h.ListTasks(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if gotUser != 5 || !gotForce {
		t.Errorf("List(user=%d, force=%v), want user=5 force=true", gotUser, gotForce)
	}
	tasks := decodeBody[[]model.Task](t, resp)
	if len(tasks) != 1 || tasks[0].Title != "Write report" {
		t.Errorf("tasks = %+v", tasks)
	}
}

func TestTaskHandler_ListTasks_WithoutUser(t *testing.T) {
	h := NewTaskHandler(&mockTaskService{})

	w := httptest.NewRecorder()
	h.ListTasks(w, httptest.NewRequest(http.MethodGet, "/api/tasks", nil))

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestTaskHandler_ListTasks_FetchFailure(t *testing.T) {
	svc := &mockTaskService{
		listFn: func(ctx context.Context, userID int64, force bool) ([]model.Task, error) {
			return nil, &model.RemoteFetchError{Resource: model.ResourceTasks, Err: errors.New("timeout")}
		},
	}
	h := NewTaskHandler(svc)

	w := httptest.NewRecorder()
	h.ListTasks(w, withUser(httptest.NewRequest(http.MethodGet, "/api/tasks", nil), 1))

	if w.Result().StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadGateway)
	}
}

func TestTaskHandler_CreateTask(t *testing.T) {
	svc := &mockTaskService{
		createFn: func(ctx context.Context, userID int64, title, description, dueDate string) (*model.Task, error) {
			if title != "Plan sprint" || dueDate != "2026-10-20" {
				t.Errorf("Create(title=%q, due=%q)", title, dueDate)
			}
			return &model.Task{ID: 9, Title: title, Status: model.TaskPending, DueDate: &dueDate}, nil
		},
	}
	h := NewTaskHandler(svc)

	body := `{"title":"Plan sprint","description":"","dueDate":"2026-10-20"}`
	w := httptest.NewRecorder()
	h.CreateTask(w, withUser(httptest.NewRequest(http.MethodPost, "/api/tasks", strings.NewReader(body)), 1))

	resp := w.Result()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	created := decodeBody[model.Task](t, resp)
	if created.ID != 9 {
		t.Errorf("ID = %d, want 9", created.ID)
	}
}

func TestTaskHandler_CreateTask_ValidationError(t *testing.T) {
	svc := &mockTaskService{
		createFn: func(ctx context.Context, userID int64, title, description, dueDate string) (*model.Task, error) {
			return nil, &model.ValidationError{Field: "title", Message: "required"}
		},
	}
	h := NewTaskHandler(svc)

	w := httptest.NewRecorder()
	h.CreateTask(w, withUser(httptest.NewRequest(http.MethodPost, "/api/tasks", strings.NewReader(`{"title":"  "}`)), 1))

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}

func TestTaskHandler_ToggleTask_ByID(t *testing.T) {
	var gotID int64
	svc := &mockTaskService{
		toggleByIDFn: func(ctx context.Context, userID, id int64) (*model.Task, error) {
			gotID = id
			return &model.Task{ID: id, Status: model.TaskCompleted}, nil
		},
	}
	h := NewTaskHandler(svc)

	req := httptest.NewRequest(http.MethodPut, "/api/tasks/12/toggle", nil)
	req = withURLParam(withUser(req, 1), "id", "12")
	w := httptest.NewRecorder()
	h.ToggleTask(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	if gotID != 12 {
		t.Errorf("ToggleByID id = %d, want 12", gotID)
	}
}

func TestTaskHandler_ToggleTask_WithBodyUsesPathID(t *testing.T) {
	var got *model.Task
	svc := &mockTaskService{
		toggleFn: func(ctx context.Context, task *model.Task) (*model.Task, error) {
			got = task
			return &model.Task{ID: task.ID, Status: task.Status.Toggle()}, nil
		},
	}
	h := NewTaskHandler(svc)

	req := httptest.NewRequest(http.MethodPut, "/api/tasks/12/toggle", strings.NewReader(`{"id":99,"title":"A","status":"PENDENTE"}`))
	req = withURLParam(withUser(req, 1), "id", "12")
	w := httptest.NewRecorder()
	h.ToggleTask(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	if got == nil || got.ID != 12 || got.Title != "A" {
		t.Errorf("Toggle task = %+v, want id 12 from path", got)
	}
}

func TestTaskHandler_ToggleTask_NotFound(t *testing.T) {
	svc := &mockTaskService{
		toggleByIDFn: func(ctx context.Context, userID, id int64) (*model.Task, error) {
			return nil, fmt.Errorf("task %d: %w", id, model.ErrTaskNotFound)
		},
	}
	h := NewTaskHandler(svc)

	req := withURLParam(withUser(httptest.NewRequest(http.MethodPut, "/api/tasks/3/toggle", nil), 1), "id", "3")
	w := httptest.NewRecorder()
	h.ToggleTask(w, req)

	if w.Result().StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNotFound)
	}
}

func TestTaskHandler_InvalidID(t *testing.T) {
	h := NewTaskHandler(&mockTaskService{})

	for _, raw := range []string{"abc", "0", "-1"} {
		t.Run(raw, func(t *testing.T) {
			req := withURLParam(withUser(httptest.NewRequest(http.MethodDelete, "/api/tasks/"+raw, nil), 1), "id", raw)
			w := httptest.NewRecorder()
			h.DeleteTask(w, req)

			if w.Result().StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
			}
		})
	}
}

func TestTaskHandler_DeleteTask(t *testing.T) {
	var gotID int64
	svc := &mockTaskService{
		deleteFn: func(ctx context.Context, id int64) error {
			gotID = id
			return nil
		},
	}
	h := NewTaskHandler(svc)

	req := withURLParam(withUser(httptest.NewRequest(http.MethodDelete, "/api/tasks/4", nil), 1), "id", "4")
	w := httptest.NewRecorder()
	h.DeleteTask(w, req)

	if w.Result().StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNoContent)
	}
	if gotID != 4 {
		t.Errorf("Delete id = %d, want 4", gotID)
	}
}

func TestTaskHandler_DeleteTask_RemoteFailure(t *testing.T) {
	svc := &mockTaskService{
		deleteFn: func(ctx context.Context, id int64) error {
			return &model.RemoteWriteError{Resource: model.ResourceTasks, Op: "delete", Err: errors.New("500")}
		},
	}
	h := NewTaskHandler(svc)

	req := withURLParam(withUser(httptest.NewRequest(http.MethodDelete, "/api/tasks/4", nil), 1), "id", "4")
	w := httptest.NewRecorder()
	h.DeleteTask(w, req)

	if w.Result().StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadGateway)
	}
}
