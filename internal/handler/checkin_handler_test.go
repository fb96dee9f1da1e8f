package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/flextime/internal/model"
)

// --- モック定義 ---

type mockCheckInService struct {
	listFn   func(ctx context.Context, userID int64, force bool) ([]model.CheckIn, error)
	submitFn func(ctx context.Context, userID int64, location string, mood int) (*model.CheckIn, error)
}

func (m *mockCheckInService) List(ctx context.Context, userID int64, force bool) ([]model.CheckIn, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID, force)
	}
	return []model.CheckIn{}, nil
}

func (m *mockCheckInService) Submit(ctx context.Context, userID int64, location string, mood int) (*model.CheckIn, error) {
	if m.submitFn != nil {
		return m.submitFn(ctx, userID, location, mood)
	}
	return &model.CheckIn{}, nil
}

// --- テスト ---

func TestCheckInHandler_ListCheckIns(t *testing.T) {
	svc := &mockCheckInService{
		listFn: func(ctx context.Context, userID int64, force bool) ([]model.CheckIn, error) {
			if force {
				t.Error("force should be false without ?refresh")
			}
			return []model.CheckIn{
				{ID: 2, Date: "2026-10-17", LocationType: model.LocationHome, Mood: 8},
				{ID: 1, Date: "2026-10-16", LocationType: model.LocationOffice, Mood: 5},
			}, nil
		},
	}
	h := NewCheckInHandler(svc)

	w := httptest.NewRecorder()
	h.ListCheckIns(w, withUser(httptest.NewRequest(http.MethodGet, "/api/checkins", nil), 1))

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	items := decodeBody[[]model.CheckIn](t, resp)
	if len(items) != 2 || items[0].ID != 2 {
		t.Errorf("items = %+v, want server order", items)
	}
}

func TestCheckInHandler_SubmitCheckIn(t *testing.T) {
	svc := &mockCheckInService{
		submitFn: func(ctx context.Context, userID int64, location string, mood int) (*model.CheckIn, error) {
			if userID != 3 || location != "remote" || mood != 7 {
				t.Errorf("Submit(%d, %q, %d)", userID, location, mood)
			}
			return &model.CheckIn{ID: 10, UserID: userID, Date: "2026-10-18", LocationType: model.LocationRemote, Mood: mood}, nil
		},
	}
	h := NewCheckInHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/checkins", strings.NewReader(`{"locationType":"remote","mood":7}`))
	w := httptest.NewRecorder()
	h.SubmitCheckIn(w, withUser(req, 3))

	resp := w.Result()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	created := decodeBody[model.CheckIn](t, resp)
	if created.LocationType != model.LocationRemote {
		t.Errorf("locationType = %q, want REMOTE", created.LocationType)
	}
}

func TestCheckInHandler_SubmitCheckIn_ValidationError(t *testing.T) {
	svc := &mockCheckInService{
		submitFn: func(ctx context.Context, userID int64, location string, mood int) (*model.CheckIn, error) {
			return nil, &model.ValidationError{Field: "mood", Message: "must be between 1 and 10"}
		},
	}
	h := NewCheckInHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/checkins", strings.NewReader(`{"locationType":"HOME","mood":11}`))
	w := httptest.NewRecorder()
	h.SubmitCheckIn(w, withUser(req, 1))

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}
