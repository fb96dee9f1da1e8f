package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/flextime/internal/middleware"
	"github.com/hitoshi/flextime/internal/model"
)

// CheckInServiceInterface はチェックインハンドラーが必要とするサービスインターフェース。
type CheckInServiceInterface interface {
	List(ctx context.Context, userID int64, force bool) ([]model.CheckIn, error)
	Submit(ctx context.Context, userID int64, location string, mood int) (*model.CheckIn, error)
}

// CheckInHandler はチェックインのHTTPハンドラー。
type CheckInHandler struct {
	service CheckInServiceInterface
}

// NewCheckInHandler はCheckInHandlerを生成する。
func NewCheckInHandler(service CheckInServiceInterface) *CheckInHandler {
	return &CheckInHandler{service: service}
}

// submitCheckInRequest はチェックイン登録リクエストのボディ。日付はサーバー側で本日を設定する。
type submitCheckInRequest struct {
	LocationType string `json:"locationType"`
	Mood         int    `json:"mood"`
}

// ListCheckIns はチェックインを新しい順に返す。
// GET /api/checkins
func (h *CheckInHandler) ListCheckIns(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	items, err := h.service.List(r.Context(), userID, forceRefresh(r))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// SubmitCheckIn は本日のチェックインを登録する。
// POST /api/checkins
func (h *CheckInHandler) SubmitCheckIn(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	var req submitCheckInRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	created, err := h.service.Submit(r.Context(), userID, req.LocationType, req.Mood)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}
