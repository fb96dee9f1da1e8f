package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/hitoshi/flextime/internal/model"
	"github.com/hitoshi/flextime/internal/remote"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// 原因カテゴリと対処方法を含む。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
// すべてのAPIエンドポイントで一貫したエラーレスポンスを提供する。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// WriteError はエラーの種類に応じたステータスコードと本文を書き込む。
//
//	AuthError, ErrNoSession → 401
//	ValidationError → 400
//	ErrTaskNotFound, 404を受けた書き込み → 404
//	RemoteFetchError, RemoteWriteError → 502
//	それ以外 → 500
func WriteError(w http.ResponseWriter, err error) {
	status, apiErr := classify(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", slog.Int("status", status), slog.String("error", err.Error()))
	}
	WriteErrorResponse(w, status, apiErr)
}

func classify(err error) (int, *model.APIError) {
	var (
		authErr  *model.AuthError
		valErr   *model.ValidationError
		fetchErr *model.RemoteFetchError
		writeErr *model.RemoteWriteError
	)

	switch {
	case errors.As(err, &authErr):
		msg := authErr.Message
		if msg == "" {
			msg = authErr.Error()
		}
		return http.StatusUnauthorized, model.NewAuthFailedError(msg)
	case errors.Is(err, model.ErrNoSession):
		return http.StatusUnauthorized, model.NewNoSessionError()
	case errors.As(err, &valErr):
		return http.StatusBadRequest, model.NewValidationError(valErr.Error())
	case errors.Is(err, model.ErrTaskNotFound):
		return http.StatusNotFound, model.NewTaskNotFoundError()
	case errors.As(err, &writeErr):
		if writeErr.Resource == model.ResourceTasks && remote.IsNotFound(err) {
			return http.StatusNotFound, model.NewTaskNotFoundError()
		}
		return http.StatusBadGateway, model.NewRemoteWriteError(writeErr.Resource)
	case errors.As(err, &fetchErr):
		return http.StatusBadGateway, model.NewRemoteFetchError(fetchErr.Resource)
	default:
		return http.StatusInternalServerError, &model.APIError{
			Code:     "INTERNAL_ERROR",
			Message:  "内部エラーが発生しました。",
			Category: "system",
			Action:   "しばらく待ってから再度お試しください。",
		}
	}
}

// WriteInvalidID は不正なパスパラメータのレスポンスを書き込む。
func WriteInvalidID(w http.ResponseWriter, raw string) {
	WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidResourceError(raw))
}

// ParseID はパスパラメータを正のint64として解析する。
func ParseID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
