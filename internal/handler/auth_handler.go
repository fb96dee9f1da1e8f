package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/flextime/internal/middleware"
	"github.com/hitoshi/flextime/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
// session.Managerが実装する。
type AuthServiceInterface interface {
	SignIn(ctx context.Context, email, secret string) (*model.Session, error)
	SignUp(ctx context.Context, email, secret string) (*model.Session, error)
	Logout(ctx context.Context) error
	Current() *model.Session
	Loading() bool
}

// AuthHandler はサインイン・サインアップ・ログアウトのHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface) *AuthHandler {
	return &AuthHandler{service: service}
}

// credentialsRequest はサインイン・サインアップのリクエストボディ。
type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// sessionResponse は現在のセッションのレスポンス。
type sessionResponse struct {
	Authenticated bool    `json:"authenticated"`
	Loading       bool    `json:"loading"`
	UID           string  `json:"uid,omitempty"`
	Email         *string `json:"email,omitempty"`
}

func toSessionResponse(s *model.Session, loading bool) sessionResponse {
	resp := sessionResponse{Loading: loading}
	if s != nil {
		resp.Authenticated = true
		resp.UID = s.UserID
		resp.Email = s.Email
	}
	return resp
}

// Login はメールアドレスとパスワードでサインインする。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	sess, err := h.service.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		slog.Warn("sign in failed", slog.String("error", err.Error()))
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(sess, false))
}

// Signup はアカウントを作成する。
// POST /auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	sess, err := h.service.SignUp(r.Context(), req.Email, req.Password)
	if err != nil {
		slog.Warn("sign up failed", slog.String("error", err.Error()))
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSessionResponse(sess, false))
}

// Logout はサインアウトする。プロバイダーで失敗した場合はセッションを保持したまま401を返す。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(r.Context()); err != nil {
		slog.Error("failed to logout", slog.String("error", err.Error()))
		middleware.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me は現在のセッションを返す。未ログインでも200でauthenticated=falseを返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toSessionResponse(h.service.Current(), h.service.Loading()))
}
