// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"net/http"

	"github.com/hitoshi/flextime/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	userIDContextKey  = contextKey("user_id")
	sessionContextKey = contextKey("session")
)

// SessionSource は現在のセッションの参照元。session.Managerが実装する。
type SessionSource interface {
	Current() *model.Session
	RemoteUserID() (int64, error)
}

// NewSessionMiddleware は現在のセッションが存在する場合のみ後続へ委譲するミドルウェアを返す。
// セッションとリモートAPI上のユーザーIDをリクエストコンテキストに注入する。
// セッションがない場合は401を返す。
func NewSessionMiddleware(src SessionSource) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := src.Current()
			if sess == nil {
				WriteError(w, model.ErrNoSession)
				return
			}
			userID, err := src.RemoteUserID()
			if err != nil {
				WriteError(w, err)
				return
			}

			if rec, ok := w.(userIDRecorder); ok {
				rec.recordUserID(userID)
			}

			ctx := context.WithValue(r.Context(), sessionContextKey, sess)
			ctx = ContextWithUserID(ctx, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext はリクエストコンテキストからリモートAPI上のユーザーIDを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (int64, error) {
	userID, ok := ctx.Value(userIDContextKey).(int64)
	if !ok || userID <= 0 {
		return 0, model.ErrNoSession
	}
	return userID, nil
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

// SessionFromContext はリクエストコンテキストからセッションを取得する。
func SessionFromContext(ctx context.Context) (*model.Session, bool) {
	sess, ok := ctx.Value(sessionContextKey).(*model.Session)
	return sess, ok && sess != nil
}
