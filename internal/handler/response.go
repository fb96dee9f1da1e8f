// Package handler はローカルJSON APIのHTTPハンドラーを提供する。
// レスポンスはデータのみで、表示用のマークアップは返さない。
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/hitoshi/flextime/internal/middleware"
	"github.com/hitoshi/flextime/internal/model"
)

// maxRequestBody はリクエストボディの上限サイズ。
const maxRequestBody = 64 << 10

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// decodeJSON はリクエストボディをデコードする。失敗時は400を書き込みfalseを返す。
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return false
	}
	return true
}

// forceRefresh は ?refresh=1 / ?refresh=true でキャッシュを無視するかどうかを返す。
func forceRefresh(r *http.Request) bool {
	v := r.URL.Query().Get("refresh")
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	return err == nil && b
}
