package app

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/hitoshi/flextime/internal/config"
	"github.com/hitoshi/flextime/internal/middleware"
)

// setTestEnv はローカルプロバイダーとファイルストアで動く最小構成を環境変数に設定する。
func setTestEnv(t *testing.T, remoteURL string) string {
	t.Helper()
	blobPath := filepath.Join(t.TempDir(), "state.json")
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("IDENTITY_PROVIDER", "local")
	t.Setenv("IDENTITY_API_KEY", "")
	t.Setenv("BLOB_STORE", "file")
	t.Setenv("BLOB_FILE_PATH", blobPath)
	t.Setenv("DATABASE_URL", "")
	t.Setenv("LOG_LEVEL", "info")
	t.Setenv("LOG_FORMAT", "json")
	if remoteURL != "" {
		t.Setenv("REMOTE_BASE_URL", remoteURL)
	}
	return blobPath
}

// keepDefaultLogger はテスト中に置き換えられたグローバルロガーを元に戻す。
func keepDefaultLogger(t *testing.T) {
	t.Helper()
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
}

func TestInit_WithValidConfig_Succeeds(t *testing.T) {
	keepDefaultLogger(t)
	setTestEnv(t, "http://backend.local:8080/api/v1")

	var buf bytes.Buffer
	cfg, err := Init(&buf)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg == nil {
		t.Fatal("expected non-nil config")
	}
	if cfg.RemoteBaseURL != "http://backend.local:8080/api/v1" {
		t.Errorf("RemoteBaseURL = %q, want override", cfg.RemoteBaseURL)
	}

	// グローバルロガーがJSON出力で構成されていること
	slog.Default().Info("init test")
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON log output, got error: %v\nraw: %s", err, buf.String())
	}
	if entry["msg"] != "init test" {
		t.Errorf("msg = %q, want %q", entry["msg"], "init test")
	}
}

func TestInit_WithInvalidConfig_ReturnsError(t *testing.T) {
	keepDefaultLogger(t)
	setTestEnv(t, "")
	t.Setenv("IDENTITY_PROVIDER", "password")

	var buf bytes.Buffer
	cfg, err := Init(&buf)
	if err == nil {
		t.Fatal("expected error for password provider without API key, got nil")
	}
	if cfg != nil {
		t.Error("expected nil config on error")
	}
}

func TestBuild_RouterServesHealthAndSession(t *testing.T) {
	keepDefaultLogger(t)
	setTestEnv(t, "")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}

	a, err := Build(context.Background(), cfg, slog.Default())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	a.Start()

	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(rl.Stop)
	router := a.Router(rl)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Errorf("/health status = %d, want %d", w.Code, http.StatusOK)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/me", nil))
	var me map[string]any
	if err := json.NewDecoder(w.Body).Decode(&me); err != nil {
		t.Fatalf("decode /auth/me: %v", err)
	}
	if me["authenticated"] != false || me["loading"] != false {
		t.Errorf("/auth/me = %v, want signed out and not loading", me)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/tasks", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("/api/tasks status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestBuild_UnknownBlobStore(t *testing.T) {
	cfg := &config.Config{
		RemoteBaseURL:    "http://localhost:8080/api/v1",
		IdentityProvider: config.IdentityLocal,
		BlobStore:        "s3",
		CacheMaxEntries:  8,
	}
	if _, err := Build(context.Background(), cfg, slog.Default()); err == nil {
		t.Fatal("expected error for unknown blob store")
	}
}

func TestMaskDatabaseURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"postgres://user:secret@db:5432/flextime?sslmode=disable", "postgres://user:xxxxx@db:5432/flextime?sslmode=disable"},
		{"not a url", "***"},
	}
	for _, tt := range tests {
		if got := maskDatabaseURL(tt.in); got != tt.want {
			t.Errorf("maskDatabaseURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
