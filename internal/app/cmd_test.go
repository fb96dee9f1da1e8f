package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/hitoshi/flextime/internal/model"
)

// runCLI はコマンドツリーを実行し、標準出力相当の内容を返す。
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	keepDefaultLogger(t)

	var out, logs bytes.Buffer
	root := NewRootCommand(&logs, &out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// fakeRemote はリモートAPIのタスク・チェックインエンドポイントを模擬する。
type fakeRemote struct {
	mu    sync.Mutex
	posts int
}

func (f *fakeRemote) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/v1/tasks/user/1":
			io.WriteString(w, `{"content":[{"id":1,"userId":1,"title":"Write report","status":"PENDENTE","dueDate":"2026-10-20"}]}`)
		case r.Method == http.MethodPost:
			f.mu.Lock()
			f.posts++
			f.mu.Unlock()
			w.WriteHeader(http.StatusCreated)
			io.WriteString(w, `{}`)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func (f *fakeRemote) postCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.posts
}

func newFakeRemote(t *testing.T) (*fakeRemote, string) {
	t.Helper()
	f := &fakeRemote{}
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	return f, srv.URL + "/api/v1"
}

func TestCLI_WhoamiSignedOut(t *testing.T) {
	setTestEnv(t, "")

	out, err := runCLI(t, "whoami")
	if err != nil {
		t.Fatalf("whoami: %v", err)
	}
	if !strings.Contains(out, "Not signed in.") {
		t.Errorf("output = %q, want signed-out message", out)
	}
}

func TestCLI_SignupPersistsSessionAcrossInvocations(t *testing.T) {
	setTestEnv(t, "")

	out, err := runCLI(t, "signup", "--email", "ana@example.com", "--password", "s3cret!")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if !strings.Contains(out, "Signed in as ana@example.com") {
		t.Errorf("signup output = %q", out)
	}

	out, err = runCLI(t, "whoami", "--json")
	if err != nil {
		t.Fatalf("whoami: %v", err)
	}
	var sess model.Session
	if err := json.Unmarshal([]byte(out), &sess); err != nil {
		t.Fatalf("decode whoami output %q: %v", out, err)
	}
	if sess.EmailOrEmpty() != "ana@example.com" || sess.UserID == "" {
		t.Errorf("session = %+v, want restored ana@example.com", sess)
	}

	out, err = runCLI(t, "logout")
	if err != nil {
		t.Fatalf("logout: %v", err)
	}
	if !strings.Contains(out, "Signed out.") {
		t.Errorf("logout output = %q", out)
	}

	out, err = runCLI(t, "whoami")
	if err != nil {
		t.Fatalf("whoami after logout: %v", err)
	}
	if !strings.Contains(out, "Not signed in.") {
		t.Errorf("output = %q, want signed-out message", out)
	}
}

func TestCLI_SignupRejectsShortPassword(t *testing.T) {
	setTestEnv(t, "")

	_, err := runCLI(t, "signup", "--email", "ana@example.com", "--password", "123")
	var authErr *model.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("err = %v, want AuthError", err)
	}
}

func TestCLI_TasksRequireSession(t *testing.T) {
	setTestEnv(t, "")

	_, err := runCLI(t, "tasks", "list")
	if !errors.Is(err, errNotSignedIn) {
		t.Errorf("err = %v, want errNotSignedIn", err)
	}
}

func TestCLI_TasksList(t *testing.T) {
	_, remoteURL := newFakeRemote(t)
	setTestEnv(t, remoteURL)

	if _, err := runCLI(t, "signup", "--email", "ana@example.com", "--password", "s3cret!"); err != nil {
		t.Fatalf("signup: %v", err)
	}

	out, err := runCLI(t, "tasks", "list")
	if err != nil {
		t.Fatalf("tasks list: %v", err)
	}
	if !strings.Contains(out, "Write report") || !strings.Contains(out, "2026-10-20") {
		t.Errorf("output = %q, want task row", out)
	}

	out, err = runCLI(t, "tasks", "list", "--json")
	if err != nil {
		t.Fatalf("tasks list --json: %v", err)
	}
	var tasks []model.Task
	if err := json.Unmarshal([]byte(out), &tasks); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Status != model.TaskPending {
		t.Errorf("tasks = %+v", tasks)
	}
}

func TestCLI_CheckinValidationDoesNotCallRemote(t *testing.T) {
	remote, remoteURL := newFakeRemote(t)
	setTestEnv(t, remoteURL)

	if _, err := runCLI(t, "signup", "--email", "ana@example.com", "--password", "s3cret!"); err != nil {
		t.Fatalf("signup: %v", err)
	}

	_, err := runCLI(t, "checkins", "add", "--location", "HOME", "--mood", "11")
	if !errors.Is(err, model.ErrValidation) {
		t.Errorf("err = %v, want validation error", err)
	}
	if n := remote.postCount(); n != 0 {
		t.Errorf("remote posts = %d, want 0", n)
	}
}

func TestCLI_TaskToggleInvalidID(t *testing.T) {
	setTestEnv(t, "")

	_, err := runCLI(t, "tasks", "toggle", "abc")
	if !errors.Is(err, model.ErrValidation) {
		t.Errorf("err = %v, want validation error", err)
	}
}

func TestCLI_Healthcheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	_, port, err := net.SplitHostPort(srv.Listener.Addr().String())
	if err != nil {
		t.Fatalf("split addr: %v", err)
	}
	t.Setenv("SERVER_PORT", port)
	// 設定が不正でもhealthcheckは初期化を行わない
	t.Setenv("IDENTITY_PROVIDER", "bogus")

	if _, err := runCLI(t, "healthcheck"); err != nil {
		t.Errorf("healthcheck: %v", err)
	}
}
