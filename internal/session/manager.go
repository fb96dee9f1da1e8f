// Package session は現在のセッションを管理する。
// 識別プロバイダーの認証状態を購読し、セッションミラーとキャッシュの整合を保つ。
package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/flextime/internal/auth"
	"github.com/hitoshi/flextime/internal/identity"
	"github.com/hitoshi/flextime/internal/model"
	"github.com/hitoshi/flextime/internal/notify"
)

// MinSecretLength はサインアップ時のパスワード最小文字数。
const MinSecretLength = 6

// mirrorTimeout はミラー更新1回あたりの上限時間。
const mirrorTimeout = 5 * time.Second

// Invalidator はユーザー単位のキャッシュ破棄を行う。cache.Cacheが実装する。
type Invalidator interface {
	InvalidateAll(userID int64)
}

// UserIDResolver はセッションからリモートAPI上のユーザーIDを求める。
type UserIDResolver func(*model.Session) int64

// StaticUserID は常に同じリモートユーザーIDを返すResolverを生成する。
func StaticUserID(id int64) UserIDResolver {
	return func(*model.Session) int64 { return id }
}

// State は購読者へ配信するセッション状態。
type State struct {
	Session *model.Session
	// Loading は最初の認証状態イベントを処理するまでtrue。
	Loading bool
}

// Manager はセッションの唯一の所有者。
type Manager struct {
	provider auth.IdentityProvider
	mirror   *identity.Store
	cache    Invalidator
	resolve  UserIDResolver
	logger   *slog.Logger

	mu          sync.Mutex
	session     *model.Session
	initialized bool

	state *notify.Broadcaster[State]

	lifecycleMu sync.Mutex
	started     bool
	stopped     bool
	unsubscribe func()
}

// NewManager はManagerを生成する。Startを呼ぶまでイベントは処理されない。
func NewManager(
	provider auth.IdentityProvider,
	mirror *identity.Store,
	cache Invalidator,
	resolve UserIDResolver,
	logger *slog.Logger,
) *Manager {
	return &Manager{
		provider: provider,
		mirror:   mirror,
		cache:    cache,
		resolve:  resolve,
		logger:   logger,
		state:    notify.NewBroadcaster(State{Loading: true}),
	}
}

// Start は認証状態の購読を開始する。2回目以降の呼び出しは何もしない。
func (m *Manager) Start() {
	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()
	if m.started || m.stopped {
		return
	}
	m.started = true
	m.unsubscribe = m.provider.Subscribe(m.handle)
}

// Stop は購読を解除する。複数回呼んでもよい。
func (m *Manager) Stop() {
	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()
	if m.stopped {
		return
	}
	m.stopped = true
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
}

// handle は認証状態イベントを1件処理する。イベントは到着順に直列で処理される。
// セッションの有無または主体が変化した場合のみミラーを更新する。
// 最初のイベントは既存のミラーが古い可能性があるため、常に書き込みまたは削除を行う。
func (m *Manager) handle(p *auth.Principal) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := toSession(p)
	first := !m.initialized
	m.initialized = true

	prev := m.session
	if !first && prev.Equal(next) {
		return
	}
	m.apply(prev, next)
}

// apply はセッションを置き換え、ミラー更新とキャッシュ破棄を行う。呼び出し元はmuを保持していること。
func (m *Manager) apply(prev, next *model.Session) {
	m.session = next

	ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
	defer cancel()
	m.mirror.Mirror(ctx, next)

	// サインアウトまたはユーザー切り替えでは前のユーザーのキャッシュを破棄する
	if prev != nil && (next == nil || prev.UserID != next.UserID) {
		m.cache.InvalidateAll(m.resolve(prev))
	}

	if next != nil {
		m.logger.Info("session established", slog.String("uid", next.UserID))
	} else {
		m.logger.Info("session cleared")
	}

	m.state.Set(State{Session: next})
}

// Logout はプロバイダーにサインアウトを要求し、成功した場合にセッションを即座に破棄する。
// 後から届く未認証イベントは冪等に無視される。
// プロバイダーが失敗した場合はAuthErrorを返し、セッションは保持する。
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.provider.SignOut(ctx); err != nil {
		m.logger.Warn("sign out failed", slog.String("error", err.Error()))
		return &model.AuthError{Op: "signout", Message: providerMessage(err), Err: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return nil
	}
	m.initialized = true
	m.apply(m.session, nil)
	return nil
}

// SignIn はメールアドレスとパスワードでサインインする。
// セッションの更新は認証状態イベント経由で行われる。
func (m *Manager) SignIn(ctx context.Context, email, secret string) (*model.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || secret == "" {
		return nil, &model.AuthError{Op: "signin", Message: "email and password are required"}
	}

	p, err := m.provider.SignIn(ctx, email, secret)
	if err != nil {
		return nil, &model.AuthError{Op: "signin", Message: providerMessage(err), Err: err}
	}
	return toSession(p), nil
}

// SignUp はアカウントを作成してサインインする。パスワードはMinSecretLength文字以上が必要。
func (m *Manager) SignUp(ctx context.Context, email, secret string) (*model.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || secret == "" {
		return nil, &model.AuthError{Op: "signup", Message: "email and password are required"}
	}
	if len([]rune(secret)) < MinSecretLength {
		return nil, &model.AuthError{Op: "signup", Message: "password must be at least 6 characters"}
	}

	p, err := m.provider.SignUp(ctx, email, secret)
	if err != nil {
		return nil, &model.AuthError{Op: "signup", Message: providerMessage(err), Err: err}
	}
	return toSession(p), nil
}

// Current は現在のセッションを返す。未認証の場合はnil。
func (m *Manager) Current() *model.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// Loading は最初の認証状態イベントが未処理かどうかを返す。
func (m *Manager) Loading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.initialized
}

// Subscribe はセッション状態の変化を購読する。最新値のみが配信される。
func (m *Manager) Subscribe() (<-chan State, func()) {
	return m.state.Subscribe()
}

// RemoteUserID は現在のセッションに対応するリモートAPI上のユーザーIDを返す。
func (m *Manager) RemoteUserID() (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return 0, model.ErrNoSession
	}
	return m.resolve(m.session), nil
}

// Restore は保存済みのミラーを読み込む。表示用であり、セッション状態は変更しない。
func (m *Manager) Restore(ctx context.Context) (*model.Session, error) {
	return m.mirror.Load(ctx)
}

func toSession(p *auth.Principal) *model.Session {
	if p == nil {
		return nil
	}
	return &model.Session{UserID: p.UID, Email: p.Email}
}

// providerMessage はプロバイダーのエラーメッセージを取り出す。
func providerMessage(err error) string {
	var pErr *auth.ProviderError
	if errors.As(err, &pErr) {
		return pErr.Message
	}
	return err.Error()
}
