// Package auth は識別プロバイダー（メール・パスワード認証）との連携を提供する。
//
// プロバイダーは認証状態の変化をプッシュ型で通知する。購読は常に1件のみ有効で、
// 新しい購読は前の購読を置き換える。購読開始時には現在の状態が直ちに通知される。
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hitoshi/flextime/internal/blobstore"
)

// Principal はプロバイダーが認証済みとして通知する主体。
type Principal struct {
	UID   string
	Email *string
}

// IdentityProvider は識別プロバイダーのインターフェース。
// 将来的に複数の認証方式に対応するための抽象化。
type IdentityProvider interface {
	// Subscribe は認証状態の変化を購読する。onChangeには未認証時にnilが渡される。
	Subscribe(onChange func(*Principal)) (unsubscribe func())
	// SignIn はメールアドレスとパスワードでサインインする。
	SignIn(ctx context.Context, email, secret string) (*Principal, error)
	// SignUp は新規アカウントを作成してサインインする。
	SignUp(ctx context.Context, email, secret string) (*Principal, error)
	// SignOut はサインアウトする。
	SignOut(ctx context.Context) error
}

// credentialKey はプロバイダー自身の認証状態を永続化するキー。
// セッションミラー（flextime_user）とは別に保持する。
const credentialKey = "flextime_auth_credential"

// storedCredential は永続化される認証状態。
type storedCredential struct {
	UID          string  `json:"uid"`
	Email        *string `json:"email"`
	RefreshToken string  `json:"refreshToken,omitempty"`
}

// principalFeed は認証状態の保持と単一購読者への通知を行う。
// 各プロバイダーに埋め込んで使用する。
type principalFeed struct {
	mu      sync.Mutex
	current *Principal
	loaded  bool
	subID   int
	notify  func(*Principal)

	// deliverMu は状態の更新と通知の順序を直列化する。
	deliverMu sync.Mutex

	persist blobstore.Store // nilの場合は永続化しない
	logger  *slog.Logger
}

// restore は永続化された認証状態を一度だけ読み込む。呼び出し元はmuを保持していること。
func (f *principalFeed) restore() {
	if f.loaded {
		return
	}
	f.loaded = true
	if f.persist == nil {
		return
	}

	raw, found, err := f.persist.Get(context.Background(), credentialKey)
	if err != nil {
		f.logger.Warn("認証状態の読み込みに失敗しました", slog.String("error", err.Error()))
		return
	}
	if !found {
		return
	}

	var cred storedCredential
	if err := json.Unmarshal([]byte(raw), &cred); err != nil || cred.UID == "" {
		f.logger.Warn("保存された認証状態が不正です")
		return
	}
	f.current = &Principal{UID: cred.UID, Email: cred.Email}
}

// Subscribe はIdentityProviderを実装する。前の購読は置き換えられる。
func (f *principalFeed) Subscribe(onChange func(*Principal)) func() {
	f.deliverMu.Lock()
	defer f.deliverMu.Unlock()

	f.mu.Lock()
	f.restore()
	f.subID++
	id := f.subID
	f.notify = onChange
	current := f.current
	f.mu.Unlock()

	onChange(current)

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.subID == id {
			f.notify = nil
		}
	}
}

// publish は状態を更新し、購読者へ通知する。
func (f *principalFeed) publish(p *Principal) {
	f.deliverMu.Lock()
	defer f.deliverMu.Unlock()

	f.mu.Lock()
	f.loaded = true
	f.current = p
	notify := f.notify
	f.mu.Unlock()

	if notify != nil {
		notify(p)
	}
}

// save は認証状態を永続化する。
func (f *principalFeed) save(ctx context.Context, cred storedCredential) error {
	if f.persist == nil {
		return nil
	}
	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("marshal credential: %w", err)
	}
	if err := f.persist.Set(ctx, credentialKey, string(data)); err != nil {
		return fmt.Errorf("persist credential: %w", err)
	}
	return nil
}

// forget は永続化された認証状態を削除する。
func (f *principalFeed) forget(ctx context.Context) error {
	if f.persist == nil {
		return nil
	}
	if err := f.persist.Remove(ctx, credentialKey); err != nil {
		return fmt.Errorf("remove credential: %w", err)
	}
	return nil
}

// Current は現在の認証済み主体を返す。未認証の場合はnil。
func (f *principalFeed) Current() *Principal {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.restore()
	return f.current
}
