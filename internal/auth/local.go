package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/hitoshi/flextime/internal/blobstore"
)

var (
	ErrEmailExists        = errors.New("EMAIL_EXISTS")
	ErrInvalidCredentials = errors.New("INVALID_LOGIN_CREDENTIALS")
)

// LocalProvider はプロセス内でアカウントを管理する開発・テスト用のプロバイダー。
// 資格情報の照合は平文比較のみで、本番用途は想定しない。
type LocalProvider struct {
	principalFeed

	accountsMu sync.Mutex
	accounts   map[string]localAccount // key: 小文字化したメールアドレス

	// SignOutErr が設定されている場合、SignOutはそのエラーを返す（テスト用）。
	SignOutErr error
}

type localAccount struct {
	uid    string
	email  string
	secret string
}

// NewLocalProvider はLocalProviderを生成する。persistがnilの場合は永続化しない。
func NewLocalProvider(persist blobstore.Store, logger *slog.Logger) *LocalProvider {
	return &LocalProvider{
		principalFeed: principalFeed{persist: persist, logger: logger},
		accounts:      make(map[string]localAccount),
	}
}

// SignUp はアカウントを作成してサインインする。
func (p *LocalProvider) SignUp(ctx context.Context, email, secret string) (*Principal, error) {
	key := strings.ToLower(email)

	p.accountsMu.Lock()
	if _, ok := p.accounts[key]; ok {
		p.accountsMu.Unlock()
		return nil, ErrEmailExists
	}
	acc := localAccount{uid: uuid.NewString(), email: email, secret: secret}
	p.accounts[key] = acc
	p.accountsMu.Unlock()

	return p.signIn(ctx, acc), nil
}

// SignIn は登録済みアカウントでサインインする。
func (p *LocalProvider) SignIn(ctx context.Context, email, secret string) (*Principal, error) {
	p.accountsMu.Lock()
	acc, ok := p.accounts[strings.ToLower(email)]
	p.accountsMu.Unlock()

	if !ok || acc.secret != secret {
		return nil, ErrInvalidCredentials
	}
	return p.signIn(ctx, acc), nil
}

func (p *LocalProvider) signIn(ctx context.Context, acc localAccount) *Principal {
	email := acc.email
	principal := &Principal{UID: acc.uid, Email: &email}
	if err := p.save(ctx, storedCredential{UID: principal.UID, Email: principal.Email}); err != nil {
		p.logger.Warn("認証状態の保存に失敗しました", slog.String("error", err.Error()))
	}
	p.publish(principal)
	return principal
}

// SignOut は認証状態を破棄する。
func (p *LocalProvider) SignOut(ctx context.Context) error {
	if p.SignOutErr != nil {
		return p.SignOutErr
	}
	if err := p.forget(ctx); err != nil {
		return err
	}
	p.publish(nil)
	return nil
}

// Emit は任意の認証状態を通知する（テスト用）。
func (p *LocalProvider) Emit(principal *Principal) {
	p.publish(principal)
}

var _ IdentityProvider = (*LocalProvider)(nil)
