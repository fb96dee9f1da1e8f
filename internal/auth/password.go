package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/hitoshi/flextime/internal/blobstore"
)

const defaultIdentityBaseURL = "https://identitytoolkit.googleapis.com/v1"

// PasswordConfig はREST型のパスワード認証プロバイダーの設定。
type PasswordConfig struct {
	APIKey string

	// テスト用にオーバーライド可能なURL
	BaseURL string

	HTTPClient *http.Client
	// Persist が指定された場合、認証状態を保存し再起動後に復元する。
	Persist blobstore.Store
}

// PasswordProvider はIdentity Toolkit互換のREST APIでメール・パスワード認証を行う。
type PasswordProvider struct {
	principalFeed
	config PasswordConfig
}

// NewPasswordProvider はPasswordProviderを生成する。
func NewPasswordProvider(config PasswordConfig, logger *slog.Logger) *PasswordProvider {
	if config.BaseURL == "" {
		config.BaseURL = defaultIdentityBaseURL
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &PasswordProvider{
		principalFeed: principalFeed{persist: config.Persist, logger: logger},
		config:        config,
	}
}

// passwordRequest は signInWithPassword / signUp のリクエストボディ。
type passwordRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

// passwordResponse は成功時のレスポンス。
type passwordResponse struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
}

// providerErrorResponse は失敗時のレスポンス。
type providerErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ProviderError はプロバイダーが返したエラーメッセージを保持する。
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return e.Message
}

// SignIn はメールアドレスとパスワードでサインインする。
func (p *PasswordProvider) SignIn(ctx context.Context, email, secret string) (*Principal, error) {
	return p.authenticate(ctx, "accounts:signInWithPassword", email, secret)
}

// SignUp はアカウントを作成してサインインする。
func (p *PasswordProvider) SignUp(ctx context.Context, email, secret string) (*Principal, error) {
	return p.authenticate(ctx, "accounts:signUp", email, secret)
}

// SignOut はローカルの認証状態を破棄する。REST APIにサインアウトの呼び出しはない。
func (p *PasswordProvider) SignOut(ctx context.Context) error {
	if err := p.forget(ctx); err != nil {
		return err
	}
	p.publish(nil)
	return nil
}

func (p *PasswordProvider) authenticate(ctx context.Context, method, email, secret string) (*Principal, error) {
	resp, err := p.post(ctx, method, passwordRequest{
		Email:             email,
		Password:          secret,
		ReturnSecureToken: true,
	})
	if err != nil {
		return nil, err
	}

	principal := &Principal{UID: resp.LocalID}
	if resp.Email != "" {
		e := resp.Email
		principal.Email = &e
	}

	if err := p.save(ctx, storedCredential{
		UID:          principal.UID,
		Email:        principal.Email,
		RefreshToken: resp.RefreshToken,
	}); err != nil {
		p.logger.Warn("認証状態の保存に失敗しました", slog.String("error", err.Error()))
	}

	p.publish(principal)
	return principal, nil
}

// post はIdentity Toolkitのエンドポイントを呼び出す。
func (p *PasswordProvider) post(ctx context.Context, method string, body any) (*passwordResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := p.config.BaseURL + "/" + method + "?" + url.Values{"key": {p.config.APIKey}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.config.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read identity response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp providerErrorResponse
		if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error.Message != "" {
			return nil, &ProviderError{StatusCode: resp.StatusCode, Message: errResp.Error.Message}
		}
		return nil, &ProviderError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("identity request failed with status %d", resp.StatusCode)}
	}

	var out passwordResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse identity response: %w", err)
	}
	if out.LocalID == "" {
		return nil, fmt.Errorf("empty localId in identity response")
	}
	return &out, nil
}

// compile-time interface check
var _ IdentityProvider = (*PasswordProvider)(nil)
