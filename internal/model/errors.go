// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, remote, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeAuthFailed      = "AUTH_FAILED"
	ErrCodeNoSession       = "NO_SESSION"
	ErrCodeValidation      = "VALIDATION_FAILED"
	ErrCodeRemoteFetch     = "REMOTE_FETCH_FAILED"
	ErrCodeRemoteWrite     = "REMOTE_WRITE_FAILED"
	ErrCodeTaskNotFound    = "TASK_NOT_FOUND"
	ErrCodeInvalidResource = "INVALID_RESOURCE"
)

var (
	// ErrNoSession は認証済みセッションが必要な操作をセッションなしで呼び出した場合のエラー。
	ErrNoSession = errors.New("no active session")
	// ErrValidation は入力値検証エラーの判定用センチネル。
	ErrValidation = errors.New("validation failed")
	// ErrTaskNotFound は一覧に存在しないタスクを指定した場合のエラー。
	ErrTaskNotFound = errors.New("task not found")
)

// AuthError は認証プロバイダーとのやり取り（サインイン・サインアップ・サインアウト）の失敗を表す。
// Messageはプロバイダーが返したメッセージをそのまま保持する。
type AuthError struct {
	Op      string
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("auth %s: %s", e.Op, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("auth %s: %v", e.Op, e.Err)
	}
	return "auth " + e.Op + " failed"
}

func (e *AuthError) Unwrap() error { return e.Err }

// RemoteFetchError はリモートAPIからの読み取り失敗を表す。
// 発生時、キャッシュ済みのエントリは変更されない。
type RemoteFetchError struct {
	Resource ResourceType
	Err      error
}

func (e *RemoteFetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Resource, e.Err)
}

func (e *RemoteFetchError) Unwrap() error { return e.Err }

// RemoteWriteError はリモートAPIへの書き込み失敗を表す。
// 発生時、キャッシュの無効化は行われない。
type RemoteWriteError struct {
	Resource ResourceType
	Op       string // create, update, delete
	Err      error
}

func (e *RemoteWriteError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Resource, e.Err)
}

func (e *RemoteWriteError) Unwrap() error { return e.Err }

// OptionalFetchError は任意データ（インサイト）の取得失敗を表す。
// 呼び出し元に伝播させず、ログ出力のみに使用する。
type OptionalFetchError struct {
	Err error
}

func (e *OptionalFetchError) Error() string {
	return fmt.Sprintf("optional fetch: %v", e.Err)
}

func (e *OptionalFetchError) Unwrap() error { return e.Err }

// ValidationError は入力値の検証エラーを表す。
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Unwrap はerrors.Is(err, ErrValidation)で判定できるようにする。
func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewAuthFailedError は認証失敗エラーを生成する。
func NewAuthFailedError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeAuthFailed,
		Message:  message,
		Category: "auth",
		Action:   "メールアドレスとパスワードを確認して再度お試しください。",
	}
}

// NewNoSessionError は未ログインエラーを生成する。
func NewNoSessionError() *APIError {
	return &APIError{
		Code:     ErrCodeNoSession,
		Message:  "ログインしていません。",
		Category: "auth",
		Action:   "ログインしてから再度お試しください。",
	}
}

// NewValidationError は入力値検証エラーを生成する。
func NewValidationError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  message,
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewRemoteFetchError はリモートAPI読み取り失敗エラーを生成する。
func NewRemoteFetchError(resource ResourceType) *APIError {
	return &APIError{
		Code:     ErrCodeRemoteFetch,
		Message:  fmt.Sprintf("%s の取得に失敗しました。", resource),
		Category: "remote",
		Action:   "ネットワーク接続を確認し、しばらく待ってから再度お試しください。",
	}
}

// NewRemoteWriteError はリモートAPI書き込み失敗エラーを生成する。
func NewRemoteWriteError(resource ResourceType) *APIError {
	return &APIError{
		Code:     ErrCodeRemoteWrite,
		Message:  fmt.Sprintf("%s の保存に失敗しました。", resource),
		Category: "remote",
		Action:   "ネットワーク接続を確認し、しばらく待ってから再度お試しください。",
	}
}

// NewInvalidResourceError は不正なリソースID指定エラーを生成する。
func NewInvalidResourceError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidResource,
		Message:  fmt.Sprintf("無効なIDです: %s", id),
		Category: "validation",
		Action:   "IDを確認してください。",
	}
}

// NewTaskNotFoundError はタスク未検出エラーを生成する。
func NewTaskNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeTaskNotFound,
		Message:  "タスクが見つかりません。",
		Category: "task",
		Action:   "一覧を再読み込みしてから再度お試しください。",
	}
}
