// Package identity はセッション情報をブロブストアへミラーリングする。
// ミラーは再起動時の表示用であり、識別プロバイダーのライブな状態が常に優先される。
package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hitoshi/flextime/internal/blobstore"
	"github.com/hitoshi/flextime/internal/model"
)

// StorageKey はセッションミラーを保存するキー。
const StorageKey = "flextime_user"

// Store はセッションミラーの保存・読み込み・削除を行う。
type Store struct {
	blobs  blobstore.Store
	logger *slog.Logger
}

// NewStore はStoreを生成する。
func NewStore(blobs blobstore.Store, logger *slog.Logger) *Store {
	return &Store{blobs: blobs, logger: logger}
}

// Save はセッションを {"uid","email"} 形式のJSONで保存する。
func (s *Store) Save(ctx context.Context, session *model.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session mirror: %w", err)
	}
	if err := s.blobs.Set(ctx, StorageKey, string(data)); err != nil {
		return fmt.Errorf("save session mirror: %w", err)
	}
	return nil
}

// Load は保存済みのセッションを返す。存在しない場合はnil, nilを返す。
// 壊れたミラーはエラーとして返す。
func (s *Store) Load(ctx context.Context) (*model.Session, error) {
	raw, found, err := s.blobs.Get(ctx, StorageKey)
	if err != nil {
		return nil, fmt.Errorf("load session mirror: %w", err)
	}
	if !found {
		return nil, nil
	}

	var session model.Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil, fmt.Errorf("parse session mirror: %w", err)
	}
	if session.UserID == "" {
		return nil, fmt.Errorf("parse session mirror: empty uid")
	}
	return &session, nil
}

// Clear は保存済みのセッションを削除する。
func (s *Store) Clear(ctx context.Context) error {
	if err := s.blobs.Remove(ctx, StorageKey); err != nil {
		return fmt.Errorf("clear session mirror: %w", err)
	}
	return nil
}

// Mirror はsessionがnilならClear、そうでなければSaveを行う。
// 失敗はログに記録するだけで呼び出し元には返さない。
func (s *Store) Mirror(ctx context.Context, session *model.Session) {
	var err error
	if session == nil {
		err = s.Clear(ctx)
	} else {
		err = s.Save(ctx, session)
	}
	if err != nil {
		s.logger.Warn("セッションミラーの更新に失敗しました",
			slog.String("error", err.Error()),
			slog.Bool("present", session != nil),
		)
	}
}
