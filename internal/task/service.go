// Package task はタスクの一覧・作成・状態切り替え・削除を提供する。
package task

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/flextime/internal/cache"
	"github.com/hitoshi/flextime/internal/model"
)

// ListQuery はタスク一覧画面で使用するクエリ形状。
var ListQuery = model.PageQuery{Page: 0, Size: 20, Sort: "id,asc"}

// Service はタスク操作のサービス層。
type Service struct {
	tasks  *cache.Collection[model.Task]
	logger *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(c *cache.Cache, logger *slog.Logger) *Service {
	return &Service{
		tasks:  cache.NewCollection[model.Task](c, model.ResourceTasks),
		logger: logger,
	}
}

// List はユーザーのタスク一覧をリモートの並び順で返す。
func (s *Service) List(ctx context.Context, userID int64, force bool) ([]model.Task, error) {
	return s.tasks.Fetch(ctx, userID, ListQuery, force)
}

// Create はタスクを作成する。
// タイトルが空の場合はValidationErrorを返し、リモートは呼ばない。
func (s *Service) Create(ctx context.Context, userID int64, title, description, dueDate string) (*model.Task, error) {
	payload, err := model.NewTaskPayload(userID, title, description, dueDate)
	if err != nil {
		return nil, err
	}

	created, err := s.tasks.Create(ctx, payload)
	if err != nil {
		return nil, err
	}
	s.logger.Info("task created",
		slog.Int64("user_id", userID),
		slog.Int64("task_id", created.ID),
	)
	return created, nil
}

// Toggle はタスクの完了状態を反転して保存する。
// タイトル・説明・期限は渡されたタスクの値をそのまま送信する。
func (s *Service) Toggle(ctx context.Context, t *model.Task) (*model.Task, error) {
	payload := t.TogglePayload()
	updated, err := s.tasks.Update(ctx, t.ID, payload)
	if err != nil {
		return nil, err
	}

	// レスポンスボディが空の場合は送信内容から組み立てる
	if updated.ID == 0 {
		next := *t
		next.Status = payload.Status
		updated = &next
	}
	return updated, nil
}

// ToggleByID はキャッシュ済み一覧からタスクを探して状態を反転する。
// 一覧はキャッシュがあればそれを使い、なければ取得する。
func (s *Service) ToggleByID(ctx context.Context, userID, id int64) (*model.Task, error) {
	t, err := s.Find(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return s.Toggle(ctx, t)
}

// Find は一覧からIDに一致するタスクを返す。見つからない場合はErrTaskNotFoundを返す。
func (s *Service) Find(ctx context.Context, userID, id int64) (*model.Task, error) {
	tasks, err := s.List(ctx, userID, false)
	if err != nil {
		return nil, err
	}
	for i := range tasks {
		if tasks[i].ID == id {
			return &tasks[i], nil
		}
	}
	return nil, fmt.Errorf("task %d: %w", id, model.ErrTaskNotFound)
}

// Delete はタスクを削除する。
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.tasks.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("task deleted", slog.Int64("task_id", id))
	return nil
}
