// Package checkin はチェックインの一覧取得と登録を提供する。
package checkin

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/flextime/internal/cache"
	"github.com/hitoshi/flextime/internal/model"
)

// ListQuery はチェックイン一覧画面で使用するクエリ形状。
var ListQuery = model.PageQuery{Page: 0, Size: 20, Sort: "date,desc"}

// Options はServiceの設定。
type Options struct {
	// LegacyLocation が真の場合、登録時にlocationフィールドも送信する。
	LegacyLocation bool
	// Now は登録日付の算出に使用する。nilの場合はtime.Now。
	Now    func() time.Time
	Logger *slog.Logger
}

// Service はチェックイン操作のサービス層。
type Service struct {
	checkins *cache.Collection[model.CheckIn]
	legacy   bool
	now      func() time.Time
	logger   *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(c *cache.Cache, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{
		checkins: cache.NewCollection[model.CheckIn](c, model.ResourceCheckIns),
		legacy:   opts.LegacyLocation,
		now:      opts.Now,
		logger:   opts.Logger,
	}
}

// List はユーザーのチェックインを新しい順に返す。
func (s *Service) List(ctx context.Context, userID int64, force bool) ([]model.CheckIn, error) {
	return s.checkins.Fetch(ctx, userID, ListQuery, force)
}

// Submit は本日の日付でチェックインを登録する。
// 勤務場所と気分（1〜10）を検証し、不正な場合はリモートを呼ばずにValidationErrorを返す。
func (s *Service) Submit(ctx context.Context, userID int64, location string, mood int) (*model.CheckIn, error) {
	loc, err := model.ParseLocationType(location)
	if err != nil {
		return nil, err
	}
	sub, err := model.NewCheckInSubmission(userID, loc, mood, s.now())
	if err != nil {
		return nil, err
	}
	sub.LegacyLocation = s.legacy

	created, err := s.checkins.Create(ctx, sub)
	if err != nil {
		return nil, err
	}

	// レスポンスボディが空の場合は送信内容を返す
	if created.ID == 0 && created.Date == "" {
		created = &model.CheckIn{
			UserID:       sub.UserID,
			Date:         sub.Date,
			LocationType: sub.LocationType,
			Mood:         sub.Mood,
		}
	}

	s.logger.Info("check-in submitted",
		slog.Int64("user_id", userID),
		slog.String("date", sub.Date),
		slog.String("location", string(loc)),
	)
	return created, nil
}
