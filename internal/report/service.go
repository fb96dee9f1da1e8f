// Package report はダッシュボードと週次レポートの複合読み込みを提供する。
//
// 複数コレクションの取得はすべて成功した場合のみ結果を返し、部分的な結果は返さない。
package report

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/flextime/internal/analytics"
	"github.com/hitoshi/flextime/internal/cache"
	"github.com/hitoshi/flextime/internal/model"
)

var (
	// DashboardTaskQuery はダッシュボードのタスク取得クエリ。
	DashboardTaskQuery = model.PageQuery{Page: 0, Size: 100}
	// DashboardCheckInQuery はダッシュボードのチェックイン取得クエリ。最新の気分を先頭にする。
	DashboardCheckInQuery = model.PageQuery{Page: 0, Size: 100, Sort: "date,desc"}
	// WeeklyCheckInQuery は週次レポートのチェックイン取得クエリ。
	WeeklyCheckInQuery = model.PageQuery{Page: 0, Size: 200, Sort: "date,desc"}
)

// DefaultPeriodDays はローカル要約文の対象日数。
const DefaultPeriodDays = 7

// InsightSource は任意のインサイト本文の取得元。insight.Fetcherが実装する。
type InsightSource interface {
	Latest(ctx context.Context, userID int64) (string, bool)
}

// Period は日付の範囲（両端を含む）。
type Period struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// WeeklyReport は週次レポート画面の表示内容。
type WeeklyReport struct {
	analytics.WeeklySummary
	Score   *int    `json:"balanceScore"`
	Insight *string `json:"insight"`
	Period  Period  `json:"period"`

	// PeriodSummary は直近の期間を対象にローカルで組み立てた要約文。期間内のチェックインがなければ空。
	PeriodSummary string `json:"periodSummary,omitempty"`
}

// Options はServiceの設定。
type Options struct {
	Now        func() time.Time
	PeriodDays int
	Logger     *slog.Logger
}

// Service は複合読み込みのサービス層。
type Service struct {
	tasks      *cache.Collection[model.Task]
	checkins   *cache.Collection[model.CheckIn]
	insight    InsightSource
	now        func() time.Time
	periodDays int
	logger     *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(c *cache.Cache, insight InsightSource, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.PeriodDays <= 0 {
		opts.PeriodDays = DefaultPeriodDays
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{
		tasks:      cache.NewCollection[model.Task](c, model.ResourceTasks),
		checkins:   cache.NewCollection[model.CheckIn](c, model.ResourceCheckIns),
		insight:    insight,
		now:        opts.Now,
		periodDays: opts.PeriodDays,
		logger:     opts.Logger,
	}
}

// LoadDashboard はタスクとチェックインを並行して取得し、ダッシュボードの集計値を返す。
// どちらか一方でも失敗した場合はエラーを返す。
func (s *Service) LoadDashboard(ctx context.Context, userID int64, force bool) (*analytics.DashboardSummary, error) {
	var (
		tasks    []model.Task
		checkins []model.CheckIn
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tasks, err = s.tasks.Fetch(gctx, userID, DashboardTaskQuery, force)
		return err
	})
	g.Go(func() error {
		var err error
		checkins, err = s.checkins.Fetch(gctx, userID, DashboardCheckInQuery, force)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Warn("dashboard load failed",
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("load dashboard: %w", err)
	}

	summary := analytics.Dashboard(tasks, checkins)
	return &summary, nil
}

// LoadWeeklyReport はチェックインを取得して週次レポートを組み立てる。
// チェックインの取得失敗はエラーとして返す。インサイトは取得できなければ省略する。
func (s *Service) LoadWeeklyReport(ctx context.Context, userID int64, force bool) (*WeeklyReport, error) {
	checkins, err := s.checkins.Fetch(ctx, userID, WeeklyCheckInQuery, force)
	if err != nil {
		return nil, fmt.Errorf("load weekly report: %w", err)
	}

	summary := analytics.WeeklyReport(checkins)
	r := &WeeklyReport{
		WeeklySummary: summary,
		Score:         summary.BalanceScore(),
	}

	to := s.now()
	from := to.AddDate(0, 0, -(s.periodDays - 1))
	r.Period = Period{From: from.Format(model.DateLayout), To: to.Format(model.DateLayout)}
	recent := analytics.WeeklyReport(analytics.FilterPeriod(checkins, from, to))
	r.PeriodSummary = analytics.SummaryText(from, to, recent)

	if s.insight != nil {
		if text, ok := s.insight.Latest(ctx, userID); ok {
			r.Insight = &text
		}
	}
	return r, nil
}
