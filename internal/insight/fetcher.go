// Package insight は事前に生成されたテキストのインサイトを取得する。
// インサイトは任意の補足情報であり、取得できない場合は「なし」として扱う。
package insight

import (
	"context"
	"log/slog"

	"github.com/hitoshi/flextime/internal/metrics"
	"github.com/hitoshi/flextime/internal/model"
	"github.com/hitoshi/flextime/internal/remote"
	"github.com/hitoshi/flextime/internal/security"
)

// ReportSource は最新レポートの取得元。remote.Clientが実装する。
type ReportSource interface {
	LatestReport(ctx context.Context, userID int64) (*remote.Report, error)
}

// Fetcher はインサイトを取得する。
type Fetcher struct {
	source    ReportSource
	sanitizer security.TextSanitizerService
	logger    *slog.Logger
	metrics   metrics.MetricsCollector
}

// NewFetcher はFetcherを生成する。
func NewFetcher(source ReportSource, sanitizer security.TextSanitizerService, logger *slog.Logger, m metrics.MetricsCollector) *Fetcher {
	if m == nil {
		m = metrics.Nop{}
	}
	return &Fetcher{source: source, sanitizer: sanitizer, logger: logger, metrics: m}
}

// Latest は最新レポートの本文を返す。
// 本文が空・null・欠落している場合や、通信・404・解析のいずれかで失敗した場合はfalseを返す。
// エラーは呼び出し元に返さない。
func (f *Fetcher) Latest(ctx context.Context, userID int64) (string, bool) {
	report, err := f.source.LatestReport(ctx, userID)
	if err != nil {
		f.swallow(userID, &model.OptionalFetchError{Err: err})
		return "", false
	}
	if report == nil || report.ResumoTexto == nil {
		return "", false
	}

	text := f.sanitizer.Sanitize(*report.ResumoTexto)
	if text == "" {
		return "", false
	}
	return text, true
}

func (f *Fetcher) swallow(userID int64, err *model.OptionalFetchError) {
	f.metrics.RecordInsightFailure()

	// レポート未生成の404は通常の状態なので記録のみ
	if remote.IsNotFound(err) {
		f.logger.Debug("no insight available", slog.Int64("user_id", userID))
		return
	}
	f.logger.Warn("insight fetch failed",
		slog.Int64("user_id", userID),
		slog.String("error", err.Error()),
	)
}

var _ ReportSource = (*remote.Client)(nil)
