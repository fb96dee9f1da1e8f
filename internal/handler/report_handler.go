package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/flextime/internal/analytics"
	"github.com/hitoshi/flextime/internal/cache"
	"github.com/hitoshi/flextime/internal/middleware"
	"github.com/hitoshi/flextime/internal/report"
)

// ReportServiceInterface はダッシュボード・レポートハンドラーが必要とするサービスインターフェース。
type ReportServiceInterface interface {
	LoadDashboard(ctx context.Context, userID int64, force bool) (*analytics.DashboardSummary, error)
	LoadWeeklyReport(ctx context.Context, userID int64, force bool) (*report.WeeklyReport, error)
}

// VersionSource はリソース種別ごとのキャッシュバージョンを返す。cache.Cacheが実装する。
type VersionSource interface {
	Versions() cache.Versions
}

// ReportHandler はダッシュボードと週次レポートのHTTPハンドラー。
type ReportHandler struct {
	service  ReportServiceInterface
	versions VersionSource
}

// NewReportHandler はReportHandlerを生成する。
func NewReportHandler(service ReportServiceInterface, versions VersionSource) *ReportHandler {
	return &ReportHandler{service: service, versions: versions}
}

// Dashboard はダッシュボードの集計値を返す。一方の取得でも失敗した場合は集計値を返さない。
// GET /api/dashboard
func (h *ReportHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	summary, err := h.service.LoadDashboard(r.Context(), userID, forceRefresh(r))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// WeeklyReport は週次レポートを返す。
// GET /api/reports/weekly
func (h *ReportHandler) WeeklyReport(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	rep, err := h.service.LoadWeeklyReport(r.Context(), userID, forceRefresh(r))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// Versions はリソース種別ごとのキャッシュバージョンを返す。
// レンダラーは値の変化を見て再取得を判断する。
// GET /api/versions
func (h *ReportHandler) Versions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.versions.Versions())
}
