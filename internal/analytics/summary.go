// Package analytics はキャッシュ済みのタスクとチェックインから集計値を算出する。
// 全関数は純粋関数で、I/Oや内部状態を持たない。
package analytics

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hitoshi/flextime/internal/model"
)

// DashboardSummary はダッシュボードの集計値。
type DashboardSummary struct {
	TotalTasks    int  `json:"totalTasks"`
	TotalCheckins int  `json:"totalCheckins"`
	LastMood      *int `json:"lastMood"`
}

// WeeklySummary は週次レポートの集計値。チェックインが0件の場合AverageMoodはnil。
type WeeklySummary struct {
	TotalCheckins int      `json:"totalCheckins"`
	AverageMood   *float64 `json:"averageMood"`
	HomeCount     int      `json:"homeCount"`
	OfficeCount   int      `json:"officeCount"`
	RemoteCount   int      `json:"remoteCount"`

	// exactAverage は丸め前の平均値。スコア算出に使用する。
	exactAverage *decimal.Decimal
}

// Dashboard はダッシュボードの集計値を算出する。
// checkinsは新しい順に並んでいる前提で、先頭の気分を最新値とする。
func Dashboard(tasks []model.Task, checkins []model.CheckIn) DashboardSummary {
	s := DashboardSummary{
		TotalTasks:    len(tasks),
		TotalCheckins: len(checkins),
	}
	if len(checkins) > 0 {
		mood := checkins[0].Mood
		s.LastMood = &mood
	}
	return s
}

// WeeklyReport は週次レポートの集計値を算出する。結果は要素の順序に依存しない。
// 平均は小数第1位で四捨五入する。
func WeeklyReport(checkins []model.CheckIn) WeeklySummary {
	s := WeeklySummary{TotalCheckins: len(checkins)}
	if len(checkins) == 0 {
		return s
	}

	sum := 0
	for _, c := range checkins {
		sum += c.Mood
		switch c.LocationType {
		case model.LocationHome:
			s.HomeCount++
		case model.LocationOffice:
			s.OfficeCount++
		case model.LocationRemote:
			s.RemoteCount++
		}
	}

	exact := decimal.NewFromInt(int64(sum)).Div(decimal.NewFromInt(int64(len(checkins))))
	avg := exact.Round(1).InexactFloat64()
	s.AverageMood = &avg
	s.exactAverage = &exact
	return s
}

// BalanceScore は平均気分からバランススコアを返す。平均がない場合はnil。
//
//	>= 8 → 90, >= 6 → 75, >= 4 → 55, それ以外 → 35
func (s WeeklySummary) BalanceScore() *int {
	if s.AverageMood == nil {
		return nil
	}
	avg := decimal.NewFromFloat(*s.AverageMood)
	if s.exactAverage != nil {
		avg = *s.exactAverage
	}
	score := balanceScore(avg)
	return &score
}

func balanceScore(avg decimal.Decimal) int {
	switch {
	case avg.GreaterThanOrEqual(decimal.NewFromInt(8)):
		return 90
	case avg.GreaterThanOrEqual(decimal.NewFromInt(6)):
		return 75
	case avg.GreaterThanOrEqual(decimal.NewFromInt(4)):
		return 55
	default:
		return 35
	}
}

// FilterPeriod はfromからtoまで（両端を含む、日単位）のチェックインを順序を保って返す。
// 日付を解析できない要素は除外する。
func FilterPeriod(checkins []model.CheckIn, from, to time.Time) []model.CheckIn {
	start := truncateDay(from)
	end := truncateDay(to)

	out := make([]model.CheckIn, 0, len(checkins))
	for _, c := range checkins {
		d, err := time.Parse(model.DateLayout, c.Date)
		if err != nil {
			continue
		}
		if d.Before(start) || d.After(end) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SummaryText は期間の集計を文章にまとめる。チェックインが0件の場合は空文字列を返す。
func SummaryText(from, to time.Time, s WeeklySummary) string {
	score := s.BalanceScore()
	if score == nil {
		return ""
	}
	return fmt.Sprintf(
		"Entre %s e %s, você registrou %d check-ins: %d em home office, %d no escritório e %d em trabalho remoto. "+
			"Sua média de humor foi %.1f, resultando em um score de equilíbrio de %d.",
		from.Format(model.DateLayout),
		to.Format(model.DateLayout),
		s.TotalCheckins,
		s.HomeCount,
		s.OfficeCount,
		s.RemoteCount,
		*s.AverageMood,
		*score,
	)
}
