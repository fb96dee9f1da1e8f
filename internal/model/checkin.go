package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// LocationType はチェックイン時の勤務場所。
type LocationType string

const (
	LocationHome   LocationType = "HOME"
	LocationOffice LocationType = "OFFICE"
	LocationRemote LocationType = "REMOTE"
)

const (
	MinMood = 1
	MaxMood = 10
)

// ParseLocationType は大文字小文字を区別せずに勤務場所を解析する。
func ParseLocationType(s string) (LocationType, error) {
	switch l := LocationType(strings.ToUpper(strings.TrimSpace(s))); l {
	case LocationHome, LocationOffice, LocationRemote:
		return l, nil
	default:
		return "", &ValidationError{Field: "locationType", Message: fmt.Sprintf("unknown location %q", s)}
	}
}

// CheckIn はリモートAPIのチェックイン。作成後は変更されない。
type CheckIn struct {
	ID           int64        `json:"id"`
	UserID       int64        `json:"userId"`
	Date         string       `json:"date"`
	LocationType LocationType `json:"locationType"`
	Mood         int          `json:"mood"`
}

// CheckInSubmission はチェックイン作成時に送信するボディ。
//
// LegacyLocationが真の場合、旧バックエンド互換のため同じ値をlocationフィールドにも出力する。
// 二重フィールドを出力するのはこの型のシリアライズのみ。
type CheckInSubmission struct {
	UserID         int64
	Date           string
	LocationType   LocationType
	Mood           int
	LegacyLocation bool
}

// NewCheckInSubmission は入力値を検証し、指定日付のチェックインを生成する。
func NewCheckInSubmission(userID int64, location LocationType, mood int, date time.Time) (*CheckInSubmission, error) {
	if _, err := ParseLocationType(string(location)); err != nil {
		return nil, err
	}
	if mood < MinMood || mood > MaxMood {
		return nil, &ValidationError{Field: "mood", Message: fmt.Sprintf("must be between %d and %d, got %d", MinMood, MaxMood, mood)}
	}
	return &CheckInSubmission{
		UserID:       userID,
		Date:         date.Format(DateLayout),
		LocationType: location,
		Mood:         mood,
	}, nil
}

type checkInSubmissionJSON struct {
	UserID       int64        `json:"userId"`
	Date         string       `json:"date"`
	LocationType LocationType `json:"locationType"`
	Location     LocationType `json:"location,omitempty"`
	Mood         int          `json:"mood"`
}

// MarshalJSON はjson.Marshalerを実装する。
func (s CheckInSubmission) MarshalJSON() ([]byte, error) {
	body := checkInSubmissionJSON{
		UserID:       s.UserID,
		Date:         s.Date,
		LocationType: s.LocationType,
		Mood:         s.Mood,
	}
	if s.LegacyLocation {
		body.Location = s.LocationType
	}
	return json.Marshal(body)
}
