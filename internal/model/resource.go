package model

import (
	"fmt"
	"net/url"
	"strconv"
)

// ResourceType はリモートAPIのコレクション種別を表す。URLのパスセグメントとしても使用する。
type ResourceType string

const (
	ResourceTasks    ResourceType = "tasks"
	ResourceCheckIns ResourceType = "checkins"
)

// ResourceTypes は既知のリソース種別の一覧。
var ResourceTypes = []ResourceType{ResourceTasks, ResourceCheckIns}

// Valid は既知のリソース種別かどうかを返す。
func (r ResourceType) Valid() bool {
	return r == ResourceTasks || r == ResourceCheckIns
}

// PageQuery はページング付き一覧取得のクエリ形状。
// Sortは "field,dir" 形式（例: "date,desc"）。
type PageQuery struct {
	Page int
	Size int
	Sort string
}

// Validate はクエリの範囲を検証する。
func (q PageQuery) Validate() error {
	if q.Page < 0 {
		return &ValidationError{Field: "page", Message: fmt.Sprintf("must be >= 0, got %d", q.Page)}
	}
	if q.Size < 1 {
		return &ValidationError{Field: "size", Message: fmt.Sprintf("must be >= 1, got %d", q.Size)}
	}
	return nil
}

// Values はクエリ文字列のパラメータに変換する。
func (q PageQuery) Values() url.Values {
	v := url.Values{}
	v.Set("page", strconv.Itoa(q.Page))
	v.Set("size", strconv.Itoa(q.Size))
	if q.Sort != "" {
		v.Set("sort", q.Sort)
	}
	return v
}

// Page はリモートAPIのページングレスポンス。contentのみを使用する。
type Page[T any] struct {
	Content []T `json:"content"`
}
