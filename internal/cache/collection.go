package cache

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/hitoshi/flextime/internal/model"
)

// Entry はキャッシュ済みのコレクション。
type Entry[T any] struct {
	Key       Key
	Items     []T
	FetchedAt time.Time
}

// Collection は1つのリソース種別に対する型付きの操作。
type Collection[T any] struct {
	cache    *Cache
	resource model.ResourceType
}

// NewCollection はCollectionを生成する。
func NewCollection[T any](cache *Cache, resource model.ResourceType) *Collection[T] {
	return &Collection[T]{cache: cache, resource: resource}
}

// Resource はリソース種別を返す。
func (c *Collection[T]) Resource() model.ResourceType {
	return c.resource
}

// Fetch はエントリを返す。存在しないか、forceが真の場合はリモートから取得して置き換える。
// 取得に失敗した場合はRemoteFetchErrorを返し、既存のエントリは変更しない。
// 古いエントリへの自動フォールバックは行わない（必要な場合はPeekを使う）。
func (c *Collection[T]) Fetch(ctx context.Context, userID int64, q model.PageQuery, force bool) ([]T, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	key := NewKey(c.resource, userID, q)

	if !force {
		if e, ok := c.cache.lookup(key); ok {
			c.cache.metrics.RecordCacheHit(string(c.resource))
			return slices.Clone(e.items.([]T)), nil
		}
	}
	c.cache.metrics.RecordCacheMiss(string(c.resource))

	var items []T
	if err := c.cache.remote.List(ctx, c.resource, userID, q, &items); err != nil {
		c.cache.logger.Warn("cache fetch failed",
			slog.String("resource", string(c.resource)),
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, &model.RemoteFetchError{Resource: c.resource, Err: err}
	}
	if items == nil {
		items = []T{}
	}

	c.cache.store(key, items)
	return slices.Clone(items), nil
}

// Peek はリモートを呼ばずにエントリを返す。
func (c *Collection[T]) Peek(userID int64, q model.PageQuery) (Entry[T], bool) {
	key := NewKey(c.resource, userID, q)
	e, ok := c.cache.lookup(key)
	if !ok {
		return Entry[T]{}, false
	}
	return Entry[T]{Key: key, Items: slices.Clone(e.items.([]T)), FetchedAt: e.fetchedAt}, true
}

// Create は作成を行い、成功した場合にリソース種別の全エントリを破棄する。
// レスポンスボディが空の場合はゼロ値のTを返す。
func (c *Collection[T]) Create(ctx context.Context, body any) (*T, error) {
	var out *T
	err := c.write("create", func(dst any) error {
		return c.cache.remote.Create(ctx, c.resource, body, dst)
	}, &out)
	return out, err
}

// Update は更新を行い、成功した場合にリソース種別の全エントリを破棄する。
func (c *Collection[T]) Update(ctx context.Context, id int64, body any) (*T, error) {
	var out *T
	err := c.write("update", func(dst any) error {
		return c.cache.remote.Update(ctx, c.resource, id, body, dst)
	}, &out)
	return out, err
}

// Delete は削除を行い、成功した場合にリソース種別の全エントリを破棄する。
func (c *Collection[T]) Delete(ctx context.Context, id int64) error {
	return c.write("delete", func(any) error {
		return c.cache.remote.Delete(ctx, c.resource, id)
	}, nil)
}

// write は書き込みを実行する。失敗時はRemoteWriteErrorを返し、無効化は行わない。
func (c *Collection[T]) write(op string, call func(dst any) error, out **T) error {
	var dst any
	if out != nil {
		*out = new(T)
		dst = *out
	}

	if err := call(dst); err != nil {
		if out != nil {
			*out = nil
		}
		c.cache.logger.Warn("remote write failed",
			slog.String("resource", string(c.resource)),
			slog.String("op", op),
			slog.String("error", err.Error()),
		)
		return &model.RemoteWriteError{Resource: c.resource, Op: op, Err: err}
	}

	c.cache.InvalidateResource(c.resource)
	return nil
}
