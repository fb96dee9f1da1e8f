// Package cache はリモートAPIのページング付きコレクションをキャッシュする。
//
// エントリは (リソース種別, 所有ユーザー, ページ, サイズ, ソート) の組をキーとして保持し、
// 再取得時は丸ごと置き換える。書き込みが成功すると、そのリソース種別の全エントリを破棄する。
// 同一キーへの並行取得は最後に到着したレスポンスが勝つ。
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/hitoshi/flextime/internal/metrics"
	"github.com/hitoshi/flextime/internal/model"
	"github.com/hitoshi/flextime/internal/notify"
)

// DefaultMaxEntries はエントリ数上限のデフォルト値。
const DefaultMaxEntries = 256

// Remote はキャッシュが利用するリモートAPIの操作。remote.Clientが実装する。
type Remote interface {
	List(ctx context.Context, resource model.ResourceType, userID int64, q model.PageQuery, out any) error
	Create(ctx context.Context, resource model.ResourceType, body any, out any) error
	Update(ctx context.Context, resource model.ResourceType, id int64, body any, out any) error
	Delete(ctx context.Context, resource model.ResourceType, id int64) error
}

// Key はキャッシュエントリのキー。
type Key struct {
	Resource model.ResourceType
	UserID   int64
	Page     int
	Size     int
	Sort     string
}

// NewKey はクエリからキーを生成する。
func NewKey(resource model.ResourceType, userID int64, q model.PageQuery) Key {
	return Key{Resource: resource, UserID: userID, Page: q.Page, Size: q.Size, Sort: q.Sort}
}

// Query はキーのクエリ部分を返す。
func (k Key) Query() model.PageQuery {
	return model.PageQuery{Page: k.Page, Size: k.Size, Sort: k.Sort}
}

// entry は型消去されたキャッシュエントリ。itemsは[]T。
type entry struct {
	items     any
	fetchedAt time.Time
}

// Versions はリソース種別ごとのバージョン番号。
type Versions map[model.ResourceType]uint64

// Options はCacheの設定。
type Options struct {
	MaxEntries int
	Logger     *slog.Logger
	Metrics    metrics.MetricsCollector
	Now        func() time.Time
}

// Cache はエントリテーブルの唯一の所有者。
type Cache struct {
	mu       sync.Mutex
	entries  *lru.Cache[Key, *entry]
	remote   Remote
	versions *notify.Broadcaster[Versions]
	logger   *slog.Logger
	metrics  metrics.MetricsCollector
	now      func() time.Time
}

// New はCacheを生成する。
func New(remote Remote, opts Options) (*Cache, error) {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Nop{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	entries, err := lru.New[Key, *entry](opts.MaxEntries)
	if err != nil {
		return nil, fmt.Errorf("create entry table: %w", err)
	}

	initial := Versions{}
	for _, r := range model.ResourceTypes {
		initial[r] = 0
	}

	return &Cache{
		entries:  entries,
		remote:   remote,
		versions: notify.NewBroadcaster(initial),
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		now:      opts.Now,
	}, nil
}

func (c *Cache) lookup(key Key) (*entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Get(key)
}

// store はエントリを置き換え、バージョンを進める。
func (c *Cache) store(key Key, items any) time.Time {
	c.mu.Lock()
	fetchedAt := c.now()
	c.entries.Add(key, &entry{items: items, fetchedAt: fetchedAt})
	c.mu.Unlock()

	c.bump(key.Resource)
	return fetchedAt
}

// dropWhere は条件に一致するエントリを破棄し、リソース種別ごとの破棄件数を返す。
func (c *Cache) dropWhere(match func(Key) bool) map[model.ResourceType]int {
	c.mu.Lock()
	defer c.mu.Unlock()

	dropped := map[model.ResourceType]int{}
	for _, key := range c.entries.Keys() {
		if match(key) {
			c.entries.Remove(key)
			dropped[key.Resource]++
		}
	}
	return dropped
}

func (c *Cache) bump(resources ...model.ResourceType) {
	c.versions.Update(func(v Versions) Versions {
		next := maps.Clone(v)
		for _, r := range resources {
			next[r]++
		}
		return next
	})
}

// InvalidateResource はリソース種別の全エントリを、ページ・ソート・ユーザーに関係なく破棄する。
func (c *Cache) InvalidateResource(resource model.ResourceType) int {
	dropped := c.dropWhere(func(k Key) bool { return k.Resource == resource })
	n := dropped[resource]
	c.metrics.RecordCacheInvalidation(string(resource), "mutation", n)
	c.bump(resource)

	c.logger.Debug("cache invalidated",
		slog.String("resource", string(resource)),
		slog.Int("entries", n),
	)
	return n
}

// InvalidateAll は指定ユーザーが所有する全リソース種別のエントリを破棄する。
// ログアウト時にセッション管理から呼ばれる。
func (c *Cache) InvalidateAll(userID int64) {
	dropped := c.dropWhere(func(k Key) bool { return k.UserID == userID })

	var touched []model.ResourceType
	total := 0
	for resource, n := range dropped {
		c.metrics.RecordCacheInvalidation(string(resource), "logout", n)
		touched = append(touched, resource)
		total += n
	}
	if len(touched) > 0 {
		c.bump(touched...)
	}

	c.logger.Info("cache invalidated for user",
		slog.Int64("user_id", userID),
		slog.Int("entries", total),
	)
}

// Len は現在のエントリ数を返す。
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

// Versions は現在のバージョン番号のコピーを返す。
func (c *Cache) Versions() Versions {
	return maps.Clone(c.versions.Get())
}

// SubscribeVersions はバージョン番号の変化を購読する。
// 受け取ったマップは読み取り専用として扱うこと。
func (c *Cache) SubscribeVersions() (<-chan Versions, func()) {
	return c.versions.Subscribe()
}
