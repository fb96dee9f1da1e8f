package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/flextime/internal/model"
)

// --- モック定義 ---

type mockRemote struct {
	mu        sync.Mutex
	listCalls int

	listFn   func(ctx context.Context, resource model.ResourceType, userID int64, q model.PageQuery) (string, error)
	createFn func(ctx context.Context, resource model.ResourceType, body any) (string, error)
	updateFn func(ctx context.Context, resource model.ResourceType, id int64, body any) (string, error)
	deleteFn func(ctx context.Context, resource model.ResourceType, id int64) error
}

func decodeInto(raw string, out any) error {
	if out == nil || raw == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw), out)
}

func (m *mockRemote) List(ctx context.Context, resource model.ResourceType, userID int64, q model.PageQuery, out any) error {
	m.mu.Lock()
	m.listCalls++
	m.mu.Unlock()
	raw := "[]"
	if m.listFn != nil {
		var err error
		raw, err = m.listFn(ctx, resource, userID, q)
		if err != nil {
			return err
		}
	}
	return decodeInto(raw, out)
}

func (m *mockRemote) Create(ctx context.Context, resource model.ResourceType, body any, out any) error {
	if m.createFn != nil {
		raw, err := m.createFn(ctx, resource, body)
		if err != nil {
			return err
		}
		return decodeInto(raw, out)
	}
	return nil
}

func (m *mockRemote) Update(ctx context.Context, resource model.ResourceType, id int64, body any, out any) error {
	if m.updateFn != nil {
		raw, err := m.updateFn(ctx, resource, id, body)
		if err != nil {
			return err
		}
		return decodeInto(raw, out)
	}
	return nil
}

func (m *mockRemote) Delete(ctx context.Context, resource model.ResourceType, id int64) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, resource, id)
	}
	return nil
}

func (m *mockRemote) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listCalls
}

var _ Remote = (*mockRemote)(nil)

func newTestCache(t *testing.T, remote Remote) *Cache {
	t.Helper()
	c, err := New(remote, Options{})
	require.NoError(t, err)
	return c
}

var (
	taskQuery    = model.PageQuery{Page: 0, Size: 20, Sort: "id,asc"}
	checkinQuery = model.PageQuery{Page: 0, Size: 20, Sort: "date,desc"}
)

func TestFetch_CachesUntilForced(t *testing.T) {
	remote := &mockRemote{listFn: func(context.Context, model.ResourceType, int64, model.PageQuery) (string, error) {
		return `[{"id":1,"title":"a"},{"id":2,"title":"b"}]`, nil
	}}
	tasks := NewCollection[model.Task](newTestCache(t, remote), model.ResourceTasks)
	ctx := context.Background()

	first, err := tasks.Fetch(ctx, 1, taskQuery, false)
	require.NoError(t, err)
	second, err := tasks.Fetch(ctx, 1, taskQuery, false)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, remote.calls())

	_, err = tasks.Fetch(ctx, 1, taskQuery, true)
	require.NoError(t, err)
	assert.Equal(t, 2, remote.calls())
}

func TestFetch_KeyIncludesQueryShape(t *testing.T) {
	remote := &mockRemote{}
	tasks := NewCollection[model.Task](newTestCache(t, remote), model.ResourceTasks)
	ctx := context.Background()

	_, _ = tasks.Fetch(ctx, 1, model.PageQuery{Page: 0, Size: 20, Sort: "id,asc"}, false)
	_, _ = tasks.Fetch(ctx, 1, model.PageQuery{Page: 1, Size: 20, Sort: "id,asc"}, false)
	_, _ = tasks.Fetch(ctx, 1, model.PageQuery{Page: 0, Size: 100, Sort: "id,asc"}, false)
	_, _ = tasks.Fetch(ctx, 2, model.PageQuery{Page: 0, Size: 20, Sort: "id,asc"}, false)

	assert.Equal(t, 4, remote.calls())
}

func TestFetch_PreservesServerOrder(t *testing.T) {
	remote := &mockRemote{listFn: func(context.Context, model.ResourceType, int64, model.PageQuery) (string, error) {
		return `[{"id":5,"mood":3},{"id":9,"mood":8},{"id":1,"mood":6}]`, nil
	}}
	checkins := NewCollection[model.CheckIn](newTestCache(t, remote), model.ResourceCheckIns)

	items, err := checkins.Fetch(context.Background(), 1, checkinQuery, false)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, []int64{5, 9, 1}, []int64{items[0].ID, items[1].ID, items[2].ID})
}

func TestFetch_FailureLeavesPriorEntryUntouched(t *testing.T) {
	fail := false
	remote := &mockRemote{listFn: func(context.Context, model.ResourceType, int64, model.PageQuery) (string, error) {
		if fail {
			return "", errors.New("connection refused")
		}
		return `[{"id":1}]`, nil
	}}
	tasks := NewCollection[model.Task](newTestCache(t, remote), model.ResourceTasks)
	ctx := context.Background()

	_, err := tasks.Fetch(ctx, 1, taskQuery, false)
	require.NoError(t, err)
	before, ok := tasks.Peek(1, taskQuery)
	require.True(t, ok)

	fail = true
	_, err = tasks.Fetch(ctx, 1, taskQuery, true)

	var fetchErr *model.RemoteFetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, model.ResourceTasks, fetchErr.Resource)

	after, ok := tasks.Peek(1, taskQuery)
	require.True(t, ok)
	assert.Equal(t, before, after)
}

func TestFetch_InvalidQuery(t *testing.T) {
	remote := &mockRemote{}
	tasks := NewCollection[model.Task](newTestCache(t, remote), model.ResourceTasks)

	_, err := tasks.Fetch(context.Background(), 1, model.PageQuery{Size: 0}, false)
	assert.ErrorIs(t, err, model.ErrValidation)
	assert.Equal(t, 0, remote.calls())
}

func TestFetch_ReturnsCopy(t *testing.T) {
	remote := &mockRemote{listFn: func(context.Context, model.ResourceType, int64, model.PageQuery) (string, error) {
		return `[{"id":1,"title":"a"}]`, nil
	}}
	tasks := NewCollection[model.Task](newTestCache(t, remote), model.ResourceTasks)

	items, err := tasks.Fetch(context.Background(), 1, taskQuery, false)
	require.NoError(t, err)
	items[0].Title = "mutated"

	again, _ := tasks.Fetch(context.Background(), 1, taskQuery, false)
	assert.Equal(t, "a", again[0].Title)
}

func TestMutation_InvalidatesWholeResourceType(t *testing.T) {
	remote := &mockRemote{createFn: func(context.Context, model.ResourceType, any) (string, error) {
		return `{"id":99,"title":"new"}`, nil
	}}
	c := newTestCache(t, remote)
	tasks := NewCollection[model.Task](c, model.ResourceTasks)
	checkins := NewCollection[model.CheckIn](c, model.ResourceCheckIns)
	ctx := context.Background()

	_, _ = tasks.Fetch(ctx, 1, taskQuery, false)
	_, _ = tasks.Fetch(ctx, 1, model.PageQuery{Page: 0, Size: 100}, false)
	_, _ = tasks.Fetch(ctx, 2, taskQuery, false)
	_, _ = checkins.Fetch(ctx, 1, checkinQuery, false)
	require.Equal(t, 4, c.Len())

	created, err := tasks.Create(ctx, model.TaskPayload{Title: "new"})
	require.NoError(t, err)
	assert.Equal(t, int64(99), created.ID)

	assert.Equal(t, 1, c.Len(), "only the checkins entry survives")
	_, ok := checkins.Peek(1, checkinQuery)
	assert.True(t, ok)

	// 次の取得はリモートを呼ぶ
	calls := remote.calls()
	_, _ = tasks.Fetch(ctx, 1, taskQuery, false)
	assert.Equal(t, calls+1, remote.calls())
}

func TestMutation_FailureDoesNotInvalidate(t *testing.T) {
	remote := &mockRemote{
		updateFn: func(context.Context, model.ResourceType, int64, any) (string, error) {
			return "", errors.New("500")
		},
		deleteFn: func(context.Context, model.ResourceType, int64) error {
			return errors.New("500")
		},
	}
	c := newTestCache(t, remote)
	tasks := NewCollection[model.Task](c, model.ResourceTasks)
	ctx := context.Background()

	_, _ = tasks.Fetch(ctx, 1, taskQuery, false)
	versions := c.Versions()

	updated, err := tasks.Update(ctx, 1, model.TaskPayload{Title: "x"})
	assert.Nil(t, updated)
	var writeErr *model.RemoteWriteError
	require.ErrorAs(t, err, &writeErr)
	assert.Equal(t, "update", writeErr.Op)

	err = tasks.Delete(ctx, 1)
	require.ErrorAs(t, err, &writeErr)
	assert.Equal(t, "delete", writeErr.Op)

	assert.Equal(t, 1, c.Len())
	assert.Equal(t, versions, c.Versions())
}

func TestInvalidateAll_DropsUserEntriesAcrossTypes(t *testing.T) {
	remote := &mockRemote{}
	c := newTestCache(t, remote)
	tasks := NewCollection[model.Task](c, model.ResourceTasks)
	checkins := NewCollection[model.CheckIn](c, model.ResourceCheckIns)
	ctx := context.Background()

	_, _ = tasks.Fetch(ctx, 1, taskQuery, false)
	_, _ = checkins.Fetch(ctx, 1, checkinQuery, false)
	_, _ = tasks.Fetch(ctx, 2, taskQuery, false)

	c.InvalidateAll(1)

	assert.Equal(t, 1, c.Len())
	_, ok := tasks.Peek(2, taskQuery)
	assert.True(t, ok)

	calls := remote.calls()
	_, _ = checkins.Fetch(ctx, 1, checkinQuery, false)
	_, _ = tasks.Fetch(ctx, 1, taskQuery, false)
	assert.Equal(t, calls+2, remote.calls(), "fetch after invalidateAll must hit the remote")
}

func TestVersions_BumpOnReplaceAndDrop(t *testing.T) {
	remote := &mockRemote{}
	c := newTestCache(t, remote)
	tasks := NewCollection[model.Task](c, model.ResourceTasks)
	ctx := context.Background()

	ch, cancel := c.SubscribeVersions()
	defer cancel()
	initial := <-ch
	assert.Equal(t, uint64(0), initial[model.ResourceTasks])

	_, _ = tasks.Fetch(ctx, 1, taskQuery, false)
	assert.Equal(t, uint64(1), c.Versions()[model.ResourceTasks])

	require.NoError(t, tasks.Delete(ctx, 5))
	assert.Equal(t, uint64(2), c.Versions()[model.ResourceTasks])
	assert.Equal(t, uint64(0), c.Versions()[model.ResourceCheckIns])

	latest := <-ch
	assert.Equal(t, uint64(2), latest[model.ResourceTasks])
}

func TestBoundedEntryTable(t *testing.T) {
	remote := &mockRemote{}
	c, err := New(remote, Options{MaxEntries: 2})
	require.NoError(t, err)
	tasks := NewCollection[model.Task](c, model.ResourceTasks)
	ctx := context.Background()

	for page := 0; page < 3; page++ {
		_, err := tasks.Fetch(ctx, 1, model.PageQuery{Page: page, Size: 20}, false)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, c.Len())

	// 最も古いエントリは追い出され、再取得になる
	_, ok := tasks.Peek(1, model.PageQuery{Page: 0, Size: 20})
	assert.False(t, ok)
}

// 同一キーへの並行取得は、最後に到着したレスポンスが残る。
func TestFetch_ConcurrentSameKeyLastResponseWins(t *testing.T) {
	releaseSlow := make(chan struct{})
	var mu sync.Mutex
	n := 0
	remote := &mockRemote{listFn: func(context.Context, model.ResourceType, int64, model.PageQuery) (string, error) {
		mu.Lock()
		n++
		call := n
		mu.Unlock()
		if call == 1 {
			<-releaseSlow
			return `[{"id":1,"title":"slow"}]`, nil
		}
		return `[{"id":1,"title":"fast"}]`, nil
	}}
	tasks := NewCollection[model.Task](newTestCache(t, remote), model.ResourceTasks)
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = tasks.Fetch(ctx, 1, taskQuery, true)
	}()

	// 1件目がリモート呼び出しに入るまで待つ
	require.Eventually(t, func() bool { return remote.calls() == 1 }, time.Second, time.Millisecond)

	fast, err := tasks.Fetch(ctx, 1, taskQuery, true)
	require.NoError(t, err)
	assert.Equal(t, "fast", fast[0].Title)

	close(releaseSlow)
	<-done

	entry, ok := tasks.Peek(1, taskQuery)
	require.True(t, ok)
	assert.Equal(t, "slow", entry.Items[0].Title)
}
