package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"typed-todo/internal/models"
	"typed-todo/internal/repository"
)

var errBoom = errors.New("boom")

// countingStore records calls on top of the in-memory store and can be made
// to fail.
type countingStore struct {
	*repository.Memory
	calls atomic.Int64
	fail  error
	gate  chan struct{}
}

func newCountingStore() *countingStore {
	return &countingStore{Memory: repository.NewMemory()}
}

func (s *countingStore) Create(ctx context.Context, in models.CreateTodoInput) (*models.Todo, error) {
	s.calls.Add(1)
	if s.fail != nil {
		return nil, s.fail
	}
	return s.Memory.Create(ctx, in)
}

func (s *countingStore) Get(ctx context.Context, id int64) (*models.Todo, error) {
	s.calls.Add(1)
	if s.fail != nil {
		return nil, s.fail
	}
	return s.Memory.Get(ctx, id)
}

func (s *countingStore) List(ctx context.Context) ([]models.Todo, error) {
	s.calls.Add(1)
	if s.fail != nil {
		return nil, s.fail
	}
	// The rows are read before waiting, as a slow query would return them.
	todos, err := s.Memory.List(ctx)
	if s.gate != nil {
		<-s.gate
	}
	return todos, err
}

func (s *countingStore) Update(ctx context.Context, in models.UpdateTodoInput) (*models.Todo, error) {
	s.calls.Add(1)
	if s.fail != nil {
		return nil, s.fail
	}
	return s.Memory.Update(ctx, in)
}

func (s *countingStore) Delete(ctx context.Context, id int64) (bool, error) {
	s.calls.Add(1)
	if s.fail != nil {
		return false, s.fail
	}
	return s.Memory.Delete(ctx, id)
}

type mapCache struct {
	mu          sync.Mutex
	list        []models.Todo
	hasList     bool
	todos       map[int64]models.Todo
	invalidated [][]int64
}

func newMapCache() *mapCache {
	return &mapCache{todos: make(map[int64]models.Todo)}
}

func (c *mapCache) GetTodos(context.Context) ([]models.Todo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.list, c.hasList
}

func (c *mapCache) SetTodos(_ context.Context, todos []models.Todo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.list, c.hasList = todos, true
}

func (c *mapCache) GetTodo(_ context.Context, id int64) (*models.Todo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.todos[id]
	if !ok {
		return nil, false
	}
	return &t, true
}

func (c *mapCache) SetTodo(_ context.Context, t *models.Todo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.todos[t.ID] = *t
}

func (c *mapCache) Invalidate(_ context.Context, ids ...int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.list, c.hasList = nil, false
	for _, id := range ids {
		delete(c.todos, id)
	}
	c.invalidated = append(c.invalidated, ids)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.TodoEvent
	fail   error
}

func (p *recordingPublisher) Publish(_ context.Context, ev *models.TodoEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	p.events = append(p.events, *ev)
	return nil
}

func ptr[T any](v T) *T { return &v }

func TestCreateTodo(t *testing.T) {
	ctx := context.Background()

	t.Run("starts open with timestamps equal", func(t *testing.T) {
		svc := NewTodoService(newCountingStore(), nil, nil)

		todo, err := svc.CreateTodo(ctx, models.CreateTodoInput{Title: "Buy milk", Description: ptr("2%")})
		require.NoError(t, err)
		assert.Positive(t, todo.ID)
		assert.Equal(t, "Buy milk", todo.Title)
		assert.Equal(t, "2%", *todo.Description)
		assert.False(t, todo.Completed)
		assert.Equal(t, todo.CreatedAt, todo.UpdatedAt)
	})

	t.Run("ids are unique", func(t *testing.T) {
		svc := NewTodoService(newCountingStore(), nil, nil)
		seen := map[int64]bool{}
		for range 5 {
			todo, err := svc.CreateTodo(ctx, models.CreateTodoInput{Title: "x"})
			require.NoError(t, err)
			assert.False(t, seen[todo.ID])
			seen[todo.ID] = true
		}
	})

	t.Run("empty title never reaches the store", func(t *testing.T) {
		store := newCountingStore()
		svc := NewTodoService(store, nil, nil)

		todo, err := svc.CreateTodo(ctx, models.CreateTodoInput{Title: ""})
		assert.Nil(t, todo)
		assert.ErrorIs(t, err, ErrInvalidInput)
		assert.Zero(t, store.calls.Load())
		assert.Zero(t, store.Len())
	})

	t.Run("store failure is a storage error", func(t *testing.T) {
		store := newCountingStore()
		store.fail = errBoom
		svc := NewTodoService(store, nil, nil)

		_, err := svc.CreateTodo(ctx, models.CreateTodoInput{Title: "x"})
		assert.ErrorIs(t, err, ErrStorage)
		assert.ErrorIs(t, err, errBoom)
		assert.NotErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("invalidates the list and publishes", func(t *testing.T) {
		cache := newMapCache()
		events := &recordingPublisher{}
		svc := NewTodoService(newCountingStore(), cache, events)
		cache.SetTodos(ctx, []models.Todo{})

		todo, err := svc.CreateTodo(ctx, models.CreateTodoInput{Title: "x"})
		require.NoError(t, err)
		_, cached := cache.GetTodos(ctx)
		assert.False(t, cached)
		require.Len(t, events.events, 1)
		assert.Equal(t, models.ActionCreated, events.events[0].Action)
		assert.Equal(t, todo.ID, events.events[0].TodoID)
	})

	t.Run("publish failure does not fail the write", func(t *testing.T) {
		svc := NewTodoService(newCountingStore(), nil, &recordingPublisher{fail: errBoom})
		todo, err := svc.CreateTodo(ctx, models.CreateTodoInput{Title: "x"})
		require.NoError(t, err)
		assert.NotNil(t, todo)
	})
}

func TestGetTodo(t *testing.T) {
	ctx := context.Background()

	t.Run("returns what create returned", func(t *testing.T) {
		svc := NewTodoService(newCountingStore(), nil, nil)
		created, err := svc.CreateTodo(ctx, models.CreateTodoInput{Title: "x", Description: ptr("d")})
		require.NoError(t, err)

		got, err := svc.GetTodo(ctx, models.GetTodoInput{ID: created.ID})
		require.NoError(t, err)
		assert.Equal(t, created, got)
	})

	t.Run("missing id is absent, not an error", func(t *testing.T) {
		svc := NewTodoService(newCountingStore(), nil, nil)
		got, err := svc.GetTodo(ctx, models.GetTodoInput{ID: 999})
		assert.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("non-positive id skips the store", func(t *testing.T) {
		store := newCountingStore()
		svc := NewTodoService(store, nil, nil)
		got, err := svc.GetTodo(ctx, models.GetTodoInput{ID: 0})
		assert.NoError(t, err)
		assert.Nil(t, got)
		assert.Zero(t, store.calls.Load())
	})

	t.Run("served from cache after first read", func(t *testing.T) {
		store := newCountingStore()
		svc := NewTodoService(store, newMapCache(), nil)
		created, _ := svc.CreateTodo(ctx, models.CreateTodoInput{Title: "x"})
		before := store.calls.Load()

		_, err := svc.GetTodo(ctx, models.GetTodoInput{ID: created.ID})
		require.NoError(t, err)
		_, err = svc.GetTodo(ctx, models.GetTodoInput{ID: created.ID})
		require.NoError(t, err)
		assert.Equal(t, before+1, store.calls.Load())
	})

	t.Run("store failure", func(t *testing.T) {
		store := newCountingStore()
		store.fail = errBoom
		svc := NewTodoService(store, nil, nil)
		_, err := svc.GetTodo(ctx, models.GetTodoInput{ID: 1})
		assert.ErrorIs(t, err, ErrStorage)
	})
}

func TestListTodos(t *testing.T) {
	ctx := context.Background()

	t.Run("empty store gives empty list", func(t *testing.T) {
		svc := NewTodoService(newCountingStore(), nil, nil)
		list, err := svc.ListTodos(ctx)
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("newest first", func(t *testing.T) {
		svc := NewTodoService(newCountingStore(), nil, nil)
		a, _ := svc.CreateTodo(ctx, models.CreateTodoInput{Title: "a"})
		b, _ := svc.CreateTodo(ctx, models.CreateTodoInput{Title: "b"})
		c, _ := svc.CreateTodo(ctx, models.CreateTodoInput{Title: "c"})

		list, err := svc.ListTodos(ctx)
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, []int64{c.ID, b.ID, a.ID}, []int64{list[0].ID, list[1].ID, list[2].ID})
	})

	t.Run("deleted todos disappear", func(t *testing.T) {
		svc := NewTodoService(newCountingStore(), newMapCache(), nil)
		a, _ := svc.CreateTodo(ctx, models.CreateTodoInput{Title: "a"})
		b, _ := svc.CreateTodo(ctx, models.CreateTodoInput{Title: "b"})
		_, err := svc.ListTodos(ctx)
		require.NoError(t, err)

		removed, err := svc.DeleteTodo(ctx, models.DeleteTodoInput{ID: a.ID})
		require.NoError(t, err)
		require.True(t, removed)

		list, err := svc.ListTodos(ctx)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, b.ID, list[0].ID)
	})

	t.Run("cache hit skips the store", func(t *testing.T) {
		store := newCountingStore()
		svc := NewTodoService(store, newMapCache(), nil)
		_, err := svc.ListTodos(ctx)
		require.NoError(t, err)
		_, err = svc.ListTodos(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), store.calls.Load())
	})

	t.Run("concurrent misses share one query", func(t *testing.T) {
		store := newCountingStore()
		store.gate = make(chan struct{})
		svc := NewTodoService(store, nil, nil)

		var wg sync.WaitGroup
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := svc.ListTodos(ctx)
				assert.NoError(t, err)
			}()
		}
		time.Sleep(50 * time.Millisecond)
		close(store.gate)
		wg.Wait()
		assert.Less(t, store.calls.Load(), int64(8))
	})

	t.Run("store failure", func(t *testing.T) {
		store := newCountingStore()
		store.fail = errBoom
		svc := NewTodoService(store, nil, nil)
		_, err := svc.ListTodos(ctx)
		assert.ErrorIs(t, err, ErrStorage)
	})
}

func TestUpdateTodo(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*TodoService, *countingStore, *models.Todo) {
		t.Helper()
		store := newCountingStore()
		svc := NewTodoService(store, nil, nil)
		todo, err := svc.CreateTodo(ctx, models.CreateTodoInput{Title: "Buy milk", Description: ptr("2%")})
		require.NoError(t, err)
		return svc, store, todo
	}

	t.Run("only supplied fields change", func(t *testing.T) {
		svc, _, orig := setup(t)

		got, err := svc.UpdateTodo(ctx, models.UpdateTodoInput{ID: orig.ID, Completed: models.Set(true)})
		require.NoError(t, err)
		assert.True(t, got.Completed)
		assert.Equal(t, orig.Title, got.Title)
		assert.Equal(t, orig.Description, got.Description)
		assert.Equal(t, orig.CreatedAt, got.CreatedAt)
		assert.True(t, got.UpdatedAt.After(orig.UpdatedAt))
	})

	t.Run("null description clears it", func(t *testing.T) {
		svc, _, orig := setup(t)

		got, err := svc.UpdateTodo(ctx, models.UpdateTodoInput{ID: orig.ID, Description: models.Null[string]()})
		require.NoError(t, err)
		assert.Nil(t, got.Description)
		assert.Equal(t, orig.Title, got.Title)
	})

	t.Run("empty update still refreshes updated_at", func(t *testing.T) {
		svc, _, orig := setup(t)

		got, err := svc.UpdateTodo(ctx, models.UpdateTodoInput{ID: orig.ID})
		require.NoError(t, err)
		assert.True(t, got.UpdatedAt.After(orig.UpdatedAt))
		assert.Equal(t, orig.Title, got.Title)
	})

	t.Run("missing id is absent", func(t *testing.T) {
		svc, _, _ := setup(t)
		got, err := svc.UpdateTodo(ctx, models.UpdateTodoInput{ID: 999, Title: models.Set("x")})
		assert.NoError(t, err)
		assert.Nil(t, got)
	})

	invalid := []struct {
		name string
		in   models.UpdateTodoInput
	}{
		{"empty title", models.UpdateTodoInput{Title: models.Set("")}},
		{"null title", models.UpdateTodoInput{Title: models.Null[string]()}},
		{"null completed", models.UpdateTodoInput{Completed: models.Null[bool]()}},
	}
	for _, tc := range invalid {
		t.Run(tc.name+" is rejected before the store", func(t *testing.T) {
			svc, store, orig := setup(t)
			before := store.calls.Load()
			tc.in.ID = orig.ID

			got, err := svc.UpdateTodo(ctx, tc.in)
			assert.Nil(t, got)
			assert.ErrorIs(t, err, ErrInvalidInput)
			assert.Equal(t, before, store.calls.Load())

			unchanged, err := svc.GetTodo(ctx, models.GetTodoInput{ID: orig.ID})
			require.NoError(t, err)
			assert.Equal(t, orig, unchanged)
		})
	}

	t.Run("invalidates the todo and publishes", func(t *testing.T) {
		cache := newMapCache()
		events := &recordingPublisher{}
		svc := NewTodoService(newCountingStore(), cache, events)
		todo, _ := svc.CreateTodo(ctx, models.CreateTodoInput{Title: "x"})
		_, _ = svc.GetTodo(ctx, models.GetTodoInput{ID: todo.ID})

		got, err := svc.UpdateTodo(ctx, models.UpdateTodoInput{ID: todo.ID, Title: models.Set("y")})
		require.NoError(t, err)
		_, cached := cache.GetTodo(ctx, todo.ID)
		assert.False(t, cached)

		again, err := svc.GetTodo(ctx, models.GetTodoInput{ID: todo.ID})
		require.NoError(t, err)
		assert.Equal(t, got, again)
		require.Len(t, events.events, 2)
		assert.Equal(t, models.ActionUpdated, events.events[1].Action)
	})
}

func TestDeleteTodo(t *testing.T) {
	ctx := context.Background()

	t.Run("second delete reports false", func(t *testing.T) {
		svc := NewTodoService(newCountingStore(), nil, nil)
		todo, _ := svc.CreateTodo(ctx, models.CreateTodoInput{Title: "x"})

		removed, err := svc.DeleteTodo(ctx, models.DeleteTodoInput{ID: todo.ID})
		require.NoError(t, err)
		assert.True(t, removed)

		removed, err = svc.DeleteTodo(ctx, models.DeleteTodoInput{ID: todo.ID})
		require.NoError(t, err)
		assert.False(t, removed)

		got, err := svc.GetTodo(ctx, models.GetTodoInput{ID: todo.ID})
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("missing delete publishes nothing", func(t *testing.T) {
		events := &recordingPublisher{}
		svc := NewTodoService(newCountingStore(), nil, events)
		removed, err := svc.DeleteTodo(ctx, models.DeleteTodoInput{ID: 42})
		require.NoError(t, err)
		assert.False(t, removed)
		assert.Empty(t, events.events)
	})

	t.Run("store failure", func(t *testing.T) {
		store := newCountingStore()
		store.fail = errBoom
		svc := NewTodoService(store, nil, nil)
		_, err := svc.DeleteTodo(ctx, models.DeleteTodoInput{ID: 1})
		assert.ErrorIs(t, err, ErrStorage)
	})
}

func TestOperationMetrics(t *testing.T) {
	ctx := context.Background()
	svc := NewTodoService(newCountingStore(), nil, nil)

	created := testutil.ToFloat64(operationCount.WithLabelValues(opCreate, statusSuccess))
	invalid := testutil.ToFloat64(operationCount.WithLabelValues(opCreate, statusInvalid))
	notFound := testutil.ToFloat64(operationCount.WithLabelValues(opGet, statusNotFound))

	_, _ = svc.CreateTodo(ctx, models.CreateTodoInput{Title: "x"})
	_, _ = svc.CreateTodo(ctx, models.CreateTodoInput{})
	_, _ = svc.GetTodo(ctx, models.GetTodoInput{ID: 12345})

	assert.Equal(t, created+1, testutil.ToFloat64(operationCount.WithLabelValues(opCreate, statusSuccess)))
	assert.Equal(t, invalid+1, testutil.ToFloat64(operationCount.WithLabelValues(opCreate, statusInvalid)))
	assert.Equal(t, notFound+1, testutil.ToFloat64(operationCount.WithLabelValues(opGet, statusNotFound)))
}

// pausingStore holds the next Get after it has read the row, so a write can
// complete in between.
type pausingStore struct {
	*repository.Memory
	pause   atomic.Bool
	read    chan struct{}
	release chan struct{}
}

func newPausingStore() *pausingStore {
	return &pausingStore{
		Memory:  repository.NewMemory(),
		read:    make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (s *pausingStore) Get(ctx context.Context, id int64) (*models.Todo, error) {
	todo, err := s.Memory.Get(ctx, id)
	if s.pause.CompareAndSwap(true, false) {
		close(s.read)
		<-s.release
	}
	return todo, err
}

func (c *mapCache) invalidations() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.invalidated)
}

func TestCacheNotFilledWithDataOlderThanAWrite(t *testing.T) {
	ctx := context.Background()
	store := newPausingStore()
	svc := NewTodoService(store, newMapCache(), nil)

	todo, err := svc.CreateTodo(ctx, models.CreateTodoInput{Title: "a"})
	require.NoError(t, err)

	store.pause.Store(true)
	done := make(chan struct{})
	go func() {
		defer close(done)
		got, err := svc.GetTodo(ctx, models.GetTodoInput{ID: todo.ID})
		assert.NoError(t, err)
		assert.Equal(t, "a", got.Title)
	}()
	<-store.read

	_, err = svc.UpdateTodo(ctx, models.UpdateTodoInput{ID: todo.ID, Title: models.Set("b")})
	require.NoError(t, err)
	close(store.release)
	<-done

	got, err := svc.GetTodo(ctx, models.GetTodoInput{ID: todo.ID})
	require.NoError(t, err)
	assert.Equal(t, "b", got.Title)
}

func TestListCacheNotFilledWithDataOlderThanAWrite(t *testing.T) {
	ctx := context.Background()
	store := newCountingStore()
	store.gate = make(chan struct{})
	svc := NewTodoService(store, newMapCache(), nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := svc.ListTodos(ctx)
		assert.NoError(t, err)
	}()
	require.Eventually(t, func() bool { return store.calls.Load() == 1 }, time.Second, time.Millisecond)

	_, err := svc.CreateTodo(ctx, models.CreateTodoInput{Title: "new"})
	require.NoError(t, err)
	close(store.gate)
	<-done

	list, err := svc.ListTodos(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "new", list[0].Title)
}

func TestWithDelayedEviction(t *testing.T) {
	ctx := context.Background()
	cache := newMapCache()
	svc := NewTodoService(newCountingStore(), cache, nil, WithDelayedEviction(50*time.Millisecond))

	todo, err := svc.CreateTodo(ctx, models.CreateTodoInput{Title: "a"})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return cache.invalidations() == 2 }, time.Second, time.Millisecond)

	// A fill that slipped in after the first eviction is dropped by the second.
	_, err = svc.UpdateTodo(ctx, models.UpdateTodoInput{ID: todo.ID, Title: models.Set("b")})
	require.NoError(t, err)
	cache.SetTodo(ctx, todo)
	require.Eventually(t, func() bool {
		_, cached := cache.GetTodo(ctx, todo.ID)
		return !cached
	}, time.Second, time.Millisecond)
}

func TestCreateNullAndOmittedDescriptionAreStoredAlike(t *testing.T) {
	ctx := context.Background()
	svc := NewTodoService(newCountingStore(), nil, nil)

	var explicit, omitted models.CreateTodoInput
	require.NoError(t, json.Unmarshal([]byte(`{"title":"x","description":null}`), &explicit))
	require.NoError(t, json.Unmarshal([]byte(`{"title":"x"}`), &omitted))
	assert.Equal(t, omitted, explicit)

	a, err := svc.CreateTodo(ctx, explicit)
	require.NoError(t, err)
	b, err := svc.CreateTodo(ctx, omitted)
	require.NoError(t, err)

	for _, todo := range []*models.Todo{a, b} {
		stored, err := svc.GetTodo(ctx, models.GetTodoInput{ID: todo.ID})
		require.NoError(t, err)
		assert.Nil(t, stored.Description)
		assert.Equal(t, "x", stored.Title)
		assert.False(t, stored.Completed)
	}
}

func TestDeleteLeavesOtherTodosUntouched(t *testing.T) {
	ctx := context.Background()
	store := newCountingStore()
	svc := NewTodoService(store, newMapCache(), nil)

	a, _ := svc.CreateTodo(ctx, models.CreateTodoInput{Title: "a", Description: ptr("first")})
	b, _ := svc.CreateTodo(ctx, models.CreateTodoInput{Title: "b"})
	c, _ := svc.CreateTodo(ctx, models.CreateTodoInput{Title: "c", Description: ptr("third")})
	c, err := svc.UpdateTodo(ctx, models.UpdateTodoInput{ID: c.ID, Completed: models.Set(true)})
	require.NoError(t, err)

	removed, err := svc.DeleteTodo(ctx, models.DeleteTodoInput{ID: b.ID})
	require.NoError(t, err)
	require.True(t, removed)

	list, err := svc.ListTodos(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.Todo{*c, *a}, list)
}

func TestDeleteMissingKeepsCount(t *testing.T) {
	ctx := context.Background()
	store := newCountingStore()
	svc := NewTodoService(store, nil, nil)
	_, _ = svc.CreateTodo(ctx, models.CreateTodoInput{Title: "a"})
	_, _ = svc.CreateTodo(ctx, models.CreateTodoInput{Title: "b"})
	before := store.Len()

	for _, id := range []int64{0, -1, 999} {
		removed, err := svc.DeleteTodo(ctx, models.DeleteTodoInput{ID: id})
		require.NoError(t, err)
		assert.False(t, removed)
	}
	assert.Equal(t, before, store.Len())
}
