package service

import (
	"context"
	"slices"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"typed-todo/internal/models"
	"typed-todo/internal/queue"
	"typed-todo/internal/validation"
	"typed-todo/pkg/logger"
)

// Store persists todos. Each method is a single statement; a missing row is
// (nil, nil) or (false, nil), never an error.
type Store interface {
	Create(ctx context.Context, in models.CreateTodoInput) (*models.Todo, error)
	Get(ctx context.Context, id int64) (*models.Todo, error)
	List(ctx context.Context) ([]models.Todo, error)
	Update(ctx context.Context, in models.UpdateTodoInput) (*models.Todo, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

// Cache is a best-effort read cache. Misses and failures look the same.
type Cache interface {
	GetTodos(ctx context.Context) ([]models.Todo, bool)
	SetTodos(ctx context.Context, todos []models.Todo)
	GetTodo(ctx context.Context, id int64) (*models.Todo, bool)
	SetTodo(ctx context.Context, t *models.Todo)
	Invalidate(ctx context.Context, ids ...int64)
}

// Publisher announces successful writes.
type Publisher interface {
	Publish(ctx context.Context, ev *models.TodoEvent) error
}

type TodoServiceInterface interface {
	CreateTodo(ctx context.Context, in models.CreateTodoInput) (*models.Todo, error)
	GetTodo(ctx context.Context, in models.GetTodoInput) (*models.Todo, error)
	ListTodos(ctx context.Context) ([]models.Todo, error)
	UpdateTodo(ctx context.Context, in models.UpdateTodoInput) (*models.Todo, error)
	DeleteTodo(ctx context.Context, in models.DeleteTodoInput) (bool, error)
}

type TodoService struct {
	store     Store
	cache     Cache
	events    Publisher
	validate  *validation.Validator
	listGroup singleflight.Group

	// writes counts successful writes. A read only fills the cache if no
	// write finished while it was at the store.
	writes     atomic.Uint64
	evictDelay time.Duration
}

// Option configures a TodoService.
type Option func(*TodoService)

// WithDelayedEviction makes every write evict its cache keys a second time
// after d. Use it when no eviction worker consumes the change events.
func WithDelayedEviction(d time.Duration) Option {
	return func(s *TodoService) {
		s.evictDelay = d
	}
}

// NewTodoService wires the operations. cache and events may be nil.
func NewTodoService(store Store, cache Cache, events Publisher, opts ...Option) *TodoService {
	if cache == nil {
		cache = noCache{}
	}
	if events == nil {
		events = noEvents{}
	}
	s := &TodoService{
		store:    store,
		cache:    cache,
		events:   events,
		validate: validation.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateTodo inserts a new, not yet completed todo.
func (s *TodoService) CreateTodo(ctx context.Context, in models.CreateTodoInput) (*models.Todo, error) {
	done := track(opCreate)
	if err := s.validate.Create(in); err != nil {
		done(statusInvalid)
		return nil, invalidInput(err)
	}
	todo, err := s.store.Create(ctx, in)
	if err != nil {
		done(statusError)
		return nil, storageFailure(err)
	}
	s.invalidate(ctx)
	s.publish(ctx, models.ActionCreated, todo.ID)
	done(statusSuccess)
	return todo, nil
}

// GetTodo returns the todo or nil when it does not exist.
func (s *TodoService) GetTodo(ctx context.Context, in models.GetTodoInput) (*models.Todo, error) {
	done := track(opGet)
	if in.ID <= 0 {
		done(statusNotFound)
		return nil, nil
	}
	if todo, ok := s.cache.GetTodo(ctx, in.ID); ok {
		done(statusSuccess)
		return todo, nil
	}
	seen := s.writes.Load()
	todo, err := s.store.Get(ctx, in.ID)
	if err != nil {
		done(statusError)
		return nil, storageFailure(err)
	}
	if todo == nil {
		done(statusNotFound)
		return nil, nil
	}
	if s.writes.Load() == seen {
		s.cache.SetTodo(ctx, todo)
	}
	done(statusSuccess)
	return todo, nil
}

// ListTodos returns every todo, newest first. Concurrent cache misses share
// one store query.
func (s *TodoService) ListTodos(ctx context.Context) ([]models.Todo, error) {
	done := track(opList)
	if todos, ok := s.cache.GetTodos(ctx); ok {
		done(statusSuccess)
		return todos, nil
	}
	v, err, _ := s.listGroup.Do("todos", func() (any, error) {
		// Detached from this caller so its cancellation cannot fail the others.
		qctx := context.WithoutCancel(ctx)
		seen := s.writes.Load()
		todos, err := s.store.List(qctx)
		if err != nil {
			return nil, err
		}
		if s.writes.Load() == seen {
			s.cache.SetTodos(qctx, todos)
		}
		return todos, nil
	})
	if err != nil {
		done(statusError)
		return nil, storageFailure(err)
	}
	done(statusSuccess)
	return slices.Clone(v.([]models.Todo)), nil
}

// UpdateTodo writes the supplied fields and refreshes updated_at. It returns
// nil when the todo does not exist.
func (s *TodoService) UpdateTodo(ctx context.Context, in models.UpdateTodoInput) (*models.Todo, error) {
	done := track(opUpdate)
	if err := s.validate.Update(in); err != nil {
		done(statusInvalid)
		return nil, invalidInput(err)
	}
	if in.ID <= 0 {
		done(statusNotFound)
		return nil, nil
	}
	todo, err := s.store.Update(ctx, in)
	if err != nil {
		done(statusError)
		return nil, storageFailure(err)
	}
	if todo == nil {
		done(statusNotFound)
		return nil, nil
	}
	s.invalidate(ctx, todo.ID)
	s.publish(ctx, models.ActionUpdated, todo.ID)
	done(statusSuccess)
	return todo, nil
}

// DeleteTodo removes the todo and reports whether it existed.
func (s *TodoService) DeleteTodo(ctx context.Context, in models.DeleteTodoInput) (bool, error) {
	done := track(opDelete)
	if in.ID <= 0 {
		done(statusNotFound)
		return false, nil
	}
	removed, err := s.store.Delete(ctx, in.ID)
	if err != nil {
		done(statusError)
		return false, storageFailure(err)
	}
	if !removed {
		done(statusNotFound)
		return false, nil
	}
	s.invalidate(ctx, in.ID)
	s.publish(ctx, models.ActionDeleted, in.ID)
	done(statusSuccess)
	return true, nil
}

// invalidate runs after a successful write. The list key is always dropped.
// With a delay configured the keys are dropped again later, catching a fill
// from another replica that read before the write committed.
func (s *TodoService) invalidate(ctx context.Context, ids ...int64) {
	s.writes.Add(1)
	s.cache.Invalidate(ctx, ids...)
	if s.evictDelay > 0 {
		bg := context.WithoutCancel(ctx)
		time.AfterFunc(s.evictDelay, func() {
			s.cache.Invalidate(bg, ids...)
		})
	}
}

func (s *TodoService) publish(ctx context.Context, action string, id int64) {
	if err := s.events.Publish(ctx, queue.NewTodoEvent(action, id)); err != nil {
		logger.Warn(ctx, "Publish todo event failed", "error", err, "action", action, "todo_id", id)
	}
}

type noCache struct{}

func (noCache) GetTodos(context.Context) ([]models.Todo, bool) { return nil, false }
func (noCache) SetTodos(context.Context, []models.Todo) {}
func (noCache) GetTodo(context.Context, int64) (*models.Todo, bool) { return nil, false }
func (noCache) SetTodo(context.Context, *models.Todo) {}
func (noCache) Invalidate(context.Context, ...int64) {}

type noEvents struct{}

func (noEvents) Publish(context.Context, *models.TodoEvent) error { return nil }
