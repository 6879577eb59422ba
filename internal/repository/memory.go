package repository

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"typed-todo/internal/models"
)

// Memory keeps todos in process memory with the same contract as Todos.
// Ids are never reused and timestamps never go backwards, even if the wall
// clock does.
type Memory struct {
	mu     sync.Mutex
	todos  map[int64]models.Todo
	lastID int64
	last   time.Time
	now    func() time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		todos: make(map[int64]models.Todo),
		now:   time.Now,
	}
}

// tick returns a timestamp strictly after every one handed out before.
// Callers hold m.mu.
func (m *Memory) tick() time.Time {
	t := m.now()
	if !t.After(m.last) {
		t = m.last.Add(time.Microsecond)
	}
	m.last = t
	return t
}

func cloneTodo(t models.Todo) models.Todo {
	if t.Description != nil {
		d := *t.Description
		t.Description = &d
	}
	return t
}

func (m *Memory) Create(_ context.Context, in models.CreateTodoInput) (*models.Todo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastID++
	now := m.tick()
	t := cloneTodo(models.Todo{
		ID:          m.lastID,
		Title:       in.Title,
		Description: in.Description,
		Completed:   false,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	m.todos[t.ID] = t
	out := cloneTodo(t)
	return &out, nil
}

func (m *Memory) Get(_ context.Context, id int64) (*models.Todo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.todos[id]
	if !ok {
		return nil, nil
	}
	out := cloneTodo(t)
	return &out, nil
}

func (m *Memory) List(_ context.Context) ([]models.Todo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.Todo, 0, len(m.todos))
	for _, t := range m.todos {
		out = append(out, cloneTodo(t))
	}
	slices.SortFunc(out, func(a, b models.Todo) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return out, nil
}

func (m *Memory) Update(_ context.Context, in models.UpdateTodoInput) (*models.Todo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.todos[in.ID]
	if !ok {
		return nil, nil
	}
	if title, ok := in.Title.Get(); ok {
		t.Title = title
	}
	if in.Description.IsSet() {
		t.Description = in.Description.Ptr()
	}
	if completed, ok := in.Completed.Get(); ok {
		t.Completed = completed
	}
	t.UpdatedAt = m.tick()
	m.todos[t.ID] = t
	out := cloneTodo(t)
	return &out, nil
}

func (m *Memory) Delete(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.todos[id]; !ok {
		return false, nil
	}
	delete(m.todos, id)
	return true, nil
}

// Len returns the number of stored todos.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.todos)
}
