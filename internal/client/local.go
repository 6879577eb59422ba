package client

import (
	"context"

	"typed-todo/internal/models"
	"typed-todo/internal/repository"
	"typed-todo/internal/validation"
)

// Local serves the API from process memory. Inputs are validated with the
// same rules the server applies.
type Local struct {
	store    *repository.Memory
	validate *validation.Validator
}

// NewLocal returns an empty local store.
func NewLocal() *Local {
	return &Local{
		store:    repository.NewMemory(),
		validate: validation.New(),
	}
}

// NewDemo returns a local store holding a few sample todos.
func NewDemo(ctx context.Context) *Local {
	l := NewLocal()
	desc := func(s string) *string { return &s }
	samples := []models.CreateTodoInput{
		{Title: "Try the todo app", Description: desc("Press a to add, space to toggle")},
		{Title: "Buy milk"},
		{Title: "Start the API server", Description: desc("go run ./cmd")},
	}
	for _, in := range samples {
		// Titles above are non-empty, so Create cannot fail.
		_, _ = l.Create(ctx, in)
	}
	_, _ = l.store.Update(ctx, models.UpdateTodoInput{ID: 2, Completed: models.Set(true)})
	return l
}

func (l *Local) List(ctx context.Context) ([]models.Todo, error) {
	return l.store.List(ctx)
}

func (l *Local) Get(ctx context.Context, id int64) (*models.Todo, error) {
	return l.store.Get(ctx, id)
}

func (l *Local) Create(ctx context.Context, in models.CreateTodoInput) (*models.Todo, error) {
	if err := l.validate.Create(in); err != nil {
		return nil, err
	}
	return l.store.Create(ctx, in)
}

func (l *Local) Update(ctx context.Context, in models.UpdateTodoInput) (*models.Todo, error) {
	if err := l.validate.Update(in); err != nil {
		return nil, err
	}
	return l.store.Update(ctx, in)
}

func (l *Local) Delete(ctx context.Context, id int64) (bool, error) {
	return l.store.Delete(ctx, id)
}
