package client

import (
	"context"
	"errors"
	"sync/atomic"

	"typed-todo/internal/models"
	"typed-todo/pkg/logger"
)

const (
	ModeRemote = "remote"
	ModeLocal  = "local"
)

// Fallback sends calls to remote until one fails with ErrUnavailable. From
// then on every call, including the failed one, is served by local.
type Fallback struct {
	remote API
	local  API
	isLoc  atomic.Bool
}

func NewFallback(remote, local API) *Fallback {
	return &Fallback{remote: remote, local: local}
}

// Mode reports which implementation is serving calls.
func (f *Fallback) Mode() string {
	if f.isLoc.Load() {
		return ModeLocal
	}
	return ModeRemote
}

func (f *Fallback) switched(ctx context.Context, err error) bool {
	if !errors.Is(err, ErrUnavailable) {
		return false
	}
	if f.isLoc.CompareAndSwap(false, true) {
		logger.Warn(ctx, "Todo API unreachable, switching to local demo data", "error", err)
	}
	return true
}

func (f *Fallback) List(ctx context.Context) ([]models.Todo, error) {
	if !f.isLoc.Load() {
		todos, err := f.remote.List(ctx)
		if !f.switched(ctx, err) {
			return todos, err
		}
	}
	return f.local.List(ctx)
}

func (f *Fallback) Get(ctx context.Context, id int64) (*models.Todo, error) {
	if !f.isLoc.Load() {
		todo, err := f.remote.Get(ctx, id)
		if !f.switched(ctx, err) {
			return todo, err
		}
	}
	return f.local.Get(ctx, id)
}

func (f *Fallback) Create(ctx context.Context, in models.CreateTodoInput) (*models.Todo, error) {
	if !f.isLoc.Load() {
		todo, err := f.remote.Create(ctx, in)
		if !f.switched(ctx, err) {
			return todo, err
		}
	}
	return f.local.Create(ctx, in)
}

func (f *Fallback) Update(ctx context.Context, in models.UpdateTodoInput) (*models.Todo, error) {
	if !f.isLoc.Load() {
		todo, err := f.remote.Update(ctx, in)
		if !f.switched(ctx, err) {
			return todo, err
		}
	}
	return f.local.Update(ctx, in)
}

func (f *Fallback) Delete(ctx context.Context, id int64) (bool, error) {
	if !f.isLoc.Load() {
		removed, err := f.remote.Delete(ctx, id)
		if !f.switched(ctx, err) {
			return removed, err
		}
	}
	return f.local.Delete(ctx, id)
}
