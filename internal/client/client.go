// Package client is the typed boundary the UI talks to.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"typed-todo/internal/models"
)

// ErrUnavailable means the API could not be reached at all. Cancelled calls
// and timed out writes are not reported as unavailable.
var ErrUnavailable = errors.New("todo api unavailable")

// API is the set of todo operations the UI depends on. Missing todos are
// reported as (nil, nil) and (false, nil).
type API interface {
	List(ctx context.Context) ([]models.Todo, error)
	Get(ctx context.Context, id int64) (*models.Todo, error)
	Create(ctx context.Context, in models.CreateTodoInput) (*models.Todo, error)
	Update(ctx context.Context, in models.UpdateTodoInput) (*models.Todo, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

// StatusError is a non-2xx answer from the API.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("todo api: %d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("todo api: %d %s", e.Code, e.Message)
}

// HTTPClient calls the todo HTTP API.
type HTTPClient struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewHTTPClient returns a client for baseURL. token may be empty.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *HTTPClient) List(ctx context.Context) ([]models.Todo, error) {
	var todos []models.Todo
	if err := c.do(ctx, http.MethodGet, "/todos", nil, &todos); err != nil {
		return nil, err
	}
	if todos == nil {
		todos = []models.Todo{}
	}
	return todos, nil
}

func (c *HTTPClient) Get(ctx context.Context, id int64) (*models.Todo, error) {
	var todo *models.Todo
	if err := c.do(ctx, http.MethodGet, todoPath(id), nil, &todo); err != nil {
		return nil, err
	}
	return todo, nil
}

func (c *HTTPClient) Create(ctx context.Context, in models.CreateTodoInput) (*models.Todo, error) {
	var todo *models.Todo
	if err := c.do(ctx, http.MethodPost, "/todos", in, &todo); err != nil {
		return nil, err
	}
	return todo, nil
}

func (c *HTTPClient) Update(ctx context.Context, in models.UpdateTodoInput) (*models.Todo, error) {
	var todo *models.Todo
	if err := c.do(ctx, http.MethodPatch, todoPath(in.ID), in, &todo); err != nil {
		return nil, err
	}
	return todo, nil
}

func (c *HTTPClient) Delete(ctx context.Context, id int64) (bool, error) {
	var out struct {
		Deleted bool `json:"deleted"`
	}
	if err := c.do(ctx, http.MethodDelete, todoPath(id), nil, &out); err != nil {
		return false, err
	}
	return out.Deleted, nil
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func todoPath(id int64) string {
	return "/todos/" + strconv.FormatInt(id, 10)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s %s: %w", method, path, ctx.Err())
		}
		// A write that timed out may have been applied; replaying it
		// locally would duplicate it.
		if method != http.MethodGet && isTimeout(err) {
			return fmt.Errorf("%s %s: no answer, outcome unknown: %w", method, path, err)
		}
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error   string `json:"error"`
			Details string `json:"details"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&e)
		msg := e.Error
		if e.Details != "" {
			msg += ": " + e.Details
		}
		return &StatusError{Code: resp.StatusCode, Message: msg}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
