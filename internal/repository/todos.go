package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"typed-todo/internal/models"
	"typed-todo/pkg/logger"
)

const todoColumns = `id, title, description, completed, created_at, updated_at`

// touchUpdatedAt moves updated_at forward using the database clock. It never
// goes backwards or repeats, whatever the replica clocks say.
const touchUpdatedAt = `updated_at = GREATEST(now(), updated_at + interval '1 microsecond')`

// Todos runs one SQL statement per operation against the todos table.
// Timestamps come from the database, not from the API process.
type Todos struct {
	db *sql.DB
}

// NewTodos returns a repository over db.
func NewTodos(db *sql.DB) *Todos {
	return &Todos{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTodo(row rowScanner) (*models.Todo, error) {
	var (
		t    models.Todo
		desc sql.NullString
	)
	if err := row.Scan(&t.ID, &t.Title, &desc, &t.Completed, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	if desc.Valid {
		t.Description = &desc.String
	}
	return &t, nil
}

// List returns all todos, newest first. Equal creation times fall back to id
// so the order is stable.
func (r *Todos) List(ctx context.Context) ([]models.Todo, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+todoColumns+` FROM todos ORDER BY created_at DESC, id DESC`)
	if err != nil {
		logger.Error(ctx, "Repository List failed", "error", err)
		return nil, err
	}
	defer rows.Close()
	todos := make([]models.Todo, 0)
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			logger.Error(ctx, "Repository scan todo failed", "error", err)
			return nil, err
		}
		todos = append(todos, *t)
	}
	if err := rows.Err(); err != nil {
		logger.Error(ctx, "Repository List rows failed", "error", err)
		return nil, err
	}
	return todos, nil
}

// Get returns the todo with id, or nil when there is none.
func (r *Todos) Get(ctx context.Context, id int64) (*models.Todo, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+todoColumns+` FROM todos WHERE id = $1`, id)
	t, err := scanTodo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		logger.Error(ctx, "Repository Get failed", "error", err, "id", id)
		return nil, err
	}
	return t, nil
}

// Create inserts a new open todo and returns it with its assigned id.
func (r *Todos) Create(ctx context.Context, in models.CreateTodoInput) (*models.Todo, error) {
	row := r.db.QueryRowContext(ctx,
		`INSERT INTO todos (title, description, completed, created_at, updated_at)
		 VALUES ($1, $2, FALSE, now(), now()) RETURNING `+todoColumns,
		in.Title, in.Description)
	t, err := scanTodo(row)
	if err != nil {
		logger.Error(ctx, "Repository Create failed", "error", err)
		return nil, err
	}
	return t, nil
}

// Update writes the supplied fields plus updated_at and returns the row, or
// nil when no todo has that id.
func (r *Todos) Update(ctx context.Context, in models.UpdateTodoInput) (*models.Todo, error) {
	sets := make([]string, 0, 4)
	args := make([]any, 0, 5)
	set := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if title, ok := in.Title.Get(); ok {
		set("title", title)
	}
	if in.Description.IsSet() {
		set("description", in.Description.Ptr())
	}
	if completed, ok := in.Completed.Get(); ok {
		set("completed", completed)
	}
	sets = append(sets, touchUpdatedAt)
	args = append(args, in.ID)

	q := fmt.Sprintf(`UPDATE todos SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), todoColumns)
	t, err := scanTodo(r.db.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		logger.Error(ctx, "Repository Update failed", "error", err, "id", in.ID)
		return nil, err
	}
	return t, nil
}

// Delete removes a todo by id and reports whether a row was removed.
func (r *Todos) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM todos WHERE id = $1`, id)
	if err != nil {
		logger.Error(ctx, "Repository Delete failed", "error", err, "id", id)
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		logger.Error(ctx, "Repository Delete rows affected failed", "error", err, "id", id)
		return false, err
	}
	return n > 0, nil
}
