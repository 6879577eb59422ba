package models

import "time"

// Todo represents a todo item.
type Todo struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateTodoInput is accepted by the create operation. A completed flag is
// not part of it: new todos always start open.
type CreateTodoInput struct {
	Title       string  `json:"title" validate:"required"`
	Description *string `json:"description"`
}

// GetTodoInput addresses a single todo.
type GetTodoInput struct {
	ID int64 `json:"id"`
}

// DeleteTodoInput addresses the todo to remove.
type DeleteTodoInput struct {
	ID int64 `json:"id"`
}

// UpdateTodoInput carries a partial update. Only supplied fields are written.
type UpdateTodoInput struct {
	ID          int64         `json:"id"`
	Title       Field[string] `json:"title,omitzero"`
	Description Field[string] `json:"description,omitzero"`
	Completed   Field[bool]   `json:"completed,omitzero"`
}

// Empty reports whether no updatable field was supplied.
func (in UpdateTodoInput) Empty() bool {
	return !in.Title.IsSet() && !in.Description.IsSet() && !in.Completed.IsSet()
}

// Todo event actions.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// TodoEvent is the change notification published after a successful write.
type TodoEvent struct {
	EventID    string    `json:"event_id"`
	Action     string    `json:"action"`
	TodoID     int64     `json:"todo_id"`
	OccurredAt time.Time `json:"occurred_at"`
}
