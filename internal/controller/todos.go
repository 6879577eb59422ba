package controller

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"typed-todo/internal/models"
	"typed-todo/internal/service"
	"typed-todo/pkg/logger"
)

// TodoController translates HTTP requests into todo operations.
type TodoController struct {
	service service.TodoServiceInterface
}

func NewTodoController(s service.TodoServiceInterface) *TodoController {
	return &TodoController{service: s}
}

// ListTodos returns every todo, newest first. The body is always an array.
func (tc *TodoController) ListTodos(c *gin.Context) {
	todos, err := tc.service.ListTodos(c.Request.Context())
	if err != nil {
		tc.fail(c, "ListTodos", err)
		return
	}
	if todos == nil {
		todos = []models.Todo{}
	}
	c.JSON(http.StatusOK, todos)
}

// GetTodo returns the todo, or JSON null when it does not exist.
func (tc *TodoController) GetTodo(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	todo, err := tc.service.GetTodo(c.Request.Context(), models.GetTodoInput{ID: id})
	if err != nil {
		tc.fail(c, "GetTodo", err)
		return
	}
	c.JSON(http.StatusOK, todo)
}

func (tc *TodoController) CreateTodo(c *gin.Context) {
	var in models.CreateTodoInput
	if !bindJSON(c, &in) {
		return
	}
	todo, err := tc.service.CreateTodo(c.Request.Context(), in)
	if err != nil {
		tc.fail(c, "CreateTodo", err)
		return
	}
	c.JSON(http.StatusCreated, todo)
}

// UpdateTodo applies a partial update. The id in the path wins over any id
// in the body.
func (tc *TodoController) UpdateTodo(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var in models.UpdateTodoInput
	if !bindJSON(c, &in) {
		return
	}
	in.ID = id
	todo, err := tc.service.UpdateTodo(c.Request.Context(), in)
	if err != nil {
		tc.fail(c, "UpdateTodo", err)
		return
	}
	c.JSON(http.StatusOK, todo)
}

func (tc *TodoController) DeleteTodo(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	removed, err := tc.service.DeleteTodo(c.Request.Context(), models.DeleteTodoInput{ID: id})
	if err != nil {
		tc.fail(c, "DeleteTodo", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": removed})
}

func (tc *TodoController) fail(c *gin.Context, op string, err error) {
	ctx := c.Request.Context()
	if errors.Is(err, service.ErrInvalidInput) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}
	if ctx.Err() != nil {
		// The client is gone; nobody reads a response.
		logger.Debug(ctx, op+" abandoned by client", "error", err, "cause", ctx.Err())
		return
	}
	logger.Error(ctx, op+" failed", "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid todo id"})
		return 0, false
	}
	return id, true
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return false
	}
	return true
}

// Health returns 200 if the process is alive. Used by load balancers.
func Health(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

// Ready returns 200 if the database answers a ping.
func Ready(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if db == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "database unavailable"})
			return
		}
		if err := db.PingContext(ctx); err != nil {
			logger.Warn(ctx, "Readiness ping failed", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "database ping failed"})
			return
		}
		c.String(http.StatusOK, "OK")
	}
}
