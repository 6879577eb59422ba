package routes

import (
	"database/sql"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"typed-todo/internal/controller"
	"typed-todo/internal/middleware"
	"typed-todo/internal/service"
)

// Deps are the collaborators the router hands to handlers.
type Deps struct {
	Service        service.TodoServiceInterface
	DB             *sql.DB
	JWTSecret      string
	AllowedOrigins []string
}

func Router(d Deps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORSMiddleware(d.AllowedOrigins))

	// Health for load balancers and K8s probes
	router.GET("/health", controller.Health)
	router.GET("/ready", controller.Ready(d.DB))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	todos := controller.NewTodoController(d.Service)

	// Public: no auth
	router.GET("/todos", todos.ListTodos)
	router.GET("/todos/:id", todos.GetTodo)

	// Writes need a token only when a secret is configured.
	api := router.Group("")
	if d.JWTSecret != "" {
		api.Use(middleware.AuthMiddleware(d.JWTSecret))
	}
	{
		api.POST("/todos", todos.CreateTodo)
		api.PATCH("/todos/:id", todos.UpdateTodo)
		api.PUT("/todos/:id", todos.UpdateTodo)
		api.DELETE("/todos/:id", todos.DeleteTodo)
	}

	return router
}
