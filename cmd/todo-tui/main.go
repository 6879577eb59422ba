// Command todo-tui is a terminal client for the todo API. When the API cannot
// be reached it keeps working on local demo data.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"typed-todo/internal/client"
	"typed-todo/internal/config"
	"typed-todo/internal/tui"
	"typed-todo/pkg/logger"
)

func main() {
	config.LoadEnvFile(".env")
	cfg := config.Get()

	apiURL := flag.String("api", cfg.APIURL, "todo API base URL")
	token := flag.String("token", os.Getenv("TODO_API_TOKEN"), "bearer token for write requests")
	logFile := flag.String("log", "", "write logs to this file instead of discarding them")
	flag.Parse()

	// The terminal belongs to the UI, so logs go to a file or nowhere.
	logger.SetLevel(cfg.LogLevel)
	out := os.DevNull
	if *logFile != "" {
		out = *logFile
	}
	f, err := os.OpenFile(out, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open log file:", err)
		os.Exit(1)
	}
	defer f.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx, logger.New(f))

	api := client.NewFallback(client.NewHTTPClient(*apiURL, *token), client.NewDemo(ctx))
	if err := tui.Run(ctx, api); err != nil {
		fmt.Fprintln(os.Stderr, "todo-tui:", err)
		os.Exit(1)
	}
}
