// Seed adds todos to the database in batches. Run from project root:
//
//	go run ./scripts/seed -n 10000
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"typed-todo/internal/config"
	"typed-todo/internal/database"
)

func main() {
	config.LoadEnvFile(".env")
	total := flag.Int("n", 10_000, "number of todos to insert")
	batchSize := flag.Int("batch", 500, "rows per INSERT")
	flag.Parse()

	ctx := context.Background()
	db, err := database.Open(ctx, config.Get())
	if err != nil {
		fmt.Fprintln(os.Stderr, "DB connection failed:", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		fmt.Fprintln(os.Stderr, "Schema failed:", err)
		os.Exit(1)
	}

	start := time.Now()
	inserted := 0
	for inserted < *total {
		n := min(*batchSize, *total-inserted)
		args := make([]any, 0, n*3)
		placeholders := make([]string, 0, n)
		for i := 0; i < n; i++ {
			num := inserted + i + 1
			placeholders = append(placeholders, fmt.Sprintf("($%d,$%d,$%d,NOW(),NOW())", 3*i+1, 3*i+2, 3*i+3))
			args = append(args,
				fmt.Sprintf("Todo %d", num),
				fmt.Sprintf("Description for todo %d", num),
				num%5 == 0,
			)
		}
		q := `INSERT INTO todos (title, description, completed, created_at, updated_at) VALUES ` +
			strings.Join(placeholders, ",")
		if _, err := db.ExecContext(ctx, q, args...); err != nil {
			fmt.Fprintln(os.Stderr, "Insert failed:", err)
			os.Exit(1)
		}
		inserted += n
		fmt.Printf("\rInserted %d / %d", inserted, *total)
	}

	fmt.Printf("\nDone: %d todos in %v\n", *total, time.Since(start))
}
