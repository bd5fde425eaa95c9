// Command migrate manages the gurukul-api database schema.
//
//	migrate [flags] up      apply pending migrations
//	migrate [flags] down    roll back the latest migration
//	migrate [flags] seed    apply pending seed files
//	migrate [flags] status  list applied migrations
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"gurukul.org/internal/migrate"
)

func main() {
	log.SetFlags(0)
	_ = godotenv.Load()

	var (
		dsn      = flag.String("dsn", os.Getenv("GURUKUL_PG_DSN"), "PostgreSQL DSN (defaults to GURUKUL_PG_DSN)")
		sqlDir   = flag.String("migrations", "ops/migrations/sql", "migrations directory")
		seedsDir = flag.String("seeds", "ops/migrations/seeds", "seeds directory")
		timeout  = flag.Duration("timeout", 30*time.Second, "overall timeout")
	)
	flag.Parse()

	if err := run(flag.Arg(0), *dsn, *sqlDir, *seedsDir, *timeout); err != nil {
		log.Fatalf("migrate: %v", err)
	}
}

func run(command, dsn, sqlDir, seedsDir string, timeout time.Duration) error {
	if dsn == "" {
		return fmt.Errorf("no DSN: set GURUKUL_PG_DSN or pass -dsn")
	}
	if command == "" {
		return fmt.Errorf("no command: want up, down, seed or status")
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	runner := migrate.New(db, sqlDir, seedsDir)

	switch command {
	case "up":
		return runner.Up(ctx)
	case "down":
		return runner.Down(ctx)
	case "seed":
		return runner.Seed(ctx)
	case "status":
		applied, err := runner.Applied(ctx)
		if err != nil {
			return err
		}
		if len(applied) == 0 {
			fmt.Println("no migrations applied")
			return nil
		}
		for _, name := range applied {
			fmt.Println(name)
		}
		return nil
	default:
		return fmt.Errorf("unknown command %q: want up, down, seed or status", command)
	}
}
