// Command migrate manages the users schema outside the server process.
// It reads the same environment as the server and applies the migrations
// embedded in package db.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/Skryldev/users-service/config"
	"github.com/Skryldev/users-service/db"
)

func main() {
	yes := flag.Bool("yes", false, "skip the confirmation prompt for drop")
	flag.Usage = usage
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fatalf("configuration: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	m, err := db.NewMigrator(cfg.DB, logger)
	if err != nil {
		fatalf("migration init failed: %v", err)
	}
	defer func() {
		if err := m.Close(); err != nil {
			slog.Warn("migrations: close failed", "error", err)
		}
	}()

	if err := run(m, args, *yes); err != nil {
		_ = m.Close()
		fatalf("%s failed: %v", args[0], err)
	}
}

func run(m *db.Migrator, args []string, yes bool) error {
	switch command := args[0]; command {
	case "up":
		if err := m.Up(); err != nil {
			return err
		}
		slog.Info("migrations: up completed")

	case "down":
		steps := 1
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n < 1 {
				return fmt.Errorf("invalid steps argument %q", args[1])
			}
			steps = n
		}
		if err := m.Down(steps); err != nil {
			return err
		}
		slog.Info("migrations: down completed", "steps", steps)

	case "version":
		v, dirty, err := m.Version()
		if err != nil {
			return err
		}
		fmt.Printf("version: %d  dirty: %v\n", v, dirty)

	case "force":
		if len(args) < 2 {
			return fmt.Errorf("version argument required")
		}
		v, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid version %q", args[1])
		}
		if err := m.Force(v); err != nil {
			return err
		}
		slog.Info("migrations: forced", "version", v)

	case "drop":
		if !yes && !confirm("WARNING: drop will destroy all tables. Type 'yes' to confirm:") {
			fmt.Println("aborted")
			return nil
		}
		if err := m.Drop(); err != nil {
			return err
		}
		slog.Info("migrations: all tables dropped")

	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
	return nil
}

func confirm(prompt string) bool {
	fmt.Fprintln(os.Stderr, prompt)
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	return strings.TrimSpace(line) == "yes"
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: migrate [-yes] <command> [args]

Commands:
  up           Apply all pending migrations
  down [N]     Rollback N migrations (default: 1)
  version      Print current migration version
  force <V>    Force set migration version (bypass dirty state)
  drop         Drop all tables (dev only)

Environment (also read from .env):
  DB_DRIVER      sqlite3 (default), postgres or mysql
  DATABASE_PATH  SQLite file (default: database.db)
  DATABASE_URL   Full DSN, overrides everything else
  DB_HOST, DB_PORT, DB_USER, DB_PASSWORD, DB_NAME, DB_SSLMODE`)
}

func fatalf(format string, args ...any) {
	slog.Error(fmt.Sprintf(format, args...))
	os.Exit(1)
}
