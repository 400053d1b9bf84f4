package db_test

import (
	"context"
	"testing"

	"github.com/Skryldev/users-service/db"
)

func TestMigrator_Lifecycle(t *testing.T) {
	cfg := testConfig(t)
	m, err := db.NewMigrator(cfg, quietLogger())
	if err != nil {
		t.Fatalf("NewMigrator: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })

	if v, dirty, err := m.Version(); err != nil || v != 0 || dirty {
		t.Fatalf("fresh database: version=%d dirty=%v err=%v", v, dirty, err)
	}

	if err := m.Up(); err != nil {
		t.Fatalf("Up: %v", err)
	}
	if err := m.Up(); err != nil {
		t.Fatalf("second Up must be a no-op: %v", err)
	}
	if v, _, _ := m.Version(); v != 1 {
		t.Fatalf("expected version 1, got %d", v)
	}

	if err := m.Down(0); err == nil {
		t.Fatal("expected error for zero steps")
	}
	if err := m.Down(1); err != nil {
		t.Fatalf("Down: %v", err)
	}
	if v, _, _ := m.Version(); v != 0 {
		t.Fatalf("expected version 0 after down, got %d", v)
	}

	if err := m.Force(1); err != nil {
		t.Fatalf("Force: %v", err)
	}
	if v, dirty, _ := m.Version(); v != 1 || dirty {
		t.Fatalf("expected clean version 1 after force, got %d dirty=%v", v, dirty)
	}
}

func TestMigrate_CreatesUsersTable(t *testing.T) {
	cfg := testConfig(t)
	if err := db.Migrate(cfg, quietLogger()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if err := db.Migrate(cfg, quietLogger()); err != nil {
		t.Fatalf("Migrate must be idempotent: %v", err)
	}

	d, err := db.Open(cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer d.Close()

	var n int
	err = d.QueryRow(context.Background(),
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'users'`).Scan(&n)
	if err != nil || n != 1 {
		t.Fatalf("users table missing: n=%d err=%v", n, err)
	}
}

func TestNewMigrator_UnknownDriver(t *testing.T) {
	if _, err := db.NewMigrator(db.Config{DriverName: "oracle", DSN: "x"}, nil); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
