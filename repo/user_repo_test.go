package repo_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/Skryldev/users-service/db"
	"github.com/Skryldev/users-service/models"
	"github.com/Skryldev/users-service/repo"
)

// ─────────────────────────────────────────────────────────────────────────────
// Test fixture
// ─────────────────────────────────────────────────────────────────────────────

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// fakeClock returns a fixed instant until advanced.
type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestRepo(t *testing.T) (repo.UserRepository, *db.DB, *fakeClock) {
	t.Helper()

	cfg := db.Config{
		DSN:        filepath.Join(t.TempDir(), "repo.db") + "?_busy_timeout=5000",
		DriverName: "sqlite3",
	}
	if err := db.Migrate(cfg, slog.New(slog.NewTextHandler(io.Discard, nil))); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	database, err := db.Open(cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	clock := &fakeClock{now: epoch}
	return repo.NewUserRepo(database, repo.WithClock(clock.Now)), database, clock
}

func mustCreate(t *testing.T, r repo.UserRepository, name, email string) *models.User {
	t.Helper()
	u, err := r.Create(context.Background(), models.CreateUserRequest{Name: name, Email: email})
	if err != nil {
		t.Fatalf("create %s: %v", email, err)
	}
	return u
}

func ptr[T any](v T) *T { return &v }

// ─────────────────────────────────────────────────────────────────────────────
// Create
// ─────────────────────────────────────────────────────────────────────────────

func TestUserRepo_Create(t *testing.T) {
	r, _, _ := newTestRepo(t)

	u := mustCreate(t, r, "Alice", "alice@repo.com")
	if u.ID == 0 {
		t.Fatal("expected non-zero ID")
	}
	if u.Name != "Alice" || u.Email != "alice@repo.com" {
		t.Fatalf("unexpected user: %+v", u)
	}
	if !u.CreatedAt.Equal(epoch) || !u.UpdatedAt.Equal(epoch) {
		t.Fatalf("expected both timestamps at %v, got %v / %v", epoch, u.CreatedAt, u.UpdatedAt)
	}
	if u.CreatedAt.Location() != time.UTC {
		t.Fatalf("expected UTC timestamps, got %v", u.CreatedAt.Location())
	}

	second := mustCreate(t, r, "Bob", "bob@repo.com")
	if second.ID <= u.ID {
		t.Fatalf("ids must increase: %d then %d", u.ID, second.ID)
	}
}

func TestUserRepo_Create_TruncatesToMicroseconds(t *testing.T) {
	r, _, clock := newTestRepo(t)
	clock.now = epoch.Add(123456789 * time.Nanosecond)

	u := mustCreate(t, r, "Nano", "nano@repo.com")
	want := epoch.Add(123456 * time.Microsecond)
	if !u.CreatedAt.Equal(want) {
		t.Fatalf("expected %v, got %v", want, u.CreatedAt)
	}

	got, err := r.GetByID(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.CreatedAt.Equal(u.CreatedAt) {
		t.Fatalf("stored %v, returned %v", got.CreatedAt, u.CreatedAt)
	}
}

func TestUserRepo_Create_DuplicateEmail(t *testing.T) {
	r, _, _ := newTestRepo(t)
	ctx := context.Background()

	first := mustCreate(t, r, "A", "dup@repo.com")
	_, err := r.Create(ctx, models.CreateUserRequest{Name: "B", Email: "dup@repo.com"})
	if !errors.Is(err, repo.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
	if errors.Is(err, repo.ErrStorage) || errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("error must match exactly one repository sentinel: %v", err)
	}
	if !db.IsDuplicateKey(err) {
		t.Fatalf("expected the storage cause to stay wrapped: %v", err)
	}

	got, err := r.GetByID(ctx, first.ID)
	if err != nil || got.Name != "A" {
		t.Fatalf("first row affected: %+v, %v", got, err)
	}
	if n, _ := r.Count(ctx); n != 1 {
		t.Fatalf("expected 1 row, got %d", n)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// GetByID
// ─────────────────────────────────────────────────────────────────────────────

func TestUserRepo_GetByID(t *testing.T) {
	r, _, _ := newTestRepo(t)
	created := mustCreate(t, r, "Carol", "carol@repo.com")

	got, err := r.GetByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != created.ID || got.Name != created.Name || got.Email != created.Email ||
		!got.CreatedAt.Equal(created.CreatedAt) || !got.UpdatedAt.Equal(created.UpdatedAt) {
		t.Fatalf("got %+v, want %+v", got, created)
	}
}

func TestUserRepo_NotFound(t *testing.T) {
	r, _, _ := newTestRepo(t)
	ctx := context.Background()

	if _, err := r.GetByID(ctx, 99999); !errors.Is(err, repo.ErrNotFound) {
		t.Errorf("get: expected ErrNotFound, got %v", err)
	}
	if _, err := r.Update(ctx, 99999, models.UpdateUserRequest{Name: ptr("X")}); !errors.Is(err, repo.ErrNotFound) {
		t.Errorf("update: expected ErrNotFound, got %v", err)
	}
	if _, err := r.Update(ctx, 99999, models.UpdateUserRequest{}); !errors.Is(err, repo.ErrNotFound) {
		t.Errorf("empty update: expected ErrNotFound, got %v", err)
	}
	if err := r.Delete(ctx, 99999); !errors.Is(err, repo.ErrNotFound) {
		t.Errorf("delete: expected ErrNotFound, got %v", err)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Update
// ─────────────────────────────────────────────────────────────────────────────

func TestUserRepo_Update_Name(t *testing.T) {
	r, _, clock := newTestRepo(t)
	ctx := context.Background()
	created := mustCreate(t, r, "Frank", "frank@repo.com")

	clock.Advance(time.Minute)
	updated, err := r.Update(ctx, created.ID, models.UpdateUserRequest{Name: ptr("Franklin")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "Franklin" || updated.Email != "frank@repo.com" {
		t.Fatalf("unexpected user after update: %+v", updated)
	}
	if !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Fatalf("createdAt changed: %v -> %v", created.CreatedAt, updated.CreatedAt)
	}
	if !updated.UpdatedAt.After(created.UpdatedAt) {
		t.Fatalf("updatedAt not advanced: %v", updated.UpdatedAt)
	}
}

func TestUserRepo_Update_BothFields(t *testing.T) {
	r, _, _ := newTestRepo(t)
	created := mustCreate(t, r, "Gina", "gina@repo.com")

	updated, err := r.Update(context.Background(), created.ID, models.UpdateUserRequest{
		Name:  ptr("Georgina"),
		Email: ptr("georgina@repo.com"),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "Georgina" || updated.Email != "georgina@repo.com" {
		t.Fatalf("unexpected user: %+v", updated)
	}
}

func TestUserRepo_Update_EmptyPatchTouchesRow(t *testing.T) {
	r, _, clock := newTestRepo(t)
	ctx := context.Background()
	created := mustCreate(t, r, "Grace", "grace@repo.com")

	clock.Advance(time.Second)
	updated, err := r.Update(ctx, created.ID, models.UpdateUserRequest{})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != created.Name || updated.Email != created.Email {
		t.Fatalf("fields changed: %+v", updated)
	}
	if !updated.UpdatedAt.Equal(epoch.Add(time.Second)) {
		t.Fatalf("expected updatedAt %v, got %v", epoch.Add(time.Second), updated.UpdatedAt)
	}
}

func TestUserRepo_Update_ClockStepsBack(t *testing.T) {
	r, _, clock := newTestRepo(t)
	ctx := context.Background()
	created := mustCreate(t, r, "Hal", "hal@repo.com")

	clock.Advance(-time.Hour)
	first, err := r.Update(ctx, created.ID, models.UpdateUserRequest{Name: ptr("Hank")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if want := created.UpdatedAt.Add(time.Microsecond); !first.UpdatedAt.Equal(want) {
		t.Fatalf("expected updatedAt %v, got %v", want, first.UpdatedAt)
	}
	if !first.UpdatedAt.After(first.CreatedAt) {
		t.Fatalf("updatedAt %v not after createdAt %v", first.UpdatedAt, first.CreatedAt)
	}

	// Same instant again: still strictly increasing.
	second, err := r.Update(ctx, created.ID, models.UpdateUserRequest{})
	if err != nil {
		t.Fatalf("second update: %v", err)
	}
	if !second.UpdatedAt.After(first.UpdatedAt) {
		t.Fatalf("updatedAt not advanced: %v -> %v", first.UpdatedAt, second.UpdatedAt)
	}
}

func TestUserRepo_Update_DuplicateEmail(t *testing.T) {
	r, _, _ := newTestRepo(t)
	ctx := context.Background()
	mustCreate(t, r, "A", "a@repo.com")
	b := mustCreate(t, r, "B", "b@repo.com")

	_, err := r.Update(ctx, b.ID, models.UpdateUserRequest{Email: ptr("a@repo.com")})
	if !errors.Is(err, repo.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
	got, _ := r.GetByID(ctx, b.ID)
	if got.Email != "b@repo.com" {
		t.Fatalf("email changed despite failure: %q", got.Email)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Delete
// ─────────────────────────────────────────────────────────────────────────────

func TestUserRepo_Delete(t *testing.T) {
	r, _, _ := newTestRepo(t)
	ctx := context.Background()
	u := mustCreate(t, r, "Heidi", "heidi@repo.com")

	if err := r.Delete(ctx, u.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := r.GetByID(ctx, u.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := r.Delete(ctx, u.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("second delete: expected ErrNotFound, got %v", err)
	}

	// ids are never reused
	next := mustCreate(t, r, "Ivan", "ivan@repo.com")
	if next.ID <= u.ID {
		t.Fatalf("id %d reused after delete of %d", next.ID, u.ID)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// List / Count
// ─────────────────────────────────────────────────────────────────────────────

func TestUserRepo_List(t *testing.T) {
	r, _, clock := newTestRepo(t)
	ctx := context.Background()

	for _, name := range []string{"A", "B", "C", "D", "E"} {
		mustCreate(t, r, name, name+"@list.com")
		clock.Advance(time.Second)
	}

	tests := []struct {
		limit, offset int
		want          string
	}{
		{2, 0, "AB"},
		{2, 2, "CD"},
		{10, 0, "ABCDE"},
		{10, 4, "E"},
		{10, 5, ""},
	}
	for _, tc := range tests {
		users, err := r.List(ctx, tc.limit, tc.offset)
		if err != nil {
			t.Fatalf("list(%d,%d): %v", tc.limit, tc.offset, err)
		}
		got := ""
		for _, u := range users {
			got += u.Name
		}
		if got != tc.want {
			t.Errorf("list(%d,%d) = %q, want %q", tc.limit, tc.offset, got, tc.want)
		}
	}
}

func TestUserRepo_List_SameTimestampOrdersByID(t *testing.T) {
	r, _, _ := newTestRepo(t)

	for _, name := range []string{"X", "Y", "Z"} {
		mustCreate(t, r, name, name+"@tie.com")
	}
	users, err := r.List(context.Background(), 10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for i := 1; i < len(users); i++ {
		if users[i].ID <= users[i-1].ID {
			t.Fatalf("rows not ordered by id on equal createdAt: %d before %d", users[i-1].ID, users[i].ID)
		}
	}
}

func TestUserRepo_List_Empty(t *testing.T) {
	r, _, _ := newTestRepo(t)

	users, err := r.List(context.Background(), 10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if users == nil || len(users) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", users)
	}
}

func TestUserRepo_Count(t *testing.T) {
	r, _, _ := newTestRepo(t)
	ctx := context.Background()

	n, err := r.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0, got %d", n)
	}

	for i := 0; i < 4; i++ {
		mustCreate(t, r, "U", "cnt"+string(rune('a'+i))+"@repo.com")
	}

	n, _ = r.Count(ctx)
	if n != 4 {
		t.Fatalf("expected 4, got %d", n)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Transactions and failures
// ─────────────────────────────────────────────────────────────────────────────

func TestUserRepo_InsideTransaction(t *testing.T) {
	_, database, _ := newTestRepo(t)
	ctx := context.Background()

	var createdID int64
	err := database.ExecTx(ctx, func(tx *db.Tx) error {
		txRepo := repo.NewUserRepo(tx)
		u, err := txRepo.Create(ctx, models.CreateUserRequest{Name: "TxUser", Email: "tx@repo.com"})
		if err != nil {
			return err
		}
		createdID = u.ID
		_, err = txRepo.Update(ctx, u.ID, models.UpdateUserRequest{Name: ptr("TxUser2")})
		return err
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}

	u, err := repo.NewUserRepo(database).GetByID(ctx, createdID)
	if err != nil {
		t.Fatalf("post-tx get: %v", err)
	}
	if u.Name != "TxUser2" {
		t.Fatalf("unexpected name: %q", u.Name)
	}
}

func TestUserRepo_StorageFailure(t *testing.T) {
	r, database, _ := newTestRepo(t)
	_ = database.Close()

	_, err := r.List(context.Background(), 10, 0)
	if !errors.Is(err, repo.ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
}
