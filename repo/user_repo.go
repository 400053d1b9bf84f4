package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Skryldev/users-service/db"
	"github.com/Skryldev/users-service/models"
)

// ─────────────────────────────────────────────────────────────────────────────
// Errors
// ─────────────────────────────────────────────────────────────────────────────

// Every error returned by UserRepository matches exactly one of these with
// errors.Is. The storage cause stays wrapped for logging.
var (
	ErrNotFound   = errors.New("repo/user: user not found")
	ErrEmailTaken = errors.New("repo/user: email already in use")
	ErrStorage    = errors.New("repo/user: storage failure")
)

// classify converts a storage error into one of the repository sentinels.
func classify(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrEmailTaken), errors.Is(err, ErrStorage):
		return err
	case db.IsNotFound(err):
		return fmt.Errorf("%w: %s: %w", ErrNotFound, op, err)
	case db.IsDuplicateKey(err):
		return fmt.Errorf("%w: %s: %w", ErrEmailTaken, op, err)
	default:
		return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// UserRepository
// ─────────────────────────────────────────────────────────────────────────────

// UserRepository defines the contract for user persistence operations.
type UserRepository interface {
	List(ctx context.Context, limit, offset int) ([]*models.User, error)
	Count(ctx context.Context) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	Create(ctx context.Context, req models.CreateUserRequest) (*models.User, error)
	Update(ctx context.Context, id int64, req models.UpdateUserRequest) (*models.User, error)
	Delete(ctx context.Context, id int64) error
}

// Option configures a userRepo.
type Option func(*userRepo)

// WithClock overrides the time source used for created_at/updated_at.
func WithClock(now func() time.Time) Option {
	return func(r *userRepo) { r.now = now }
}

type userRepo struct {
	q   db.Querier
	now func() time.Time
}

// NewUserRepo returns a UserRepository backed by q.
// q can be a *db.DB or *db.Tx.
func NewUserRepo(q db.Querier, opts ...Option) UserRepository {
	r := &userRepo{q: q, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

const userColumns = "id, name, email, created_at, updated_at"

// timestamp returns the current time in the precision every supported
// engine stores, so values handed back equal what is persisted.
func (r *userRepo) timestamp() time.Time {
	return r.now().UTC().Truncate(time.Microsecond)
}

// ph returns the dialect's n-th bind parameter.
func ph(q db.Querier, n int) string {
	return q.Dialect().Placeholder(n)
}

// ─────────────────────────────────────────────────────────────────────────────
// List / Count
// ─────────────────────────────────────────────────────────────────────────────

// List returns a window of users ordered by creation time. An empty table
// yields an empty, non-nil slice.
func (r *userRepo) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM   users
		ORDER  BY created_at, id
		LIMIT  %s OFFSET %s`, userColumns, ph(r.q, 1), ph(r.q, 2))

	rows, err := r.q.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, classify("list", err)
	}
	defer rows.Close()

	users := make([]*models.User, 0, max(0, min(limit, 100)))
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, classify("list: scan", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list", err)
	}
	return users, nil
}

// Count returns the total number of users.
func (r *userRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, classify("count", err)
	}
	return n, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// GetByID
// ─────────────────────────────────────────────────────────────────────────────

// GetByID returns a single user by primary key, or ErrNotFound.
func (r *userRepo) GetByID(ctx context.Context, id int64) (*models.User, error) {
	u, err := getByID(ctx, r.q, id)
	return u, classify("get", err)
}

func getByID(ctx context.Context, q db.Querier, id int64) (*models.User, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM   users
		WHERE  id = %s`, userColumns, ph(q, 1))
	return scanUser(q.QueryRow(ctx, query, id))
}

// ─────────────────────────────────────────────────────────────────────────────
// Create
// ─────────────────────────────────────────────────────────────────────────────

// Create inserts a user and returns the persisted record including the
// database-assigned id. created_at and updated_at are identical.
// A duplicate email yields ErrEmailTaken.
func (r *userRepo) Create(ctx context.Context, req models.CreateUserRequest) (*models.User, error) {
	now := r.timestamp()
	insert := fmt.Sprintf(`
		INSERT INTO users (name, email, created_at, updated_at)
		VALUES (%s, %s, %s, %s)`,
		ph(r.q, 1), ph(r.q, 2), ph(r.q, 3), ph(r.q, 4))
	args := []any{req.Name, req.Email, now, now}

	if r.q.Dialect().SupportsReturning() {
		u, err := scanUser(r.q.QueryRow(ctx, insert+"\n\t\tRETURNING "+userColumns, args...))
		return u, classify("create", err)
	}

	var created *models.User
	err := db.WithTx(ctx, r.q, func(q db.Querier) error {
		res, err := q.Exec(ctx, insert, args...)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		created, err = getByID(ctx, q, id)
		return err
	})
	if err != nil {
		return nil, classify("create", err)
	}
	return created, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Update
// ─────────────────────────────────────────────────────────────────────────────

// Update applies a partial update. Only non-nil fields in req are written;
// updated_at is refreshed on every call, including an empty patch.
//
// The row is read first in the same transaction so the new updated_at is
// always strictly after the stored one, even when the clock steps back or
// two writes land in the same microsecond.
func (r *userRepo) Update(ctx context.Context, id int64, req models.UpdateUserRequest) (*models.User, error) {
	var updated *models.User
	err := db.WithTx(ctx, r.q, func(q db.Querier) error {
		current, err := getByID(ctx, q, id)
		if err != nil {
			return err
		}

		query, args := updateQuery(q, id, req, nextUpdatedAt(r.timestamp(), current.UpdatedAt))
		if q.Dialect().SupportsReturning() {
			updated, err = scanUser(q.QueryRow(ctx, query+"\n\t\tRETURNING "+userColumns, args...))
			return err
		}

		res, err := q.Exec(ctx, query, args...)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return db.ErrNotFound
		}
		updated, err = getByID(ctx, q, id)
		return err
	})
	if err != nil {
		return nil, classify("update", err)
	}
	return updated, nil
}

func updateQuery(q db.Querier, id int64, req models.UpdateUserRequest, at time.Time) (string, []any) {
	setClauses := make([]string, 0, 3)
	args := make([]any, 0, 4)

	if req.Name != nil {
		args = append(args, *req.Name)
		setClauses = append(setClauses, "name = "+ph(q, len(args)))
	}
	if req.Email != nil {
		args = append(args, *req.Email)
		setClauses = append(setClauses, "email = "+ph(q, len(args)))
	}
	args = append(args, at)
	setClauses = append(setClauses, "updated_at = "+ph(q, len(args)))

	args = append(args, id)
	query := fmt.Sprintf(`
		UPDATE users
		SET    %s
		WHERE  id = %s`,
		strings.Join(setClauses, ", "), ph(q, len(args)))
	return query, args
}

// nextUpdatedAt returns now, or one microsecond past prev when now does not
// move forward.
func nextUpdatedAt(now, prev time.Time) time.Time {
	if now.After(prev) {
		return now
	}
	return prev.Add(time.Microsecond)
}

// ─────────────────────────────────────────────────────────────────────────────
// Delete
// ─────────────────────────────────────────────────────────────────────────────

// Delete removes a user by id. Returns ErrNotFound if no row was deleted.
func (r *userRepo) Delete(ctx context.Context, id int64) error {
	query := "DELETE FROM users WHERE id = " + ph(r.q, 1)
	res, err := r.q.Exec(ctx, query, id)
	if err != nil {
		return classify("delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classify("delete", err)
	}
	if n == 0 {
		return classify("delete", db.ErrNotFound)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// scanUser
// ─────────────────────────────────────────────────────────────────────────────

type scanner interface {
	Scan(dest ...any) error
}

// scanUser scans one row selected with userColumns.
func scanUser(s scanner) (*models.User, error) {
	u := &models.User{}
	if err := s.Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return u, nil
}

var _ UserRepository = (*userRepo)(nil)
