package models

import "time"

// User represents a row in the "users" table.
// Fields map 1-to-1 with columns.
type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CreateUserRequest holds the fields required to create a new user.
// Keeping input types separate from the domain model prevents accidental
// mass-assignment of id and timestamps.
type CreateUserRequest struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,emailshape"`
}

// UpdateUserRequest is a patch. Fields are pointers so absent (or null)
// fields are left untouched.
type UpdateUserRequest struct {
	Name  *string `json:"name,omitempty" validate:"omitempty,min=1"`
	Email *string `json:"email,omitempty" validate:"omitempty,emailshape"`
}

// Empty reports whether the patch sets no field.
func (r UpdateUserRequest) Empty() bool {
	return r.Name == nil && r.Email == nil
}

// Defaults applied to a ListQuery when the caller leaves a value out.
const (
	DefaultListLimit  = 10
	DefaultListOffset = 0
)

// ListQuery is the pagination window for listing users.
type ListQuery struct {
	Limit  *int `json:"limit,omitempty" validate:"omitempty,gt=0"`
	Offset *int `json:"offset,omitempty" validate:"omitempty,gte=0"`
}

// Resolve returns the window with defaults filled in.
func (q ListQuery) Resolve() (limit, offset int) {
	limit, offset = DefaultListLimit, DefaultListOffset
	if q.Limit != nil {
		limit = *q.Limit
	}
	if q.Offset != nil {
		offset = *q.Offset
	}
	return limit, offset
}
