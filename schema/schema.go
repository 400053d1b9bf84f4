// Package schema turns raw request input into validated model values.
// Failures are reported as *ValidationError listing every offending field
// under its JSON or query-string name.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Skryldev/users-service/models"
)

// emailPattern is deliberately loose: something@something.something with no
// whitespace and a single @ before the domain.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("emailshape", func(fl validator.FieldLevel) bool {
		return emailPattern.MatchString(fl.Field().String())
	}); err != nil {
		panic(fmt.Sprintf("schema: register emailshape: %v", err))
	}
	return v
}

// ─────────────────────────────────────────────────────────────────────────────
// Errors
// ─────────────────────────────────────────────────────────────────────────────

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// ValidationError is returned for any input that fails to parse or validate.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+" "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func invalid(field, rule, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Rule: rule, Message: message}}}
}

// IsValidation reports whether err is (or wraps) a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ─────────────────────────────────────────────────────────────────────────────
// Request bodies
// ─────────────────────────────────────────────────────────────────────────────

// DecodeCreateUser parses and validates a create payload.
func DecodeCreateUser(r io.Reader) (models.CreateUserRequest, error) {
	var req models.CreateUserRequest
	if err := decodeStrict(r, &req); err != nil {
		return models.CreateUserRequest{}, err
	}
	if err := ValidateCreateUser(req); err != nil {
		return models.CreateUserRequest{}, err
	}
	return req, nil
}

// DecodeUpdateUser parses and validates a patch payload. Absent and null
// fields both stay nil.
func DecodeUpdateUser(r io.Reader) (models.UpdateUserRequest, error) {
	var req models.UpdateUserRequest
	if err := decodeStrict(r, &req); err != nil {
		return models.UpdateUserRequest{}, err
	}
	if err := ValidateUpdateUser(req); err != nil {
		return models.UpdateUserRequest{}, err
	}
	return req, nil
}

// ValidateCreateUser checks an already decoded create payload.
func ValidateCreateUser(req models.CreateUserRequest) error {
	return check(validate.Struct(req))
}

// ValidateUpdateUser checks an already decoded patch payload.
func ValidateUpdateUser(req models.UpdateUserRequest) error {
	return check(validate.Struct(req))
}

// decodeStrict decodes exactly one JSON object into dst. Unknown fields
// and trailing data are rejected. Read failures that are not JSON problems
// (oversized body, broken connection) are returned unchanged.
func decodeStrict(r io.Reader, dst any) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return decodeError(err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		if err != nil && !isSyntaxError(err) {
			return err
		}
		return invalid("body", "json", "must contain a single JSON object")
	}
	return nil
}

func decodeError(err error) error {
	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)
	switch {
	case errors.Is(err, io.EOF):
		return invalid("body", "required", "is required")
	case errors.Is(err, io.ErrUnexpectedEOF), errors.As(err, &syntaxErr):
		return invalid("body", "json", "is not valid JSON")
	case errors.As(err, &typeErr):
		if typeErr.Field == "" {
			return invalid("body", "type", "must be a JSON object")
		}
		return invalid(typeErr.Field, "type", "must be a "+jsonKind(typeErr.Type))
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		field := strings.Trim(strings.TrimPrefix(err.Error(), "json: unknown field "), `"`)
		return invalid(field, "unknown", "is not allowed")
	}
	return err
}

func isSyntaxError(err error) bool {
	var syntaxErr *json.SyntaxError
	return errors.As(err, &syntaxErr)
}

func jsonKind(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Bool:
		return "boolean"
	case reflect.Struct, reflect.Map:
		return "object"
	case reflect.Slice, reflect.Array:
		return "array"
	}
	return t.String()
}

// ─────────────────────────────────────────────────────────────────────────────
// Query string and path
// ─────────────────────────────────────────────────────────────────────────────

// ParseListQuery reads limit and offset from the query string. Both are
// optional; defaults are applied later by ListQuery.Resolve.
func ParseListQuery(values url.Values) (models.ListQuery, error) {
	var (
		q    models.ListQuery
		errs []FieldError
	)
	for _, p := range []struct {
		key string
		dst **int
	}{
		{"limit", &q.Limit},
		{"offset", &q.Offset},
	} {
		if !values.Has(p.key) {
			continue
		}
		n, err := strconv.Atoi(values.Get(p.key))
		if err != nil {
			errs = append(errs, FieldError{Field: p.key, Rule: "integer", Message: "must be an integer"})
			continue
		}
		*p.dst = &n
	}

	if err := check(validate.Struct(q)); err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			errs = append(errs, ve.Fields...)
		} else {
			return models.ListQuery{}, err
		}
	}
	if len(errs) > 0 {
		return models.ListQuery{}, &ValidationError{Fields: errs}
	}
	return q, nil
}

// ParseID parses a numeric path id.
func ParseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, invalid("id", "integer", "must be an integer")
	}
	return id, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// validator glue
// ─────────────────────────────────────────────────────────────────────────────

// check converts validator output into a *ValidationError.
func check(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("schema: %w", err)
	}
	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, FieldError{
			Field:   fe.Field(),
			Rule:    fe.Tag(),
			Message: message(fe),
		})
	}
	return &ValidationError{Fields: fields}
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "emailshape":
		return "must be a valid email address"
	case "min":
		if fe.Param() == "1" {
			return "must not be empty"
		}
		return "must be at least " + fe.Param() + " characters"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	}
	return "is invalid (" + fe.Tag() + ")"
}
