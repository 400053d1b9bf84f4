package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/Skryldev/users-service/repo"
	"github.com/Skryldev/users-service/schema"
)

// AppHandler is a handler that reports failure by returning an error
// instead of writing the response itself.
type AppHandler func(w http.ResponseWriter, r *http.Request) error

// MakeHandler adapts an AppHandler to http.HandlerFunc. A returned error is
// logged and translated into a JSON error response:
//
//	*HTTPError              its own code and message
//	*schema.ValidationError 400 with the offending fields
//	repo.ErrNotFound        404
//	repo.ErrEmailTaken      400
//	*http.MaxBytesError     413
//	anything else           500 with a generic message
func MakeHandler(handler AppHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		err := handler(ww, r)
		if err == nil {
			return
		}

		var (
			httpErr  *HTTPError
			valErr   *schema.ValidationError
			tooLarge *http.MaxBytesError
			status   int
			body     errorBody
		)
		ctx := r.Context()
		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(ctx),
		}

		switch {
		case errors.As(err, &httpErr):
			status = httpErr.Code
			body.Error = httpErr.Message
			level := slog.LevelWarn
			if status >= 500 {
				level = slog.LevelError
			}
			if cause := errors.Unwrap(httpErr); cause != nil && cause.Error() != httpErr.Message {
				attrs = append(attrs, "cause", cause)
			}
			slog.Log(ctx, level, "api: client error response", append(attrs, "code", status, "msg", body.Error)...)

		case errors.As(err, &valErr):
			status = http.StatusBadRequest
			body = errorBody{Error: "validation failed", Fields: valErr.Fields}
			slog.Info("api: validation failed", append(attrs, "error", err)...)

		case errors.Is(err, repo.ErrNotFound):
			status = http.StatusNotFound
			body.Error = "user not found"
			slog.Info("api: not found", append(attrs, "error", err)...)

		case errors.Is(err, repo.ErrEmailTaken):
			status = http.StatusBadRequest
			body.Error = "email already in use"
			slog.Info("api: constraint violation", append(attrs, "error", err)...)

		case errors.As(err, &tooLarge):
			status = http.StatusRequestEntityTooLarge
			body.Error = "request body too large"
			slog.Warn("api: request body too large", append(attrs, "limit", tooLarge.Limit)...)

		default:
			status = http.StatusInternalServerError
			body.Error = msgInternalServer
			slog.Error("api: unhandled internal error", append(attrs, "error", err)...)
		}

		if ww.Status() != 0 {
			slog.Warn("api: handler returned error after writing response header", append(attrs, "error", err)...)
			return
		}
		RespondWithJSON(ww, status, body)
	}
}
