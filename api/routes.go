package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	usersBasePath = "/users"
	healthPath    = "/healthz"
	openAPIPath   = "/openapi.json"
	docsPath      = "/docs"
	paramID       = "id"
)

// Pinger reports whether the storage backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterConfig tunes the middleware stack.
type RouterConfig struct {
	Logger *slog.Logger

	// RequestTimeout bounds every request's context. Zero disables it.
	RequestTimeout time.Duration
}

// NewRouter wires the user routes and the health check behind the common
// middleware stack.
func NewRouter(users *UserHandler, health Pinger, cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(RequestID)
	r.Use(AccessLog(logger))
	r.Use(middleware.Recoverer)
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}

	r.NotFound(MakeHandler(func(http.ResponseWriter, *http.Request) error {
		return ErrNotFound("")
	}))
	r.MethodNotAllowed(MakeHandler(func(http.ResponseWriter, *http.Request) error {
		return ErrMethodNotAllowed("")
	}))

	r.Route(usersBasePath, func(r chi.Router) {
		r.Get("/", MakeHandler(users.HandleList))
		r.Post("/", MakeHandler(users.HandleCreate))
		r.Get(pathWithParam("", paramID), MakeHandler(users.HandleGet))
		r.Patch(pathWithParam("", paramID), MakeHandler(users.HandleUpdate))
		r.Delete(pathWithParam("", paramID), MakeHandler(users.HandleDelete))
	})

	r.Get(healthPath, MakeHandler(handleHealthCheck(health)))
	r.Get(openAPIPath, MakeHandler(handleOpenAPI))
	r.Get(docsPath, MakeHandler(handleDocs))

	return r
}

func pathWithParam(basePath string, paramName string) string {
	return basePath + "/{" + paramName + "}"
}

func handleHealthCheck(p Pinger) AppHandler {
	return func(w http.ResponseWriter, r *http.Request) error {
		if err := p.Ping(r.Context()); err != nil {
			return ErrServiceUnavailableWrap("database unavailable", err)
		}
		RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return nil
	}
}
