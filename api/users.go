package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Skryldev/users-service/models"
	"github.com/Skryldev/users-service/repo"
	"github.com/Skryldev/users-service/schema"
)

// maxBodyBytes caps request bodies read by the user handlers.
const maxBodyBytes = 1 << 20

// UserHandler serves the /users resource.
type UserHandler struct {
	Repo   repo.UserRepository
	logger *slog.Logger
}

func NewUserHandler(r repo.UserRepository, logger *slog.Logger) *UserHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserHandler{Repo: r, logger: logger}
}

// HandleList serves GET /users?limit=&offset=. The total row count is
// reported in X-Total-Count.
func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) error {
	q, err := schema.ParseListQuery(r.URL.Query())
	if err != nil {
		return err
	}
	limit, offset := q.Resolve()

	users, err := h.Repo.List(r.Context(), limit, offset)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	total, err := h.Repo.Count(r.Context())
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if users == nil {
		users = []*models.User{}
	}

	w.Header().Set(HeaderTotalCount, strconv.FormatInt(total, 10))
	RespondWithJSON(w, http.StatusOK, users)
	return nil
}

// HandleGet serves GET /users/{id}.
func (h *UserHandler) HandleGet(w http.ResponseWriter, r *http.Request) error {
	id, err := schema.ParseID(chi.URLParam(r, paramID))
	if err != nil {
		return err
	}

	user, err := h.Repo.GetByID(r.Context(), id)
	if err != nil {
		return fmt.Errorf("get user %d: %w", id, err)
	}

	RespondWithJSON(w, http.StatusOK, user)
	return nil
}

// HandleCreate serves POST /users.
func (h *UserHandler) HandleCreate(w http.ResponseWriter, r *http.Request) error {
	req, err := schema.DecodeCreateUser(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return err
	}

	user, err := h.Repo.Create(r.Context(), req)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	h.logger.InfoContext(r.Context(), "api: user created", "id", user.ID)

	w.Header().Set(HeaderLocation, usersBasePath+"/"+strconv.FormatInt(user.ID, 10))
	RespondWithJSON(w, http.StatusCreated, user)
	return nil
}

// HandleUpdate serves PATCH /users/{id}.
func (h *UserHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) error {
	id, err := schema.ParseID(chi.URLParam(r, paramID))
	if err != nil {
		return err
	}
	req, err := schema.DecodeUpdateUser(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return err
	}

	user, err := h.Repo.Update(r.Context(), id, req)
	if err != nil {
		return fmt.Errorf("update user %d: %w", id, err)
	}
	h.logger.InfoContext(r.Context(), "api: user updated", "id", id, "empty_patch", req.Empty())

	RespondWithJSON(w, http.StatusOK, user)
	return nil
}

// HandleDelete serves DELETE /users/{id}.
func (h *UserHandler) HandleDelete(w http.ResponseWriter, r *http.Request) error {
	id, err := schema.ParseID(chi.URLParam(r, paramID))
	if err != nil {
		return err
	}

	if err := h.Repo.Delete(r.Context(), id); err != nil {
		return fmt.Errorf("delete user %d: %w", id, err)
	}
	h.logger.InfoContext(r.Context(), "api: user deleted", "id", id)

	w.WriteHeader(http.StatusNoContent)
	return nil
}
