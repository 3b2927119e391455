package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/internal"
)

// UserAdmin is the user management surface mounted under /api/users.
// *userstore.Store satisfies it.
type UserAdmin interface {
	CreateUser(ctx context.Context, in goSession.CreateUserInput) (goSession.UserRecord, error)
	GetUserByID(ctx context.Context, id int64) (goSession.UserRecord, error)
	GetUserByUsername(ctx context.Context, username string) (goSession.UserRecord, error)
	GetUserByEmail(ctx context.Context, email string) (goSession.UserRecord, error)
	ListUsers(ctx context.Context, limit, offset int) ([]goSession.UserRecord, error)
	UpdateUser(ctx context.Context, id int64, in goSession.UserUpdate) (goSession.UserRecord, error)
	DeleteUser(ctx context.Context, id int64) error
}

// UserResponse is a user as returned by /api/users. Password hashes and
// client secrets never leave the store.
type UserResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Enabled  bool   `json:"enabled"`
}

func newUserResponse(u goSession.UserRecord) UserResponse {
	return UserResponse{ID: u.ID, Username: u.Username, Email: u.Email, Role: u.Role, Enabled: u.Enabled}
}

type userHandler struct {
	*handler
	users UserAdmin
}

func (h *userHandler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	secret, err := internal.NewClientSecret()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	u, err := h.users.CreateUser(r.Context(), goSession.CreateUserInput{
		Username:     req.Username,
		Email:        req.Email,
		Password:     req.Password,
		ClientSecret: secret,
		Role:         req.Role,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newUserResponse(u))
}

func (h *userHandler) list(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	users, err := h.users.ListUsers(r.Context(), limit, offset)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, newUserResponse(u))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *userHandler) getByID(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeUser(w, r)(h.users.GetUserByID(r.Context(), id))
}

func (h *userHandler) getByUsername(w http.ResponseWriter, r *http.Request) {
	h.writeUser(w, r)(h.users.GetUserByUsername(r.Context(), r.PathValue("username")))
}

func (h *userHandler) getByEmail(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		writeMessage(w, http.StatusBadRequest, "email is required")
		return
	}
	h.writeUser(w, r)(h.users.GetUserByEmail(r.Context(), email))
}

func (h *userHandler) update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req UpdateUserRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeUser(w, r)(h.users.UpdateUser(r.Context(), id, goSession.UserUpdate{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
		Enabled:  req.Enabled,
	}))
}

func (h *userHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.users.DeleteUser(r.Context(), id); err != nil {
		h.writeError(w, r, notFound(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *userHandler) writeUser(w http.ResponseWriter, r *http.Request) func(goSession.UserRecord, error) {
	return func(u goSession.UserRecord, err error) {
		if err != nil {
			h.writeError(w, r, notFound(err))
			return
		}
		writeJSON(w, http.StatusOK, newUserResponse(u))
	}
}

// notFound turns a missing user into a 404. On the auth routes the same
// error stays a 401 so account existence is not revealed.
func notFound(err error) error {
	if errors.Is(err, goSession.ErrUserNotFound) {
		return errNotFound
	}
	return err
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errBadRequest
	}
	return id, nil
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errBadRequest
	}
	return n, nil
}
