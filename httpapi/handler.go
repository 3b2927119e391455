package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/middleware"
)

const maxBodyBytes = 1 << 20

// AuthService is the engine surface the REST boundary needs.
// *goSession.Engine satisfies it.
type AuthService interface {
	middleware.Authenticator
	Login(ctx context.Context, username, password string) (goSession.AuthResponse, error)
	ClientLogin(ctx context.Context, clientID, clientSecret string) (goSession.AuthResponse, error)
	Refresh(ctx context.Context, refreshToken string) (goSession.AuthResponse, error)
	Register(ctx context.Context, in goSession.RegisterInput) (goSession.AuthResponse, error)
	Logout(ctx context.Context, accessToken, refreshToken string) error
	UsernameExists(ctx context.Context, username string) (bool, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	Ping(ctx context.Context) error
}

// Options tunes [NewHandler].
type Options struct {
	Logger goSession.Logger
	// Metrics is mounted at GET /metrics when set.
	Metrics http.Handler
	// TrustProxy takes the client IP from X-Forwarded-For.
	TrustProxy bool
	// Users mounts the user management routes under /api/users when set.
	Users UserAdmin
	// AdminRole is the role required for /api/users. Defaults to ADMIN.
	AdminRole string
}

type handler struct {
	svc    AuthService
	logger goSession.Logger
}

// NewHandler returns the REST API. Every request passes through the client
// IP and request authenticator middleware; /api/me requires an identity and
// /api/users requires the admin role.
func NewHandler(svc AuthService, opts Options) http.Handler {
	h := &handler{svc: svc, logger: opts.Logger}
	if h.logger == nil {
		h.logger = goSession.NopLogger{}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", h.login)
	mux.HandleFunc("POST /api/auth/client/login", h.clientLogin)
	mux.HandleFunc("POST /api/auth/refresh", h.refresh)
	mux.HandleFunc("POST /api/auth/register", h.register)
	mux.HandleFunc("POST /api/auth/logout", h.logout)
	mux.HandleFunc("GET /api/auth/check-username", h.checkUsername)
	mux.HandleFunc("GET /api/auth/check-email", h.checkEmail)
	mux.Handle("GET /api/me", middleware.Require(http.HandlerFunc(h.me)))
	mux.HandleFunc("GET /healthz", h.health)
	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics)
	}
	if opts.Users != nil {
		role := opts.AdminRole
		if role == "" {
			role = "ADMIN"
		}
		admin := middleware.RequireRole(role)
		u := &userHandler{handler: h, users: opts.Users}
		mux.Handle("POST /api/users", admin(http.HandlerFunc(u.create)))
		mux.Handle("GET /api/users", admin(http.HandlerFunc(u.list)))
		mux.Handle("GET /api/users/{id}", admin(http.HandlerFunc(u.getByID)))
		mux.Handle("GET /api/users/username/{username}", admin(http.HandlerFunc(u.getByUsername)))
		mux.Handle("GET /api/users/email", admin(http.HandlerFunc(u.getByEmail)))
		mux.Handle("PUT /api/users/{id}", admin(http.HandlerFunc(u.update)))
		mux.Handle("DELETE /api/users/{id}", admin(http.HandlerFunc(u.delete)))
	}

	var root http.Handler = mux
	root = middleware.Authenticate(svc, h.logger)(root)
	root = middleware.ClientIP(opts.TrustProxy)(root)
	return root
}

type validatable interface {
	Validate() error
}

// decode reads a JSON body into dst and validates it.
func decode(w http.ResponseWriter, r *http.Request, dst validatable) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errBadRequest
	}
	return dst.Validate()
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, r)(h.svc.Login(r.Context(), req.Username, req.Password))
}

func (h *handler) clientLogin(w http.ResponseWriter, r *http.Request) {
	var req ClientLoginRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, r)(h.svc.ClientLogin(r.Context(), req.ClientID, req.ClientSecret))
}

func (h *handler) refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, r)(h.svc.Refresh(r.Context(), req.RefreshToken))
}

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, r)(h.svc.Register(r.Context(), goSession.RegisterInput{
		Username:        req.Username,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	}))
}

func (h *handler) respond(w http.ResponseWriter, r *http.Request) func(goSession.AuthResponse, error) {
	return func(resp goSession.AuthResponse, err error) {
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	access, _ := middleware.BearerToken(r)

	var req LogoutRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, r, errBadRequest)
		return
	}

	if err := h.svc.Logout(r.Context(), access, req.RefreshToken); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) checkUsername(w http.ResponseWriter, r *http.Request) {
	h.checkExists(w, r, "username", h.svc.UsernameExists)
}

func (h *handler) checkEmail(w http.ResponseWriter, r *http.Request) {
	h.checkExists(w, r, "email", h.svc.EmailExists)
}

func (h *handler) checkExists(w http.ResponseWriter, r *http.Request, param string, exists func(context.Context, string) (bool, error)) {
	value := strings.TrimSpace(r.URL.Query().Get(param))
	if value == "" {
		writeMessage(w, http.StatusBadRequest, param+" is required")
		return
	}

	ok, err := exists(r.Context(), value)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	msg := param + " is available"
	if ok {
		msg = param + " is already registered"
	}
	writeJSON(w, http.StatusOK, ExistsResponse{Exists: ok, Message: msg})
}

func (h *handler) me(w http.ResponseWriter, r *http.Request) {
	id, _ := goSession.IdentityFromContext(r.Context())
	writeJSON(w, http.StatusOK, id)
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Ping(r.Context()); err != nil {
		h.logger.Warn(r.Context(), "httpapi: health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
