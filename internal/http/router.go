package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/PPRAMANIK62/e-commerce-modified/internal/domain"
	"github.com/PPRAMANIK62/e-commerce-modified/internal/repository"
	"github.com/PPRAMANIK62/e-commerce-modified/internal/service/auth"
	"github.com/PPRAMANIK62/e-commerce-modified/internal/service/user"
)

const healthCheckTimeout = 2 * time.Second

// Router wires HTTP endpoints to services.
type Router struct {
	mux      *chi.Mux
	logger   *slog.Logger
	auth     auth.Service
	users    user.Service
	cookies  sessionCookie
	validate *validator.Validate
	dbHealth func(context.Context) error
}

// NewRouter assembles routes with dependencies.
func NewRouter(logger *slog.Logger, authSvc auth.Service, userSvc user.Service, secureCookies bool, dbHealth func(context.Context) error) *Router {
	r := &Router{
		mux:      chi.NewRouter(),
		logger:   logger,
		auth:     authSvc,
		users:    userSvc,
		cookies:  newSessionCookie(authSvc.SessionTTL(), secureCookies),
		validate: validator.New(),
		dbHealth: dbHealth,
	}
	r.register()
	return r
}

// ServeHTTP delegates to the underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func (r *Router) register() {
	r.mux.Use(r.logRequests)
	r.mux.Get("/healthz", r.handleHealthz)
	r.mux.Route("/api/users", func(api chi.Router) {
		api.Post("/", r.handleRegister)
		api.Post("/auth", r.handleLogin)
		api.Post("/logout", r.handleLogout)
		api.Group(func(priv chi.Router) {
			priv.Use(r.authenticate)
			priv.Get("/profile", r.handleGetProfile)
			priv.Put("/profile", r.handleUpdateProfile)
			priv.Group(func(adm chi.Router) {
				adm.Use(r.requireAdmin)
				adm.Get("/", r.handleListUsers)
				adm.Get("/{id}", r.handleGetUser)
				adm.Put("/{id}", r.handleUpdateUser)
				adm.Delete("/{id}", r.handleDeleteUser)
			})
		})
	})
}

func userPayload(u *domain.User) map[string]any {
	return map[string]any{
		"id":       u.ID,
		"username": u.Username,
		"email":    u.Email,
		"isAdmin":  u.IsAdmin,
	}
}

type registerRequest struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (r *Router) handleRegister(w http.ResponseWriter, req *http.Request) {
	var payload registerRequest
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := r.validate.Struct(payload); err != nil {
		writeError(w, http.StatusBadRequest, "Please fill all the inputs.")
		return
	}
	created, token, err := r.auth.Register(req.Context(), payload.Username, payload.Email, payload.Password)
	if err != nil {
		if errors.Is(err, auth.ErrEmailTaken) {
			writeError(w, http.StatusBadRequest, "User already exists")
			return
		}
		r.logger.Error("register failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	r.cookies.attach(w, token)
	writeJSON(w, http.StatusCreated, userPayload(created))
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) {
	var payload loginRequest
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := r.validate.Struct(payload); err != nil {
		writeError(w, http.StatusBadRequest, "Please enter email and password")
		return
	}
	logged, token, err := r.auth.Login(req.Context(), payload.Email, payload.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		r.logger.Error("login failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	r.cookies.attach(w, token)
	writeJSON(w, http.StatusCreated, userPayload(logged))
}

// handleLogout clears the cookie unconditionally; safe with no prior
// session.
func (r *Router) handleLogout(w http.ResponseWriter, req *http.Request) {
	r.cookies.clear(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

func (r *Router) handleGetProfile(w http.ResponseWriter, req *http.Request) {
	identity, ok := identityFromContext(req.Context())
	if !ok {
		r.logger.Error("auth context missing for profile", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return
	}
	found, err := r.users.Get(req.Context(), identity.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		r.logger.Error("get profile failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":       found.ID,
		"username": found.Username,
		"email":    found.Email,
	})
}

type updateProfileRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *Router) handleUpdateProfile(w http.ResponseWriter, req *http.Request) {
	identity, ok := identityFromContext(req.Context())
	if !ok {
		r.logger.Error("auth context missing for profile update", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return
	}
	var payload updateProfileRequest
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	updated, err := r.users.UpdateProfile(req.Context(), identity.ID, user.UpdateProfileInput{
		Username: payload.Username,
		Email:    payload.Email,
		Password: payload.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			writeError(w, http.StatusNotFound, "User not found")
		case errors.Is(err, repository.ErrDuplicate):
			writeError(w, http.StatusBadRequest, "User already exists")
		default:
			r.logger.Error("update profile failed", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	writeJSON(w, http.StatusOK, userPayload(updated))
}

// handleListUsers projects out password hashes; only id, username, email
// and the admin flag leave the service.
func (r *Router) handleListUsers(w http.ResponseWriter, req *http.Request) {
	all, err := r.users.List(req.Context())
	if err != nil {
		r.logger.Error("list users failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	users := make([]map[string]any, 0, len(all))
	for i := range all {
		users = append(users, userPayload(&all[i]))
	}
	writeJSON(w, http.StatusCreated, map[string]any{"users": users})
}

func (r *Router) handleGetUser(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "id")
	found, err := r.users.Get(req.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		r.logger.Error("get user failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": userPayload(found)})
}

type adminUpdateRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	IsAdmin  *bool  `json:"isAdmin"`
}

func (r *Router) handleUpdateUser(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "id")
	var payload adminUpdateRequest
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	updated, err := r.users.AdminUpdate(req.Context(), id, user.AdminUpdateInput{
		Username: payload.Username,
		Email:    payload.Email,
		IsAdmin:  payload.IsAdmin,
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			writeError(w, http.StatusNotFound, "User not found")
		case errors.Is(err, repository.ErrDuplicate):
			writeError(w, http.StatusBadRequest, "User already exists")
		default:
			r.logger.Error("admin update failed", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	writeJSON(w, http.StatusOK, userPayload(updated))
}

func (r *Router) handleDeleteUser(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "id")
	if err := r.users.Delete(req.Context(), id); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			writeError(w, http.StatusNotFound, "User not found")
		case errors.Is(err, user.ErrAdminProtected):
			writeError(w, http.StatusBadRequest, "Cannot delete admin user")
		default:
			r.logger.Error("delete user failed", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "User removed"})
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	components := make(map[string]any)
	status := "ok"
	if r.dbHealth != nil {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		defer cancel()
		if err := r.dbHealth(ctx); err != nil {
			status = "degraded"
			components["database"] = map[string]any{"status": "down", "error": err.Error()}
		} else {
			components["database"] = map[string]any{"status": "up"}
		}
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	})
}
