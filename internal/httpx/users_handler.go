package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/merchkart/storefront/internal/auth"
	"github.com/merchkart/storefront/internal/users"
)

type UserStore interface {
	Create(ctx context.Context, email, password, firstName, lastName, phone string) (*users.User, error)
	Authenticate(ctx context.Context, email, password string) (*users.User, error)
	Get(ctx context.Context, id string) (*users.User, error)
	UpdateProfile(ctx context.Context, id string, upd users.ProfileUpdate) (*users.User, error)
}

type UsersHandler struct {
	Users UserStore
	Auth  *auth.Manager
}

// Register mounts the public auth routes.
func (h *UsersHandler) Register(r chi.Router) {
	r.Post("/signup", h.signup)
	r.Post("/login", h.login)
	r.Post("/refresh-token", h.refreshToken)
}

// RegisterProtected mounts the routes behind bearer auth.
func (h *UsersHandler) RegisterProtected(r chi.Router) {
	r.Get("/users/{id}", h.fetchUser)
	r.Patch("/users/{id}", h.updateUser)
}

type tokenResp struct {
	Message      string      `json:"message"`
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
	User         *users.User `json:"user,omitempty"`
}

func (h *UsersHandler) signup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
		Email     string `json:"email"`
		Password  string `json:"password"`
		Phone     string `json:"phone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFail(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Email == "" || req.Password == "" || req.FirstName == "" || req.Phone == "" {
		writeFail(w, http.StatusBadRequest, "firstName, email, password and phone are required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.Create(ctx, req.Email, req.Password, req.FirstName, req.LastName, req.Phone)
	if errors.Is(err, users.ErrEmailTaken) || errors.Is(err, users.ErrPhoneTaken) {
		writeFail(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		writeFail(w, http.StatusInternalServerError, "internal server error")
		return
	}
	h.respondWithTokens(w, http.StatusCreated, "User created successfully", u)
}

func (h *UsersHandler) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFail(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.Authenticate(ctx, req.Email, req.Password)
	if errors.Is(err, users.ErrInvalidCredentials) {
		writeFail(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	if err != nil {
		writeFail(w, http.StatusInternalServerError, "internal server error")
		return
	}
	h.respondWithTokens(w, http.StatusOK, "Login successful", u)
}

func (h *UsersHandler) refreshToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		writeFail(w, http.StatusUnauthorized, "refresh token is required")
		return
	}

	userID, err := h.Auth.VerifyRefresh(req.RefreshToken)
	if err != nil {
		writeFail(w, http.StatusForbidden, "invalid or expired token")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.Get(ctx, userID)
	if errors.Is(err, users.ErrNotFound) {
		writeFail(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		writeFail(w, http.StatusInternalServerError, "internal server error")
		return
	}
	h.respondWithTokens(w, http.StatusOK, "Token refreshed successfully", u)
}

func (h *UsersHandler) fetchUser(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.Get(ctx, chi.URLParam(r, "id"))
	if errors.Is(err, users.ErrNotFound) {
		writeFail(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		writeFail(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "User fetched successfully", "user": u})
}

func (h *UsersHandler) updateUser(w http.ResponseWriter, r *http.Request) {
	var upd users.ProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeFail(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.UpdateProfile(ctx, chi.URLParam(r, "id"), upd)
	if errors.Is(err, users.ErrNotFound) {
		writeFail(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		writeFail(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "User updated successfully", "user": u})
}

func (h *UsersHandler) respondWithTokens(w http.ResponseWriter, code int, msg string, u *users.User) {
	access, refresh, err := h.Auth.IssuePair(u.ID)
	if err != nil {
		writeFail(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, code, tokenResp{
		Message:      msg,
		AccessToken:  access,
		RefreshToken: refresh,
		User:         u,
	})
}
