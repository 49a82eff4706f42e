package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/allowance/internal/auth"
	"github.com/dukerupert/allowance/internal/middleware"
	"github.com/dukerupert/allowance/internal/store"
)

const (
	oauthStateCookieName = "allowance_oauth_state"
	oauthStateTTL        = 10 * time.Minute
	maxDisplayNameLength = 20
)

type AuthHandler struct {
	userStore    *store.UserStore
	sessionStore *store.SessionStore
	google       *auth.GoogleProvider
	cookieSecure bool
	logger       *slog.Logger
}

func NewAuthHandler(us *store.UserStore, ss *store.SessionStore, google *auth.GoogleProvider, cookieSecure bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		userStore:    us,
		sessionStore: ss,
		google:       google,
		cookieSecure: cookieSecure,
		logger:       logger,
	}
}

type registerRequest struct {
	Email       string `json:"email" validate:"required,email,max=40"`
	DisplayName string `json:"display_name" validate:"required,max=20"`
	Password    string `json:"password" validate:"required,min=8,max=72"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.DisplayName = strings.TrimSpace(req.DisplayName)

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.logger.Error("hash password", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to register")
		return
	}

	user, err := h.userStore.Create(req.Email, req.DisplayName, hash)
	if errors.Is(err, store.ErrConflict) {
		writeError(w, http.StatusConflict, "an account with that email already exists")
		return
	}
	if err != nil {
		h.logger.Error("create user", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to register")
		return
	}

	if !h.startSession(w, user.ID) {
		writeError(w, http.StatusInternalServerError, "failed to start session")
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	userID, hash, err := h.userStore.GetPasswordHash(strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		h.logger.Error("login lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to log in")
		return
	}
	// Unknown users and Google-only users fail the same way as a wrong password.
	if !auth.CheckPassword(hash, req.Password) {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	user, err := h.userStore.GetByID(userID)
	if err != nil || user == nil {
		h.logger.Error("login load user", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to log in")
		return
	}
	if !h.startSession(w, user.ID) {
		writeError(w, http.StatusInternalServerError, "failed to start session")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil && cookie.Value != "" {
		sess, err := h.sessionStore.GetByToken(cookie.Value)
		if err != nil {
			h.logger.Error("logout lookup", "error", err)
		}
		if sess != nil {
			if err := h.sessionStore.Delete(sess.ID); err != nil {
				h.logger.Error("delete session", "error", err)
			}
		}
	}
	h.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// GoogleLogin redirects to Google's consent screen with a one-time state value.
func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		writeError(w, http.StatusNotFound, "google sign-in is not configured")
		return
	}
	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookieName,
		Value:    state,
		Path:     "/auth/google",
		MaxAge:   int(oauthStateTTL / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.cookieSecure,
	})
	http.Redirect(w, r, h.google.AuthCodeURL(state), http.StatusSeeOther)
}

func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		writeError(w, http.StatusNotFound, "google sign-in is not configured")
		return
	}
	cookie, err := r.Cookie(oauthStateCookieName)
	if err != nil || cookie.Value == "" || cookie.Value != r.URL.Query().Get("state") {
		writeError(w, http.StatusBadRequest, "invalid oauth state")
		return
	}
	http.SetCookie(w, &http.Cookie{Name: oauthStateCookieName, Path: "/auth/google", MaxAge: -1})

	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "missing authorization code")
		return
	}

	gu, err := h.google.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Warn("google exchange", "error", err)
		writeError(w, http.StatusUnauthorized, "google sign-in failed")
		return
	}

	name := strings.TrimSpace(gu.Name)
	if name == "" {
		name, _, _ = strings.Cut(gu.Email, "@")
	}
	if runes := []rune(name); len(runes) > maxDisplayNameLength {
		name = string(runes[:maxDisplayNameLength])
	}

	user, err := h.userStore.UpsertOAuth(strings.ToLower(gu.Email), name, gu.Picture)
	if err != nil {
		h.logger.Error("upsert oauth user", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to sign in")
		return
	}
	if !h.startSession(w, user.ID) {
		writeError(w, http.StatusInternalServerError, "failed to start session")
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.userStore.GetByID(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("get current user", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get user")
		return
	}
	if user == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// DeleteMe removes the signed-in user. Sessions and memberships go with it.
func (h *AuthHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	if err := h.userStore.Delete(auth.UserID(r.Context())); err != nil {
		h.logger.Error("delete user", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete account")
		return
	}
	h.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) startSession(w http.ResponseWriter, userID int64) bool {
	sess, err := h.sessionStore.Create(userID)
	if err != nil {
		h.logger.Error("create session", "user_id", userID, "error", err)
		return false
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		MaxAge:   int(store.SessionTTL / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.cookieSecure,
	})
	return true
}

func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.cookieSecure,
	})
}
