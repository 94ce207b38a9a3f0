package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/rs/xid"

	"github.com/sakif/indie-arcade/internal/apperror"
	"github.com/sakif/indie-arcade/internal/auth"
	"github.com/sakif/indie-arcade/internal/service"
)

const stateCookie = "oauth_state"

// IdentityProvider is the OAuth client the handler drives.
// *auth.GoogleProvider implements it; tests substitute a fake.
type IdentityProvider interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.GoogleUser, error)
}

// AuthHandler runs sign-in, registration and logout.
//
// HANDLER RESPONSIBILITIES:
//   - HandleGoogleLogin      → redirect to Google's consent page
//   - HandleGoogleCallback   → verify state, exchange code, then either sign
//     in or park the identity in a pending cookie
//   - HandleRegisterPrompt   → report whether a username choice is pending
//   - HandleRegisterUsername → pick a username for the pending identity
//   - HandleLocalRegister / HandleLocalLogin → username-only mode
//   - HandleLogout           → drop both cookies
//   - HandleMe               → the signed-in user
//
// STATE MACHINE:
//
//	Anonymous --callback(known)--> Authenticated
//	Anonymous --callback(new)----> AwaitingUsername (pending cookie)
//	AwaitingUsername --username ok--> Authenticated
//	AwaitingUsername --username taken--> AwaitingUsername (409)
//	any --logout--> Anonymous
type AuthHandler struct {
	provider IdentityProvider // nil in local mode
	auth     *service.AuthService
	logger   *slog.Logger
}

// NewAuthHandler creates an AuthHandler. provider may be nil when only the
// local routes are mounted.
func NewAuthHandler(provider IdentityProvider, authService *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		provider: provider,
		auth:     authService,
		logger:   logger,
	}
}

// HandleGoogleLogin redirects the user to Google's authorization page.
//
// HTTP: GET /auth/google
//
// CSRF PROTECTION VIA STATE:
// A random state value goes into a short-lived cookie and into the
// authorization URL. The callback only proceeds when both match.
func (h *AuthHandler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.provider.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGoogleCallback completes the OAuth flow.
//
// HTTP: GET /auth/google/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Exchange the code for the Google subject id
//  3. Known identity → session cookie, redirect to /
//  4. New identity → pending cookie, redirect to /registerUsername
func (h *AuthHandler) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	// --- Step 1: Validate CSRF state ---
	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || r.URL.Query().Get("state") != cookie.Value {
		h.logger.Warn("auth callback: invalid state")
		writeError(w, apperror.ValidationFailed("state", "invalid OAuth state"))
		return
	}
	auth.ClearCookie(w, stateCookie)

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization", slog.String("error", errParam))
		http.Redirect(w, r, "/?auth=denied", http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, apperror.ValidationFailed("code", "missing OAuth code"))
		return
	}

	// --- Step 2: Exchange code for the Google profile ---
	gUser, err := h.provider.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: Google exchange failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, ErrorResponse{
			Error:   "upstream_error",
			Message: "authentication failed",
		})
		return
	}

	// --- Steps 3/4 ---
	res, err := h.auth.CompleteExternalLogin(r.Context(), gUser.Subject)
	if err != nil {
		h.logger.Error("auth callback: login failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	if res.NeedsUsername() {
		auth.SetPendingCookie(w, res.PendingToken)
		http.Redirect(w, r, "/registerUsername", http.StatusSeeOther)
		return
	}

	h.logger.Info("user authenticated",
		slog.Int64("userID", res.User.ID),
		slog.String("username", res.User.Username),
	)
	auth.SetSessionCookie(w, res.Token)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleRegisterPrompt tells the client whether a username choice is due.
//
// HTTP: GET /registerUsername?error=...
// 401 without a valid pending cookie.
func (h *AuthHandler) HandleRegisterPrompt(w http.ResponseWriter, r *http.Request) {
	if _, err := h.pendingIdentity(r); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"pending": true,
		"error":   r.URL.Query().Get("error"),
	})
}

// HandleRegisterUsername finishes registration for the pending identity.
//
// HTTP: POST /registerUsername
// BODY (JSON or form): username
//
// A taken username answers 409 "Username already taken" and leaves the
// pending cookie in place so the client can prompt again.
func (h *AuthHandler) HandleRegisterUsername(w http.ResponseWriter, r *http.Request) {
	hash, err := h.pendingIdentity(r)
	if err != nil {
		writeError(w, err)
		return
	}

	fields, err := requestFields(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := h.auth.RegisterUsername(r.Context(), hash, fields["username"])
	if err != nil {
		h.writeRegistrationError(w, err)
		return
	}

	auth.ClearCookie(w, auth.PendingCookie)
	auth.SetSessionCookie(w, res.Token)
	writeJSON(w, http.StatusCreated, res.User)
}

// HandleLocalRegister creates a username-only account and signs it in.
//
// HTTP: POST /register
// BODY (JSON or form): username
func (h *AuthHandler) HandleLocalRegister(w http.ResponseWriter, r *http.Request) {
	fields, err := requestFields(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := h.auth.RegisterLocal(r.Context(), fields["username"])
	if err != nil {
		h.writeRegistrationError(w, err)
		return
	}

	auth.SetSessionCookie(w, res.Token)
	writeJSON(w, http.StatusCreated, res.User)
}

// HandleLocalLogin signs in an existing username-only account.
//
// HTTP: POST /login
// BODY (JSON or form): username
func (h *AuthHandler) HandleLocalLogin(w http.ResponseWriter, r *http.Request) {
	fields, err := requestFields(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := h.auth.LoginLocal(r.Context(), fields["username"])
	if err != nil {
		writeError(w, err)
		return
	}

	auth.SetSessionCookie(w, res.Token)
	writeJSON(w, http.StatusOK, res.User)
}

// HandleLogout clears the session and any pending registration.
//
// HTTP: GET or POST /logout
//
// Sessions are stateless JWTs, so logout only deletes the cookies. A copied
// token stays valid until it expires.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	auth.ClearCookie(w, auth.SessionCookie)
	auth.ClearCookie(w, auth.PendingCookie)
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleMe returns the signed-in user.
//
// HTTP: GET /me
// Auth: Required
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("sign in first"))
		return
	}

	user, err := h.auth.CurrentUser(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) pendingIdentity(r *http.Request) (string, error) {
	cookie, err := r.Cookie(auth.PendingCookie)
	if err != nil {
		return "", apperror.Unauthorized("no registration in progress")
	}
	return h.auth.ValidatePending(cookie.Value)
}

func (h *AuthHandler) writeRegistrationError(w http.ResponseWriter, err error) {
	if errors.Is(err, apperror.ErrConflict) {
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:   "conflict",
			Message: "Username already taken",
			Field:   "username",
		})
		return
	}
	writeError(w, err)
}
