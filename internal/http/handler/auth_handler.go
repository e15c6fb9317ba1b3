package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/credlock/credlock/internal/domain"
	"github.com/credlock/credlock/internal/http/response"
	"github.com/credlock/credlock/internal/observability"
	"github.com/credlock/credlock/internal/repository"
	"github.com/credlock/credlock/internal/security"
	"github.com/credlock/credlock/internal/service"
)

type AuthHandler struct {
	authSvc    service.AuthServiceInterface
	sessionMgr *security.SessionManager
	cookieMgr  *security.CookieManager
}

func NewAuthHandler(authSvc service.AuthServiceInterface, sessionMgr *security.SessionManager, cookieMgr *security.CookieManager) *AuthHandler {
	return &AuthHandler{authSvc: authSvc, sessionMgr: sessionMgr, cookieMgr: cookieMgr}
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func userPayload(u *domain.User) map[string]any {
	return map[string]any{"id": u.ID, "email": u.Email, "name": u.Name}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "register", status, time.Since(start))
	}()

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		status = "failure"
		observability.Audit(r, "auth.register.failed", "reason", "malformed_payload")
		observability.RecordAuthRegistration(r.Context(), "failure")
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}

	user, err := h.authSvc.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		status = "failure"
		observability.RecordAuthRegistration(r.Context(), "failure")
		switch {
		case errors.Is(err, service.ErrValidation):
			observability.Audit(r, "auth.register.failed", "reason", "validation")
			response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		case errors.Is(err, repository.ErrEmailTaken):
			observability.Audit(r, "auth.register.failed", "reason", "duplicate_email")
			response.Error(w, r, http.StatusConflict, "CONFLICT", "user already exists", nil)
		default:
			observability.Audit(r, "auth.register.failed", "reason", "internal", "error", err.Error())
			response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "registration failed", nil)
		}
		return
	}

	if err := h.establishSession(w, user); err != nil {
		status = "failure"
		observability.Audit(r, "auth.register.failed", "user_id", user.ID, "reason", "session_issue")
		observability.RecordAuthRegistration(r.Context(), "failure")
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "registration failed", nil)
		return
	}
	observability.Audit(r, "auth.register.success", "user_id", user.ID)
	observability.RecordAuthRegistration(r.Context(), "success")
	response.JSON(w, r, http.StatusCreated, map[string]any{"user": userPayload(user)})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "login", status, time.Since(start))
	}()

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		status = "failure"
		observability.Audit(r, "auth.login.failed", "reason", "malformed_payload")
		observability.RecordAuthLogin(r.Context(), "password", "failure")
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}

	user, err := h.authSvc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		status = "failure"
		observability.RecordAuthLogin(r.Context(), "password", "failure")
		if errors.Is(err, service.ErrInvalidCredentials) {
			// The audit reason stays as opaque as the response body.
			observability.Audit(r, "auth.login.failed", "reason", "invalid_credentials")
			response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid credentials", nil)
			return
		}
		observability.Audit(r, "auth.login.failed", "reason", "internal", "error", err.Error())
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "login failed", nil)
		return
	}

	if err := h.establishSession(w, user); err != nil {
		status = "failure"
		observability.Audit(r, "auth.login.failed", "user_id", user.ID, "reason", "session_issue")
		observability.RecordAuthLogin(r.Context(), "password", "failure")
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "login failed", nil)
		return
	}
	observability.Audit(r, "auth.login.success", "user_id", user.ID, "method", "password")
	observability.RecordAuthLogin(r.Context(), "password", "success")
	payload := userPayload(user)
	payload["createdAt"] = user.CreatedAt
	response.JSON(w, r, http.StatusOK, map[string]any{"user": payload})
}

// Logout clears the session cookie unconditionally. There is no server-side
// session state to revoke, so an anonymous logout is still a success.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "logout", "success", time.Since(start))
	}()

	h.cookieMgr.ClearSessionCookie(w)
	observability.Audit(r, "auth.logout.success")
	observability.RecordAuthLogout(r.Context())
	response.JSON(w, r, http.StatusOK, map[string]any{})
}

// Session reports the current session without ever failing: a missing,
// expired, or tampered cookie is the same anonymous answer.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	token := security.GetCookie(r, security.SessionCookieName)
	if token == "" {
		response.JSON(w, r, http.StatusOK, map[string]any{"user": nil})
		return
	}
	sessionUser, err := h.sessionMgr.Open(token)
	if err != nil {
		response.JSON(w, r, http.StatusOK, map[string]any{"user": nil})
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"user": map[string]any{
		"id":    sessionUser.ID,
		"email": sessionUser.Email,
		"name":  sessionUser.Name,
	}})
}

func (h *AuthHandler) establishSession(w http.ResponseWriter, user *domain.User) error {
	token, _, err := h.sessionMgr.Issue(user)
	if err != nil {
		return err
	}
	h.cookieMgr.SetSessionCookie(w, token, h.sessionMgr.TTL())
	return nil
}
