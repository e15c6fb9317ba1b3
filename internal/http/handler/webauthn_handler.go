package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/credlock/credlock/internal/domain"
	"github.com/credlock/credlock/internal/http/response"
	"github.com/credlock/credlock/internal/observability"
	"github.com/credlock/credlock/internal/repository"
	"github.com/credlock/credlock/internal/security"
	"github.com/credlock/credlock/internal/service"
)

type WebAuthnHandler struct {
	webauthnSvc service.WebAuthnServiceInterface
	authSvc     service.AuthServiceInterface
	sessionMgr  *security.SessionManager
	cookieMgr   *security.CookieManager
}

func NewWebAuthnHandler(webauthnSvc service.WebAuthnServiceInterface, authSvc service.AuthServiceInterface, sessionMgr *security.SessionManager, cookieMgr *security.CookieManager) *WebAuthnHandler {
	return &WebAuthnHandler{webauthnSvc: webauthnSvc, authSvc: authSvc, sessionMgr: sessionMgr, cookieMgr: cookieMgr}
}

type registerOptionsRequest struct {
	UserID uint `json:"userID"`
}

type verifyRegistrationRequest struct {
	UserID            uint            `json:"userID"`
	Response          json.RawMessage `json:"response"`
	ExpectedChallenge string          `json:"expectedChallenge"`
}

type authOptionsRequest struct {
	UserEmail string `json:"userEmail"`
}

type verifyAuthenticationRequest struct {
	Response          json.RawMessage `json:"response"`
	ExpectedChallenge string          `json:"expectedChallenge"`
}

func (h *WebAuthnHandler) RegisterOptions(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "webauthn_register_options", status, time.Since(start))
	}()

	var req registerOptionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == 0 {
		status = "failure"
		observability.Audit(r, "webauthn.register.options.failed", "reason", "malformed_payload")
		observability.RecordWebAuthnCeremony(r.Context(), "registration", "options_rejected")
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "userID is required", nil)
		return
	}

	opts, err := h.webauthnSvc.BeginRegistration(r.Context(), req.UserID)
	if err != nil {
		status = "failure"
		observability.RecordWebAuthnCeremony(r.Context(), "registration", "options_rejected")
		if errors.Is(err, repository.ErrUserNotFound) {
			observability.Audit(r, "webauthn.register.options.failed", "user_id", req.UserID, "reason", "unknown_user")
			response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "user not found", nil)
			return
		}
		observability.Audit(r, "webauthn.register.options.failed", "user_id", req.UserID, "reason", "internal", "error", err.Error())
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to create registration options", nil)
		return
	}
	observability.Audit(r, "webauthn.register.options.issued", "user_id", req.UserID)
	observability.RecordWebAuthnCeremony(r.Context(), "registration", "options_issued")
	response.JSON(w, r, http.StatusOK, opts)
}

func (h *WebAuthnHandler) VerifyRegistration(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "webauthn_verify_registration", status, time.Since(start))
	}()

	var req verifyRegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == 0 || len(req.Response) == 0 || req.ExpectedChallenge == "" {
		status = "failure"
		observability.Audit(r, "webauthn.register.verify.failed", "reason", "malformed_payload")
		observability.RecordWebAuthnCeremony(r.Context(), "registration", "failure")
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "userID, response and expectedChallenge are required", nil)
		return
	}

	authenticator, err := h.webauthnSvc.FinishRegistration(r.Context(), req.UserID, req.Response, req.ExpectedChallenge)
	if err != nil {
		status = "failure"
		observability.RecordWebAuthnCeremony(r.Context(), "registration", "failure")
		switch {
		case errors.Is(err, repository.ErrUserNotFound):
			observability.Audit(r, "webauthn.register.verify.failed", "user_id", req.UserID, "reason", "unknown_user")
			response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "user not found", nil)
		case errors.Is(err, service.ErrVerificationFailed):
			observability.Audit(r, "webauthn.register.verify.failed", "user_id", req.UserID, "reason", "verification")
			response.Error(w, r, http.StatusBadRequest, "VERIFICATION_FAILED", "registration could not be verified", nil)
		default:
			observability.Audit(r, "webauthn.register.verify.failed", "user_id", req.UserID, "reason", "internal", "error", err.Error())
			response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "registration could not be verified", nil)
		}
		return
	}

	user, err := h.authSvc.GetUser(r.Context(), req.UserID)
	if err == nil {
		if sessionErr := h.establishSession(w, user); sessionErr != nil {
			observability.Audit(r, "webauthn.register.verify.session_issue", "user_id", req.UserID)
		}
	}
	observability.Audit(r, "webauthn.register.verify.success", "user_id", req.UserID, "credential_id", authenticator.CredentialID)
	observability.RecordWebAuthnCeremony(r.Context(), "registration", "success")
	response.JSON(w, r, http.StatusOK, map[string]any{
		"success":  true,
		"verified": true,
		"authenticator": map[string]any{
			"id":           authenticator.ID,
			"credentialID": authenticator.CredentialID,
		},
	})
}

func (h *WebAuthnHandler) AuthOptions(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "webauthn_auth_options", status, time.Since(start))
	}()

	// An empty body is a valid request for the discoverable flow.
	var req authOptionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		status = "failure"
		observability.Audit(r, "webauthn.auth.options.failed", "reason", "malformed_payload")
		observability.RecordWebAuthnCeremony(r.Context(), "authentication", "options_rejected")
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}

	opts, err := h.webauthnSvc.BeginLogin(r.Context(), req.UserEmail)
	if err != nil {
		status = "failure"
		observability.Audit(r, "webauthn.auth.options.failed", "reason", "internal", "error", err.Error())
		observability.RecordWebAuthnCeremony(r.Context(), "authentication", "options_rejected")
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to create authentication options", nil)
		return
	}
	observability.Audit(r, "webauthn.auth.options.issued")
	observability.RecordWebAuthnCeremony(r.Context(), "authentication", "options_issued")
	response.JSON(w, r, http.StatusOK, opts)
}

func (h *WebAuthnHandler) VerifyAuthentication(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "webauthn_verify_authentication", status, time.Since(start))
	}()

	var req verifyAuthenticationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Response) == 0 || req.ExpectedChallenge == "" {
		status = "failure"
		observability.Audit(r, "webauthn.auth.verify.failed", "reason", "malformed_payload")
		observability.RecordAuthLogin(r.Context(), "webauthn", "failure")
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "response and expectedChallenge are required", nil)
		return
	}

	user, err := h.webauthnSvc.FinishLogin(r.Context(), req.Response, req.ExpectedChallenge)
	if err != nil {
		status = "failure"
		observability.RecordAuthLogin(r.Context(), "webauthn", "failure")
		observability.RecordWebAuthnCeremony(r.Context(), "authentication", "failure")
		if errors.Is(err, service.ErrVerificationFailed) || errors.Is(err, service.ErrUnknownCredential) {
			// Same status and body for every authentication-layer failure.
			observability.Audit(r, "webauthn.auth.verify.failed", "reason", "verification")
			response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "authentication could not be verified", nil)
			return
		}
		observability.Audit(r, "webauthn.auth.verify.failed", "reason", "internal", "error", err.Error())
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "authentication could not be verified", nil)
		return
	}

	if err := h.establishSession(w, user); err != nil {
		status = "failure"
		observability.Audit(r, "webauthn.auth.verify.failed", "user_id", user.ID, "reason", "session_issue")
		observability.RecordAuthLogin(r.Context(), "webauthn", "failure")
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "authentication could not be verified", nil)
		return
	}
	observability.Audit(r, "webauthn.auth.verify.success", "user_id", user.ID)
	observability.RecordAuthLogin(r.Context(), "webauthn", "success")
	observability.RecordWebAuthnCeremony(r.Context(), "authentication", "success")
	response.JSON(w, r, http.StatusOK, map[string]any{"user": userPayload(user)})
}

func (h *WebAuthnHandler) establishSession(w http.ResponseWriter, user *domain.User) error {
	token, _, err := h.sessionMgr.Issue(user)
	if err != nil {
		return err
	}
	h.cookieMgr.SetSessionCookie(w, token, h.sessionMgr.TTL())
	return nil
}
