package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"gurukul.org/internal/audit"
	"gurukul.org/internal/auth"
	"gurukul.org/internal/mail"
	"gurukul.org/internal/obs"
	"gurukul.org/internal/stream"
)

type credentialsRequest struct {
	Kind     string `json:"kind"`
	Identity string `json:"identity"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type forgotPasswordRequest struct {
	Kind     string `json:"kind"`
	Identity string `json:"identity"`
}

type resetPasswordRequest struct {
	Kind        string `json:"kind"`
	Identity    string `json:"identity"`
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

type approvalRequest struct {
	Status string `json:"status"`
}

type principalResponse struct {
	ID             string `json:"id"`
	Kind           string `json:"kind"`
	Identity       string `json:"identity"`
	ApprovalStatus string `json:"approval_status"`
}

type tokenPairResponse struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

func principalJSON(p *auth.Principal) principalResponse {
	return principalResponse{
		ID:             p.ID,
		Kind:           string(p.Kind),
		Identity:       p.Identity,
		ApprovalStatus: string(p.ApprovalStatus),
	}
}

func pairJSON(pair auth.TokenPair) tokenPairResponse {
	return tokenPairResponse{
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshExpiresAt: pair.RefreshExpiresAt,
	}
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	kind := auth.Kind(strings.ToLower(strings.TrimSpace(req.Kind)))
	p, err := a.auth.Register(r.Context(), kind, req.Identity, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrAlreadyExists):
			writeError(w, r, http.StatusConflict, "identity already registered")
		case errors.Is(err, auth.ErrInvalidCredentialInput):
			writeError(w, r, http.StatusBadRequest, err.Error())
		default:
			writeError(w, r, http.StatusInternalServerError, "registration failed")
		}
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.registered", map[string]any{
		"principal_id": p.ID,
		"kind":         string(p.Kind),
	})
	a.publish(stream.NewEvent("auth.registered", p.ID, map[string]string{
		"kind": string(p.Kind),
	}))
	writeJSON(w, http.StatusCreated, principalJSON(p))
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	kind := auth.Kind(strings.ToLower(strings.TrimSpace(req.Kind)))
	pair, p, err := a.auth.Login(r.Context(), kind, req.Identity, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrAuthenticationFailed) {
			obs.ObserveLogin("failed")
			writeError(w, r, http.StatusUnauthorized, "invalid credentials")
			return
		}
		obs.ObserveLogin("error")
		writeError(w, r, http.StatusInternalServerError, "login failed")
		return
	}

	obs.ObserveLogin("ok")
	_ = audit.LogEvent(r.Context(), "auth.login", map[string]any{
		"principal_id": p.ID,
		"kind":         string(p.Kind),
	})
	a.publish(stream.NewEvent("auth.login", p.ID, map[string]string{
		"kind": string(p.Kind),
	}))
	writeJSON(w, http.StatusOK, pairJSON(pair))
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		writeError(w, r, http.StatusBadRequest, "refresh_token is required")
		return
	}

	pair, err := a.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrTokenExpired):
			obs.ObserveTokenVerification("refresh", "expired")
			writeError(w, r, http.StatusUnauthorized, "refresh token expired")
		case errors.Is(err, auth.ErrTokenInvalid):
			obs.ObserveTokenVerification("refresh", "invalid")
			writeError(w, r, http.StatusUnauthorized, "invalid refresh token")
		default:
			writeError(w, r, http.StatusInternalServerError, "refresh failed")
		}
		return
	}

	obs.ObserveTokenVerification("refresh", "ok")
	_ = audit.LogEvent(r.Context(), "auth.refreshed", nil)
	writeJSON(w, http.StatusOK, pairJSON(pair))
}

func (a *API) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req forgotPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	kind := auth.Kind(strings.ToLower(strings.TrimSpace(req.Kind)))
	err := a.auth.ForgotPassword(r.Context(), kind, req.Identity)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrNotFound):
			obs.ObservePasswordReset("generate", "not_found")
			writeError(w, r, http.StatusNotFound, "principal not found")
		case errors.Is(err, mail.ErrDispatch):
			// Token is already committed; only delivery failed.
			obs.ObservePasswordReset("generate", "mail_failed")
			writeError(w, r, http.StatusBadGateway, "reset token generated but delivery failed")
		default:
			obs.ObservePasswordReset("generate", "error")
			writeError(w, r, http.StatusInternalServerError, "password reset failed")
		}
		return
	}

	obs.ObservePasswordReset("generate", "ok")
	_ = audit.LogEvent(r.Context(), "auth.password.reset_requested", map[string]any{
		"kind": string(kind),
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "password reset email sent",
	})
}

func (a *API) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req resetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		writeError(w, r, http.StatusBadRequest, "token is required")
		return
	}

	kind := auth.Kind(strings.ToLower(strings.TrimSpace(req.Kind)))
	err := a.auth.ResetPassword(r.Context(), kind, req.Identity, req.Token, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrResetTokenExpired):
			obs.ObservePasswordReset("consume", "expired")
			writeError(w, r, http.StatusUnauthorized, "reset token expired")
		case errors.Is(err, auth.ErrResetTokenNotFound):
			obs.ObservePasswordReset("consume", "not_found")
			writeError(w, r, http.StatusUnauthorized, "invalid reset token")
		case errors.Is(err, auth.ErrInvalidCredentialInput):
			obs.ObservePasswordReset("consume", "invalid_input")
			writeError(w, r, http.StatusBadRequest, err.Error())
		default:
			obs.ObservePasswordReset("consume", "error")
			writeError(w, r, http.StatusInternalServerError, "password reset failed")
		}
		return
	}

	obs.ObservePasswordReset("consume", "ok")
	_ = audit.LogEvent(r.Context(), "auth.password.reset", map[string]any{
		"kind": string(kind),
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "password updated",
	})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	id, ok := auth.SubjectFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "not authenticated")
		return
	}
	p, err := a.auth.Principal(r.Context(), id)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "principal not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, principalJSON(p))
}

func (a *API) handleResubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	id, ok := auth.SubjectFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "not authenticated")
		return
	}

	if err := a.auth.Resubmit(r.Context(), id); err != nil {
		if errors.Is(err, auth.ErrResubmitNotAllowed) {
			writeError(w, r, http.StatusConflict, "resubmission is only possible from reupload")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "resubmission failed")
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.resubmitted", nil)
	a.publish(stream.NewEvent("auth.resubmitted", id, map[string]string{
		"approval_status": string(auth.ApprovalPending),
	}))
	writeJSON(w, http.StatusOK, map[string]any{
		"approval_status": string(auth.ApprovalPending),
	})
}

// handlePrincipalResource serves /v1/principals/{id} (GET) and
// /v1/principals/{id}/approval (POST). Both are admin operations.
func (a *API) handlePrincipalResource(w http.ResponseWriter, r *http.Request) {
	if _, err := a.requireAdmin(r); err != nil {
		if errors.Is(err, auth.ErrAuthenticationFailed) {
			writeError(w, r, http.StatusForbidden, "admin access required")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "authorization failed")
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/v1/principals/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	if strings.HasSuffix(path, "/approval") {
		id := strings.TrimSuffix(path, "/approval")
		id = strings.TrimSuffix(id, "/")
		if id == "" {
			writeError(w, r, http.StatusNotFound, "principal not found")
			return
		}
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.setApproval(w, r, id)
		return
	}

	if strings.Contains(path, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	p, err := a.auth.Principal(r.Context(), path)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "principal not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, principalJSON(p))
}

func (a *API) setApproval(w http.ResponseWriter, r *http.Request, id string) {
	var req approvalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	status := auth.ApprovalStatus(strings.ToLower(strings.TrimSpace(req.Status)))

	if err := a.auth.SetApproval(r.Context(), id, status); err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentialInput):
			writeError(w, r, http.StatusBadRequest, "unknown approval status")
		case errors.Is(err, auth.ErrNotFound):
			writeError(w, r, http.StatusNotFound, "principal not found")
		default:
			writeError(w, r, http.StatusInternalServerError, "approval update failed")
		}
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.approval.set", map[string]any{
		"target_id": id,
		"status":    string(status),
	})
	a.publish(stream.NewEvent("auth.approval", id, map[string]string{
		"approval_status": string(status),
	}))
	writeJSON(w, http.StatusOK, map[string]any{
		"id":              id,
		"approval_status": string(status),
	})
}

func (a *API) publish(evt stream.Event) {
	if a.stream == nil {
		return
	}
	a.stream.Publish(evt)
}
