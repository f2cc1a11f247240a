package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/middleware"
)

const maxBodyBytes = 1 << 16

type handler struct {
	engine *authcore.Engine
	// exposeTokens returns verification tokens in API responses. Only
	// enabled outside production, where no mail provider is wired.
	exposeTokens bool
}

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

type registerResponse struct {
	UserID            string `json:"user_id"`
	Email             string `json:"email"`
	EmailVerified     bool   `json:"email_verified"`
	VerificationToken string `json:"verification_token,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type twoFactorLoginRequest struct {
	TwoFactorToken string `json:"two_factor_token"`
	Code           string `json:"code"`
}

type loginResponse struct {
	UserID           string     `json:"user_id"`
	SessionID        string     `json:"session_id,omitempty"`
	CSRFToken        string     `json:"csrf_token,omitempty"`
	AccessToken      string     `json:"access_token,omitempty"`
	AccessExpiresAt  *time.Time `json:"access_expires_at,omitempty"`
	RefreshToken     string     `json:"refresh_token,omitempty"`
	RefreshExpiresAt *time.Time `json:"refresh_expires_at,omitempty"`

	TwoFactorRequired bool   `json:"two_factor_required,omitempty"`
	TwoFactorToken    string `json:"two_factor_token,omitempty"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type refreshResponse struct {
	SessionID       string    `json:"session_id"`
	AccessToken     string    `json:"access_token"`
	AccessExpiresAt time.Time `json:"access_expires_at"`
}

type logoutAllRequest struct {
	KeepCurrent bool `json:"keep_current"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type tokenRequest struct {
	Token string `json:"token"`
}

type passwordResetRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

type passwordChangeRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

type codeRequest struct {
	Code string `json:"code"`
}

type guestResponse struct {
	SessionID string    `json:"session_id"`
	CSRFToken string    `json:"csrf_token"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type sessionResponse struct {
	SessionID      string    `json:"session_id"`
	UserID         string    `json:"user_id,omitempty"`
	Type           string    `json:"type"`
	Device         string    `json:"device,omitempty"`
	IP             string    `json:"ip,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
	ExpiresAt      time.Time `json:"expires_at"`
	Current        bool      `json:"current,omitempty"`
}

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.engine.Register(r.Context(), authcore.RegisterInput{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	out := registerResponse{UserID: res.UserID, Email: res.Email, EmailVerified: res.EmailVerified}
	if h.exposeTokens {
		out.VerificationToken = res.VerificationToken
	}
	middleware.WriteJSON(w, http.StatusCreated, out)
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.engine.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeLogin(w, res)
}

func (h *handler) loginTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req twoFactorLoginRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.engine.LoginWithTwoFactor(r.Context(), req.TwoFactorToken, req.Code)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeLogin(w, res)
}

func writeLogin(w http.ResponseWriter, res *authcore.LoginResult) {
	if res.TwoFactorRequired {
		middleware.WriteJSON(w, http.StatusAccepted, loginResponse{
			UserID:            res.UserID,
			TwoFactorRequired: true,
			TwoFactorToken:    res.TwoFactorToken,
		})
		return
	}
	middleware.WriteJSON(w, http.StatusOK, loginResponse{
		UserID:           res.UserID,
		SessionID:        res.SessionID,
		CSRFToken:        res.CSRFToken,
		AccessToken:      res.AccessToken,
		AccessExpiresAt:  &res.AccessExpiresAt,
		RefreshToken:     res.RefreshToken,
		RefreshExpiresAt: &res.RefreshExpiresAt,
	})
}

func (h *handler) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.engine.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, refreshResponse{
		SessionID:       res.SessionID,
		AccessToken:     res.AccessToken,
		AccessExpiresAt: res.AccessExpiresAt,
	})
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFromContext(r.Context())
	if err := h.engine.Logout(r.Context(), p.SessionID); err != nil {
		middleware.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) logoutAll(w http.ResponseWriter, r *http.Request) {
	var req logoutAllRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	p, _ := middleware.PrincipalFromContext(r.Context())
	except := ""
	if req.KeepCurrent {
		except = p.SessionID
	}
	n, err := h.engine.LogoutAll(r.Context(), p.UserID, except)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]int{"revoked": n})
}

func (h *handler) sessions(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFromContext(r.Context())
	list, err := h.engine.ListSessions(r.Context(), p.UserID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	out := make([]sessionResponse, 0, len(list))
	for i := range list {
		s := toSessionResponse(&list[i])
		s.Current = s.SessionID == p.SessionID
		out = append(out, s)
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{"sessions": out})
}

func (h *handler) session(w http.ResponseWriter, r *http.Request) {
	token, ok := middleware.BearerToken(r)
	if !ok {
		middleware.WriteError(w, authcore.ErrTokenInvalid)
		return
	}
	info, err := h.engine.GetSessionInfo(r.Context(), token)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, toSessionResponse(info))
}

func toSessionResponse(info *authcore.SessionInfo) sessionResponse {
	return sessionResponse{
		SessionID:      info.SessionID,
		UserID:         info.UserID,
		Type:           string(info.Type),
		Device:         info.Device,
		IP:             info.IP,
		CreatedAt:      info.CreatedAt,
		LastActivityAt: info.LastActivityAt,
		ExpiresAt:      info.ExpiresAt,
	}
}

func (h *handler) passwordForgot(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.engine.RequestPasswordReset(r.Context(), req.Email); err != nil {
		middleware.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *handler) passwordReset(w http.ResponseWriter, r *http.Request) {
	var req passwordResetRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.engine.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		middleware.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) passwordChange(w http.ResponseWriter, r *http.Request) {
	var req passwordChangeRequest
	if !decode(w, r, &req) {
		return
	}
	p, _ := middleware.PrincipalFromContext(r.Context())
	if err := h.engine.ChangePassword(r.Context(), p.UserID, req.OldPassword, req.NewPassword); err != nil {
		middleware.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) emailVerify(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.engine.VerifyEmail(r.Context(), req.Token); err != nil {
		middleware.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) emailResend(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFromContext(r.Context())
	if err := h.engine.ResendVerification(r.Context(), p.UserID); err != nil {
		middleware.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *handler) guest(w http.ResponseWriter, r *http.Request) {
	res, err := h.engine.CreateGuestSession(r.Context())
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, guestResponse{
		SessionID: res.SessionID,
		CSRFToken: res.CSRFToken,
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt,
	})
}

func (h *handler) twoFactorSetup(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFromContext(r.Context())
	setup, err := h.engine.SetupTwoFactor(r.Context(), p.UserID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"secret": setup.Secret, "url": setup.URL})
}

func (h *handler) twoFactorEnable(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if !decode(w, r, &req) {
		return
	}
	p, _ := middleware.PrincipalFromContext(r.Context())
	if err := h.engine.EnableTwoFactor(r.Context(), p.UserID, req.Code); err != nil {
		middleware.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) twoFactorDisable(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if !decode(w, r, &req) {
		return
	}
	p, _ := middleware.PrincipalFromContext(r.Context())
	if err := h.engine.DisableTwoFactor(r.Context(), p.UserID, req.Code); err != nil {
		middleware.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) deleteAccount(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFromContext(r.Context())
	if err := h.engine.DeleteAccount(r.Context(), p.UserID); err != nil {
		middleware.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decode reads a single JSON object into dst and writes a
// VALIDATION_FAILED response when it cannot.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		middleware.WriteError(w, fmt.Errorf("%w: malformed request body", authcore.ErrValidation))
		return false
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		middleware.WriteError(w, fmt.Errorf("%w: request body must hold a single object", authcore.ErrValidation))
		return false
	}
	return true
}
