package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	vauth "github.com/vendo-labs/vauth"
)

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email     string `json:"email"`
		Password  string `json:"password"`
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
	}
	if !a.decode(w, r, &req) {
		return
	}

	user, err := a.engine.Register(r.Context(), vauth.RegisterRequest{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, map[string]interface{}{"user": user})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !a.decode(w, r, &req) {
		return
	}

	result, err := a.engine.Login(r.Context(), vauth.LoginRequest{
		Email:     req.Email,
		Password:  req.Password,
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeLoginResult(w, result)
}

func (a *API) handleMFAVerify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if !a.decode(w, r, &req) {
		return
	}

	result, err := a.engine.VerifyMFAForLogin(r.Context(), req.Email, req.Code, clientIP(r), r.UserAgent())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeLoginResult(w, result)
}

// writeLoginResult maps the three login outcome shapes onto the wire:
// tokens + cookies, an MFA challenge, or a verification reminder.
func (a *API) writeLoginResult(w http.ResponseWriter, result *vauth.LoginResult) {
	switch {
	case result.MFARequired:
		a.writeJSON(w, http.StatusOK, map[string]interface{}{
			"user":        nil,
			"mfaRequired": true,
		})
	case result.EmailVerificationRequired:
		a.writeJSON(w, http.StatusForbidden, map[string]interface{}{
			"code":       "EMAIL_NOT_VERIFIED",
			"messageKey": "auth.email_not_verified",
			"message":    a.translate("auth.email_not_verified"),
		})
	default:
		a.setTokenCookies(w, result.AccessToken, result.RefreshToken)
		a.writeJSON(w, http.StatusOK, map[string]interface{}{
			"user":        result.User,
			"mfaRequired": false,
		})
	}
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	token := ""
	if c, err := r.Cookie(refreshTokenCookie); err == nil {
		token = c.Value
	}
	if token == "" {
		a.writeError(w, r, vauth.ErrRefreshInvalid)
		return
	}

	result, err := a.engine.Refresh(r.Context(), token)
	if err != nil {
		a.clearTokenCookies(w)
		a.writeError(w, r, err)
		return
	}

	if result.Rotated {
		a.setTokenCookies(w, result.AccessToken, result.RefreshToken)
	} else {
		a.setTokenCookies(w, result.AccessToken, "")
	}
	a.writeJSON(w, http.StatusOK, map[string]interface{}{"rotated": result.Rotated})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	ac, _ := vauth.AuthFromContext(r.Context())

	err := a.engine.Logout(r.Context(), ac.SessionID)
	a.clearTokenCookies(w)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (a *API) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	ac, _ := vauth.AuthFromContext(r.Context())

	n, err := a.engine.LogoutAll(r.Context(), ac.UserID)
	a.clearTokenCookies(w)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]int{"revoked": n})
}

func (a *API) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if !a.decode(w, r, &req) {
		return
	}

	user, err := a.engine.VerifyEmail(r.Context(), req.Token)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]interface{}{"user": user})
}

func (a *API) handleResendVerification(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !a.decode(w, r, &req) {
		return
	}

	if err := a.engine.ResendVerification(r.Context(), req.Email); err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]bool{"sent": true})
}

func (a *API) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !a.decode(w, r, &req) {
		return
	}

	if err := a.engine.ForgotPassword(r.Context(), req.Email); err != nil {
		a.writeError(w, r, err)
		return
	}
	// Same body whether or not the address exists.
	a.writeJSON(w, http.StatusOK, map[string]bool{"sent": true})
}

func (a *API) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token       string `json:"token"`
		NewPassword string `json:"newPassword"`
	}
	if !a.decode(w, r, &req) {
		return
	}

	if err := a.engine.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	ac, _ := vauth.AuthFromContext(r.Context())

	user, err := a.engine.User(r.Context(), ac.UserID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]interface{}{"user": user})
}

func (a *API) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	ac, _ := vauth.AuthFromContext(r.Context())

	var req struct {
		FirstName  *string `json:"firstName"`
		LastName   *string `json:"lastName"`
		PictureURL *string `json:"pictureUrl"`
	}
	if !a.decode(w, r, &req) {
		return
	}

	user, err := a.engine.UpdateProfile(r.Context(), ac.UserID, vauth.UserPatch{
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		PictureURL: req.PictureURL,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]interface{}{"user": user})
}

func (a *API) handleSessions(w http.ResponseWriter, r *http.Request) {
	ac, _ := vauth.AuthFromContext(r.Context())

	sessions, err := a.engine.Sessions(r.Context(), ac.UserID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": sessions,
		"current":  ac.SessionID,
	})
}

func (a *API) handleRevokeSession(w http.ResponseWriter, r *http.Request) {
	ac, _ := vauth.AuthFromContext(r.Context())
	sessionID := chi.URLParam(r, "sessionID")

	if err := a.engine.RevokeSession(r.Context(), ac.UserID, sessionID); err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (a *API) handleMFASetup(w http.ResponseWriter, r *http.Request) {
	ac, _ := vauth.AuthFromContext(r.Context())

	setup, err := a.engine.GenerateMFASecret(r.Context(), ac.UserID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]interface{}{
		"secret": setup.Secret,
		"uri":    setup.URI,
		"qrCode": setup.QRCode,
	})
}

func (a *API) handleMFAEnable(w http.ResponseWriter, r *http.Request) {
	ac, _ := vauth.AuthFromContext(r.Context())

	var req struct {
		Code string `json:"code"`
	}
	if !a.decode(w, r, &req) {
		return
	}

	if err := a.engine.VerifyMFASetup(r.Context(), ac.UserID, req.Code); err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]bool{"enabled": true})
}

func (a *API) handleMFARevoke(w http.ResponseWriter, r *http.Request) {
	ac, _ := vauth.AuthFromContext(r.Context())

	if err := a.engine.RevokeMFA(r.Context(), ac.UserID); err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]bool{"enabled": false})
}

func (a *API) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	ac, _ := vauth.AuthFromContext(r.Context())

	err := a.engine.DeactivateAccount(r.Context(), ac.UserID)
	a.clearTokenCookies(w)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (a *API) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	ac, _ := vauth.AuthFromContext(r.Context())

	err := a.engine.DeleteAccount(r.Context(), ac.UserID)
	a.clearTokenCookies(w)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
