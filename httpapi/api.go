// Package httpapi exposes the engine over HTTP. It owns everything the
// engine deliberately does not: routing, request decoding, cookie policy,
// message translation and the error-to-status mapping.
package httpapi

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	vauth "github.com/vendo-labs/vauth"
	"github.com/vendo-labs/vauth/middleware"
)

const (
	accessTokenCookie  = "accessToken"
	refreshTokenCookie = "refreshToken"
	refreshPath        = "/auth/refresh"
)

// Translator renders a message key for the requester's locale. The
// default echoes the key.
type Translator func(key string) string

// API is the HTTP handler set bound to one Engine.
type API struct {
	engine     *vauth.Engine
	logger     *zap.Logger
	translate  Translator
	production bool
	accessTTL  int
	refreshTTL int
}

// Config carries the boundary-level knobs.
type Config struct {
	Production bool
	// AccessTTLSeconds and RefreshTTLSeconds set cookie Max-Age. They
	// should mirror the engine's JWT TTLs.
	AccessTTLSeconds  int
	RefreshTTLSeconds int
	Translate         Translator
}

// New creates the API. logger may be nil.
func New(engine *vauth.Engine, cfg Config, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	translate := cfg.Translate
	if translate == nil {
		translate = func(key string) string { return key }
	}
	return &API{
		engine:     engine,
		logger:     logger,
		translate:  translate,
		production: cfg.Production,
		accessTTL:  cfg.AccessTTLSeconds,
		refreshTTL: cfg.RefreshTTLSeconds,
	}
}

// Router builds the chi router with all auth routes mounted under /auth.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	authn := middleware.Authenticate(a.engine)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", a.handleRegister)
		r.Post("/login", a.handleLogin)
		r.Post("/mfa/verify", a.handleMFAVerify)
		r.Post("/refresh", a.handleRefresh)
		r.Post("/verify-email", a.handleVerifyEmail)
		r.Post("/resend-verification", a.handleResendVerification)
		r.Post("/forgot-password", a.handleForgotPassword)
		r.Post("/reset-password", a.handleResetPassword)

		r.Group(func(r chi.Router) {
			r.Use(authn)
			r.Get("/me", a.handleMe)
			r.Patch("/me", a.handleUpdateProfile)
			r.Post("/logout", a.handleLogout)
			r.Post("/logout-all", a.handleLogoutAll)
			r.Get("/sessions", a.handleSessions)
			r.Delete("/sessions/{sessionID}", a.handleRevokeSession)
			r.Post("/mfa/setup", a.handleMFASetup)
			r.Post("/mfa/enable", a.handleMFAEnable)
			r.Post("/mfa/revoke", a.handleMFARevoke)
			r.Post("/deactivate", a.handleDeactivate)
			r.Delete("/account", a.handleDeleteAccount)
		})
	})

	return r
}

// errorBody is the wire shape of every failure.
type errorBody struct {
	Code       string `json:"code"`
	MessageKey string `json:"messageKey"`
	Message    string `json:"message"`
	// RetryAfterMinutes is only present on lockout responses.
	RetryAfterMinutes int `json:"retryAfterMinutes,omitempty"`
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := vauth.HTTPStatus(err)
	body := errorBody{
		Code:       vauth.Code(err),
		MessageKey: vauth.MessageKey(err),
	}
	body.Message = a.translate(body.MessageKey)

	var blocked *vauth.BlockedError
	if errors.As(err, &blocked) {
		body.RetryAfterMinutes = blocked.RemainingMinutes()
	}

	if status >= http.StatusInternalServerError {
		// Internal detail stays in the log, never on the wire.
		a.logger.Error("request failed",
			zap.String("path", r.URL.Path), zap.Error(err))
	}

	a.writeJSON(w, status, body)
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func (a *API) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		a.writeJSON(w, http.StatusBadRequest, errorBody{
			Code:       "MALFORMED_BODY",
			MessageKey: "error.malformed_body",
			Message:    a.translate("error.malformed_body"),
		})
		return false
	}
	return true
}

func (a *API) cookie(name, value, path string, maxAge int) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		MaxAge:   maxAge,
		HttpOnly: true,
	}
	if a.production {
		c.Secure = true
		c.SameSite = http.SameSiteStrictMode
	}
	return c
}

// setTokenCookies installs the token pair. The refresh cookie is scoped
// to the refresh endpoint so it rides along on no other request.
func (a *API) setTokenCookies(w http.ResponseWriter, access, refresh string) {
	http.SetCookie(w, a.cookie(accessTokenCookie, access, "/", a.accessTTL))
	if refresh != "" {
		http.SetCookie(w, a.cookie(refreshTokenCookie, refresh, refreshPath, a.refreshTTL))
	}
}

func (a *API) clearTokenCookies(w http.ResponseWriter) {
	http.SetCookie(w, a.cookie(accessTokenCookie, "", "/", -1))
	http.SetCookie(w, a.cookie(refreshTokenCookie, "", refreshPath, -1))
}

func clientIP(r *http.Request) string {
	// chi's RealIP middleware rewrites RemoteAddr from the forwarding
	// headers; without a proxy it still carries a port.
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
