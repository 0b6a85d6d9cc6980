// Package middleware adapts the engine's token verification to net/http.
// It reads the access token from the accessToken cookie or the
// Authorization header, verifies it through the Engine, and threads the
// resulting AuthContext through the request context. No authentication
// decision is made here.
package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	vauth "github.com/vendo-labs/vauth"
)

// AccessTokenCookie is the cookie name clients receive at login.
const AccessTokenCookie = "accessToken"

// Authenticate rejects requests without a valid access token and attaches
// the verified AuthContext for downstream handlers. Handlers retrieve it
// with vauth.AuthFromContext.
func Authenticate(engine *vauth.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := accessToken(r)
			if !ok {
				reject(w, vauth.ErrUnauthorized)
				return
			}

			ac, err := engine.VerifyAccess(r.Context(), token)
			if err != nil {
				reject(w, vauth.ErrUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(vauth.WithAuthContext(r.Context(), ac)))
		})
	}
}

// RequireRole gates a route on the role claim. Must run after
// Authenticate.
func RequireRole(role vauth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac, ok := vauth.AuthFromContext(r.Context())
			if !ok {
				reject(w, vauth.ErrUnauthorized)
				return
			}
			if ac.Role != role {
				reject(w, vauth.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func accessToken(r *http.Request) (string, bool) {
	if c, err := r.Cookie(AccessTokenCookie); err == nil && c.Value != "" {
		return c.Value, true
	}
	const bearer = "Bearer "
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, bearer) && len(auth) > len(bearer) {
		return auth[len(bearer):], true
	}
	return "", false
}

func reject(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(vauth.HTTPStatus(err))
	_ = json.NewEncoder(w).Encode(map[string]string{
		"code":       vauth.Code(err),
		"messageKey": vauth.MessageKey(err),
	})
}
