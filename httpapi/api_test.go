package httpapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	vauth "github.com/vendo-labs/vauth"
	"github.com/vendo-labs/vauth/httpapi"
	"github.com/vendo-labs/vauth/mailer"
	"github.com/vendo-labs/vauth/store/memory"
)

type apiFixture struct {
	router chi.Router
	mails  *mailer.Capture
}

func newAPIFixture(t *testing.T, production bool) *apiFixture {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cfg := vauth.DefaultConfig()
	cfg.JWT.AccessSecret = []byte("test-access-secret-test-access-se")
	cfg.JWT.RefreshSecret = []byte("test-refresh-secret-test-refresh-")
	cfg.Password.Cost = 10
	cfg.Lockout.BlockDuration = time.Minute
	cfg.Audit.Enabled = false

	mails := mailer.NewCapture()
	engine, err := vauth.New().
		WithConfig(cfg).
		WithRedis(client).
		WithUserStore(memory.New()).
		WithMailer(mails).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)

	api := httpapi.New(engine, httpapi.Config{
		Production:        production,
		AccessTTLSeconds:  int(cfg.JWT.AccessTTL.Seconds()),
		RefreshTTLSeconds: int(cfg.JWT.RefreshTTL.Seconds()),
	}, nil)

	return &apiFixture{router: api.Router(), mails: mails}
}

func (f *apiFixture) post(t *testing.T, path string, body interface{}, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	return f.do(t, http.MethodPost, path, body, cookies...)
}

func (f *apiFixture) do(t *testing.T, method, path string, body interface{}, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	for _, c := range cookies {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func cookieByName(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// registerAndVerify drives a user through the register + verify-email
// endpoints.
func (f *apiFixture) registerAndVerify(t *testing.T, email, password string) {
	t.Helper()

	rec := f.post(t, "/auth/register", map[string]string{
		"email": email, "password": password, "firstName": "Ada",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d: %s", rec.Code, rec.Body.String())
	}

	mail, ok := f.mails.Last()
	if !ok {
		t.Fatal("no verification mail")
	}
	i := strings.Index(mail.Text, "token=")
	tok := mail.Text[i+len("token="):]
	if j := strings.IndexByte(tok, ' '); j >= 0 {
		tok = tok[:j]
	}

	rec = f.post(t, "/auth/verify-email", map[string]string{"token": tok})
	if rec.Code != http.StatusOK {
		t.Fatalf("verify-email status = %d: %s", rec.Code, rec.Body.String())
	}
}

func (f *apiFixture) loginOK(t *testing.T, email, password string) *httptest.ResponseRecorder {
	t.Helper()
	rec := f.post(t, "/auth/login", map[string]string{"email": email, "password": password})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d: %s", rec.Code, rec.Body.String())
	}
	return rec
}

func TestLoginSetsScopedCookies(t *testing.T) {
	f := newAPIFixture(t, false)
	f.registerAndVerify(t, "a@x.com", "Aa1!aaaa")

	rec := f.loginOK(t, "a@x.com", "Aa1!aaaa")

	access := cookieByName(rec, "accessToken")
	if access == nil || access.Value == "" {
		t.Fatal("no access cookie")
	}
	if access.Path != "/" || !access.HttpOnly {
		t.Fatalf("access cookie = %+v", access)
	}
	if access.Secure {
		t.Fatal("Secure set outside production")
	}

	refresh := cookieByName(rec, "refreshToken")
	if refresh == nil || refresh.Value == "" {
		t.Fatal("no refresh cookie")
	}
	// The refresh token rides along only to its own endpoint.
	if refresh.Path != "/auth/refresh" {
		t.Fatalf("refresh cookie path = %q", refresh.Path)
	}
}

func TestProductionCookieFlags(t *testing.T) {
	f := newAPIFixture(t, true)
	f.registerAndVerify(t, "a@x.com", "Aa1!aaaa")

	rec := f.loginOK(t, "a@x.com", "Aa1!aaaa")
	access := cookieByName(rec, "accessToken")
	if access == nil || !access.Secure || access.SameSite != http.SameSiteStrictMode {
		t.Fatalf("access cookie = %+v", access)
	}
}

func TestLoginBeforeVerificationIs403(t *testing.T) {
	f := newAPIFixture(t, false)

	rec := f.post(t, "/auth/register", map[string]string{"email": "a@x.com", "password": "Aa1!aaaa"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d", rec.Code)
	}

	rec = f.post(t, "/auth/login", map[string]string{"email": "a@x.com", "password": "Aa1!aaaa"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["code"] != "EMAIL_NOT_VERIFIED" {
		t.Fatalf("body = %v", body)
	}
	if cookieByName(rec, "accessToken") != nil {
		t.Fatal("cookie set on a refused login")
	}
}

func TestMeRequiresToken(t *testing.T) {
	f := newAPIFixture(t, false)
	f.registerAndVerify(t, "a@x.com", "Aa1!aaaa")
	login := f.loginOK(t, "a@x.com", "Aa1!aaaa")

	rec := f.do(t, http.MethodGet, "/auth/me", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated /me = %d, want 401", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/auth/me", nil, cookieByName(login, "accessToken"))
	if rec.Code != http.StatusOK {
		t.Fatalf("authenticated /me = %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	user, _ := body["user"].(map[string]interface{})
	if user == nil || user["email"] != "a@x.com" {
		t.Fatalf("body = %v", body)
	}
}

func TestRefreshEndpoint(t *testing.T) {
	f := newAPIFixture(t, false)
	f.registerAndVerify(t, "a@x.com", "Aa1!aaaa")
	login := f.loginOK(t, "a@x.com", "Aa1!aaaa")

	rec := f.post(t, "/auth/refresh", nil, cookieByName(login, "refreshToken"))
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh status = %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["rotated"] != false {
		t.Fatalf("fresh session rotated: %v", body)
	}
	if c := cookieByName(rec, "accessToken"); c == nil || c.Value == "" {
		t.Fatal("no new access cookie")
	}
	// No rotation, so the refresh cookie is left alone.
	if cookieByName(rec, "refreshToken") != nil {
		t.Fatal("refresh cookie rewritten without rotation")
	}
}

func TestRefreshWithoutCookie(t *testing.T) {
	f := newAPIFixture(t, false)

	rec := f.post(t, "/auth/refresh", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestLogoutIsIdempotentOnTheWire(t *testing.T) {
	f := newAPIFixture(t, false)
	f.registerAndVerify(t, "a@x.com", "Aa1!aaaa")
	login := f.loginOK(t, "a@x.com", "Aa1!aaaa")
	access := cookieByName(login, "accessToken")

	rec := f.post(t, "/auth/logout", nil, access)
	if rec.Code != http.StatusOK {
		t.Fatalf("logout status = %d", rec.Code)
	}
	if c := cookieByName(rec, "accessToken"); c == nil || c.MaxAge >= 0 {
		t.Fatalf("access cookie not cleared: %+v", c)
	}

	// The session is gone, so the guard turns the replay into a plain 401.
	rec = f.post(t, "/auth/logout", nil, access)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("second logout = %d, want 401", rec.Code)
	}
}

func TestBlockedLoginCarriesRetryAfter(t *testing.T) {
	f := newAPIFixture(t, false)
	f.registerAndVerify(t, "a@x.com", "Aa1!aaaa")

	var rec *httptest.ResponseRecorder
	for i := 0; i < 5; i++ {
		rec = f.post(t, "/auth/login", map[string]string{"email": "a@x.com", "password": "Wrong!pass1"})
	}
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["code"] != "AUTH_BLOCKED" {
		t.Fatalf("body = %v", body)
	}
	if retry, _ := body["retryAfterMinutes"].(float64); retry < 1 {
		t.Fatalf("retryAfterMinutes = %v", body["retryAfterMinutes"])
	}
}
