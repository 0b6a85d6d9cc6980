package vauth_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	vauth "github.com/vendo-labs/vauth"
)

// ageSession rewrites the stored session so its remaining life is d from
// now, which is how the rotation branch is reached without waiting 29
// days.
func (f *fixture) ageSession(t *testing.T, sessionID string, d time.Duration) {
	t.Helper()
	ctx := context.Background()
	key := "vs:sess:" + sessionID

	data, err := f.redis.Get(ctx, key).Bytes()
	if err != nil {
		t.Fatalf("read session: %v", err)
	}
	var sess map[string]interface{}
	if err := json.Unmarshal(data, &sess); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	sess["expiresAt"] = time.Now().Add(d).Unix()
	out, _ := json.Marshal(sess)
	if err := f.redis.Set(ctx, key, out, d).Err(); err != nil {
		t.Fatalf("write session: %v", err)
	}
}

func TestRefreshWithoutRotation(t *testing.T) {
	f := newFixture(t, nil)
	f.registerVerified(t, "a@x.com", "Aa1!aaaa")
	login, _ := f.login(t, "a@x.com", "Aa1!aaaa", "1.2.3.4")

	// A fresh 30-day session is far above the 24h rotation threshold.
	result, err := f.engine.Refresh(context.Background(), login.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if result.Rotated {
		t.Fatal("fresh session rotated")
	}
	if result.RefreshToken != login.RefreshToken {
		t.Fatal("refresh token changed without rotation")
	}
	if result.AccessToken == "" {
		t.Fatal("no fresh access token issued")
	}
	if _, err := f.engine.VerifyAccess(context.Background(), result.AccessToken); err != nil {
		t.Fatalf("refreshed access token rejected: %v", err)
	}
}

func TestRefreshRotatesNearExpiry(t *testing.T) {
	f := newFixture(t, nil)
	f.registerVerified(t, "a@x.com", "Aa1!aaaa")
	login, _ := f.login(t, "a@x.com", "Aa1!aaaa", "1.2.3.4")

	f.ageSession(t, login.SessionID, time.Hour)

	result, err := f.engine.Refresh(context.Background(), login.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if !result.Rotated {
		t.Fatal("session below threshold did not rotate")
	}
	if result.RefreshToken == login.RefreshToken {
		t.Fatal("rotation returned the old refresh token")
	}

	// The session was extended back to full lifetime.
	sessions, _ := f.engine.Sessions(context.Background(), login.User.ID)
	if len(sessions) != 1 {
		t.Fatalf("sessions = %d", len(sessions))
	}
	remaining := time.Until(time.Unix(sessions[0].ExpiresAt, 0))
	if remaining < 29*24*time.Hour {
		t.Fatalf("remaining after rotation = %s, want ~30d", remaining)
	}

	// The rotated token works for the next exchange.
	if _, err := f.engine.Refresh(context.Background(), result.RefreshToken); err != nil {
		t.Fatalf("refresh with rotated token: %v", err)
	}
}

func TestRefreshGarbledToken(t *testing.T) {
	f := newFixture(t, nil)
	if _, err := f.engine.Refresh(context.Background(), "garbage"); !errors.Is(err, vauth.ErrRefreshInvalid) {
		t.Fatalf("got %v, want ErrRefreshInvalid", err)
	}
}

func TestRefreshAfterLogout(t *testing.T) {
	f := newFixture(t, nil)
	f.registerVerified(t, "a@x.com", "Aa1!aaaa")
	login, _ := f.login(t, "a@x.com", "Aa1!aaaa", "1.2.3.4")

	ctx := context.Background()
	_ = f.engine.Logout(ctx, login.SessionID)

	if _, err := f.engine.Refresh(ctx, login.RefreshToken); !errors.Is(err, vauth.ErrSessionNotFound) {
		t.Fatalf("got %v, want ErrSessionNotFound", err)
	}
}

func TestRefreshExpiredSession(t *testing.T) {
	f := newFixture(t, nil)
	f.registerVerified(t, "a@x.com", "Aa1!aaaa")
	login, _ := f.login(t, "a@x.com", "Aa1!aaaa", "1.2.3.4")

	// Past-expiry record that still physically exists.
	ctx := context.Background()
	key := "vs:sess:" + login.SessionID
	data, _ := f.redis.Get(ctx, key).Bytes()
	var sess map[string]interface{}
	_ = json.Unmarshal(data, &sess)
	sess["expiresAt"] = time.Now().Add(-time.Minute).Unix()
	out, _ := json.Marshal(sess)
	_ = f.redis.Set(ctx, key, out, time.Hour).Err()

	if _, err := f.engine.Refresh(ctx, login.RefreshToken); !errors.Is(err, vauth.ErrSessionExpired) {
		t.Fatalf("got %v, want ErrSessionExpired", err)
	}
}

func TestRefreshDeactivatedAccount(t *testing.T) {
	f := newFixture(t, nil)
	user := f.registerVerified(t, "a@x.com", "Aa1!aaaa")
	login, _ := f.login(t, "a@x.com", "Aa1!aaaa", "1.2.3.4")

	ctx := context.Background()

	// DeactivateAccount also revokes sessions, which would hide the status
	// check; flip the flag at the store instead.
	active := false
	if _, err := f.users.Update(ctx, user.ID, vauth.UserPatch{IsActive: &active}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if _, err := f.engine.Refresh(ctx, login.RefreshToken); !errors.Is(err, vauth.ErrAccountDeactivated) {
		t.Fatalf("got %v, want ErrAccountDeactivated", err)
	}
}
