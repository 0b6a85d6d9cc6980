package vauth_test

import (
	"context"
	"errors"
	"testing"

	vauth "github.com/vendo-labs/vauth"
)

func googleProfile(email, accountID string) vauth.OAuthProfile {
	return vauth.OAuthProfile{
		Provider:          vauth.ProviderGoogle,
		ProviderAccountID: accountID,
		Email:             email,
		FirstName:         "Ada",
		EmailVerified:     true,
		IP:                "1.2.3.4",
		UserAgent:         "test-agent",
	}
}

func TestOAuthFirstLoginCreatesUser(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	result, err := f.engine.LoginWithOAuth(ctx, googleProfile("Ada@Example.com", "g-1"))
	if err != nil {
		t.Fatalf("LoginWithOAuth: %v", err)
	}
	if result.AccessToken == "" || result.SessionID == "" {
		t.Fatalf("no session issued: %+v", result)
	}
	if result.User == nil || result.User.Email != "ada@example.com" {
		t.Fatalf("user = %+v", result.User)
	}
	// The provider vouched for the address, so no verification round trip.
	if !result.User.IsEmailVerified {
		t.Fatal("provider-verified address not marked verified")
	}
	if n := len(f.mails.Sent()); n != 0 {
		t.Fatalf("mails sent = %d, want 0", n)
	}
}

func TestOAuthRepeatLoginReusesBinding(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	first, err := f.engine.LoginWithOAuth(ctx, googleProfile("ada@example.com", "g-1"))
	if err != nil {
		t.Fatalf("first login: %v", err)
	}
	second, err := f.engine.LoginWithOAuth(ctx, googleProfile("ada@example.com", "g-1"))
	if err != nil {
		t.Fatalf("second login: %v", err)
	}
	if second.User.ID != first.User.ID {
		t.Fatalf("second login created a new user: %s vs %s", second.User.ID, first.User.ID)
	}
	if second.SessionID == first.SessionID {
		t.Fatal("sessions not independent")
	}

	sessions, _ := f.engine.Sessions(ctx, first.User.ID)
	if len(sessions) != 2 {
		t.Fatalf("sessions = %d, want 2", len(sessions))
	}
}

func TestOAuthRejectsEmailOwnedByPasswordAccount(t *testing.T) {
	f := newFixture(t, nil)
	f.registerVerified(t, "ada@example.com", "Aa1!aaaa")

	_, err := f.engine.LoginWithOAuth(context.Background(), googleProfile("ada@example.com", "g-1"))
	if !errors.Is(err, vauth.ErrWrongProvider) {
		t.Fatalf("got %v, want ErrWrongProvider", err)
	}
}

func TestOAuthRejectsPasswordProvider(t *testing.T) {
	f := newFixture(t, nil)

	profile := googleProfile("ada@example.com", "g-1")
	profile.Provider = vauth.ProviderEmail
	if _, err := f.engine.LoginWithOAuth(context.Background(), profile); err == nil {
		t.Fatal("password provider accepted on the oauth path")
	}
}

func TestOAuthLoginStopsAtMFAGate(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	first, err := f.engine.LoginWithOAuth(ctx, googleProfile("ada@example.com", "g-1"))
	if err != nil {
		t.Fatalf("first login: %v", err)
	}
	f.enableMFA(t, first.User.ID)

	result, err := f.engine.LoginWithOAuth(ctx, googleProfile("ada@example.com", "g-1"))
	if err != nil {
		t.Fatalf("login with MFA on: %v", err)
	}
	if !result.MFARequired || result.AccessToken != "" {
		t.Fatalf("result = %+v, want MFA required without tokens", result)
	}
}

func TestPasswordLoginForOAuthOnlyAccount(t *testing.T) {
	f := newFixture(t, nil)

	if _, err := f.engine.LoginWithOAuth(context.Background(), googleProfile("ada@example.com", "g-1")); err != nil {
		t.Fatalf("LoginWithOAuth: %v", err)
	}

	// There is no password to compare, so the password path refuses the
	// address outright.
	_, err := f.login(t, "ada@example.com", "Aa1!aaaa", "1.2.3.4")
	if !errors.Is(err, vauth.ErrWrongProvider) {
		t.Fatalf("got %v, want ErrWrongProvider", err)
	}
}

func TestOAuthDeactivatedAccount(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	first, err := f.engine.LoginWithOAuth(ctx, googleProfile("ada@example.com", "g-1"))
	if err != nil {
		t.Fatalf("first login: %v", err)
	}
	if err := f.engine.DeactivateAccount(ctx, first.User.ID); err != nil {
		t.Fatalf("DeactivateAccount: %v", err)
	}

	_, err = f.engine.LoginWithOAuth(ctx, googleProfile("ada@example.com", "g-1"))
	if !errors.Is(err, vauth.ErrAccountDeactivated) {
		t.Fatalf("got %v, want ErrAccountDeactivated", err)
	}
}
