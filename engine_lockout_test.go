package vauth_test

import (
	"errors"
	"testing"

	vauth "github.com/vendo-labs/vauth"
)

func TestLockoutAfterMaxFailures(t *testing.T) {
	f := newFixture(t, nil)
	f.registerVerified(t, "a@x.com", "Aa1!aaaa")

	const ip = "1.2.3.4"

	// Four failures leave the account loggable.
	for i := 0; i < 4; i++ {
		if _, err := f.login(t, "a@x.com", "Wrong!pass1", ip); !errors.Is(err, vauth.ErrInvalidCredentials) {
			t.Fatalf("failure %d = %v, want ErrInvalidCredentials", i+1, err)
		}
	}

	// The fifth failure crosses the threshold and reports the block.
	_, err := f.login(t, "a@x.com", "Wrong!pass1", ip)
	var blocked *vauth.BlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("fifth failure = %v, want BlockedError", err)
	}
	if !errors.Is(err, vauth.ErrAccountBlocked) {
		t.Fatal("BlockedError does not unwrap to ErrAccountBlocked")
	}
	if blocked.RemainingMinutes() < 1 {
		t.Fatalf("remaining minutes = %d", blocked.RemainingMinutes())
	}

	// Even the correct password is refused while blocked; the comparison
	// is skipped entirely.
	if _, err := f.login(t, "a@x.com", "Aa1!aaaa", ip); !errors.Is(err, vauth.ErrAccountBlocked) {
		t.Fatalf("correct password during block = %v, want ErrAccountBlocked", err)
	}

	// A different address is unaffected.
	if _, err := f.login(t, "a@x.com", "Aa1!aaaa", "5.6.7.8"); err != nil {
		t.Fatalf("login from clean address: %v", err)
	}
}

func TestBlockedNoticeSentOnce(t *testing.T) {
	f := newFixture(t, nil)
	f.registerVerified(t, "a@x.com", "Aa1!aaaa")

	const ip = "1.2.3.4"
	before := len(f.mails.Sent())

	for i := 0; i < 5; i++ {
		_, _ = f.login(t, "a@x.com", "Wrong!pass1", ip)
	}
	afterBlock := len(f.mails.Sent())
	if afterBlock != before+1 {
		t.Fatalf("mails after block = %d, want exactly one notice", afterBlock-before)
	}

	// Attempts during the block do not re-notify.
	_, _ = f.login(t, "a@x.com", "Wrong!pass1", ip)
	if len(f.mails.Sent()) != afterBlock {
		t.Fatal("blocked attempt sent another notice")
	}
}

func TestSuccessfulLoginResetsCounter(t *testing.T) {
	f := newFixture(t, nil)
	f.registerVerified(t, "a@x.com", "Aa1!aaaa")

	const ip = "1.2.3.4"
	for i := 0; i < 4; i++ {
		_, _ = f.login(t, "a@x.com", "Wrong!pass1", ip)
	}
	if _, err := f.login(t, "a@x.com", "Aa1!aaaa", ip); err != nil {
		t.Fatalf("login at 4 failures: %v", err)
	}

	// The counter restarted: four more failures still do not block.
	for i := 0; i < 4; i++ {
		if _, err := f.login(t, "a@x.com", "Wrong!pass1", ip); !errors.Is(err, vauth.ErrInvalidCredentials) {
			t.Fatalf("post-reset failure %d = %v", i+1, err)
		}
	}
}
