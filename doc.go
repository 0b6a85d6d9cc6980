// Package vauth is a session-based authentication engine.
//
// It covers the full credential lifecycle: registration with email
// verification, a strictly ordered password login state machine with
// per-IP lockout, TOTP second factors, OAuth sign-in, server-side
// sessions with sliding expiration, a two-secret JWT pair (short-lived
// access, long-lived refresh with conditional rotation), single-use
// verification and password-reset tokens, and account
// deactivation/deletion.
//
// Construction follows the builder pattern:
//
//	engine, err := vauth.New().
//		WithConfig(cfg).
//		WithRedis(redisClient).
//		WithUserStore(postgres.New(db)).
//		WithMailer(gateway).
//		WithLogger(logger).
//		Build()
//
// Sessions, verification tokens and the lockout tracker live in Redis;
// user records live behind the UserStore interface (PostgreSQL and
// in-memory implementations ship under store/). All cross-request
// atomicity — unique emails, single-use tokens, lockout counters —
// is enforced in the backing stores, never by check-then-act in the
// engine.
//
// Every failure is a sentinel error in this package; use errors.Is to
// branch and Code/MessageKey/HTTPStatus to map to a wire response.
package vauth
