// Package audit carries security-relevant events from the engine to a
// pluggable sink without blocking request flows.
package audit

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event types emitted by the engine.
const (
	TypeRegister          = "auth.register"
	TypeLoginSuccess      = "auth.login.success"
	TypeLoginFailure      = "auth.login.failure"
	TypeLoginBlocked      = "auth.login.blocked"
	TypeLoginMFARequired  = "auth.login.mfa_required"
	TypeRefresh           = "auth.refresh"
	TypeLogout            = "auth.logout"
	TypeEmailVerified     = "auth.email.verified"
	TypeVerificationSent  = "auth.email.verification_sent"
	TypePasswordForgot    = "auth.password.forgot"
	TypePasswordReset     = "auth.password.reset"
	TypeMFAEnabled        = "auth.mfa.enabled"
	TypeMFARevoked        = "auth.mfa.revoked"
	TypeOAuthLogin        = "auth.oauth.login"
	TypeAccountDeactivate = "auth.account.deactivated"
	TypeAccountReactivate = "auth.account.reactivated"
	TypeAccountDeleted    = "auth.account.deleted"
	TypeSessionRevoked    = "auth.session.revoked"
)

// Event is one security-relevant occurrence.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	Type      string            `json:"type"`
	UserID    string            `json:"userId,omitempty"`
	SessionID string            `json:"sessionId,omitempty"`
	Email     string            `json:"email,omitempty"`
	IP        string            `json:"ip,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Sink receives dispatched events. Emit must not panic; slow sinks only
// delay the dispatcher goroutine, never request flows.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// NoOpSink drops every event.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink forwards events into a buffered channel, mainly for tests
// and in-process consumers.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{events: make(chan Event, buffer)}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{writer: w}
}

func (s *JSONWriterSink) Emit(_ context.Context, event Event) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}

// ZapSink logs each event at info level through a structured logger.
type ZapSink struct {
	logger *zap.Logger
}

func NewZapSink(logger *zap.Logger) *ZapSink {
	return &ZapSink{logger: logger}
}

func (s *ZapSink) Emit(_ context.Context, event Event) {
	if s == nil || s.logger == nil {
		return
	}
	fields := []zap.Field{
		zap.Time("timestamp", event.Timestamp),
		zap.Bool("success", event.Success),
	}
	if event.UserID != "" {
		fields = append(fields, zap.String("userId", event.UserID))
	}
	if event.SessionID != "" {
		fields = append(fields, zap.String("sessionId", event.SessionID))
	}
	if event.IP != "" {
		fields = append(fields, zap.String("ip", event.IP))
	}
	if event.Error != "" {
		fields = append(fields, zap.String("error", event.Error))
	}
	s.logger.Info(event.Type, fields...)
}
