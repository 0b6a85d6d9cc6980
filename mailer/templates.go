// Package mailer renders the engine's transactional mails and hands them
// to a Gateway. Templates are compiled once at construction.
package mailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/url"
)

// Mail is a single outbound message. Text and HTML are both populated by
// the template layer; gateways may send either part.
type Mail struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Gateway is the outbound email transport contract.
type Gateway interface {
	Send(ctx context.Context, mail Mail) (id string, err error)
}

// ErrDelivery wraps gateway failures.
var ErrDelivery = errors.New("email delivery failed")

const verifyHTML = `<p>Hi {{.Name}},</p>
<p>Welcome to {{.AppName}}! Please confirm your email address:</p>
<p><a href="{{.Link}}">Verify my email</a></p>
<p>This link expires in {{.TTL}}. If you didn't create an account, you can ignore this message.</p>`

const resetHTML = `<p>Hi {{.Name}},</p>
<p>We received a request to reset your {{.AppName}} password:</p>
<p><a href="{{.Link}}">Reset my password</a></p>
<p>This link expires in {{.TTL}}. If you didn't request this, you can ignore this message.</p>`

const blockedHTML = `<p>Hi {{.Name}},</p>
<p>Someone made too many failed attempts to sign in to your {{.AppName}} account.
Sign-in from that address is paused for {{.Minutes}} minutes.</p>
<p>If this wasn't you, consider changing your password.</p>`

type templateData struct {
	Name    string
	AppName string
	Link    string
	TTL     string
	Minutes int
}

// Sender renders and dispatches the engine's mails through a gateway.
type Sender struct {
	gateway   Gateway
	appName   string
	clientURL string

	verify  *template.Template
	reset   *template.Template
	blocked *template.Template
}

// NewSender compiles the mail templates. clientURL is the front-end base
// URL the verification and reset links point at.
func NewSender(gateway Gateway, appName, clientURL string) *Sender {
	return &Sender{
		gateway:   gateway,
		appName:   appName,
		clientURL: clientURL,
		verify:    template.Must(template.New("verify").Parse(verifyHTML)),
		reset:     template.Must(template.New("reset").Parse(resetHTML)),
		blocked:   template.Must(template.New("blocked").Parse(blockedHTML)),
	}
}

func (s *Sender) link(path, token string) string {
	return s.clientURL + path + "?token=" + url.QueryEscape(token)
}

func (s *Sender) render(t *template.Template, data templateData) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (s *Sender) send(ctx context.Context, to, subject, html, text string) error {
	_, err := s.gateway.Send(ctx, Mail{
		To:      to,
		Subject: subject,
		HTML:    html,
		Text:    text,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	return nil
}

// SendVerification mails the email-verification link.
func (s *Sender) SendVerification(ctx context.Context, to, name, token, ttl string) error {
	html, err := s.render(s.verify, templateData{
		Name: name, AppName: s.appName, Link: s.link("/verify-email", token), TTL: ttl,
	})
	if err != nil {
		return err
	}
	text := fmt.Sprintf("Verify your %s email: %s (expires in %s)",
		s.appName, s.link("/verify-email", token), ttl)
	return s.send(ctx, to, "Verify your email", html, text)
}

// SendPasswordReset mails the password-reset link.
func (s *Sender) SendPasswordReset(ctx context.Context, to, name, token, ttl string) error {
	html, err := s.render(s.reset, templateData{
		Name: name, AppName: s.appName, Link: s.link("/reset-password", token), TTL: ttl,
	})
	if err != nil {
		return err
	}
	text := fmt.Sprintf("Reset your %s password: %s (expires in %s)",
		s.appName, s.link("/reset-password", token), ttl)
	return s.send(ctx, to, "Reset your password", html, text)
}

// SendBlockedNotice informs the account owner that sign-in was paused.
func (s *Sender) SendBlockedNotice(ctx context.Context, to, name string, minutes int) error {
	html, err := s.render(s.blocked, templateData{
		Name: name, AppName: s.appName, Minutes: minutes,
	})
	if err != nil {
		return err
	}
	text := fmt.Sprintf("Too many failed sign-in attempts to your %s account. Sign-in paused for %d minutes.",
		s.appName, minutes)
	return s.send(ctx, to, "Sign-in temporarily paused", html, text)
}
