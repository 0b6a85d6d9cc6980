// Package mfa provisions and validates TOTP second factors.
package mfa

import (
	"bytes"
	"encoding/base32"
	"encoding/base64"
	"image/png"

	"github.com/pquerna/otp/totp"
)

// Provisioned is the material handed to the user during MFA enrollment.
// The secret is only exposed here; after enrollment the engine stores it
// server-side and never returns it again.
type Provisioned struct {
	Secret string
	// URI is the otpauth:// URL authenticator apps accept directly.
	URI string
	// QRCode is the same URI rendered as a base64 PNG data URL.
	QRCode string
}

// Provisioner generates enrollment material for one issuer.
type Provisioner struct {
	issuer string
	qrSize int
}

// NewProvisioner creates a Provisioner. qrSize is the rendered QR code
// edge in pixels; zero means 200.
func NewProvisioner(issuer string, qrSize int) *Provisioner {
	if qrSize <= 0 {
		qrSize = 200
	}
	return &Provisioner{issuer: issuer, qrSize: qrSize}
}

// Generate mints a fresh TOTP secret bound to the account's email.
func (p *Provisioner) Generate(email string) (*Provisioned, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      p.issuer,
		AccountName: email,
	})
	if err != nil {
		return nil, err
	}

	img, err := key.Image(p.qrSize, p.qrSize)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}

	return &Provisioned{
		Secret: key.Secret(),
		URI:    key.URL(),
		QRCode: "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
	}, nil
}

// Rebuild reconstructs enrollment material for a secret provisioned
// earlier, so an interrupted setup shows the same QR code again.
func (p *Provisioner) Rebuild(email, secret string) (*Provisioned, error) {
	raw, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(secret)
	if err != nil {
		return nil, err
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      p.issuer,
		AccountName: email,
		Secret:      raw,
	})
	if err != nil {
		return nil, err
	}

	img, err := key.Image(p.qrSize, p.qrSize)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}

	return &Provisioned{
		Secret: key.Secret(),
		URI:    key.URL(),
		QRCode: "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
	}, nil
}

// Validate reports whether code is currently valid for secret. The
// library allows one time-step of clock skew in each direction.
func Validate(code, secret string) bool {
	return totp.Validate(code, secret)
}
