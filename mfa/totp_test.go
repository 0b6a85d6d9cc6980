package mfa

import (
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
)

func TestGenerateProducesUsableSecret(t *testing.T) {
	p := NewProvisioner("Vendo", 200)

	prov, err := p.Generate("ada@example.com")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if prov.Secret == "" {
		t.Fatal("empty secret")
	}
	if !strings.HasPrefix(prov.URI, "otpauth://totp/") {
		t.Fatalf("URI = %q", prov.URI)
	}
	if !strings.Contains(prov.URI, "Vendo") {
		t.Fatalf("issuer missing from URI: %q", prov.URI)
	}
	if !strings.HasPrefix(prov.QRCode, "data:image/png;base64,") {
		t.Fatalf("QR code is not a PNG data URL: %.40q", prov.QRCode)
	}

	code, err := totp.GenerateCode(prov.Secret, time.Now())
	if err != nil {
		t.Fatalf("GenerateCode: %v", err)
	}
	if !Validate(code, prov.Secret) {
		t.Fatal("freshly generated code does not validate")
	}
	if Validate("000000", prov.Secret) {
		t.Fatal("static code validated")
	}
}

func TestRebuildKeepsSecret(t *testing.T) {
	p := NewProvisioner("Vendo", 200)

	prov, err := p.Generate("ada@example.com")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	rebuilt, err := p.Rebuild("ada@example.com", prov.Secret)
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if rebuilt.Secret != prov.Secret {
		t.Fatalf("rebuilt secret %q differs from %q", rebuilt.Secret, prov.Secret)
	}

	code, _ := totp.GenerateCode(prov.Secret, time.Now())
	if !Validate(code, rebuilt.Secret) {
		t.Fatal("code for original secret rejected by rebuilt material")
	}
}
