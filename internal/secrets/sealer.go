// Package secrets seals browser cookie jars at rest with an age X25519
// identity.
package secrets

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"filippo.io/age"
	"filippo.io/age/armor"
)

var ErrNoIdentity = errors.New("cookie jar is sealed but no age identity is configured")

// Sealer encrypts to its own recipient and decrypts with the matching
// identity. A zero identity makes it a passthrough for plaintext jars.
type Sealer struct {
	identity  *age.X25519Identity
	recipient *age.X25519Recipient
}

// NewSealer parses an AGE-SECRET-KEY-1... identity. An empty secret yields a
// sealer that leaves plaintext alone and rejects sealed input.
func NewSealer(secret string) (*Sealer, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return &Sealer{}, nil
	}
	identity, err := age.ParseX25519Identity(secret)
	if err != nil {
		return nil, fmt.Errorf("parse age identity: %w", err)
	}
	return &Sealer{identity: identity, recipient: identity.Recipient()}, nil
}

// Enabled reports whether jars written through this sealer are encrypted.
func (s *Sealer) Enabled() bool {
	return s != nil && s.identity != nil
}

// Recipient is the public key jars are sealed to, empty when disabled.
func (s *Sealer) Recipient() string {
	if !s.Enabled() {
		return ""
	}
	return s.recipient.String()
}

// IsSealed reports whether jar is an armored age file.
func IsSealed(jar string) bool {
	return strings.HasPrefix(strings.TrimSpace(jar), armor.Header)
}

// Seal encrypts plaintext into an armored age file. Disabled sealers and
// already sealed input return it unchanged.
func (s *Sealer) Seal(plaintext string) (string, error) {
	if !s.Enabled() || plaintext == "" || IsSealed(plaintext) {
		return plaintext, nil
	}

	var buf bytes.Buffer
	aw := armor.NewWriter(&buf)
	w, err := age.Encrypt(aw, s.recipient)
	if err != nil {
		return "", fmt.Errorf("seal cookie jar: %w", err)
	}
	if _, err := io.WriteString(w, plaintext); err != nil {
		return "", fmt.Errorf("seal cookie jar: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("seal cookie jar: %w", err)
	}
	if err := aw.Close(); err != nil {
		return "", fmt.Errorf("seal cookie jar: %w", err)
	}
	return buf.String(), nil
}

// Open returns the plaintext jar. Plaintext input passes through so configs
// captured before sealing was enabled keep working.
func (s *Sealer) Open(jar string) (string, error) {
	if !IsSealed(jar) {
		return jar, nil
	}
	if !s.Enabled() {
		return "", ErrNoIdentity
	}

	r, err := age.Decrypt(armor.NewReader(strings.NewReader(strings.TrimSpace(jar))), s.identity)
	if err != nil {
		return "", fmt.Errorf("open cookie jar: %w", err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("open cookie jar: %w", err)
	}
	return string(out), nil
}
