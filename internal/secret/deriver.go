package secret

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const tokenKeyInfo = "vpn-provision client token v1"

// Deriver issues and verifies per-identity authorization tokens. Tokens are
// deterministic for a given server secret, so no session state is stored:
// verification is recomputation and comparison.
type Deriver struct {
	tokenKey []byte
}

// NewDeriver expands the configured server secret into a dedicated token
// signing key.
func NewDeriver(serverSecret string) (*Deriver, error) {
	if serverSecret == "" {
		return nil, fmt.Errorf("server secret must not be empty")
	}

	key := make([]byte, sha256.Size)
	kdf := hkdf.New(sha256.New, []byte(serverSecret), nil, []byte(tokenKeyInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("failed to derive token key: %w", err)
	}

	return &Deriver{tokenKey: key}, nil
}

// Derive returns the authorization token for an identity.
func (d *Deriver) Derive(identity string) string {
	mac := hmac.New(sha256.New, d.tokenKey)
	mac.Write([]byte(identity))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether candidate is the token for identity. The comparison
// is constant-time.
func (d *Deriver) Verify(identity, candidate string) bool {
	mac := hmac.New(sha256.New, d.tokenKey)
	mac.Write([]byte(identity))
	expected := mac.Sum(nil)

	got, err := hex.DecodeString(candidate)
	if err != nil {
		return false
	}
	return hmac.Equal(expected, got)
}
