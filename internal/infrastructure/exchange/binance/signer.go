package binance

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Signer signs request query strings with the account secret.
type Signer struct {
	apiKey string
	secret []byte
}

func NewSigner(apiKey, secret string) *Signer {
	return &Signer{apiKey: apiKey, secret: []byte(secret)}
}

// APIKey is sent in the X-MBX-APIKEY header.
func (s *Signer) APIKey() string {
	return s.apiKey
}

// Sign returns the hex HMAC-SHA256 of payload.
func (s *Signer) Sign(payload string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// Wipe clears the secret from memory.
func (s *Signer) Wipe() {
	for i := range s.secret {
		s.secret[i] = 0
	}
}
