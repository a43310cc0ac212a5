package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zeebo/blake3"

	"github.com/julianstephens/daybook/internal/models"
)

// KeySize is the length of a signing key in bytes.
const KeySize = 32

type claims struct {
	UID      string `json:"uid"`
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
	IssuedAt int64  `json:"iat"`
	Expires  int64  `json:"exp"`
}

// Signer issues and verifies session tokens authenticated with keyed BLAKE3.
type Signer struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

func NewSigner(key []byte, ttl time.Duration) (*Signer, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("signing key must be %d bytes, got %d", KeySize, len(key))
	}
	return &Signer{key: append([]byte(nil), key...), ttl: ttl, now: time.Now}, nil
}

// Sign returns a token for id valid for the signer's TTL.
func (s *Signer) Sign(id models.Identity) (string, error) {
	now := s.now()
	payload, err := json.Marshal(claims{
		UID:      id.UID,
		Email:    id.Email,
		Name:     id.DisplayName,
		IssuedAt: now.Unix(),
		Expires:  now.Add(s.ttl).Unix(),
	})
	if err != nil {
		return "", fmt.Errorf("encode token: %w", err)
	}
	body := base64.RawURLEncoding.EncodeToString(payload)
	return body + "." + base64.RawURLEncoding.EncodeToString(s.mac(body)), nil
}

// Verify checks the signature and expiry and returns the token's identity.
func (s *Signer) Verify(token string) (models.Identity, error) {
	body, sig, ok := strings.Cut(strings.TrimSpace(token), ".")
	if !ok {
		return models.Identity{}, ErrInvalidToken
	}
	got, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil || subtle.ConstantTimeCompare(got, s.mac(body)) != 1 {
		return models.Identity{}, ErrInvalidToken
	}
	payload, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return models.Identity{}, ErrInvalidToken
	}
	var c claims
	if err := json.Unmarshal(payload, &c); err != nil || c.UID == "" {
		return models.Identity{}, ErrInvalidToken
	}
	if s.now().Unix() >= c.Expires {
		return models.Identity{}, fmt.Errorf("%w: expired", ErrInvalidToken)
	}
	return models.Identity{UID: c.UID, Email: c.Email, DisplayName: c.Name}, nil
}

func (s *Signer) mac(body string) []byte {
	h, err := blake3.NewKeyed(s.key)
	if err != nil {
		// key length is checked in NewSigner
		panic(err)
	}
	_, _ = h.Write([]byte(body))
	return h.Sum(nil)
}

// LoadOrCreateKey reads a hex-encoded signing key from path, creating a new
// random key with owner-only permissions when the file does not exist.
func LoadOrCreateKey(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		key, err := hex.DecodeString(strings.TrimSpace(string(data)))
		if err != nil || len(key) != KeySize {
			return nil, fmt.Errorf("signing key %s is malformed", path)
		}
		return key, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read signing key: %w", err)
	}

	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate signing key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create key directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(hex.EncodeToString(key)+"\n"), 0o600); err != nil {
		return nil, fmt.Errorf("failed to write signing key: %w", err)
	}
	return key, nil
}
