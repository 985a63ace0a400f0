// Package token signs and verifies unsubscribe tokens embedded in email
// footers. A token carries the user id, the notification type being opted out
// of, and its issue time; tokens older than the TTL are rejected.
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

const TTL = 72 * time.Hour

var (
	ErrInvalid = errors.New("token_invalid")
	ErrExpired = errors.New("token_expired")
)

// Claims are the verified contents of a token.
type Claims struct {
	UserID           snowflake.ID
	NotificationType string
	IssuedAt         time.Time
}

type Signer struct {
	secret []byte
}

func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Generate returns an opaque token for the user and notification type.
func (s *Signer) Generate(userID snowflake.ID, notificationType string, issuedAt time.Time) string {
	payload := fmt.Sprintf("%d:%s:%d", userID, notificationType, issuedAt.Unix())
	return base64.RawURLEncoding.EncodeToString([]byte(payload)) + "." + s.sign(payload)
}

// Verify checks the signature and TTL. The signature comparison is
// constant-time.
func (s *Signer) Verify(token string, now time.Time) (*Claims, error) {
	encoded, signature, ok := strings.Cut(token, ".")
	if !ok {
		return nil, ErrInvalid
	}

	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrInvalid
	}
	payload := string(raw)

	if !hmac.Equal([]byte(signature), []byte(s.sign(payload))) {
		return nil, ErrInvalid
	}

	parts := strings.Split(payload, ":")
	if len(parts) != 3 {
		return nil, ErrInvalid
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return nil, ErrInvalid
	}
	issued, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return nil, ErrInvalid
	}

	issuedAt := time.Unix(issued, 0)
	if now.Sub(issuedAt) > TTL {
		return nil, ErrExpired
	}

	return &Claims{
		UserID:           snowflake.ID(id),
		NotificationType: parts[1],
		IssuedAt:         issuedAt.UTC(),
	}, nil
}

func (s *Signer) sign(payload string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
