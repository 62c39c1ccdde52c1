// Package token implements the single-use, time-bounded password reset
// tokens and the URL-safe user id encoding carried in reset links.
package token

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultResetTTL bounds how long a reset link stays valid.
const DefaultResetTTL = time.Hour

// ErrUnavailable is returned when no token store is configured.
var ErrUnavailable = errors.New("reset token store unavailable")

// ResetStore issues and consumes password reset tokens backed by Redis.
// Each user has at most one live token; consuming it deletes it, so a token
// validates exactly once.
type ResetStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewResetStore returns a ResetStore. A non-positive TTL falls back to
// DefaultResetTTL.
func NewResetStore(rdb *redis.Client, ttl time.Duration) *ResetStore {
	if ttl <= 0 {
		ttl = DefaultResetTTL
	}
	return &ResetStore{rdb: rdb, ttl: ttl}
}

func (s *ResetStore) key(userID uint) string {
	return fmt.Sprintf("pwreset:%d", userID)
}

// Issue generates a fresh token bound to the user and stores it with the
// configured TTL, replacing any previous token.
func (s *ResetStore) Issue(ctx context.Context, userID uint) (string, error) {
	if s.rdb == nil {
		return "", ErrUnavailable
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate reset token: %w", err)
	}
	tok := hex.EncodeToString(raw)

	if err := s.rdb.Set(ctx, s.key(userID), tok, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to store reset token: %w", err)
	}
	return tok, nil
}

// Consume fetches and deletes the stored token in a single GETDEL, then
// compares. Every attempt burns the token, matching or not, so a link can be
// redeemed at most once even under concurrent confirmations.
func (s *ResetStore) Consume(ctx context.Context, userID uint, tok string) (bool, error) {
	if s.rdb == nil {
		return false, ErrUnavailable
	}

	stored, err := s.rdb.GetDel(ctx, s.key(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to consume reset token: %w", err)
	}

	return subtle.ConstantTimeCompare([]byte(stored), []byte(tok)) == 1, nil
}

// EncodeUID renders a user id as the URL-safe value carried in reset links.
func EncodeUID(userID uint) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.FormatUint(uint64(userID), 10)))
}

// DecodeUID reverses EncodeUID. Any malformed input yields an error; callers
// treat that the same as an unknown user.
func DecodeUID(encoded string) (uint, error) {
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return 0, fmt.Errorf("invalid uid encoding: %w", err)
	}
	id, err := strconv.ParseUint(string(raw), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid uid value: %w", err)
	}
	return uint(id), nil
}
