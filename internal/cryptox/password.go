// Package cryptox implements the one-way password hash used for account
// credentials.
package cryptox

import (
	"crypto/subtle"
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/argon2"
)

// ErrEmptyPassword is returned when there is nothing to hash.
var ErrEmptyPassword = errors.New("empty password")

const (
	argonTime    = 1
	argonMemory  = 19 * 1024
	argonThreads = 2
	argonKeyLen  = 32
)

// Hasher derives deterministic argon2id hashes keyed by a server-wide
// secret, so the same password always yields the same stored hash.
type Hasher struct {
	secret []byte
}

func NewHasher(secret string) *Hasher {
	return &Hasher{secret: []byte(secret)}
}

// Hash returns the hex-encoded argon2id digest of password.
func (h *Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	key := argon2.IDKey([]byte(password), h.secret, argonTime, argonMemory, argonThreads, argonKeyLen)
	return hex.EncodeToString(key), nil
}

// Matches reports whether password hashes to stored. The comparison is
// constant time.
func (h *Hasher) Matches(password, stored string) bool {
	candidate, err := h.Hash(password)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(stored)) == 1
}
