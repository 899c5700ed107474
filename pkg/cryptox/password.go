package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters for newly created hashes. Stored hashes carry their own
// parameters so these can change without invalidating existing credentials.
const (
	argonMemory      = 19 * 1024 // KiB
	argonIterations  = 2
	argonParallelism = 1
	argonKeyLength   = 32
	argonSaltLength  = 16
)

var (
	ErrPasswordMismatch = errors.New("password does not match")
	ErrInvalidHash      = errors.New("invalid password hash format")
)

// phcHash is a decoded "$argon2id$v=19$m=..,t=..,p=..$salt$hash" string.
type phcHash struct {
	memory      uint32
	iterations  uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

// HashPassword returns a PHC-encoded argon2id hash of the peppered password.
func HashPassword(password string) (string, error) {
	pepper, err := loadPepper()
	if err != nil {
		return "", fmt.Errorf("load pepper: %w", err)
	}

	salt := make([]byte, argonSaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	key := argon2.IDKey([]byte(password+pepper), salt, argonIterations, argonMemory, argonParallelism, argonKeyLength)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argonMemory,
		argonIterations,
		argonParallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// VerifyPassword checks password against an encoded hash. Two encodings are
// understood: PHC argon2id (current) and the bare 64 character SHA-256 hex
// digest written by the previous deployment's admin scripts.
func VerifyPassword(password, encoded string) error {
	if IsLegacyHash(encoded) {
		sum := sha256.Sum256([]byte(password))
		want, _ := hex.DecodeString(strings.ToLower(encoded))
		if subtle.ConstantTimeCompare(sum[:], want) == 1 {
			return nil
		}
		return ErrPasswordMismatch
	}

	h, err := parsePHC(encoded)
	if err != nil {
		return err
	}

	pepper, err := loadPepper()
	if err != nil {
		return fmt.Errorf("load pepper: %w", err)
	}

	computed := argon2.IDKey(
		[]byte(password+pepper),
		h.salt,
		h.iterations,
		h.memory,
		h.parallelism,
		uint32(len(h.key)), // #nosec G115 -- key length comes from a 32 byte hash
	)
	if subtle.ConstantTimeCompare(computed, h.key) == 1 {
		return nil
	}
	return ErrPasswordMismatch
}

// NeedsRehash reports whether an encoded hash should be replaced with a fresh
// argon2id hash after the next successful verification.
func NeedsRehash(encoded string) bool {
	if IsLegacyHash(encoded) {
		return true
	}
	h, err := parsePHC(encoded)
	if err != nil {
		return true
	}
	return h.memory != argonMemory || h.iterations != argonIterations || h.parallelism != argonParallelism
}

// IsLegacyHash reports whether encoded is an unsalted SHA-256 hex digest.
func IsLegacyHash(encoded string) bool {
	if len(encoded) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(encoded)
	return err == nil
}

func parsePHC(encoded string) (phcHash, error) {
	// ["", "argon2id", "v=19", "m=X,t=Y,p=Z", salt, key]
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return phcHash{}, fmt.Errorf("%w: expected 6 parts", ErrInvalidHash)
	}
	if parts[1] != "argon2id" {
		return phcHash{}, fmt.Errorf("%w: not argon2id", ErrInvalidHash)
	}
	if parts[2] != fmt.Sprintf("v=%d", argon2.Version) {
		return phcHash{}, fmt.Errorf("%w: unsupported version", ErrInvalidHash)
	}

	var h phcHash
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &h.memory, &h.iterations, &h.parallelism); err != nil {
		return phcHash{}, fmt.Errorf("%w: parameters: %v", ErrInvalidHash, err)
	}

	var err error
	if h.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return phcHash{}, fmt.Errorf("%w: salt: %v", ErrInvalidHash, err)
	}
	if h.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return phcHash{}, fmt.Errorf("%w: key: %v", ErrInvalidHash, err)
	}
	if len(h.key) == 0 {
		return phcHash{}, fmt.Errorf("%w: empty key", ErrInvalidHash)
	}
	return h, nil
}
