package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrEmptyDigest is returned when Verify is asked to check an account that has no stored hash.
	ErrEmptyDigest     = errors.New("stored password digest is empty")
	ErrMalformedDigest = errors.New("malformed password digest")
)

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, digest string) (bool, error)
}

type Argon2Params struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
}

var DefaultArgon2Params = Argon2Params{MemoryKiB: 64 * 1024, Iterations: 1, Parallelism: 4}

const (
	saltLen = 16
	keyLen  = 32
)

// Argon2Hasher writes argon2id digests and still accepts bcrypt digests and the
// unsalted base64(sha256) digests of accounts created before the switch.
type Argon2Hasher struct {
	Params Argon2Params
}

func NewArgon2Hasher(p Argon2Params) *Argon2Hasher {
	if p.MemoryKiB == 0 {
		p.MemoryKiB = DefaultArgon2Params.MemoryKiB
	}
	if p.Iterations == 0 {
		p.Iterations = DefaultArgon2Params.Iterations
	}
	if p.Parallelism == 0 {
		p.Parallelism = DefaultArgon2Params.Parallelism
	}
	return &Argon2Hasher{Params: p}
}

func (h *Argon2Hasher) Hash(password string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}
	return h.HashWithSalt(password, salt), nil
}

// HashWithSalt is deterministic for a given password and salt.
func (h *Argon2Hasher) HashWithSalt(password string, salt []byte) string {
	p := h.Params
	key := argon2.IDKey([]byte(password), salt, p.Iterations, p.MemoryKiB, p.Parallelism, keyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.MemoryKiB, p.Iterations, p.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)
}

func (h *Argon2Hasher) Verify(password, digest string) (bool, error) {
	switch {
	case digest == "":
		return false, ErrEmptyDigest
	case strings.HasPrefix(digest, "$argon2id$"):
		return verifyArgon2(password, digest)
	case isBcrypt(digest):
		err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(password))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrMalformedDigest, err)
		}
		return true, nil
	default:
		return verifyLegacySHA256(password, digest)
	}
}

// NeedsRehash reports whether digest was produced by another scheme or other argon2 parameters.
func (h *Argon2Hasher) NeedsRehash(digest string) bool {
	p, _, _, err := decodeArgon2(digest)
	return err != nil || p != h.Params
}

func verifyArgon2(password, digest string) (bool, error) {
	p, salt, key, err := decodeArgon2(digest)
	if err != nil {
		return false, err
	}
	got := argon2.IDKey([]byte(password), salt, p.Iterations, p.MemoryKiB, p.Parallelism, uint32(len(key)))
	return subtle.ConstantTimeCompare(got, key) == 1, nil
}

func decodeArgon2(digest string) (Argon2Params, []byte, []byte, error) {
	var p Argon2Params
	parts := strings.Split(digest, "$")
	// "", "argon2id", "v=19", "m=..,t=..,p=..", salt, key
	if len(parts) != 6 || parts[1] != "argon2id" {
		return p, nil, nil, ErrMalformedDigest
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return p, nil, nil, fmt.Errorf("%w: unsupported argon2 version", ErrMalformedDigest)
	}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.MemoryKiB, &p.Iterations, &p.Parallelism); err != nil {
		return p, nil, nil, fmt.Errorf("%w: %v", ErrMalformedDigest, err)
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return p, nil, nil, fmt.Errorf("%w: salt: %v", ErrMalformedDigest, err)
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return p, nil, nil, fmt.Errorf("%w: key", ErrMalformedDigest)
	}
	return p, salt, key, nil
}

func isBcrypt(digest string) bool {
	return strings.HasPrefix(digest, "$2a$") || strings.HasPrefix(digest, "$2b$") || strings.HasPrefix(digest, "$2y$")
}

func verifyLegacySHA256(password, digest string) (bool, error) {
	want, err := base64.StdEncoding.DecodeString(digest)
	if err != nil || len(want) != sha256.Size {
		return false, ErrMalformedDigest
	}
	got := sha256.Sum256([]byte(password))
	return subtle.ConstantTimeCompare(got[:], want) == 1, nil
}
