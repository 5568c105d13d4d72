package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	// hasherPrefix marks hashes written by the main site's password hasher.
	hasherPrefix  = "argon2$"
	argon2Variant = "argon2id"
	argon2Version = argon2.Version
)

var errInvalidHashFormat = errors.New("argon2: invalid encoded hash format")

// Argon2Config holds the cost parameters used for new hashes.
type Argon2Config struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2Config matches the parameters the main site hashes passwords with.
func DefaultArgon2Config() Argon2Config {
	return Argon2Config{
		Memory:      100 * 1024,
		Iterations:  2,
		Parallelism: 8,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func (c Argon2Config) validate() error {
	switch {
	case c.Memory < 8*1024:
		return errors.New("argon2: memory must be at least 8192 KiB")
	case c.Iterations == 0:
		return errors.New("argon2: iterations must be positive")
	case c.Parallelism == 0:
		return errors.New("argon2: parallelism must be positive")
	case c.SaltLength < 8:
		return errors.New("argon2: salt must be at least 8 bytes")
	case c.KeyLength < 16:
		return errors.New("argon2: key must be at least 16 bytes")
	}
	return nil
}

// Argon2Hasher verifies the password hashes stored on people. It reads both the prefixed form
// "argon2$argon2id$v=19$m=..,t=..,p=..$salt$hash" and the same string without "argon2$".
type Argon2Hasher struct {
	cfg Argon2Config
}

func NewArgon2Hasher(cfg Argon2Config) (*Argon2Hasher, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Argon2Hasher{cfg: cfg}, nil
}

// Hash encodes password in the prefixed form.
func (h *Argon2Hasher) Hash(password string) (string, error) {
	salt := make([]byte, h.cfg.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("argon2: generate salt: %w", err)
	}

	parsed := argon2Hash{
		cfg:  h.cfg,
		salt: salt,
		key:  argon2.IDKey([]byte(password), salt, h.cfg.Iterations, h.cfg.Memory, h.cfg.Parallelism, h.cfg.KeyLength),
	}
	return parsed.String(), nil
}

// Verify reports whether password matches encoded. An empty password or hash never matches.
func (h *Argon2Hasher) Verify(password, encoded string) (bool, error) {
	if password == "" || encoded == "" {
		return false, nil
	}

	parsed, err := parseArgon2Hash(encoded)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey([]byte(password), parsed.salt, parsed.cfg.Iterations, parsed.cfg.Memory, parsed.cfg.Parallelism, uint32(len(parsed.key)))
	return subtle.ConstantTimeCompare(computed, parsed.key) == 1, nil
}

// NeedsRehash reports whether encoded was produced with weaker parameters than the hasher's.
func (h *Argon2Hasher) NeedsRehash(encoded string) bool {
	parsed, err := parseArgon2Hash(encoded)
	if err != nil {
		return true
	}
	c := parsed.cfg
	return c.Memory < h.cfg.Memory || c.Iterations < h.cfg.Iterations || c.Parallelism < h.cfg.Parallelism
}

type argon2Hash struct {
	cfg  Argon2Config
	salt []byte
	key  []byte
}

func (a argon2Hash) String() string {
	return fmt.Sprintf("%s%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		hasherPrefix, argon2Variant, argon2Version,
		a.cfg.Memory, a.cfg.Iterations, a.cfg.Parallelism,
		base64.RawStdEncoding.EncodeToString(a.salt),
		base64.RawStdEncoding.EncodeToString(a.key),
	)
}

func parseArgon2Hash(encoded string) (argon2Hash, error) {
	parts := strings.Split(strings.TrimPrefix(encoded, hasherPrefix), "$")
	if len(parts) != 5 {
		return argon2Hash{}, errInvalidHashFormat
	}
	if parts[0] != argon2Variant {
		return argon2Hash{}, fmt.Errorf("argon2: unsupported variant %q", parts[0])
	}
	if parts[1] != "v="+strconv.Itoa(argon2Version) {
		return argon2Hash{}, fmt.Errorf("argon2: unsupported version %q", parts[1])
	}

	var out argon2Hash
	for _, field := range strings.Split(parts[2], ",") {
		name, value, ok := strings.Cut(field, "=")
		if !ok {
			return argon2Hash{}, errInvalidHashFormat
		}

		bits := 32
		if name == "p" {
			bits = 8
		}
		n, err := strconv.ParseUint(value, 10, bits)
		if err != nil {
			return argon2Hash{}, fmt.Errorf("argon2: parse %s: %w", name, err)
		}

		switch name {
		case "m":
			out.cfg.Memory = uint32(n)
		case "t":
			out.cfg.Iterations = uint32(n)
		case "p":
			out.cfg.Parallelism = uint8(n)
		default:
			return argon2Hash{}, errInvalidHashFormat
		}
	}

	var err error
	if out.salt, err = base64.RawStdEncoding.DecodeString(parts[3]); err != nil {
		return argon2Hash{}, fmt.Errorf("argon2: decode salt: %w", err)
	}
	if out.key, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return argon2Hash{}, fmt.Errorf("argon2: decode hash: %w", err)
	}

	out.cfg.SaltLength = uint32(len(out.salt))
	out.cfg.KeyLength = uint32(len(out.key))
	if err := out.cfg.validate(); err != nil {
		return argon2Hash{}, err
	}

	return out, nil
}
