package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	uuid "github.com/google/uuid"
)

const defaultSessionTTL = 24 * time.Hour

// ErrInvalidSession indicates a session token failed signature or claim validation.
var ErrInvalidSession = errors.New("session: invalid token")

// SessionClaims are carried by access tokens issued after a successful login.
type SessionClaims struct {
	jwt.RegisteredClaims
	// Method records which login modality authenticated the person.
	Method string `json:"amr"`
}

// JWTSessionIssuer signs HS256 access tokens.
type JWTSessionIssuer struct {
	key    []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// NewJWTSessionIssuer builds an issuer. A zero ttl falls back to 24 hours.
func NewJWTSessionIssuer(key string, ttl time.Duration, issuer string) (*JWTSessionIssuer, error) {
	if key == "" {
		return nil, errors.New("session: signing key must not be empty")
	}
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &JWTSessionIssuer{key: []byte(key), ttl: ttl, issuer: issuer, now: time.Now}, nil
}

// WithClock overrides the internal clock, used in tests.
func (i *JWTSessionIssuer) WithClock(now func() time.Time) *JWTSessionIssuer {
	if now != nil {
		i.now = now
	}
	return i
}

// Issue signs a token for personID.
func (i *JWTSessionIssuer) Issue(personID string, method string) (string, time.Time, error) {
	if personID == "" {
		return "", time.Time{}, errors.New("session: person id is required")
	}

	issuedAt := i.now().UTC()
	expiresAt := issuedAt.Add(i.ttl)

	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   personID,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Method: method,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("session: sign token: %w", err)
	}

	return signed, expiresAt, nil
}

// Parse validates raw and returns its claims.
func (i *JWTSessionIssuer) Parse(raw string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return i.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithIssuer(i.issuer),
	)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	return claims, nil
}
