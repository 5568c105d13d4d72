package port

import "time"

// PasswordVerifier checks a plaintext secret against a stored hash.
type PasswordVerifier interface {
	Verify(password string, encoded string) (bool, error)
}

// SessionIssuer mints access tokens for authenticated people.
type SessionIssuer interface {
	Issue(personID string, method string) (token string, expiresAt time.Time, err error)
}
