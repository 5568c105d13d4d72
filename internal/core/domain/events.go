package domain

import "time"

// LoginCodeRequestedEvent represents the payload for auth.login_code.requested messages.
// Consumers deliver the code to the person through the configured channel.
type LoginCodeRequestedEvent struct {
	EventID     string
	PersonID    string
	Email       string
	Code        string
	ExpiresAt   time.Time
	RequestedAt time.Time
	IPAddress   string
}

// LoginSucceededEvent represents the payload for auth.login.succeeded messages.
type LoginSucceededEvent struct {
	EventID  string
	PersonID string
	Method   string
	LoggedAt time.Time
}

// AutoLoginSaltRotatedEvent represents the payload for auth.auto_login_salt.rotated messages.
type AutoLoginSaltRotatedEvent struct {
	EventID   string
	PersonID  string
	RotatedAt time.Time
}

// SessionsRevokedEvent is consumed from people.person.sessions_revoked when a person asks to be
// disconnected everywhere. It voids every connection link sent to that person.
type SessionsRevokedEvent struct {
	EventID   string
	PersonID  string
	RevokedAt time.Time
}
