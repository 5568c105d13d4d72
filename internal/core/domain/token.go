package domain

// TokenKind names a family of signed confirmation tokens.
type TokenKind string

const (
	TokenKindSubscription TokenKind = "subscription"
	TokenKindAddEmail     TokenKind = "add_email"
	TokenKindMergeAccount TokenKind = "merge_account"
	TokenKindInvitation   TokenKind = "invitation"
	TokenKindConnection   TokenKind = "connection"
)

// TokenKinds lists every supported confirmation token family.
func TokenKinds() []TokenKind {
	return []TokenKind{
		TokenKindSubscription,
		TokenKindAddEmail,
		TokenKindMergeAccount,
		TokenKindInvitation,
		TokenKindConnection,
	}
}

// Valid reports whether k is a known token family.
func (k TokenKind) Valid() bool {
	for _, known := range TokenKinds() {
		if k == known {
			return true
		}
	}
	return false
}

// TokenVerification describes the outcome of a confirmation token check.
type TokenVerification struct {
	Valid bool
	// Expired is only meaningful when Valid is false; it distinguishes "too old" from "tampered".
	Expired bool
}
