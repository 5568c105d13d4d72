package domain

import "time"

// Person mirrors the persisted representation in the people table.
type Person struct {
	ID            string
	Email         string
	PasswordHash  *string
	AutoLoginSalt string
	IsActive      bool
	CreatedAt     time.Time
	LastLogin     *time.Time
}

// HasPassword reports whether the person may use the password login modality.
func (p Person) HasPassword() bool {
	return p.PasswordHash != nil && *p.PasswordHash != ""
}
