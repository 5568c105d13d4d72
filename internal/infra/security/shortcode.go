package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"math/big"
	"regexp"
	"strings"
)

const (
	// ShortCodeAlphabet leaves out 0, O, 1 and I.
	ShortCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	ShortCodeLength   = 5
)

var allowedShortCodePatterns = []*regexp.Regexp{
	regexp.MustCompile(fmt.Sprintf("^[%s]{%d}$", ShortCodeAlphabet, ShortCodeLength)),
}

var shortCodeCleaner = strings.NewReplacer(" ", "", "-", "", "\t", "")

// GenerateShortCode draws ShortCodeLength characters from ShortCodeAlphabet using crypto/rand.
func GenerateShortCode() (string, error) {
	limit := big.NewInt(int64(len(ShortCodeAlphabet)))

	code := make([]byte, ShortCodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("generate short code: %w", err)
		}
		code[i] = ShortCodeAlphabet[n.Int64()]
	}

	return string(code), nil
}

// IsAllowedShortCode reports whether raw has the shape of a short code.
func IsAllowedShortCode(raw string) bool {
	for _, pattern := range allowedShortCodePatterns {
		if pattern.MatchString(raw) {
			return true
		}
	}
	return false
}

// NormalizeShortCode upper-cases user input and strips separators people tend to type.
func NormalizeShortCode(raw string) string {
	return strings.ToUpper(shortCodeCleaner.Replace(strings.TrimSpace(raw)))
}

// MatchShortCode returns the index of the first candidate equal to submitted, or -1.
// Every candidate is compared, through fixed-length digests, whatever the position of the match
// or the length of the strings involved.
func MatchShortCode(submitted string, candidates []string) int {
	want := sha256.Sum256([]byte(submitted))

	selected, found := -1, 0
	for i, candidate := range candidates {
		got := sha256.Sum256([]byte(candidate))
		eq := subtle.ConstantTimeCompare(want[:], got[:])
		selected = subtle.ConstantTimeSelect(eq&(found^1), i, selected)
		found |= eq
	}

	return selected
}
