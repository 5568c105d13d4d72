package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	defaultParamsSeparator = "|"
	tokenSeparator         = "-"
	escapeChar             = `\`
)

var (
	// ErrMissingTokenParams is a programming error: a caller omitted a parameter the token kind requires.
	ErrMissingTokenParams = errors.New("signature: missing token parameters")
	errInvalidSignature   = errors.New("signature: invalid generator configuration")
)

// tokenEpoch is day zero of the timestamp embedded in tokens.
var tokenEpoch = time.Date(2001, time.January, 1, 0, 0, 0, 0, time.UTC)

// Params are the named values a signed token is bound to.
type Params map[string]string

// SignatureConfig describes one family of signed tokens.
type SignatureConfig struct {
	Secret string
	// KeySalt namespaces the family. Changing it invalidates every token of the family.
	KeySalt string
	// Validity is expressed in whole days.
	Validity    int
	TokenParams []string
	// ParamsSeparator joins parameter values in the signed payload. Defaults to "|".
	ParamsSeparator string
	// SubjectSaltParam names a parameter whose value is mixed into the signing key instead of the
	// payload, so that rotating it invalidates every token issued for that subject.
	SubjectSaltParam string
}

// SignatureGenerator makes and verifies stateless, day-granular, HMAC signed tokens of the form
// "<base36 day>-<hash>".
type SignatureGenerator struct {
	cfg      SignatureConfig
	required []string
	// signed is TokenParams sorted by name. Other supplied parameters are not part of the payload.
	signed []string
	now    func() time.Time
}

// NewSignatureGenerator validates cfg and builds a generator.
func NewSignatureGenerator(cfg SignatureConfig) (*SignatureGenerator, error) {
	if cfg.ParamsSeparator == "" {
		cfg.ParamsSeparator = defaultParamsSeparator
	}

	switch {
	case cfg.Secret == "":
		return nil, fmt.Errorf("%w: secret is required", errInvalidSignature)
	case strings.TrimSpace(cfg.KeySalt) == "":
		return nil, fmt.Errorf("%w: key salt is required", errInvalidSignature)
	case cfg.Validity < 0:
		return nil, fmt.Errorf("%w: validity must not be negative", errInvalidSignature)
	case len(cfg.ParamsSeparator) != 1 || cfg.ParamsSeparator == escapeChar:
		return nil, fmt.Errorf("%w: separator must be a single non-backslash character", errInvalidSignature)
	}

	required := append([]string(nil), cfg.TokenParams...)
	if cfg.SubjectSaltParam != "" {
		required = append(required, cfg.SubjectSaltParam)
	}

	signed := make([]string, 0, len(cfg.TokenParams))
	for _, name := range cfg.TokenParams {
		if name != cfg.SubjectSaltParam && !slices.Contains(signed, name) {
			signed = append(signed, name)
		}
	}
	sort.Strings(signed)

	return &SignatureGenerator{cfg: cfg, required: required, signed: signed, now: time.Now}, nil
}

// WithClock overrides the internal clock, used in tests.
func (g *SignatureGenerator) WithClock(now func() time.Time) *SignatureGenerator {
	if now != nil {
		g.now = now
	}
	return g
}

// TokenParams returns the parameter names every token of this family carries.
func (g *SignatureGenerator) TokenParams() []string {
	return append([]string(nil), g.required...)
}

// Validity returns the validity window in days.
func (g *SignatureGenerator) Validity() int {
	return g.cfg.Validity
}

// MakeToken signs params with today's day number.
func (g *SignatureGenerator) MakeToken(params Params) (string, error) {
	if err := g.checkParams(params); err != nil {
		return "", err
	}
	return g.tokenAt(dayNumber(g.now()), params), nil
}

// CheckToken reports whether token was issued for params and is still within validity.
// Only a missing parameter yields an error; every other failure is a plain false.
func (g *SignatureGenerator) CheckToken(token string, params Params) (bool, error) {
	if err := g.checkParams(params); err != nil {
		return false, err
	}
	if token == "" {
		return false, nil
	}

	day, ok := parseTokenDay(token)
	if !ok {
		return false, nil
	}

	expected := g.tokenAt(day, params)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(token)) != 1 {
		return false, nil
	}

	if dayNumber(g.now())-day > int64(g.cfg.Validity) {
		return false, nil
	}

	return true, nil
}

// IsExpired inspects only the timestamp of token. It is meant for choosing an error message and
// must never be used to authorize anything. Unparsable tokens are not considered expired.
func (g *SignatureGenerator) IsExpired(token string) bool {
	day, ok := parseTokenDay(token)
	if !ok {
		return false
	}
	return dayNumber(g.now())-day > int64(g.cfg.Validity)
}

func (g *SignatureGenerator) checkParams(params Params) error {
	var missing []string
	for _, name := range g.required {
		if _, ok := params[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingTokenParams, strings.Join(missing, ", "))
	}
	return nil
}

func (g *SignatureGenerator) tokenAt(day int64, params Params) string {
	subjectSalt := ""
	if g.cfg.SubjectSaltParam != "" {
		subjectSalt = params[g.cfg.SubjectSaltParam]
	}

	key := sha256.Sum256([]byte(g.cfg.KeySalt + g.cfg.Secret + subjectSalt))
	mac := hmac.New(sha256.New, key[:])
	mac.Write([]byte(g.hashValue(day, params)))
	digest := hex.EncodeToString(mac.Sum(nil))

	short := make([]byte, 0, len(digest)/2)
	for i := 0; i < len(digest); i += 2 {
		short = append(short, digest[i])
	}

	return strconv.FormatInt(day, 36) + tokenSeparator + string(short)
}

func (g *SignatureGenerator) hashValue(day int64, params Params) string {
	sep := g.cfg.ParamsSeparator
	escaper := strings.NewReplacer(escapeChar, escapeChar+escapeChar, sep, escapeChar+sep)

	var b strings.Builder
	for i, name := range g.signed {
		if i > 0 {
			b.WriteString(sep)
		}
		b.WriteString(escaper.Replace(params[name]))
	}
	b.WriteString(sep)
	b.WriteString(strconv.FormatInt(day, 10))

	return b.String()
}

func parseTokenDay(token string) (int64, bool) {
	parts := strings.Split(token, tokenSeparator)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return 0, false
	}
	// ParseInt alone would also take a sign or upper case digits.
	for _, r := range parts[0] {
		if (r < '0' || r > '9') && (r < 'a' || r > 'z') {
			return 0, false
		}
	}

	day, err := strconv.ParseInt(parts[0], 36, 64)
	if err != nil || day < 0 {
		return 0, false
	}

	return day, true
}

// dayNumber counts whole UTC days since tokenEpoch.
func dayNumber(t time.Time) int64 {
	y, m, d := t.UTC().Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return int64(midnight.Sub(tokenEpoch) / (24 * time.Hour))
}
