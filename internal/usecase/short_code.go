package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/core/domain"
	"github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/core/port"
	"github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/infra/config"
	"github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/infra/security"
)

// ShortCodeGenerator issues short human-typable codes bound to a subject. Each subject keeps at
// most maxCodes live codes; issuing one more evicts the oldest.
type ShortCodeGenerator struct {
	store     port.ShortCodeStore
	keyPrefix string
	validity  time.Duration
	maxCodes  int
	logger    *zap.Logger
	now       func() time.Time
	generate  func() (string, error)
}

// NewShortCodeGenerator constructs a generator from its configuration.
func NewShortCodeGenerator(cfg config.ShortCodeSettings, store port.ShortCodeStore, logger *zap.Logger) (*ShortCodeGenerator, error) {
	if store == nil {
		return nil, errors.New("short code store is required")
	}
	if cfg.ValidityMinutes <= 0 {
		return nil, errors.New("short code validity must be positive")
	}
	if cfg.MaxConcurrentCodes <= 0 {
		return nil, errors.New("max concurrent short codes must be positive")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ShortCodeGenerator{
		store:     store,
		keyPrefix: cfg.KeyPrefix,
		validity:  time.Duration(cfg.ValidityMinutes) * time.Minute,
		maxCodes:  cfg.MaxConcurrentCodes,
		logger:    logger,
		now:       time.Now,
		generate:  security.GenerateShortCode,
	}, nil
}

// WithClock overrides the internal clock, used in tests.
func (g *ShortCodeGenerator) WithClock(now func() time.Time) *ShortCodeGenerator {
	if now != nil {
		g.now = now
	}
	return g
}

// Validity returns how long a freshly generated code stays usable.
func (g *ShortCodeGenerator) Validity() time.Duration {
	return g.validity
}

// GenerateShortCode stores a new code for subjectID with the given metadata and returns it
// along with its expiration.
func (g *ShortCodeGenerator) GenerateShortCode(ctx context.Context, subjectID string, meta map[string]any) (string, time.Time, error) {
	if strings.TrimSpace(subjectID) == "" {
		return "", time.Time{}, ErrSubjectRequired
	}

	code, err := g.generate()
	if err != nil {
		return "", time.Time{}, err
	}

	if meta == nil {
		meta = map[string]any{}
	}
	expiration := g.now().Add(g.validity)
	record := domain.ShortCodeRecord{
		Code:       code,
		Expiration: expiration.UnixMilli(),
		Meta:       meta,
	}

	entry, err := json.Marshal(record)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("marshal short code: %w", err)
	}

	if err := g.store.Push(ctx, g.key(subjectID), entry, g.maxCodes, g.validity); err != nil {
		return "", time.Time{}, fmt.Errorf("store short code: %w", err)
	}

	return code, record.ExpiresAt(), nil
}

// IsAllowedPattern reports whether code has the shape of a generated code. Callers reject
// malformed submissions before spending rate limit tokens on them.
func (g *ShortCodeGenerator) IsAllowedPattern(code string) bool {
	return security.IsAllowedShortCode(code)
}

// NormalizeCode turns user input into the canonical form of a code.
func (g *ShortCodeGenerator) NormalizeCode(raw string) string {
	return security.NormalizeShortCode(raw)
}

// CheckShortCode verifies code against every live code of subjectID. Comparison cost does not
// depend on which entry matches.
func (g *ShortCodeGenerator) CheckShortCode(ctx context.Context, subjectID string, code string) (domain.CodeMatch, error) {
	if strings.TrimSpace(subjectID) == "" {
		return domain.NoMatch, ErrSubjectRequired
	}

	entries, err := g.store.Recent(ctx, g.key(subjectID), g.maxCodes)
	if err != nil {
		return domain.NoMatch, fmt.Errorf("load short codes: %w", err)
	}

	now := g.now()
	live := make([]domain.ShortCodeRecord, 0, len(entries))
	for i, entry := range entries {
		var record domain.ShortCodeRecord
		if err := json.Unmarshal(entry, &record); err != nil {
			g.logger.Warn("Skipping corrupt short code entry",
				zap.String("subject_id", subjectID),
				zap.Int("position", i),
				zap.Error(err),
			)
			continue
		}
		if record.ValidAt(now) {
			live = append(live, record)
		}
	}

	candidates := make([]string, len(live))
	for i, record := range live {
		candidates[i] = record.Code
	}

	idx := security.MatchShortCode(code, candidates)
	if idx < 0 {
		return domain.NoMatch, nil
	}

	return domain.Matched(live[idx].Meta), nil
}

func (g *ShortCodeGenerator) key(subjectID string) string {
	return g.keyPrefix + subjectID
}
