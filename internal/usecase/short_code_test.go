package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	red "github.com/redis/go-redis/v9"
	"go.uber.org/zap/zaptest"

	"github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/infra/config"
	redisrepo "github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/repository/redis"
)

// sequenceCodes replaces random generation with a fixed series so tests never collide.
func sequenceCodes(codes ...string) func() (string, error) {
	i := 0
	return func() (string, error) {
		if i >= len(codes) {
			return "", errors.New("no more codes")
		}
		code := codes[i]
		i++
		return code, nil
	}
}

func TestShortCodeGeneratorScenario(t *testing.T) {
	client, _ := newTestRedis(t)
	clock := newTestClock()
	gen, err := NewShortCodeGenerator(config.ShortCodeSettings{
		KeyPrefix:          "Pfx:",
		ValidityMinutes:    10,
		MaxConcurrentCodes: 2,
	}, redisrepo.NewShortCodeRepository(client), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewShortCodeGenerator returned error: %v", err)
	}
	gen.WithClock(clock.Now)
	gen.generate = sequenceCodes("AAAAA", "BBBBB", "CCCCC")
	ctx := context.Background()

	codes := make([]string, 0, 3)
	for i, label := range []string{"a", "b", "c"} {
		code, _, err := gen.GenerateShortCode(ctx, "u1", map[string]any{"label": label})
		if err != nil {
			t.Fatalf("GenerateShortCode %d returned error: %v", i, err)
		}
		codes = append(codes, code)
	}

	match, err := gen.CheckShortCode(ctx, "u1", codes[0])
	if err != nil {
		t.Fatalf("CheckShortCode returned error: %v", err)
	}
	if match.Matched {
		t.Fatal("expected evicted code A not to match")
	}

	for i, label := range []string{"b", "c"} {
		match, err := gen.CheckShortCode(ctx, "u1", codes[i+1])
		if err != nil {
			t.Fatalf("CheckShortCode returned error: %v", err)
		}
		if !match.Matched {
			t.Fatalf("expected code %s to match", codes[i+1])
		}
		if match.Meta["label"] != label {
			t.Fatalf("expected meta label %q, got %v", label, match.Meta["label"])
		}
	}
}

func TestShortCodeGeneratorRoundTripWithEmptyMeta(t *testing.T) {
	client, _ := newTestRedis(t)
	clock := newTestClock()
	gen := newTestShortCodes(t, client, 3, clock)
	ctx := context.Background()

	code, expiration, err := gen.GenerateShortCode(ctx, "person-1", nil)
	if err != nil {
		t.Fatalf("GenerateShortCode returned error: %v", err)
	}
	if !gen.IsAllowedPattern(code) {
		t.Fatalf("generated code %q does not match allowed pattern", code)
	}
	if want := clock.Now().Add(90 * time.Minute); !expiration.Equal(want) {
		t.Fatalf("expected expiration %v, got %v", want, expiration)
	}

	match, err := gen.CheckShortCode(ctx, "person-1", code)
	if err != nil {
		t.Fatalf("CheckShortCode returned error: %v", err)
	}
	if !match.Matched {
		t.Fatal("expected code to match")
	}
	if match.Meta == nil || len(match.Meta) != 0 {
		t.Fatalf("expected empty non-nil meta, got %#v", match.Meta)
	}
}

func TestShortCodeGeneratorExpiry(t *testing.T) {
	client, _ := newTestRedis(t)
	clock := newTestClock()
	gen := newTestShortCodes(t, client, 3, clock)
	ctx := context.Background()

	code, _, err := gen.GenerateShortCode(ctx, "person-1", map[string]any{"email": "a@b.fr"})
	if err != nil {
		t.Fatalf("GenerateShortCode returned error: %v", err)
	}

	clock.Advance(90*time.Minute - time.Millisecond)
	if match, _ := gen.CheckShortCode(ctx, "person-1", code); !match.Matched {
		t.Fatal("expected code to match just before expiry")
	}

	clock.Advance(time.Millisecond)
	if match, _ := gen.CheckShortCode(ctx, "person-1", code); match.Matched {
		t.Fatal("expected code to stop matching at expiry")
	}
}

func TestShortCodeGeneratorSubjectsAreIsolated(t *testing.T) {
	client, _ := newTestRedis(t)
	clock := newTestClock()
	gen := newTestShortCodes(t, client, 3, clock)
	gen.generate = sequenceCodes("AAAAA")
	ctx := context.Background()

	code, _, err := gen.GenerateShortCode(ctx, "person-1", nil)
	if err != nil {
		t.Fatalf("GenerateShortCode returned error: %v", err)
	}

	if match, _ := gen.CheckShortCode(ctx, "person-2", code); match.Matched {
		t.Fatal("expected code of another subject not to match")
	}
	if match, _ := gen.CheckShortCode(ctx, "person-1", "AAAAB"); match.Matched {
		t.Fatal("expected unknown code not to match")
	}
}

func TestShortCodeGeneratorSkipsCorruptEntries(t *testing.T) {
	client, srv := newTestRedis(t)
	clock := newTestClock()
	gen := newTestShortCodes(t, client, 3, clock)
	gen.generate = sequenceCodes("HHHHH")
	ctx := context.Background()

	if _, _, err := gen.GenerateShortCode(ctx, "person-1", map[string]any{"k": "v"}); err != nil {
		t.Fatalf("GenerateShortCode returned error: %v", err)
	}
	if _, err := srv.Lpush("LoginCode:person-1", "{not json"); err != nil {
		t.Fatalf("seed corrupt entry: %v", err)
	}

	match, err := gen.CheckShortCode(ctx, "person-1", "HHHHH")
	if err != nil {
		t.Fatalf("CheckShortCode returned error: %v", err)
	}
	if !match.Matched || match.Meta["k"] != "v" {
		t.Fatalf("expected valid entry to match despite corrupt neighbour, got %#v", match)
	}
}

func TestShortCodeGeneratorRequiresSubject(t *testing.T) {
	client, _ := newTestRedis(t)
	gen := newTestShortCodes(t, client, 3, newTestClock())
	ctx := context.Background()

	if _, _, err := gen.GenerateShortCode(ctx, " ", nil); !errors.Is(err, ErrSubjectRequired) {
		t.Fatalf("expected ErrSubjectRequired, got %v", err)
	}
	if _, err := gen.CheckShortCode(ctx, "", "AAAAA"); !errors.Is(err, ErrSubjectRequired) {
		t.Fatalf("expected ErrSubjectRequired, got %v", err)
	}
}

func TestShortCodeGeneratorPropagatesStoreErrors(t *testing.T) {
	client := red.NewClient(&red.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	gen := newTestShortCodes(t, client, 3, newTestClock())

	if _, _, err := gen.GenerateShortCode(context.Background(), "person-1", nil); err == nil {
		t.Fatal("expected store error on generate")
	}
	if _, err := gen.CheckShortCode(context.Background(), "person-1", "AAAAA"); err == nil {
		t.Fatal("expected store error on check")
	}
}

func TestShortCodeGeneratorPattern(t *testing.T) {
	client, _ := newTestRedis(t)
	gen := newTestShortCodes(t, client, 3, newTestClock())

	for _, raw := range []string{"abcd", "ABCD0", "ABCDEF", "AB CD"} {
		if gen.IsAllowedPattern(raw) {
			t.Fatalf("expected %q to be rejected", raw)
		}
	}
	if got := gen.NormalizeCode(" ab-cd e"); got != "ABCDE" {
		t.Fatalf("unexpected normalized code %q", got)
	}
	if !gen.IsAllowedPattern(gen.NormalizeCode("hjk-mn")) {
		t.Fatalf("expected normalized %q to be allowed", "hjk-mn")
	}
}
