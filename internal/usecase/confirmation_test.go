package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/core/domain"
	"github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/infra/security"
)

func newConfirmationFixture(t *testing.T, now *time.Time) (*ConfirmationService, *stubPersonRepo, *stubPublisher) {
	t.Helper()

	generators, err := security.NewConfirmationGenerators("secret", map[domain.TokenKind]int{
		domain.TokenKindSubscription: 2,
		domain.TokenKindAddEmail:     2,
		domain.TokenKindMergeAccount: 2,
		domain.TokenKindInvitation:   7,
		domain.TokenKindConnection:   7,
	})
	if err != nil {
		t.Fatalf("NewConfirmationGenerators returned error: %v", err)
	}
	for _, gen := range generators {
		gen.WithClock(func() time.Time { return *now })
	}

	people := newStubPersonRepo(activePerson())
	events := &stubPublisher{}

	svc, err := NewConfirmationService(generators, people, events, nil, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewConfirmationService returned error: %v", err)
	}
	return svc, people, events
}

func TestConfirmationIssueAndVerify(t *testing.T) {
	now := time.Date(2025, 10, 24, 8, 0, 0, 0, time.UTC)
	svc, _, _ := newConfirmationFixture(t, &now)
	ctx := context.Background()
	params := security.Params{"person_id": "p1", "group_id": "g1"}

	token, err := svc.Issue(ctx, domain.TokenKindInvitation, params)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	result, err := svc.Verify(ctx, domain.TokenKindInvitation, token, params)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if !result.Valid || result.Expired {
		t.Fatalf("expected valid token, got %#v", result)
	}

	other, err := svc.Verify(ctx, domain.TokenKindInvitation, token, security.Params{"person_id": "p1", "group_id": "g2"})
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if other.Valid || other.Expired {
		t.Fatalf("expected tampered token to be invalid and not expired, got %#v", other)
	}

	now = now.AddDate(0, 0, 8)
	expired, err := svc.Verify(ctx, domain.TokenKindInvitation, token, params)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if expired.Valid || !expired.Expired {
		t.Fatalf("expected expired token, got %#v", expired)
	}
}

func TestConfirmationUnknownKindAndMissingParams(t *testing.T) {
	now := time.Now()
	svc, _, _ := newConfirmationFixture(t, &now)
	ctx := context.Background()

	if _, err := svc.Issue(ctx, domain.TokenKind("nope"), security.Params{}); !errors.Is(err, ErrUnknownTokenKind) {
		t.Fatalf("expected ErrUnknownTokenKind, got %v", err)
	}
	if _, err := svc.Verify(ctx, domain.TokenKind("nope"), "x-y", security.Params{}); !errors.Is(err, ErrUnknownTokenKind) {
		t.Fatalf("expected ErrUnknownTokenKind, got %v", err)
	}
	if _, err := svc.Issue(ctx, domain.TokenKindSubscription, security.Params{"email": "a@b.fr"}); !errors.Is(err, security.ErrMissingTokenParams) {
		t.Fatalf("expected ErrMissingTokenParams, got %v", err)
	}
	if _, err := svc.Issue(ctx, domain.TokenKindConnection, security.Params{}); !errors.Is(err, security.ErrMissingTokenParams) {
		t.Fatalf("expected ErrMissingTokenParams for connection without user, got %v", err)
	}
}

func TestConfirmationConnectionTokenUsesStoredSalt(t *testing.T) {
	now := time.Date(2025, 10, 24, 8, 0, 0, 0, time.UTC)
	svc, _, events := newConfirmationFixture(t, &now)
	ctx := context.Background()

	forged := security.Params{"user": "p1", security.AutoLoginSaltParam: "attacker-chosen"}
	token, err := svc.Issue(ctx, domain.TokenKindConnection, forged)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	result, err := svc.Verify(ctx, domain.TokenKindConnection, token, security.Params{"user": "p1"})
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if !result.Valid {
		t.Fatal("expected connection token signed with stored salt to be valid")
	}

	if err := svc.RotateAutoLoginSalt(ctx, "p1"); err != nil {
		t.Fatalf("RotateAutoLoginSalt returned error: %v", err)
	}
	if len(events.rotations) != 1 || events.rotations[0].PersonID != "p1" {
		t.Fatalf("unexpected rotation events %#v", events.rotations)
	}

	result, err = svc.Verify(ctx, domain.TokenKindConnection, token, security.Params{"user": "p1"})
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if result.Valid {
		t.Fatal("expected rotation to invalidate connection token")
	}
}

func TestConfirmationConnectionUnknownPerson(t *testing.T) {
	now := time.Now()
	svc, _, _ := newConfirmationFixture(t, &now)
	ctx := context.Background()

	if _, err := svc.Issue(ctx, domain.TokenKindConnection, security.Params{"user": "ghost"}); !errors.Is(err, ErrPersonNotFound) {
		t.Fatalf("expected ErrPersonNotFound, got %v", err)
	}

	result, err := svc.Verify(ctx, domain.TokenKindConnection, "abc-def", security.Params{"user": "ghost"})
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if result.Valid {
		t.Fatal("expected token of unknown person to be invalid")
	}

	if err := svc.RotateAutoLoginSalt(ctx, "ghost"); !errors.Is(err, ErrPersonNotFound) {
		t.Fatalf("expected ErrPersonNotFound, got %v", err)
	}
}
