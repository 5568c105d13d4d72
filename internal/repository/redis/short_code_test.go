package redis

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestShortCodeRepository_PushTrimsAndExpires(t *testing.T) {
	client, server := newTestRedis(t)
	repo := NewShortCodeRepository(client)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		if err := repo.Push(ctx, "LoginCode:u1", []byte(fmt.Sprintf("entry-%d", i)), 2, 10*time.Minute); err != nil {
			t.Fatalf("Push returned error: %v", err)
		}
	}

	list, err := server.List("LoginCode:u1")
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(list) != 2 || list[0] != "entry-3" || list[1] != "entry-2" {
		t.Fatalf("expected newest two entries, got %v", list)
	}

	if ttl := server.TTL("LoginCode:u1"); ttl != 10*time.Minute {
		t.Fatalf("expected ttl 10m, got %v", ttl)
	}
}

func TestShortCodeRepository_RecentReturnsNewestFirst(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewShortCodeRepository(client)
	ctx := context.Background()

	_ = repo.Push(ctx, "k", []byte("old"), 5, time.Minute)
	_ = repo.Push(ctx, "k", []byte("new"), 5, time.Minute)

	entries, err := repo.Recent(ctx, "k", 1)
	if err != nil {
		t.Fatalf("Recent returned error: %v", err)
	}
	if len(entries) != 1 || string(entries[0]) != "new" {
		t.Fatalf("expected only the newest entry, got %q", entries)
	}
}

func TestShortCodeRepository_RecentMissingKey(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewShortCodeRepository(client)

	entries, err := repo.Recent(context.Background(), "missing", 3)
	if err != nil {
		t.Fatalf("Recent returned error: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no entries, got %d", len(entries))
	}
}

func TestShortCodeRepository_InvalidInput(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewShortCodeRepository(client)
	ctx := context.Background()

	if err := repo.Push(ctx, "", []byte("x"), 1, time.Minute); err == nil {
		t.Fatal("expected error for empty key")
	}
	if err := repo.Push(ctx, "k", nil, 1, time.Minute); err == nil {
		t.Fatal("expected error for empty entry")
	}
	if err := repo.Push(ctx, "k", []byte("x"), 0, time.Minute); err == nil {
		t.Fatal("expected error for zero max entries")
	}
	if err := repo.Push(ctx, "k", []byte("x"), 1, 0); err == nil {
		t.Fatal("expected error for zero ttl")
	}
	if _, err := repo.Recent(ctx, "", 1); err == nil {
		t.Fatal("expected error for empty key in Recent")
	}
}
