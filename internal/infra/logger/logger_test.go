package logger

import (
	"context"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestMaskEmail(t *testing.T) {
	cases := map[string]string{
		"":                        "",
		"jean.dupont@example.com": "jea***@example.com",
		"a@b.fr":                  "a***@b.fr",
		"not-an-email":            "***",
	}

	for in, want := range cases {
		if got := MaskEmail(in); got != want {
			t.Fatalf("MaskEmail(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMaskIP(t *testing.T) {
	cases := map[string]string{
		"":                                        "",
		"192.168.1.100":                           "192.168.*.*",
		"::ffff:203.0.113.9":                      "203.0.*.*",
		"2001:0db8:85a3:0000:0000:8a2e:0370:7334": "2001:0db8:85a3:0000:*:*:*:*",
		"::1":                                     "0000:0000:0000:0000:*:*:*:*",
		"garbage":                                 "***",
	}

	for in, want := range cases {
		if got := MaskIP(in); got != want {
			t.Fatalf("MaskIP(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := ContextWithRequestID(context.Background(), "req-1")
	if got := RequestIDFrom(ctx); got != "req-1" {
		t.Fatalf("expected req-1, got %q", got)
	}
	if got := RequestIDFrom(context.Background()); got != "" {
		t.Fatalf("expected empty request id, got %q", got)
	}
}

func TestNewHonoursLevel(t *testing.T) {
	log, err := New("production", "warn")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if log.Core().Enabled(zapcore.InfoLevel) {
		t.Fatal("expected info to be disabled at warn level")
	}
	if !log.Core().Enabled(zapcore.WarnLevel) {
		t.Fatal("expected warn to be enabled")
	}

	if _, err := New("development", "loud"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
