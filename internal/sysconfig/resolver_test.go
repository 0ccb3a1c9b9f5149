package sysconfig

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"

	"github.com/ratepro/backend/pkg/secrets"
)

type fakeStore struct {
	records map[string]*Record
}

func (s *fakeStore) Get(_ context.Context, key string) (*Record, error) {
	if rec, ok := s.records[key]; ok {
		return rec, nil
	}
	return nil, pgx.ErrNoRows
}

func newTestResolver(t *testing.T, records map[string]*Record, env map[string]string) (*Resolver, *secrets.Box) {
	t.Helper()
	box, err := secrets.NewBox("000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f")
	if err != nil {
		t.Fatalf("NewBox: %v", err)
	}
	r := NewResolver(&fakeStore{records: records}, box)
	r.env = func(k string) string { return env[k] }
	return r, box
}

func TestResolverPrecedence(t *testing.T) {
	ctx := context.Background()

	t.Run("stored record wins over env", func(t *testing.T) {
		r, _ := newTestResolver(t,
			map[string]*Record{"FROM_NAME": {Key: "FROM_NAME", Value: "Stored"}},
			map[string]string{"FROM_NAME": "FromEnv"})
		got, err := r.Get(ctx, "FROM_NAME")
		if err != nil || got != "Stored" {
			t.Fatalf("Get = %q, %v; want Stored", got, err)
		}
	})

	t.Run("env wins over default", func(t *testing.T) {
		r, _ := newTestResolver(t, nil, map[string]string{"FROM_NAME": "FromEnv"})
		got, err := r.Get(ctx, "FROM_NAME")
		if err != nil || got != "FromEnv" {
			t.Fatalf("Get = %q, %v; want FromEnv", got, err)
		}
	})

	t.Run("registered default as last resort", func(t *testing.T) {
		r, _ := newTestResolver(t, nil, nil)
		got, err := r.Get(ctx, "OTP_EXPIRE_MINUTES")
		if err != nil || got != "10" {
			t.Fatalf("Get = %q, %v; want 10", got, err)
		}
	})

	t.Run("non-sensitive key with no value resolves empty", func(t *testing.T) {
		r, _ := newTestResolver(t, nil, nil)
		got, err := r.Get(ctx, "TWILIO_FROM_NUMBER")
		if err != nil || got != "" {
			t.Fatalf("Get = %q, %v; want empty", got, err)
		}
	})

	t.Run("sensitive key with no value fails", func(t *testing.T) {
		r, _ := newTestResolver(t, nil, nil)
		_, err := r.Get(ctx, "SENDGRID_API_KEY")
		if !errors.Is(err, ErrMissingSecret) {
			t.Fatalf("err = %v, want ErrMissingSecret", err)
		}
	})

	t.Run("unknown key rejected", func(t *testing.T) {
		r, _ := newTestResolver(t, nil, nil)
		_, err := r.Get(ctx, "NOT_A_KEY")
		if !errors.Is(err, ErrUnknownKey) {
			t.Fatalf("err = %v, want ErrUnknownKey", err)
		}
	})
}

func TestResolverDecryptsStoredSecrets(t *testing.T) {
	ctx := context.Background()
	box, err := secrets.NewBox("000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f")
	if err != nil {
		t.Fatalf("NewBox: %v", err)
	}
	sealed, err := box.Encrypt("sk-live-123")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	r, _ := newTestResolver(t, map[string]*Record{
		"GEMINI_API_KEY": {Key: "GEMINI_API_KEY", Value: sealed, Encrypted: true, Sensitive: true},
	}, nil)
	got, err := r.Get(ctx, "GEMINI_API_KEY")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "sk-live-123" {
		t.Errorf("Get = %q, want decrypted secret", got)
	}

	t.Run("tampered ciphertext fails", func(t *testing.T) {
		r, _ := newTestResolver(t, map[string]*Record{
			"GEMINI_API_KEY": {Key: "GEMINI_API_KEY", Value: "bm90LXZhbGlk", Encrypted: true},
		}, nil)
		if _, err := r.Get(ctx, "GEMINI_API_KEY"); err == nil {
			t.Fatal("expected decrypt error")
		}
	})
}
