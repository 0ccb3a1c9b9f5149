package sysconfig

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5"

	"github.com/ratepro/backend/pkg/secrets"
)

var (
	// ErrUnknownKey means the key is not in the registry.
	ErrUnknownKey = errors.New("unknown config key")
	// ErrMissingSecret means a sensitive key resolved to no value anywhere.
	ErrMissingSecret = errors.New("sensitive config key has no value")
)

// Store is the subset of Repository the resolver reads through.
type Store interface {
	Get(ctx context.Context, key string) (*Record, error)
}

// Resolver resolves a registered key through the precedence chain:
// stored record, then environment variable, then registered default.
// A sensitive key that resolves to nothing is a hard error rather than
// an empty string so misconfiguration fails loudly.
type Resolver struct {
	store Store
	box   *secrets.Box
	env   func(string) string
}

// NewResolver creates a resolver. The box decrypts stored sensitive
// values and may be nil when no encryption key is configured; encrypted
// records then fail to resolve.
func NewResolver(store Store, box *secrets.Box) *Resolver {
	return &Resolver{store: store, box: box, env: os.Getenv}
}

// Get resolves one key.
func (r *Resolver) Get(ctx context.Context, name string) (string, error) {
	key, ok := Lookup(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownKey, name)
	}

	rec, err := r.store.Get(ctx, name)
	switch {
	case err == nil:
		if rec.Encrypted {
			if r.box == nil {
				return "", fmt.Errorf("config %s: stored encrypted but no encryption key configured", name)
			}
			plain, err := r.box.Decrypt(rec.Value)
			if err != nil {
				return "", fmt.Errorf("config %s: %w", name, err)
			}
			return plain, nil
		}
		if rec.Value != "" {
			return rec.Value, nil
		}
	case errors.Is(err, pgx.ErrNoRows):
		// fall through to env/default
	default:
		return "", fmt.Errorf("config %s: %w", name, err)
	}

	if v := r.env(name); v != "" {
		return v, nil
	}
	if key.Default != "" {
		return key.Default, nil
	}
	if key.Sensitive {
		return "", fmt.Errorf("%w: %s", ErrMissingSecret, name)
	}
	return "", nil
}
