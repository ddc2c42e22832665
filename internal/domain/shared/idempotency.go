package shared

import (
	"context"
	"time"
)

// ClaimPending is the value stored for a claimed key whose request has not finished
const ClaimPending = "pending"

// IdempotencyStore guards caller-supplied idempotency keys.
//
// A request first Claims its key. Exactly one concurrent caller wins the claim;
// the winner either Completes it with the resulting resource ID or Releases it
// on failure so the caller may retry.
type IdempotencyStore interface {
	// Claim reserves key for ttl. Returns false if the key is already claimed or completed.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Complete records the resource ID produced for key
	Complete(ctx context.Context, key, resourceID string, ttl time.Duration) error

	// Lookup returns the stored value for key: ClaimPending, a resource ID, or found=false
	Lookup(ctx context.Context, key string) (value string, found bool, err error)

	// Release drops the claim so the request can be retried
	Release(ctx context.Context, key string) error

	// Close releases resources held by the store
	Close() error
}

// IdempotencyConfig holds configuration for idempotency handling
type IdempotencyConfig struct {
	// TTL bounds how long a key is remembered. Default: 24 hours
	TTL time.Duration

	// Enabled turns key handling on. Default: true
	Enabled bool
}

// DefaultIdempotencyConfig returns the default idempotency configuration
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:     24 * time.Hour,
		Enabled: true,
	}
}
