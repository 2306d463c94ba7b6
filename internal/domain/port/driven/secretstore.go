package driven

import (
	"context"
	"errors"
)

// ErrEncryptionKeyNotSet is returned by SecretStore operations when
// PROFITPILOT_SECRET_KEY has not been configured.
var ErrEncryptionKeyNotSet = errors.New("encryption key not configured: set PROFITPILOT_SECRET_KEY")

// TokenKey is the secret store key holding the bearer credential.
const TokenKey = "token"

// SecretStore defines the driven port for encrypted secret persistence.
// The adapter layer is responsible for encryption/decryption; this interface
// operates on plaintext values at the domain boundary.
type SecretStore interface {
	// Set stores or replaces the secret under key.
	Set(ctx context.Context, key, plaintext string) error

	// Get retrieves the plaintext secret for key.
	// Returns ("", nil) if no secret exists for that key.
	Get(ctx context.Context, key string) (string, error)

	// Delete removes the secret for key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Clear removes every stored secret.
	Clear(ctx context.Context) error
}
