package linker

import "context"

// Store is the durable credential store, keyed by session id. One record per
// session, holding the encoded CredentialState; no other durable state.
// Implementations must be safe for concurrent use across sessions.
type Store interface {
	// Load returns the stored record, or ErrCredentialsNotFound.
	Load(ctx context.Context, id string) ([]byte, error)

	// Save writes the record, replacing any previous one.
	Save(ctx context.Context, id string, data []byte) error

	// Delete removes the record. Deleting an absent record is not an error.
	Delete(ctx context.Context, id string) error
}
