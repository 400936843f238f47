package linker

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/dmitrymomot/devicelink/pkg/logger"
)

// exportPrefix versions the user-facing session token format.
const exportPrefix = "LINK1_"

// CredentialState is the authoritative per-session credential material.
// Blob is opaque to this package; it is forwarded verbatim between the
// protocol client and the store. Exactly one in-memory copy exists per
// session, owned by that session's controller.
type CredentialState struct {
	Blob        []byte `json:"blob,omitempty"`
	WelcomeSent bool   `json:"welcomeSent,omitempty"`
}

// Empty reports whether no credential material exists yet.
func (c CredentialState) Empty() bool {
	return len(c.Blob) == 0
}

// ExportToken renders the credential blob as the versioned textual token
// handed to the user after linking. The token restores the session elsewhere;
// it is not the durable store's format.
func ExportToken(c CredentialState) (string, error) {
	if c.Empty() {
		return "", ErrNoCredentials
	}
	return exportPrefix + base64.StdEncoding.EncodeToString(c.Blob), nil
}

// encodeCredentials is the durable store's record format.
func encodeCredentials(c CredentialState) ([]byte, error) {
	return json.Marshal(c)
}

// LoadOrDefault fetches the session's stored credentials, degrading to a
// fresh empty state when nothing is stored or the stored record is corrupt.
// A corrupt record must not kill the session; it just means a fresh linking
// flow, reported as a warning.
func LoadOrDefault(ctx context.Context, store Store, id string, log *slog.Logger) CredentialState {
	raw, err := store.Load(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrCredentialsNotFound) {
			log.Warn("credential load failed, starting fresh",
				logger.SessionID(id), logger.Error(err))
		}
		return CredentialState{}
	}

	var c CredentialState
	if err := json.Unmarshal(raw, &c); err != nil {
		log.Warn("stored credentials corrupt, starting fresh",
			logger.SessionID(id), logger.Error(err))
		return CredentialState{}
	}
	return c
}
