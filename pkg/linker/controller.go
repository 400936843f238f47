package linker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dmitrymomot/devicelink/pkg/fanout"
	"github.com/dmitrymomot/devicelink/pkg/logger"
	"github.com/dmitrymomot/devicelink/pkg/protocol"
)

const welcomeNotice = "Device linked successfully. Keep the session token above safe; it can restore this session without linking again."

// run supervises one session until a terminal outcome or shutdown. It owns
// the session's single authoritative credential state; recoverable closes
// reconnect with that in-memory state rather than reloading from the store,
// which would race an in-flight save.
func (m *Manager) run(ctx context.Context, rec *Record) {
	log := m.log.With(logger.Component("linker"), logger.SessionID(rec.ID))

	creds := LoadOrDefault(ctx, m.store, rec.ID, log)
	if !creds.Empty() {
		log.Info("resuming session with stored credentials")
	}

	for {
		outcome := m.attempt(ctx, rec, &creds, log)
		if outcome != OutcomeRetry {
			return
		}

		rec.setStatus(StatusReconnecting)
		m.publishStatus(ctx, rec.ID, StatusMessage(StatusReconnecting))
		select {
		case <-ctx.Done():
			return
		case <-time.After(m.cfg.RetryDelay):
		}
	}
}

// attempt runs a single connection attempt, consuming the protocol client's
// event stream until it closes. Events for one session arrive on one channel,
// so processing is naturally serialized per session.
func (m *Manager) attempt(ctx context.Context, rec *Record, creds *CredentialState, log *slog.Logger) Outcome {
	rec.beginAttempt()
	m.publishStatus(ctx, rec.ID, StatusMessage(StatusPending))

	client, err := m.dial(ctx, creds.Blob)
	if err != nil {
		log.Error("protocol client construction failed", logger.Error(err))
		rec.failLink(errors.Join(ErrProtocolFailure, err))
		m.terminate(ctx, rec, OutcomeError, log)
		return OutcomeError
	}
	rec.setClient(client)
	defer func() { _ = client.Close() }()

	events := client.Events()
	for {
		var ev protocol.Event
		select {
		case <-ctx.Done():
			// Shutdown: leave the record and stored credentials so the
			// session resumes on the next start.
			rec.failLink(ErrSessionClosed)
			rec.abortAttempt()
			return OutcomeError
		case received, ok := <-events:
			if !ok {
				log.Error("event stream ended without a close event")
				rec.failLink(ErrClosedBeforeLink)
				m.terminate(ctx, rec, OutcomeError, log)
				return OutcomeError
			}
			ev = received
		}

		switch ev.Kind {
		case protocol.EventArtifact:
			// First artifact wins; re-emissions while a caller's delivery is
			// still pending are dropped by the one-shot promise.
			if rec.resolveLink(Artifact{Kind: ArtifactImage, Data: ev.Artifact}) {
				log.Info("linking artifact produced")
			}
			if rec.Status() == StatusPending {
				rec.setStatus(StatusLinking)
				m.publishStatus(ctx, rec.ID, StatusMessage(StatusLinking))
			}

		case protocol.EventCredentials:
			creds.Blob = append([]byte(nil), ev.Credentials...)
			_ = m.persist(ctx, rec.ID, *creds, log)

		case protocol.EventOpen:
			rec.setStatus(StatusOpen)
			m.publishStatus(ctx, rec.ID, StatusMessage(StatusOpen))
			// A caller still waiting for an artifact learns the session
			// linked without one.
			rec.failLink(ErrAlreadyLinked)
			log.Info("connection open")
			m.welcome(ctx, rec.ID, client, creds, log)

		case protocol.EventClosed:
			outcome := Classify(ev.Close)
			log.Warn("connection closed",
				slog.String("cause", ev.Close.String()),
				slog.String("outcome", outcome.String()))
			if outcome == OutcomeRetry {
				return OutcomeRetry
			}
			rec.failLink(ErrClosedBeforeLink)
			m.terminate(ctx, rec, outcome, log)
			return outcome
		}
	}
}

// terminate destroys the session record. Only a logged-out outcome purges
// stored credentials; a plain error keeps them for a manual resumption.
func (m *Manager) terminate(ctx context.Context, rec *Record, outcome Outcome, log *slog.Logger) {
	if outcome == OutcomeLoggedOut {
		if err := m.store.Delete(ctx, rec.ID); err != nil {
			log.Error("credential purge failed", logger.Error(err))
		} else {
			log.Info("device logged out, credentials purged")
		}
	}

	rec.abortAttempt()
	rec.setStatus(StatusDisconnected)
	m.registry.Remove(rec.ID)
	m.publishStatus(ctx, rec.ID, StatusMessage(StatusDisconnected))
}

// welcome runs the post-link notice at most once per authenticated session
// lifetime, across process restarts. The sent flag is persisted before
// sending: losing a notice beats repeating it.
func (m *Manager) welcome(ctx context.Context, id string, client protocol.Client, creds *CredentialState, log *slog.Logger) {
	if creds.WelcomeSent {
		return
	}

	user, ok := client.UserID()
	if !ok {
		log.Warn("open connection reported no identity, skipping welcome")
		return
	}

	creds.WelcomeSent = true
	if err := m.persist(ctx, id, *creds, log); err != nil {
		creds.WelcomeSent = false
		return
	}

	token, err := ExportToken(*creds)
	if err != nil {
		log.Warn("session token export failed", logger.Error(err))
	} else if err := client.SendMessage(ctx, user, token); err != nil {
		log.Warn("session token delivery failed", logger.Error(err))
	}

	select {
	case <-ctx.Done():
		return
	case <-time.After(m.cfg.WelcomeDelay):
	}

	if err := client.SendMessage(ctx, user, welcomeNotice); err != nil {
		log.Warn("welcome notice delivery failed", logger.Error(err))
	}
}

func (m *Manager) persist(ctx context.Context, id string, creds CredentialState, log *slog.Logger) error {
	data, err := encodeCredentials(creds)
	if err != nil {
		log.Error("credential encoding failed", logger.Error(err))
		return err
	}
	if err := m.store.Save(ctx, id, data); err != nil {
		log.Error("credential persistence failed", logger.Error(err))
		return err
	}
	return nil
}

// publishStatus forwards a status line to the session's observers. Transport
// failures never affect connection state.
func (m *Manager) publishStatus(ctx context.Context, id, msg string) {
	if err := m.bus.Publish(ctx, id, fanout.Status(msg)); err != nil {
		m.log.Debug("status publish failed",
			logger.SessionID(id), logger.Error(err))
	}
}
