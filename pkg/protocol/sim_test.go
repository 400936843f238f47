package protocol_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/devicelink/pkg/protocol"
)

func recvEvent(t *testing.T, ch <-chan protocol.Event) protocol.Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "event stream closed unexpectedly")
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return protocol.Event{}
	}
}

func TestSim(t *testing.T) {
	t.Parallel()

	t.Run("emits events in order", func(t *testing.T) {
		t.Parallel()

		sim := protocol.NewSim()
		sim.EmitArtifact("code-1")
		sim.EmitCredentials([]byte("blob"))
		sim.EmitOpen("user@device")

		ev := recvEvent(t, sim.Events())
		require.Equal(t, protocol.EventArtifact, ev.Kind)
		assert.Equal(t, "code-1", ev.Artifact)

		ev = recvEvent(t, sim.Events())
		require.Equal(t, protocol.EventCredentials, ev.Kind)
		assert.Equal(t, []byte("blob"), ev.Credentials)

		ev = recvEvent(t, sim.Events())
		require.Equal(t, protocol.EventOpen, ev.Kind)

		user, ok := sim.UserID()
		require.True(t, ok)
		assert.Equal(t, "user@device", user)
	})

	t.Run("close ends the stream", func(t *testing.T) {
		t.Parallel()

		sim := protocol.NewSim()
		require.NoError(t, sim.Close())
		require.NoError(t, sim.Close())

		_, ok := <-sim.Events()
		assert.False(t, ok)
	})

	t.Run("emit after close is a no-op", func(t *testing.T) {
		t.Parallel()

		sim := protocol.NewSim()
		require.NoError(t, sim.Close())
		sim.EmitArtifact("late")

		_, ok := <-sim.Events()
		assert.False(t, ok)
	})

	t.Run("pairing codes are deterministic per phone", func(t *testing.T) {
		t.Parallel()

		sim := protocol.NewSim()
		ctx := context.Background()

		first, err := sim.RequestPairingCode(ctx, "15550001111")
		require.NoError(t, err)
		second, err := sim.RequestPairingCode(ctx, "15550001111")
		require.NoError(t, err)
		other, err := sim.RequestPairingCode(ctx, "15550002222")
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.NotEqual(t, first, other)
		assert.Len(t, first, 9)
		assert.Equal(t, []string{"15550001111", "15550001111", "15550002222"}, sim.PairingRequests())
	})

	t.Run("records sent messages", func(t *testing.T) {
		t.Parallel()

		sim := protocol.NewSim()
		require.NoError(t, sim.SendMessage(context.Background(), "user@device", "hello"))

		sent := sim.Sent()
		require.Len(t, sent, 1)
		assert.Equal(t, protocol.SentMessage{To: "user@device", Text: "hello"}, sent[0])
	})

	t.Run("control methods fail after close", func(t *testing.T) {
		t.Parallel()

		sim := protocol.NewSim()
		require.NoError(t, sim.Close())

		_, err := sim.RequestPairingCode(context.Background(), "15550001111")
		assert.ErrorIs(t, err, protocol.ErrSimClosed)
		assert.ErrorIs(t, sim.SendMessage(context.Background(), "x", "y"), protocol.ErrSimClosed)
	})
}

func TestSimDialer(t *testing.T) {
	t.Parallel()

	t.Run("resumes silently with existing credentials", func(t *testing.T) {
		t.Parallel()

		dial := protocol.SimDialer(protocol.SimConfig{})
		client, err := dial(context.Background(), []byte("saved-blob"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = client.Close() })

		ev := recvEvent(t, client.Events())
		require.Equal(t, protocol.EventCredentials, ev.Kind)
		assert.Equal(t, []byte("saved-blob"), ev.Credentials)

		ev = recvEvent(t, client.Events())
		assert.Equal(t, protocol.EventOpen, ev.Kind)
	})

	t.Run("fresh link emits artifact then confirms", func(t *testing.T) {
		t.Parallel()

		dial := protocol.SimDialer(protocol.SimConfig{
			ArtifactInterval: 10 * time.Millisecond,
			ConfirmAfter:     30 * time.Millisecond,
		})
		client, err := dial(context.Background(), nil)
		require.NoError(t, err)
		t.Cleanup(func() { _ = client.Close() })

		ev := recvEvent(t, client.Events())
		require.Equal(t, protocol.EventArtifact, ev.Kind)
		assert.NotEmpty(t, ev.Artifact)

		sawCredentials := false
		for {
			ev = recvEvent(t, client.Events())
			if ev.Kind == protocol.EventCredentials {
				sawCredentials = true
				assert.NotEmpty(t, ev.Credentials)
				continue
			}
			if ev.Kind == protocol.EventOpen {
				break
			}
			require.Equal(t, protocol.EventArtifact, ev.Kind)
		}
		assert.True(t, sawCredentials)
	})

	t.Run("cancelled context closes the connection", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		dial := protocol.SimDialer(protocol.SimConfig{
			ArtifactInterval: time.Hour,
			ConfirmAfter:     time.Hour,
		})
		client, err := dial(ctx, nil)
		require.NoError(t, err)
		t.Cleanup(func() { _ = client.Close() })

		ev := recvEvent(t, client.Events())
		require.Equal(t, protocol.EventArtifact, ev.Kind)

		cancel()
		ev = recvEvent(t, client.Events())
		require.Equal(t, protocol.EventClosed, ev.Kind)
		assert.Equal(t, protocol.CodeConnectionClosed, ev.Close.Code)
	})
}
