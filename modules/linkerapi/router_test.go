package linkerapi_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/devicelink/modules/linkerapi"
	"github.com/dmitrymomot/devicelink/pkg/fanout"
	"github.com/dmitrymomot/devicelink/pkg/linker"
	"github.com/dmitrymomot/devicelink/pkg/protocol"
)

type scriptedDialer struct {
	mu   sync.Mutex
	sims []*protocol.Sim
}

func (d *scriptedDialer) Dial(ctx context.Context, creds []byte) (protocol.Client, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.sims) == 0 {
		return nil, errors.New("no scripted client available")
	}
	s := d.sims[0]
	d.sims = d.sims[1:]
	return s, nil
}

type testEnv struct {
	server *httptest.Server
	bus    *fanout.MemoryBus
	mgr    *linker.Manager
}

func newTestEnv(t *testing.T, sims ...*protocol.Sim) *testEnv {
	t.Helper()

	bus := fanout.NewMemoryBus()
	d := &scriptedDialer{sims: sims}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	mgr := linker.NewManager(linker.NewMemoryStore(), bus, d.Dial,
		linker.WithConfig(linker.Config{
			LinkTimeout:  2 * time.Second,
			RetryDelay:   10 * time.Millisecond,
			QRSize:       64,
			WelcomeDelay: 10 * time.Millisecond,
		}),
		linker.WithLogger(log),
	)
	svc := linkerapi.NewService(mgr, bus, log)
	server := httptest.NewServer(svc.Handle())

	t.Cleanup(func() {
		server.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = mgr.Shutdown(ctx)
		_ = bus.Close()
	})
	return &testEnv{server: server, bus: bus, mgr: mgr}
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestStartCodeEndpoint(t *testing.T) {
	t.Parallel()

	t.Run("returns session id and image", func(t *testing.T) {
		t.Parallel()

		sim := protocol.NewSim()
		sim.EmitArtifact("raw-code-1")
		env := newTestEnv(t, sim)

		resp, err := http.Post(env.server.URL+"/start/code", "application/json", nil)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			SessionID    string `json:"sessionId"`
			LinkingImage string `json:"linkingImage"`
		}
		decodeBody(t, resp, &body)
		assert.NotEmpty(t, body.SessionID)
		assert.True(t, strings.HasPrefix(body.LinkingImage, "data:image/png;base64,"))
	})

	t.Run("dial failure maps to 500", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)

		resp, err := http.Post(env.server.URL+"/start/code", "application/json", nil)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	})
}

func TestStartPairEndpoint(t *testing.T) {
	t.Parallel()

	t.Run("normalizes phone before forwarding", func(t *testing.T) {
		t.Parallel()

		sim := protocol.NewSim()
		env := newTestEnv(t, sim)

		payload := bytes.NewBufferString(`{"phoneNumber":"+1 (555) 000-1111"}`)
		resp, err := http.Post(env.server.URL+"/start/pair", "application/json", payload)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			SessionID   string `json:"sessionId"`
			PairingCode string `json:"pairingCode"`
		}
		decodeBody(t, resp, &body)
		assert.NotEmpty(t, body.SessionID)
		assert.NotEmpty(t, body.PairingCode)
		assert.Equal(t, []string{"15550001111"}, sim.PairingRequests())
	})

	t.Run("invalid phone maps to 400", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)

		payload := bytes.NewBufferString(`{"phoneNumber":"123"}`)
		resp, err := http.Post(env.server.URL+"/start/pair", "application/json", payload)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("malformed body maps to 400", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)

		resp, err := http.Post(env.server.URL+"/start/pair", "application/json", bytes.NewBufferString("{"))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("duplicate caller-supplied id maps to 409", func(t *testing.T) {
		t.Parallel()

		sim := protocol.NewSim()
		env := newTestEnv(t, sim)

		first := bytes.NewBufferString(`{"phoneNumber":"+15550001111","sessionId":"dup-1"}`)
		resp, err := http.Post(env.server.URL+"/start/pair", "application/json", first)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		second := bytes.NewBufferString(`{"phoneNumber":"+15550001111","sessionId":"dup-1"}`)
		resp, err = http.Post(env.server.URL+"/start/pair", "application/json", second)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})
}

func TestStatusEndpoint(t *testing.T) {
	t.Parallel()

	t.Run("unknown id reports disconnected, never 404", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)

		resp, err := http.Get(env.server.URL + "/status/ghost-session")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			Status  string `json:"status"`
			Message string `json:"message"`
		}
		decodeBody(t, resp, &body)
		assert.Equal(t, "disconnected", body.Status)
		assert.Equal(t, "not connected", body.Message)
	})

	t.Run("live session reports its state", func(t *testing.T) {
		t.Parallel()

		sim := protocol.NewSim()
		sim.EmitArtifact("raw-code-1")
		env := newTestEnv(t, sim)

		resp, err := http.Post(env.server.URL+"/start/code", "application/json", nil)
		require.NoError(t, err)
		var started struct {
			SessionID string `json:"sessionId"`
		}
		decodeBody(t, resp, &started)

		require.Eventually(t, func() bool {
			resp, err := http.Get(env.server.URL + "/status/" + started.SessionID)
			if err != nil {
				return false
			}
			var body struct {
				Status string `json:"status"`
			}
			decodeBody(t, resp, &body)
			return body.Status == "linking"
		}, time.Second, 20*time.Millisecond)
	})
}

func TestStreamEndpoint(t *testing.T) {
	t.Parallel()

	sim := protocol.NewSim()
	env := newTestEnv(t, sim)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, env.server.URL+"/stream/stream-1", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)

	// The current status arrives first, then published events follow.
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: status\n", line)
	line, err = reader.ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, line, "not connected")

	_, err = reader.ReadString('\n') // blank separator
	require.NoError(t, err)

	require.NoError(t, env.bus.Publish(context.Background(), "stream-1", fanout.Log("hello from the session")))

	line, err = reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: log\n", line)
	line, err = reader.ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, line, "hello from the session")
}
