package linker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinkPromise(t *testing.T) {
	t.Parallel()

	t.Run("resolves exactly once", func(t *testing.T) {
		t.Parallel()

		p := newLinkPromise()
		require.True(t, p.resolve(Artifact{Kind: ArtifactImage, Data: "first"}, nil))
		require.False(t, p.resolve(Artifact{Kind: ArtifactImage, Data: "second"}, nil))

		art, err := p.await(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "first", art.Data)
	})

	t.Run("await honors context", func(t *testing.T) {
		t.Parallel()

		p := newLinkPromise()
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		_, err := p.await(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestRecordWaiter(t *testing.T) {
	t.Parallel()

	t.Run("pending promise is shared", func(t *testing.T) {
		t.Parallel()

		rec := newRecord("s1")
		assert.Same(t, rec.waiter(), rec.waiter())
	})

	t.Run("delivered artifact is never replayed", func(t *testing.T) {
		t.Parallel()

		rec := newRecord("s1")
		consumed := rec.waiter()
		require.True(t, rec.resolveLink(Artifact{Kind: ArtifactImage, Data: "one-time"}))

		fresh := rec.waiter()
		assert.NotSame(t, consumed, fresh)
		assert.False(t, fresh.resolved())
	})

	t.Run("error resolution sticks for late callers", func(t *testing.T) {
		t.Parallel()

		rec := newRecord("s1")
		rec.failLink(ErrAlreadyLinked)

		_, err := rec.waiter().await(context.Background())
		assert.ErrorIs(t, err, ErrAlreadyLinked)
	})

	t.Run("new attempt keeps a pending wait", func(t *testing.T) {
		t.Parallel()

		rec := newRecord("s1")
		pending := rec.waiter()
		rec.beginAttempt()

		assert.Same(t, pending, rec.waiter())
	})

	t.Run("new attempt clears a previous error", func(t *testing.T) {
		t.Parallel()

		rec := newRecord("s1")
		rec.failLink(ErrAlreadyLinked)
		rec.beginAttempt()

		assert.False(t, rec.waiter().resolved())
	})
}

func TestRecordClientHandoff(t *testing.T) {
	t.Parallel()

	t.Run("await blocks until client is set", func(t *testing.T) {
		t.Parallel()

		rec := newRecord("s1")
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		_, err := rec.awaitClient(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("aborted attempt reports closed session", func(t *testing.T) {
		t.Parallel()

		rec := newRecord("s1")
		rec.abortAttempt()

		_, err := rec.awaitClient(context.Background())
		assert.ErrorIs(t, err, ErrSessionClosed)
	})
}
