package qrcode_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/devicelink/pkg/qrcode"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

func TestPNG(t *testing.T) {
	t.Parallel()

	t.Run("encodes content", func(t *testing.T) {
		t.Parallel()

		png, err := qrcode.PNG("link-code-123", 128)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(png, pngMagic))
	})

	t.Run("zero size falls back to default", func(t *testing.T) {
		t.Parallel()

		png, err := qrcode.PNG("link-code-123", 0)
		require.NoError(t, err)
		assert.NotEmpty(t, png)
	})

	t.Run("empty content rejected", func(t *testing.T) {
		t.Parallel()

		_, err := qrcode.PNG("   ", 128)
		assert.ErrorIs(t, err, qrcode.ErrEmptyContent)
	})
}

func TestDataURL(t *testing.T) {
	t.Parallel()

	t.Run("produces data url", func(t *testing.T) {
		t.Parallel()

		url, err := qrcode.DataURL("link-code-123", 128)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(url, "data:image/png;base64,"))
	})

	t.Run("propagates encoding errors", func(t *testing.T) {
		t.Parallel()

		_, err := qrcode.DataURL("", 128)
		assert.ErrorIs(t, err, qrcode.ErrEmptyContent)
	})
}
