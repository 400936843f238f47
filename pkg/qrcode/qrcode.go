package qrcode

import (
	"encoding/base64"
	"errors"
	"strings"

	skipqrcode "github.com/skip2/go-qrcode"
)

var (
	// ErrEmptyContent is returned when the content string is empty or only whitespace.
	ErrEmptyContent = errors.New("qrcode.empty_content")
	// ErrGenerationFailed is returned when the QR code cannot be encoded.
	ErrGenerationFailed = errors.New("qrcode.generation_failed")
)

// DefaultSize is the image size in pixels used when no size is specified.
const DefaultSize = 256

// PNG encodes content as a QR code and returns the PNG image bytes.
func PNG(content string, size int) ([]byte, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	if size <= 0 {
		size = DefaultSize
	}
	png, err := skipqrcode.Encode(content, skipqrcode.Medium, size)
	if err != nil {
		return nil, errors.Join(ErrGenerationFailed, err)
	}
	return png, nil
}

// DataURL encodes content as a QR code and returns it as a
// "data:image/png;base64," URL for direct embedding in HTML.
func DataURL(content string, size int) (string, error) {
	png, err := PNG(content, size)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
