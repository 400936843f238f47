// Package qrcode renders linking codes as QR images.
//
// It wraps github.com/skip2/go-qrcode and produces either raw PNG bytes or a
// base64 data URL ready to drop into an <img> tag.
package qrcode
