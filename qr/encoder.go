// ABOUTME: QR code rendering for stored form identifiers
// ABOUTME: Produces PNG images that Decode reads back verbatim
package qr

import (
	"errors"

	qrcode "github.com/skip2/go-qrcode"
)

// DefaultSize is the PNG edge length in pixels used when none is given.
const DefaultSize = 256

// Encode renders content as a PNG QR code of size x size pixels.
func Encode(content string, size int) ([]byte, error) {
	if content == "" {
		return nil, errors.New("qr content cannot be empty")
	}
	if size <= 0 {
		size = DefaultSize
	}

	return qrcode.Encode(content, qrcode.Medium, size)
}
