// ABOUTME: QR code decoding from uploaded photos and scans
// ABOUTME: Turns arbitrary image bytes into the embedded record identifier
package qr

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var (
	// ErrCodeNotFound means the image decoded but contained no readable QR code.
	ErrCodeNotFound = errors.New("qr code not found")
	// ErrUnreadableImage means the bytes could not be decoded into a pixel grid.
	ErrUnreadableImage = errors.New("unreadable image")
)

// Decode locates the first QR code in data and returns its identifier.
//
// Only one code is read per frame; when several are present the reader's
// first match wins. Payloads that are JSON objects with a string "id" field
// resolve to that id so codes rendered from a full record still scan.
func Decode(data []byte) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadableImage, err)
	}

	text, err := DecodeImage(img)
	if err != nil {
		return "", err
	}

	return identifierFromPayload(text)
}

// DecodeImage reads the raw text of the first QR code in img.
func DecodeImage(img image.Image) (text string, err error) {
	// The reader indexes into pixel rows directly; degenerate images can panic.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%w: reader panic: %v", ErrCodeNotFound, r)
		}
	}()

	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCodeNotFound, err)
	}

	reader := qrcode.NewQRCodeReader()

	result, err := reader.Decode(bmp, map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	})
	if err != nil {
		// Clean renders decode faster and more reliably as a pure barcode.
		result, err = reader.Decode(bmp, map[gozxing.DecodeHintType]interface{}{
			gozxing.DecodeHintType_PURE_BARCODE: true,
		})
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCodeNotFound, err)
	}

	return result.GetText(), nil
}

func identifierFromPayload(text string) (string, error) {
	payload := strings.TrimSpace(text)

	if strings.HasPrefix(payload, "{") {
		var record struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal([]byte(payload), &record); err == nil && strings.TrimSpace(record.ID) != "" {
			payload = strings.TrimSpace(record.ID)
		}
	}

	if payload == "" {
		return "", fmt.Errorf("%w: empty payload", ErrCodeNotFound)
	}

	return payload, nil
}
