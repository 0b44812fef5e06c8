package quiz

import (
	"encoding/base64"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// QRSize is the edge length in pixels of generated QR images.
const QRSize = 256

// EncodeQR renders content as a PNG QR code and returns it as a data URL.
func EncodeQR(content string) (string, error) {
	png, err := qrcode.Encode(content, qrcode.Medium, QRSize)
	if err != nil {
		return "", fmt.Errorf("encode QR code: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
