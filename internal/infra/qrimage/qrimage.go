// Package qrimage rasterizes BR Code payloads into PNG QR codes.
package qrimage

import (
	"fmt"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

const (
	minSize = 64
	maxSize = 1024
)

// Renderer draws QR codes at a fixed error correction level.
type Renderer struct {
	level qrcode.RecoveryLevel
}

// NewRenderer accepts "L", "M", "Q" or "H". Anything else falls back to "M".
func NewRenderer(errorCorrection string) *Renderer {
	return &Renderer{level: parseLevel(errorCorrection)}
}

// PNG returns a square PNG of the payload, size pixels wide. Out of range
// sizes are clamped.
func (r *Renderer) PNG(payload string, size int) ([]byte, error) {
	if payload == "" {
		return nil, fmt.Errorf("qrimage: empty payload")
	}
	size = max(minSize, min(size, maxSize))

	png, err := qrcode.Encode(payload, r.level, size)
	if err != nil {
		return nil, fmt.Errorf("qrimage: %w", err)
	}
	return png, nil
}

func parseLevel(s string) qrcode.RecoveryLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "L":
		return qrcode.Low
	case "Q":
		return qrcode.High
	case "H":
		return qrcode.Highest
	default:
		return qrcode.Medium
	}
}
