// Package qrcode renders short URLs as PNG QR codes.
package qrcode

import (
	"errors"
	"fmt"
	"image/color"
	"strings"

	qrc "github.com/skip2/go-qrcode"
)

const (
	// MinSize and MaxSize bound the rendered image edge in pixels.
	MinSize = 100
	MaxSize = 1000

	// DefaultSize is used when the caller does not specify one.
	DefaultSize = 300
)

// Encoding errors.
var (
	ErrInvalidSize  = fmt.Errorf("size must be between %d and %d", MinSize, MaxSize)
	ErrInvalidColor = errors.New("color must be a 6-digit hex value")
)

// Options controls QR rendering. Zero values select the defaults:
// 300px, black on white.
type Options struct {
	Size    int
	FgColor string // hex, with or without leading #
	BgColor string
}

// Encode renders content as a PNG QR code.
func Encode(content string, opts Options) ([]byte, error) {
	size := opts.Size
	if size == 0 {
		size = DefaultSize
	}
	if size < MinSize || size > MaxSize {
		return nil, ErrInvalidSize
	}

	fg, err := parseHexColor(opts.FgColor, color.Black)
	if err != nil {
		return nil, err
	}
	bg, err := parseHexColor(opts.BgColor, color.White)
	if err != nil {
		return nil, err
	}

	code, err := qrc.New(content, qrc.Medium)
	if err != nil {
		return nil, fmt.Errorf("failed to build qr code: %w", err)
	}
	code.ForegroundColor = fg
	code.BackgroundColor = bg

	png, err := code.PNG(size)
	if err != nil {
		return nil, fmt.Errorf("failed to render qr png: %w", err)
	}
	return png, nil
}

// parseHexColor accepts "RRGGBB" or "#RRGGBB"; empty selects fallback.
func parseHexColor(s string, fallback color.Color) (color.Color, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if s == "" {
		return fallback, nil
	}
	if len(s) != 6 {
		return nil, ErrInvalidColor
	}

	var r, g, b uint8
	if _, err := fmt.Sscanf(s, "%02x%02x%02x", &r, &g, &b); err != nil {
		return nil, ErrInvalidColor
	}
	return color.RGBA{R: r, G: g, B: b, A: 255}, nil
}
