// Package qr renders QR codes as SVG images.
package qr

import (
	"errors"
	"fmt"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

// MaxContentLen bounds the encoded text; QR version 40 at medium recovery
// holds about 2300 bytes.
const MaxContentLen = 2048

var ErrContentTooLong = errors.New("qr content too long")

type Options struct {
	// Size is the rendered width and height in pixels. Default 256.
	Size int
	// Margin is the quiet zone in modules. Zero means 2; negative means none.
	Margin int
}

func (o *Options) setDefaults() {
	if o.Size <= 0 {
		o.Size = 256
	}
	switch {
	case o.Margin == 0:
		o.Margin = 2
	case o.Margin < 0:
		o.Margin = 0
	}
}

// SVG encodes content and returns a standalone SVG document. Dark modules
// are drawn as one path of unit squares on a viewBox measured in modules.
func SVG(content string, opts Options) ([]byte, error) {
	if content == "" {
		return nil, errors.New("qr content is empty")
	}
	if len(content) > MaxContentLen {
		return nil, ErrContentTooLong
	}
	opts.setDefaults()

	code, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	bitmap := trimQuietZone(code.Bitmap())

	n := len(bitmap) + 2*opts.Margin

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" shape-rendering="crispEdges">`,
		opts.Size, opts.Size, n, n)
	fmt.Fprintf(&b, `<rect width="%d" height="%d" fill="#ffffff"/>`, n, n)
	b.WriteString(`<path fill="#000000" d="`)
	for y, row := range bitmap {
		for x, dark := range row {
			if dark {
				fmt.Fprintf(&b, "M%d %dh1v1h-1z", x+opts.Margin, y+opts.Margin)
			}
		}
	}
	b.WriteString(`"/></svg>`)
	return []byte(b.String()), nil
}

// the encoder always surrounds the symbol with a 4 module quiet zone
const encoderQuietZone = 4

func trimQuietZone(bm [][]bool) [][]bool {
	q := encoderQuietZone
	if len(bm) <= 2*q {
		return bm
	}
	out := make([][]bool, 0, len(bm)-2*q)
	for _, row := range bm[q : len(bm)-q] {
		out = append(out, row[q:len(row)-q])
	}
	return out
}
