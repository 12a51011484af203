// Package testutil provides deterministic helpers shared by tests:
// a stepping clock for reproducible timestamps and tiny PNG fixtures
// for scenario screenshots.
package testutil

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
)

// PNG returns a well-formed solid-color PNG of the given dimensions.
// The fill color is derived from the dimensions so different states get
// distinguishable (and byte-stable) payloads.
func PNG(width, height int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	fill := color.RGBA{R: uint8(width % 256), G: uint8(height % 256), B: 0x7f, A: 0xff}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, fill)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		// Encoding an in-memory RGBA image cannot fail.
		panic(err)
	}
	return buf.Bytes()
}

// PNGBase64 returns PNG(width, height) encoded as standard base64, ready
// to paste into a scenario screenshot field.
func PNGBase64(width, height int) string {
	return base64.StdEncoding.EncodeToString(PNG(width, height))
}
