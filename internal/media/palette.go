package media

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"io"

	"github.com/EdlinOrg/prominentcolor"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// paletteWorkingSize bounds the longest edge of the image fed to k-means.
const paletteWorkingSize = 256

// Palette returns up to k dominant colors of img as lowercase #rrggbb hex
// codes, most prominent first.
func Palette(img image.Image, k int) ([]string, error) {
	if k <= 0 {
		k = prominentcolor.DefaultK
	}
	small := imaging.Fit(img, paletteWorkingSize, paletteWorkingSize, imaging.Lanczos)

	colors, err := prominentcolor.KmeansWithAll(k, small, prominentcolor.ArgumentNoCropping, prominentcolor.DefaultSize, prominentcolor.GetDefaultMasks())
	if err != nil {
		return nil, fmt.Errorf("k-means palette extraction failed: %w", err)
	}
	if len(colors) == 0 {
		return nil, fmt.Errorf("k-means found no dominant colors")
	}

	out := make([]string, 0, len(colors))
	seen := make(map[string]bool, len(colors))
	for _, c := range colors {
		hex := fmt.Sprintf("#%02x%02x%02x", c.Color.R, c.Color.G, c.Color.B)
		if seen[hex] {
			continue
		}
		seen[hex] = true
		out = append(out, hex)
	}
	return out, nil
}

// PaletteFromReader decodes an image (jpeg, png, gif, bmp, tiff, webp) and
// extracts its palette, honoring EXIF orientation.
func PaletteFromReader(r io.Reader, k int) ([]string, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return Palette(img, k)
}

// PaletteFromBase64 extracts the palette of a base64-encoded image payload.
func PaletteFromBase64(payload string, k int) ([]string, error) {
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("payload is not base64: %w", err)
	}
	return PaletteFromReader(bytes.NewReader(data), k)
}
