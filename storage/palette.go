package storage

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	prominentcolor "github.com/EdlinOrg/prominentcolor"
	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/openscioly/results-api/derive"
)

// PaletteExtractor computes a small swatch palette from a raster logo.
type PaletteExtractor interface {
	Extract(ctx context.Context, imageData []byte) (*derive.Swatches, error)
}

type kmeansPaletteExtractor struct{}

func NewKmeansPaletteExtractor() PaletteExtractor {
	return &kmeansPaletteExtractor{}
}

func (e *kmeansPaletteExtractor) Extract(ctx context.Context, imageData []byte) (*derive.Swatches, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("failed to decode logo image: %w", err)
	}

	centroids, err := prominentcolor.KmeansWithAll(
		6,
		img,
		prominentcolor.ArgumentNoCropping,
		prominentcolor.DefaultSize,
		prominentcolor.GetDefaultMasks(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to extract dominant colors: %w", err)
	}

	sw := &derive.Swatches{}
	counts := map[*string]int{}
	for _, item := range centroids {
		c := colorful.Color{
			R: float64(item.Color.R) / 255.0,
			G: float64(item.Color.G) / 255.0,
			B: float64(item.Color.B) / 255.0,
		}
		slot := swatchSlot(sw, c)
		if slot == nil {
			continue
		}
		// The most populous centroid wins each slot.
		if *slot != "" && counts[slot] >= item.Cnt {
			continue
		}
		*slot = "#" + item.AsString()
		counts[slot] = item.Cnt
	}
	return sw, nil
}

// swatchSlot buckets a color into one of six swatch roles by
// saturation and lightness thresholds.
func swatchSlot(sw *derive.Swatches, c colorful.Color) *string {
	_, s, l := c.Hsl()
	vibrant := s >= 0.35
	switch {
	case l < 0.35 && vibrant:
		return &sw.DarkVibrant
	case l < 0.35:
		return &sw.DarkMuted
	case l > 0.65 && vibrant:
		return &sw.LightVibrant
	case l > 0.65:
		return &sw.LightMuted
	case vibrant:
		return &sw.Vibrant
	default:
		return &sw.Muted
	}
}
