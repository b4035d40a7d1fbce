package derive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackgroundColor_NilSwatches(t *testing.T) {
	assert.Equal(t, DefaultColor, BackgroundColor(nil, false))
	assert.Equal(t, DefaultColor, BackgroundColor(nil, true))
}

func TestBackgroundColor_EmptySwatches(t *testing.T) {
	assert.Equal(t, DefaultColor, BackgroundColor(&Swatches{}, false))
}

func TestBackgroundColor_UnparseableSwatch(t *testing.T) {
	assert.Equal(t, DefaultColor, BackgroundColor(&Swatches{DarkVibrant: "not-a-color"}, false))
}

func TestBackgroundColor_DarkVibrantPreferredOnLight(t *testing.T) {
	swatches := &Swatches{
		DarkVibrant: "#1e40af", // blue-800
		Vibrant:     "#ef4444", // red-500
	}
	got := BackgroundColor(swatches, false)
	assert.Equal(t, "blue-800", got)
}

func TestBackgroundColor_FallsThroughPriorityOrder(t *testing.T) {
	// With no vibrant swatches the muted family is consulted.
	swatches := &Swatches{Muted: "#0d9488"} // teal-600
	got := BackgroundColor(swatches, false)
	hue, step := splitColorName(got)
	assert.Equal(t, "teal", hue)
	assert.GreaterOrEqual(t, step, 600)
}

func TestBackgroundColor_WalksDarkerUntilContrast(t *testing.T) {
	// A very light swatch cannot sit on white; the walk moves down the
	// lightness steps of the same hue until the ratio clears.
	swatches := &Swatches{DarkVibrant: "#dbeafe"} // blue-100
	got := BackgroundColor(swatches, false)

	hue, step := splitColorName(got)
	assert.Equal(t, "blue", hue)
	assert.Greater(t, step, 100)
	assert.GreaterOrEqual(t, ContrastRatio("#ffffff", namedColors[got]), 5.5)
}

func TestBackgroundColor_DarkModeWalksLighter(t *testing.T) {
	swatches := &Swatches{LightMuted: "#1e3a8a"} // blue-900
	got := BackgroundColor(swatches, true)

	hue, step := splitColorName(got)
	assert.Equal(t, "blue", hue)
	assert.Less(t, step, 900)
	assert.GreaterOrEqual(t, ContrastRatio("#000000", namedColors[got]), 5.5)
}

func TestBackgroundColor_AlwaysNamedAndReadable(t *testing.T) {
	// Every palette color, offered as a lone swatch, must resolve to a
	// palette name that reaches the contrast floor or the final step.
	for name, hex := range namedColors {
		got := BackgroundColor(&Swatches{Vibrant: hex}, false)
		resolved, ok := namedColors[got]
		require.True(t, ok, "swatch %s resolved to unknown color %s", name, got)

		_, step := splitColorName(got)
		if step != lightnessSteps[len(lightnessSteps)-1] {
			assert.GreaterOrEqual(t, ContrastRatio("#ffffff", resolved), 5.5,
				"swatch %s resolved to %s below the contrast floor", name, got)
		}
	}
}

func TestContrastRatio(t *testing.T) {
	assert.InDelta(t, 21.0, ContrastRatio("#000000", "#ffffff"), 0.01)
	assert.InDelta(t, 1.0, ContrastRatio("#808080", "#808080"), 0.01)
	assert.Equal(t, 0.0, ContrastRatio("bogus", "#ffffff"))
}

func TestContrastRatio_Symmetric(t *testing.T) {
	assert.Equal(t, ContrastRatio("#1e40af", "#ffffff"), ContrastRatio("#ffffff", "#1e40af"))
}
