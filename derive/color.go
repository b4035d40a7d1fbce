package derive

import (
	colorful "github.com/lucasb-eyer/go-colorful"
)

// minContrast is the WCAG contrast ratio the accent color must clear against
// its paired background.
const minContrast = 5.5

// Swatches holds the up-to-six representative colors extracted from a logo
// image. Empty strings mark swatches the extractor could not produce.
type Swatches struct {
	Vibrant      string
	DarkVibrant  string
	LightVibrant string
	Muted        string
	DarkMuted    string
	LightMuted   string
}

// BackgroundColor selects the accent color name for a logo's swatches. The
// dark flag picks the paired background: #000000 when set, #ffffff otherwise.
// The returned name always reaches minContrast against that background, or
// sits at the walk's final lightness step, or is DefaultColor when no swatch
// is usable.
func BackgroundColor(swatches *Swatches, dark bool) string {
	if swatches == nil {
		return DefaultColor
	}

	var priority []string
	if dark {
		priority = []string{
			swatches.LightMuted, swatches.Muted, swatches.DarkMuted,
			swatches.LightVibrant, swatches.Vibrant, swatches.DarkVibrant,
		}
	} else {
		priority = []string{
			swatches.DarkVibrant, swatches.Vibrant, swatches.LightVibrant,
			swatches.DarkMuted, swatches.Muted, swatches.LightMuted,
		}
	}

	hex := ""
	for _, candidate := range priority {
		if candidate != "" {
			hex = candidate
			break
		}
	}
	if hex == "" {
		return DefaultColor
	}

	name, ok := nearestNamedColor(hex)
	if !ok {
		return DefaultColor
	}

	steps := lightnessSteps
	background := "#ffffff"
	if dark {
		steps = darkLightnessSteps
		background = "#000000"
	}

	hue, step := splitColorName(name)
	start := stepIndex(steps, step)
	chosen := step
	for i := start; i < len(steps); i++ {
		chosen = steps[i]
		if ContrastRatio(background, namedColors[colorName(hue, chosen)]) >= minContrast {
			break
		}
	}
	return colorName(hue, chosen)
}

// ContrastRatio computes the WCAG contrast ratio between two hex colors.
// Unparseable input yields 0.
func ContrastRatio(aHex, bHex string) float64 {
	a, errA := colorful.Hex(aHex)
	b, errB := colorful.Hex(bHex)
	if errA != nil || errB != nil {
		return 0
	}
	la := relativeLuminance(a)
	lb := relativeLuminance(b)
	if la < lb {
		la, lb = lb, la
	}
	return (la + 0.05) / (lb + 0.05)
}

func relativeLuminance(c colorful.Color) float64 {
	r, g, b := c.LinearRgb()
	return 0.2126*r + 0.7152*g + 0.0722*b
}

func nearestNamedColor(hex string) (string, bool) {
	target, err := colorful.Hex(hex)
	if err != nil {
		return "", false
	}
	best := ""
	bestDist := 0.0
	for name, paletteHex := range namedColors {
		c, err := colorful.Hex(paletteHex)
		if err != nil {
			continue
		}
		d := target.DistanceLab(c)
		if best == "" || d < bestDist || (d == bestDist && name < best) {
			best = name
			bestDist = d
		}
	}
	return best, best != ""
}

func stepIndex(steps []int, step int) int {
	for i, s := range steps {
		if s == step {
			return i
		}
	}
	return 0
}
