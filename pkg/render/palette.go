package render

import (
	"image/color"
	"math"

	"github.com/teslashibe/go-posecam/pkg/geometry"
)

// PrimaryColor is the color of the first detected person.
var PrimaryColor = color.RGBA{255, 0, 0, 255}

// goldenRatioConjugate spreads consecutive indices around the hue wheel.
const goldenRatioConjugate = 0.618033988749895

// BaseColor returns the skeleton color for a pose index. Index 0 is
// PrimaryColor; other indices hash onto the hue wheel. Same index, same
// color.
func BaseColor(index int) color.RGBA {
	if index == 0 {
		return PrimaryColor
	}
	h := math.Mod(float64(index)*goldenRatioConjugate, 1)
	if h < 0 {
		h++
	}
	return hsv(h*360, 0.85, 1)
}

// Fade interpolates c toward black by ageFactor in [0, 1]. Alpha is kept.
func Fade(c color.RGBA, ageFactor float64) color.RGBA {
	t := geometry.Clamp(ageFactor, 0, 1)
	return color.RGBA{
		R: fadeChannel(c.R, t),
		G: fadeChannel(c.G, t),
		B: fadeChannel(c.B, t),
		A: c.A,
	}
}

func fadeChannel(v uint8, t float64) uint8 {
	return uint8(math.Round(geometry.Lerp(float64(v), 0, t)))
}

// hsv converts hue in degrees, saturation and value in [0, 1] to RGBA.
func hsv(h, s, v float64) color.RGBA {
	c := v * s
	hp := h / 60
	x := c * (1 - math.Abs(math.Mod(hp, 2)-1))

	var r, g, b float64
	switch {
	case hp < 1:
		r, g, b = c, x, 0
	case hp < 2:
		r, g, b = x, c, 0
	case hp < 3:
		r, g, b = 0, c, x
	case hp < 4:
		r, g, b = 0, x, c
	case hp < 5:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}

	m := v - c
	return color.RGBA{
		R: uint8(math.Round((r + m) * 255)),
		G: uint8(math.Round((g + m) * 255)),
		B: uint8(math.Round((b + m) * 255)),
		A: 255,
	}
}
