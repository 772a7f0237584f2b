package render

import (
	"image/color"

	"github.com/teslashibe/go-posecam/pkg/geometry"
	"github.com/teslashibe/go-posecam/pkg/pose"
)

// Glyph colors before fading.
var (
	EyeColor   = color.RGBA{255, 255, 255, 255}
	PupilColor = color.RGBA{40, 120, 255, 255}
	NoseColor  = color.RGBA{255, 200, 0, 255}
	EarColor   = color.RGBA{0, 220, 120, 255}
	DotColor   = Red
)

// DotRadius is the generic keypoint marker radius (a 5px circle).
const DotRadius = 2.5

// drawGlyph draws the marker for a keypoint category at p, scaled by
// scale and faded by ageFactor.
func drawGlyph(c Canvas, g pose.Glyph, p geometry.Point, scale, ageFactor float64) {
	switch g {
	case pose.GlyphEye:
		c.Ellipse(p, 7*scale, 4*scale, Fade(EyeColor, ageFactor), 1)
		c.Circle(p, 2*scale, Fade(PupilColor, ageFactor), Filled)
	case pose.GlyphNose:
		s := 5 * scale
		c.Polygon([]geometry.Point{
			{X: p.X, Y: p.Y - s},
			{X: p.X - s, Y: p.Y + s},
			{X: p.X + s, Y: p.Y + s},
		}, Fade(NoseColor, ageFactor), Filled)
	case pose.GlyphEar:
		c.Circle(p, 6*scale, Fade(EarColor, ageFactor), 2)
	default:
		c.Circle(p, DotRadius*scale, Fade(DotColor, ageFactor), Filled)
	}
}
