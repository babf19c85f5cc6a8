package preview

import (
	"math"

	"github.com/propstudio/propstudio/backend-go/internal/geometry"
)

// View is the zoom and pan of the preview surface.
type View struct {
	Zoom float64 `json:"zoom" msgpack:"zoom"`
	PanX float64 `json:"panX" msgpack:"panX"`
	PanY float64 `json:"panY" msgpack:"panY"`
}

func DefaultView() View {
	return View{Zoom: 1}
}

// ZoomLevel returns Zoom, treating non-positive values as 1.
func (v View) ZoomLevel() float64 {
	if v.Zoom <= 0 {
		return 1
	}
	return v.Zoom
}

// Matrix maps un-zoomed coordinates to the screen.
func (v View) Matrix() geometry.Matrix2D {
	z := v.ZoomLevel()
	return geometry.Translate(v.PanX, v.PanY).Multiply(geometry.Scale(z, z))
}

// ToLocal maps a screen position back to un-zoomed coordinates.
func (v View) ToLocal(p Point) Point {
	x, y := v.Matrix().Invert().TransformPoint(float64(p.X), float64(p.Y))
	return Pt(round(x), round(y))
}

// shapeMatrix is the full local-to-screen transform for a shape rotated by
// degrees about (cx, cy).
func (v View) shapeMatrix(degrees, cx, cy float64) geometry.Matrix2D {
	m := v.Matrix()
	if degrees != 0 {
		m = m.Multiply(geometry.RotateAbout(degrees, cx, cy))
	}
	return m
}

func round(f float64) int {
	return int(math.Round(f))
}
