package geometry

import "math"

const (
	arcXScale = 0.5
	arcYScale = 1.0

	// fitExponent drives FitReduction; bigger lights shrink the layout a little
	// so they stay inside the prop's box.
	fitExponent = 0.03
)

// SampleArc returns count points spaced evenly by angle along the half ellipse
// t in [π, 2π]: x = 0.5(1+cos t), y = 1+sin t. Every point carries size.
// A single point sits at t = π. When rotationDegrees is not zero the samples are
// rotated about (0.5, 0.5) afterwards.
func SampleArc(count, size int, rotationDegrees float64) []NodePoint {
	if count < 1 {
		return nil
	}

	increment := 0.0
	if count > 1 {
		increment = math.Pi / float64(count-1)
	}

	points := make([]NodePoint, count)
	for i := range points {
		t := math.Pi + float64(i)*increment
		points[i] = NodePoint{
			X:    arcXScale * (1 + math.Cos(t)),
			Y:    arcYScale * (1 + math.Sin(t)),
			Size: size,
		}
	}

	RotatePoints(points, rotationDegrees)
	return points
}

// FitReduction is the shrink factor 1/size^0.03 applied to a layout so that
// large lights do not overflow their box. Sizes below 1 are treated as 1.
func FitReduction(size int) float64 {
	if size < 1 {
		return 1
	}
	return 1 / math.Pow(float64(size), fitExponent)
}
