// Package geometry holds the pure math behind prop layouts: point rotation,
// parametric sampling and the affine transforms used between model, shape and
// screen space. Nothing in here keeps state between calls.
package geometry

import (
	"fmt"
	"math"
	"strings"
)

// Pivot of the unit square that 2D node layouts rotate and shrink about.
const (
	PivotX = 0.5
	PivotY = 0.5
)

// NodePoint is a logical light position. X and Y are normalized to the unit
// square for 2D layouts; Z is only set by 3D layouts.
type NodePoint struct {
	X    float64 `json:"x" msgpack:"x"`
	Y    float64 `json:"y" msgpack:"y"`
	Z    float64 `json:"z,omitempty" msgpack:"z,omitempty"`
	Size int     `json:"size" msgpack:"size"`
}

// Axis names a rotation axis.
type Axis string

const (
	AxisX Axis = "X"
	AxisY Axis = "Y"
	AxisZ Axis = "Z"
)

// ParseAxis accepts "x", "X", "xAxis" and friends.
func ParseAxis(s string) (Axis, error) {
	switch strings.ToUpper(strings.TrimSuffix(strings.TrimSuffix(s, "Axis"), "axis")) {
	case "X":
		return AxisX, nil
	case "Y":
		return AxisY, nil
	case "Z":
		return AxisZ, nil
	}
	return "", fmt.Errorf("unknown axis %q", s)
}

// AxisRotation is a rotation in degrees around one axis.
type AxisRotation struct {
	Axis  Axis    `json:"axis" yaml:"axis"`
	Angle float64 `json:"angle" yaml:"angle"`
}

// RotatePoints rotates every point in place about (0.5, 0.5) by angleDegrees,
// clockwise-positive on a y-down screen. An angle of 0 leaves the points untouched.
func RotatePoints(points []NodePoint, angleDegrees float64) {
	RotatePointsAbout(points, angleDegrees, PivotX, PivotY)
}

// RotatePointsAbout is RotatePoints with an explicit pivot.
func RotatePointsAbout(points []NodePoint, angleDegrees, cx, cy float64) {
	if angleDegrees == 0 {
		return
	}

	m := RotateAbout(angleDegrees, cx, cy)
	for i := range points {
		points[i].X, points[i].Y = m.TransformPoint(points[i].X, points[i].Y)
	}
}

// RotateAxes applies each rotation in list order about the origin. It is meant
// for 3D layouts that have already been centred on the origin.
func RotateAxes(points []NodePoint, rotations []AxisRotation) {
	for _, r := range rotations {
		if r.Angle == 0 {
			continue
		}

		rad := r.Angle * math.Pi / 180.0
		cos := math.Cos(rad)
		sin := math.Sin(rad)

		for i := range points {
			p := &points[i]
			switch r.Axis {
			case AxisX:
				p.Y, p.Z = p.Y*cos-p.Z*sin, p.Y*sin+p.Z*cos
			case AxisY:
				p.X, p.Z = p.X*cos+p.Z*sin, -p.X*sin+p.Z*cos
			case AxisZ:
				p.X, p.Y = p.X*cos-p.Y*sin, p.X*sin+p.Y*cos
			}
		}
	}
}

// Shrink scales every point in place by factor about (cx, cy, 0).
func Shrink(points []NodePoint, factor, cx, cy float64) {
	if factor == 1 {
		return
	}

	for i := range points {
		points[i].X = cx + (points[i].X-cx)*factor
		points[i].Y = cy + (points[i].Y-cy)*factor
		points[i].Z *= factor
	}
}
