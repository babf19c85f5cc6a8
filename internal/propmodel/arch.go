package propmodel

import (
	"fmt"
	"slices"

	"github.com/propstudio/propstudio/backend-go/internal/geometry"
)

// Arch is a half-ellipse string of lights.
type Arch struct {
	lightBase
	params ArchParams
	bound  bool
}

// NewArch returns an arch with no parameters bound yet.
func NewArch() *Arch {
	return &Arch{}
}

func (a *Arch) Kind() Kind {
	return KindArch
}

// Params returns a copy of the bound parameters.
func (a *Arch) Params() ArchParams {
	return a.params.clone()
}

// SetContext binds the arch to ArchParams (value or pointer) and computes the
// first layout. The caller's object is copied, never retained.
func (a *Arch) SetContext(data any) error {
	var params ArchParams
	switch v := data.(type) {
	case ArchParams:
		params = v
	case *ArchParams:
		if v == nil {
			return fmt.Errorf("%w: nil arch parameters", ErrInvalidConfiguration)
		}
		params = *v
	default:
		return fmt.Errorf("%w: expected ArchParams, got %T", ErrInvalidConfiguration, data)
	}

	return a.apply(params)
}

func (a *Arch) SetNodeCount(n int) error {
	next := a.params.clone()
	next.NodeCount = n
	return a.apply(next)
}

func (a *Arch) SetLightSize(size int) error {
	next := a.params.clone()
	next.LightSize = size
	return a.apply(next)
}

func (a *Arch) SetRotations(rotations []geometry.AxisRotation) error {
	next := a.params.clone()
	next.Rotations = slices.Clone(rotations)
	return a.apply(next)
}

func (a *Arch) apply(params ArchParams) error {
	if err := params.Validate(); err != nil {
		return err
	}

	a.params = params.clone()
	a.rotations = slices.Clone(a.params.Rotations)
	a.bound = true
	a.RecomputeNodes()
	return nil
}

// RecomputeNodes regenerates both layouts from the bound parameters. It does
// nothing until SetContext has succeeded.
func (a *Arch) RecomputeNodes() {
	if !a.bound {
		return
	}
	a.replaceNodes(a.points2D(), a.points3D())
}

// points2D: sample, rotate about Z, shrink about the unit-square centre.
func (a *Arch) points2D() []geometry.NodePoint {
	p := a.params
	points := geometry.SampleArc(p.NodeCount, p.LightSize, angleFor(p.Rotations, geometry.AxisZ))
	geometry.Shrink(points, geometry.FitReduction(p.LightSize), geometry.PivotX, geometry.PivotY)
	return points
}

// points3D: sample, flip Y and centre on the origin, rotate per axis, shrink.
func (a *Arch) points3D() []geometry.NodePoint {
	p := a.params
	points := geometry.SampleArc(p.NodeCount, p.LightSize, 0)
	for i := range points {
		points[i].X -= geometry.PivotX
		points[i].Y = (1 - points[i].Y) - geometry.PivotY
	}
	geometry.RotateAxes(points, p.Rotations)
	geometry.Shrink(points, geometry.FitReduction(p.LightSize), 0, 0)
	return points
}
