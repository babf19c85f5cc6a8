// Package propmodel computes normalized light positions for physical props.
// A model is bound to a parameter object (SetContext) and recomputes its whole
// node sequence synchronously whenever a parameter changes.
package propmodel

import (
	"errors"
	"fmt"
	"slices"

	"github.com/propstudio/propstudio/backend-go/internal/geometry"
)

// ErrInvalidConfiguration is returned when shape parameters are rejected.
// The model keeps its previous state when this is returned.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// Kind names a prop shape.
type Kind string

const (
	KindArch Kind = "Arch"
)

// Model is the contract every light prop implements.
type Model interface {
	Kind() Kind
	SetContext(data any) error
	RecomputeNodes()
	Nodes() []geometry.NodePoint
	ThreeDNodes() []geometry.NodePoint
	Rotations() []geometry.AxisRotation
	SetNodeCount(n int) error
	SetLightSize(size int) error
	SetRotations(rotations []geometry.AxisRotation) error
	// Version increases every time the node sequence is regenerated.
	Version() uint64
}

var factories = map[Kind]func() Model{
	KindArch: func() Model { return NewArch() },
}

// New returns an unbound model of the given kind.
func New(kind Kind) (Model, error) {
	f, ok := factories[kind]
	if !ok {
		return nil, fmt.Errorf("%w: unknown prop kind %q", ErrInvalidConfiguration, kind)
	}
	return f(), nil
}

// lightBase owns the node sequences shared by every light prop.
type lightBase struct {
	nodes     []geometry.NodePoint
	threeD    []geometry.NodePoint
	rotations []geometry.AxisRotation
	version   uint64
}

// Nodes returns a copy of the 2D layout.
func (b *lightBase) Nodes() []geometry.NodePoint {
	return slices.Clone(b.nodes)
}

// ThreeDNodes returns a copy of the 3D layout.
func (b *lightBase) ThreeDNodes() []geometry.NodePoint {
	return slices.Clone(b.threeD)
}

// Rotations returns a copy of the per-axis rotation list.
func (b *lightBase) Rotations() []geometry.AxisRotation {
	return slices.Clone(b.rotations)
}

func (b *lightBase) Version() uint64 {
	return b.version
}

func (b *lightBase) replaceNodes(nodes, threeD []geometry.NodePoint) {
	b.nodes = nodes
	b.threeD = threeD
	b.version++
}

// angleFor returns the first rotation listed for axis, or 0.
func angleFor(rotations []geometry.AxisRotation, axis geometry.Axis) float64 {
	for _, r := range rotations {
		if r.Axis == axis {
			return r.Angle
		}
	}
	return 0
}
