package propmodel

import (
	"errors"
	"fmt"
	"io"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/propstudio/propstudio/backend-go/internal/geometry"
)

// MaxNodeCount bounds the lights of one prop. It matches the pixel limit of a
// display shape.
const MaxNodeCount = 4096

// ArchParams are the shape parameters an arch prop is configured with.
type ArchParams struct {
	NodeCount int                     `json:"nodeCount" yaml:"nodeCount"`
	LightSize int                     `json:"lightSize" yaml:"lightSize"`
	Rotations []geometry.AxisRotation `json:"rotations,omitempty" yaml:"rotations,omitempty"`
}

// Validate rejects parameters no layout can be computed from.
func (p ArchParams) Validate() error {
	if p.NodeCount < 1 || p.NodeCount > MaxNodeCount {
		return fmt.Errorf("%w: node count %d, need 1 to %d", ErrInvalidConfiguration, p.NodeCount, MaxNodeCount)
	}
	if p.LightSize <= 0 {
		return fmt.Errorf("%w: light size %d, need a positive size", ErrInvalidConfiguration, p.LightSize)
	}
	for _, r := range p.Rotations {
		if _, err := geometry.ParseAxis(string(r.Axis)); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
		}
	}
	return nil
}

// clone copies p with every axis in canonical form.
func (p ArchParams) clone() ArchParams {
	p.Rotations = slices.Clone(p.Rotations)
	for i, r := range p.Rotations {
		if axis, err := geometry.ParseAxis(string(r.Axis)); err == nil {
			p.Rotations[i].Axis = axis
		}
	}
	return p
}

// DecodeParams reads arch parameters from a YAML (or JSON, which YAML accepts)
// document and validates them. Unknown fields are rejected.
func DecodeParams(r io.Reader) (ArchParams, error) {
	var params ArchParams
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&params); err != nil {
		if errors.Is(err, io.EOF) {
			return ArchParams{}, fmt.Errorf("%w: empty parameter document", ErrInvalidConfiguration)
		}
		return ArchParams{}, fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}

	if err := params.Validate(); err != nil {
		return ArchParams{}, err
	}
	return params.clone(), nil
}

// EncodeParams writes params as YAML.
func EncodeParams(w io.Writer, params ArchParams) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(params); err != nil {
		return fmt.Errorf("encode params: %w", err)
	}
	return enc.Close()
}
