// Package adapter keeps a prop model and the display shape drawing it in step.
// Pixel i of the shape, node i of the model and leaf i of the selected element
// (depth-first, in the order children were added) are the same light.
package adapter

import (
	"errors"
	"fmt"
	"math"

	"github.com/propstudio/propstudio/backend-go/internal/elements"
	"github.com/propstudio/propstudio/backend-go/internal/geometry"
	"github.com/propstudio/propstudio/backend-go/internal/preview"
	"github.com/propstudio/propstudio/backend-go/internal/propmodel"
)

// ErrTopologyMismatch is returned when a model and a shape disagree on how
// many lights they hold.
var ErrTopologyMismatch = errors.New("model and shape node counts differ")

// Light is one position seen from both sides.
type Light struct {
	Index     int
	ElementID string
	Node      geometry.NodePoint
	Pixel     *preview.Pixel
	// Local is Node mapped into the shape's handle box.
	Local preview.Point
}

// Prop is a prop model bound to its display shape.
type Prop struct {
	model propmodel.Model
	shape preview.Shape
}

// Bind pairs an existing model and shape.
func Bind(model propmodel.Model, shape preview.Shape) (*Prop, error) {
	p := &Prop{model: model, shape: shape}
	if err := p.Check(); err != nil {
		return nil, err
	}
	return p, nil
}

// Build creates a committed shape spanning topLeft..bottomRight for the
// selection, and a model configured with params. The model's node count is
// taken from the shape.
func Build(selection elements.Node, kind propmodel.Kind, params propmodel.ArchParams, topLeft, bottomRight preview.Point, view preview.View) (*Prop, error) {
	shape, err := preview.Place(preview.Kind(kind), topLeft, selection, view)
	if err != nil {
		return nil, err
	}
	shape.SetHandles(topLeft, bottomRight)
	shape.MouseUp()
	shape.Layout()

	model, err := propmodel.New(kind)
	if err != nil {
		return nil, err
	}
	params.NodeCount = shape.PixelCount()
	if err := model.SetContext(params); err != nil {
		return nil, fmt.Errorf("configure %s model: %w", kind, err)
	}

	return Bind(model, shape)
}

func (p *Prop) Model() propmodel.Model {
	return p.model
}

func (p *Prop) Shape() preview.Shape {
	return p.shape
}

// Check reports ErrTopologyMismatch when the two sides hold a different
// number of lights.
func (p *Prop) Check() error {
	if n, m := len(p.model.Nodes()), p.shape.PixelCount(); n != m {
		return fmt.Errorf("%w: model has %d, shape has %d", ErrTopologyMismatch, n, m)
	}
	return nil
}

// Rebuild reconfigures the shape for a new selection and resizes the model to
// match.
func (p *Prop) Rebuild(selection elements.Node) error {
	p.shape.Reconfigure(selection)
	return p.SyncModel()
}

// SyncModel sets the model's node count to the shape's pixel count.
func (p *Prop) SyncModel() error {
	if len(p.model.Nodes()) == p.shape.PixelCount() {
		return nil
	}
	return p.model.SetNodeCount(p.shape.PixelCount())
}

// Configure rebinds the model to new parameters and resizes the shape to the
// resulting node count.
func (p *Prop) Configure(params any) error {
	if err := p.model.SetContext(params); err != nil {
		return err
	}
	p.shape.SetPixelCount(len(p.model.Nodes()))
	return nil
}

// Lights pairs every model node with its pixel.
func (p *Prop) Lights() ([]Light, error) {
	if err := p.Check(); err != nil {
		return nil, err
	}

	nodes := p.model.Nodes()
	pixels := p.shape.Pixels()
	tl, br := p.shape.TopLeft(), p.shape.BottomRight()
	width := float64(br.X - tl.X)
	height := float64(br.Y - tl.Y)

	lights := make([]Light, len(nodes))
	for i, n := range nodes {
		lights[i] = Light{
			Index:     i,
			ElementID: pixels[i].NodeID(),
			Node:      n,
			Pixel:     pixels[i],
			Local:     preview.Pt(tl.X+int(math.Round(n.X*width)), tl.Y+int(math.Round(n.Y*height))),
		}
	}
	return lights, nil
}
