package document

import (
	"fmt"

	"github.com/propstudio/propstudio/backend-go/internal/adapter"
	"github.com/propstudio/propstudio/backend-go/internal/elements"
	"github.com/propstudio/propstudio/backend-go/internal/preview"
	"github.com/propstudio/propstudio/backend-go/internal/propmodel"
	"github.com/propstudio/propstudio/backend-go/internal/typeid"
)

// Bind builds the prop's model from its stored parameters and pairs it with
// shape.
func (p Prop) Bind(shape preview.Shape) (*adapter.Prop, error) {
	model, err := propmodel.New(p.Kind)
	if err != nil {
		return nil, err
	}
	if err := model.SetContext(p.Params); err != nil {
		return nil, fmt.Errorf("prop %s: %w", p.ID, err)
	}
	return adapter.Bind(model, shape)
}

// PropForShape returns the prop drawn by the shape with shapeID.
func (l *Layout) PropForShape(shapeID string) (Prop, bool) {
	if shapeID == "" {
		return Prop{}, false
	}
	for _, id := range l.PropIDs() {
		if p := l.Props[id]; p.ShapeID == shapeID {
			return p, true
		}
	}
	return Prop{}, false
}

// ReconfigureShape rebuilds a shape's pixels for node. The prop it draws
// follows: its model is resized to the new pixel count and it moves to node.
func (l *Layout) ReconfigureShape(ed *preview.Editor, shapeID string, node elements.Node) error {
	p, placed := l.PropForShape(shapeID)
	return ed.UpdateShape(shapeID, func(s preview.Shape) error {
		if !placed {
			s.Reconfigure(node)
			return nil
		}

		bound, err := p.Bind(s)
		if err != nil {
			return err
		}
		if err := bound.Rebuild(node); err != nil {
			return err
		}
		if node != nil {
			p.ElementID = node.ID()
		}
		p.Params.NodeCount = len(bound.Model().Nodes())
		return l.SetProp(p)
	})
}

// DuplicateShape copies a shape in the editor. When the shape draws a prop
// the copy gets a prop of its own with the same parameters.
func (l *Layout) DuplicateShape(ed *preview.Editor, shapeID string) (preview.Shape, error) {
	c, err := ed.Duplicate(shapeID)
	if err != nil {
		return nil, err
	}

	p, ok := l.PropForShape(shapeID)
	if !ok {
		return c, nil
	}
	p.ID = typeid.NewPropID()
	p.ShapeID = c.ID()
	if err := l.SetProp(p); err != nil {
		ed.RemoveShape(c.ID())
		return nil, err
	}
	return c, nil
}

// ConfigureProp stores new parameters for a prop. A placed prop's shape is
// resized to the model's node count; on error neither side changes.
func (l *Layout) ConfigureProp(ed *preview.Editor, propID string, params propmodel.ArchParams) (Prop, error) {
	p, err := l.Prop(propID)
	if err != nil {
		return Prop{}, err
	}
	if err := params.Validate(); err != nil {
		return Prop{}, err
	}

	if _, ok := ed.Shape(p.ShapeID); ok {
		err := ed.UpdateShape(p.ShapeID, func(s preview.Shape) error {
			bound, err := p.Bind(s)
			if err != nil {
				return err
			}
			return bound.Configure(params)
		})
		if err != nil {
			return Prop{}, err
		}
	}

	p.Params = params
	if err := l.SetProp(p); err != nil {
		return Prop{}, err
	}
	return p, nil
}
