package document

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/propstudio/propstudio/backend-go/internal/elements"
	"github.com/propstudio/propstudio/backend-go/internal/preview"
	"github.com/propstudio/propstudio/backend-go/internal/propmodel"
)

var ErrPropNotFound = errors.New("prop not found")

// Layout is the persisted document of one light layout: the element tree, the
// prop parameters and the display shape records of the preview.
type Layout struct {
	Layout     LayoutInfo             `json:"layout"`
	Elements   map[string]ElementNode `json:"elements"`
	Roots      []string               `json:"roots"`
	Props      map[string]Prop        `json:"props"`
	Shapes     []preview.Record       `json:"shapes"`
	View       preview.View           `json:"view"`
	Background *Background            `json:"background,omitempty"`
}

type LayoutInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Version   int    `json:"version"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

type ElementNode struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Parent   *string  `json:"parent"`
	Children []string `json:"children"`
}

// Prop ties a prop model's parameters to the element group it lights and the
// display shape drawing it.
type Prop struct {
	ID        string               `json:"id"`
	Kind      propmodel.Kind       `json:"kind"`
	ElementID string               `json:"elementId"`
	ShapeID   string               `json:"shapeId,omitempty"`
	Params    propmodel.ArchParams `json:"params"`
}

type Background struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// NewEmptyLayout creates an empty document for a new layout
func NewEmptyLayout(layoutID, name string) *Layout {
	return &Layout{
		Layout: LayoutInfo{
			ID:        layoutID,
			Name:      name,
			Version:   1,
			Width:     1280,
			Height:    720,
			CreatedAt: "", // Will be set by caller
			UpdatedAt: "",
		},
		Elements: map[string]ElementNode{},
		Roots:    []string{},
		Props:    map[string]Prop{},
		Shapes:   []preview.Record{},
		View:     preview.DefaultView(),
	}
}

// Parse decodes and checks a layout document.
func Parse(data []byte) (*Layout, error) {
	var l Layout
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("decode layout: %w", err)
	}
	if l.Elements == nil {
		l.Elements = map[string]ElementNode{}
	}
	if l.Props == nil {
		l.Props = map[string]Prop{}
	}
	if _, err := l.Tree(); err != nil {
		return nil, err
	}
	for id, p := range l.Props {
		if err := p.Params.Validate(); err != nil {
			return nil, fmt.Errorf("prop %s: %w", id, err)
		}
	}
	return &l, nil
}

// Tree builds the element tree. Children keep their listed order, which is
// the pixel order of any shape placed on them.
func (l *Layout) Tree() (*elements.Tree, error) {
	tree := elements.NewTree()

	var insert func(parent *elements.Element, id string) error
	insert = func(parent *elements.Element, id string) error {
		node, ok := l.Elements[id]
		if !ok {
			return fmt.Errorf("%w: element %s", elements.ErrNotFound, id)
		}
		e, err := tree.Insert(parent, node.ID, node.Name)
		if err != nil {
			return err
		}
		for _, child := range node.Children {
			if err := insert(e, child); err != nil {
				return err
			}
		}
		return nil
	}

	for _, id := range l.Roots {
		if err := insert(nil, id); err != nil {
			return nil, fmt.Errorf("build element tree: %w", err)
		}
	}
	if tree.Len() != len(l.Elements) {
		return nil, fmt.Errorf("build element tree: %w: %d of %d elements reachable",
			elements.ErrInvalidGraph, tree.Len(), len(l.Elements))
	}
	return tree, nil
}

// SetTree replaces the stored elements with the contents of tree.
func (l *Layout) SetTree(tree *elements.Tree) {
	l.Elements = make(map[string]ElementNode, tree.Len())
	l.Roots = l.Roots[:0]

	var store func(e *elements.Element)
	store = func(e *elements.Element) {
		node := ElementNode{ID: e.ID(), Name: e.Name(), Children: []string{}}
		if p := e.Parent(); p != nil {
			parentID := p.ID()
			node.Parent = &parentID
		}
		for _, c := range e.Children() {
			node.Children = append(node.Children, c.ID())
			store(c.(*elements.Element))
		}
		l.Elements[node.ID] = node
	}

	for _, root := range tree.Roots() {
		l.Roots = append(l.Roots, root.ID())
		store(root)
	}
}

// OpenEditor builds the element tree and a preview editor holding every shape
// of the layout.
func (l *Layout) OpenEditor(opts ...preview.Option) (*preview.Editor, *elements.Tree, error) {
	tree, err := l.Tree()
	if err != nil {
		return nil, nil, err
	}

	view := l.View
	if view.Zoom <= 0 {
		view = preview.DefaultView()
	}
	e := preview.NewEditor(append([]preview.Option{preview.WithView(view)}, opts...)...)
	if err := e.Load(l.Shapes, tree); err != nil {
		return nil, nil, fmt.Errorf("load shapes: %w", err)
	}
	return e, tree, nil
}

// Capture stores the editor's shapes and view back into the document. Props
// whose shape no longer exists lose their shape id.
func (l *Layout) Capture(e *preview.Editor) {
	l.Shapes = e.Records()
	l.View = e.View()

	for id, p := range l.Props {
		if p.ShapeID == "" {
			continue
		}
		if _, ok := e.Shape(p.ShapeID); !ok {
			p.ShapeID = ""
			l.Props[id] = p
		}
	}
}

// SetProp validates and stores a prop.
func (l *Layout) SetProp(p Prop) error {
	if err := p.Params.Validate(); err != nil {
		return err
	}
	if _, ok := l.Elements[p.ElementID]; !ok {
		return fmt.Errorf("%w: element %s", elements.ErrNotFound, p.ElementID)
	}
	if l.Props == nil {
		l.Props = map[string]Prop{}
	}
	l.Props[p.ID] = p
	return nil
}

func (l *Layout) Prop(id string) (Prop, error) {
	p, ok := l.Props[id]
	if !ok {
		return Prop{}, fmt.Errorf("%w: %s", ErrPropNotFound, id)
	}
	return p, nil
}

// PropIDs returns the prop ids, sorted.
func (l *Layout) PropIDs() []string {
	ids := make([]string, 0, len(l.Props))
	for id := range l.Props {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
