// Package engine is a single-user editing session over one layout document.
// It backs the browser build, where the frontend forwards canvas pointer
// events and paints the draw commands returned by Render.
package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/propstudio/propstudio/backend-go/internal/document"
	"github.com/propstudio/propstudio/backend-go/internal/elements"
	"github.com/propstudio/propstudio/backend-go/internal/preview"
	"github.com/propstudio/propstudio/backend-go/internal/propmodel"
	"github.com/propstudio/propstudio/backend-go/internal/typeid"
)

var ErrNoDocument = errors.New("no document loaded")

// Engine owns the document, its element tree and the preview editor.
type Engine struct {
	doc    *document.Layout
	tree   *elements.Tree
	editor *preview.Editor
	// propsDirty covers prop edits that touch no shape.
	propsDirty bool
}

func NewEngine() *Engine {
	return &Engine{}
}

// --- Commands (frontend → backend) ---

// LoadDocument replaces the session with the layout in jsonData. On error the
// current document is kept.
func (e *Engine) LoadDocument(jsonData string) error {
	doc, err := document.Parse([]byte(jsonData))
	if err != nil {
		return err
	}
	return e.open(doc)
}

// LoadSampleDocument opens the sample yard under layoutID.
func (e *Engine) LoadSampleDocument(layoutID string) error {
	return e.open(document.NewSampleLayout(layoutID))
}

func (e *Engine) open(doc *document.Layout) error {
	ed, tree, err := doc.OpenEditor()
	if err != nil {
		return err
	}
	e.doc, e.tree, e.editor = doc, tree, ed
	e.propsDirty = false
	return nil
}

// BeginPlacement starts placing a shape of kind for the element at the screen
// position (x, y) and records a prop for it. An empty kind means an arch.
func (e *Engine) BeginPlacement(kind, elementID string, x, y int) (string, error) {
	if e.editor == nil {
		return "", ErrNoDocument
	}
	node, ok := e.tree.Lookup(elementID)
	if !ok {
		return "", fmt.Errorf("%w: %s", elements.ErrNotFound, elementID)
	}
	if kind == "" {
		kind = string(preview.KindArch)
	}

	shape, err := e.editor.BeginPlacement(preview.Kind(kind), preview.Pt(x, y), node)
	if err != nil {
		return "", err
	}

	prop := document.Prop{
		ID:        typeid.NewPropID(),
		Kind:      propmodel.Kind(kind),
		ElementID: node.ID(),
		ShapeID:   shape.ID(),
		Params: propmodel.ArchParams{
			NodeCount: shape.PixelCount(),
			LightSize: shape.PixelSize(),
		},
	}
	if err := e.doc.SetProp(prop); err != nil {
		e.editor.RemoveShape(shape.ID())
		return "", err
	}
	return shape.ID(), nil
}

// MouseDown returns the id of the shape now being edited, or "".
func (e *Engine) MouseDown(x, y int) string {
	if e.editor == nil {
		return ""
	}
	if s := e.editor.MouseDown(preview.Pt(x, y)); s != nil {
		return s.ID()
	}
	return ""
}

func (e *Engine) MouseMove(x, y int) bool {
	if e.editor == nil {
		return false
	}
	return e.editor.MouseMove(preview.Pt(x, y))
}

func (e *Engine) MouseUp() {
	if e.editor != nil {
		e.editor.MouseUp()
	}
}

func (e *Engine) SetZoom(zoom float64) {
	if e.editor != nil && zoom > 0 {
		e.editor.SetZoom(zoom)
	}
}

// ResizeSelection scales the selected shapes by aspect. A rejected aspect
// leaves every shape as it was.
func (e *Engine) ResizeSelection(aspect float64) error {
	if e.editor == nil {
		return ErrNoDocument
	}
	return e.editor.ResizeSelection(aspect)
}

func (e *Engine) RotateShape(shapeID string, degrees float64) error {
	if e.editor == nil {
		return ErrNoDocument
	}
	return e.editor.RotateShape(shapeID, degrees)
}

// DuplicateShape copies a shape, and the prop it draws, and selects the copy.
// It returns the copy's id.
func (e *Engine) DuplicateShape(shapeID string) (string, error) {
	if e.editor == nil {
		return "", ErrNoDocument
	}
	c, err := e.doc.DuplicateShape(e.editor, shapeID)
	if err != nil {
		return "", err
	}
	return c.ID(), nil
}

// MatchSelection gives every selected shape the size of sourceID.
func (e *Engine) MatchSelection(sourceID string) error {
	if e.editor == nil {
		return ErrNoDocument
	}
	return e.editor.MatchSelection(sourceID)
}

// ReconfigureShape redraws a shape over another element.
func (e *Engine) ReconfigureShape(shapeID, elementID string) error {
	if e.editor == nil {
		return ErrNoDocument
	}
	node, ok := e.tree.Lookup(elementID)
	if !ok {
		return fmt.Errorf("%w: %s", elements.ErrNotFound, elementID)
	}
	return e.doc.ReconfigureShape(e.editor, shapeID, node)
}

// ConfigureProp applies a YAML or JSON parameter document to a prop and
// returns the stored prop as JSON.
func (e *Engine) ConfigureProp(propID, params string) (string, error) {
	if e.editor == nil {
		return "", ErrNoDocument
	}
	p, err := propmodel.DecodeParams(strings.NewReader(params))
	if err != nil {
		return "", err
	}
	prop, err := e.doc.ConfigureProp(e.editor, propID, p)
	if err != nil {
		return "", err
	}
	e.propsDirty = true
	data, err := json.Marshal(prop)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DeleteSelection removes every selected shape and returns how many went.
func (e *Engine) DeleteSelection() int {
	if e.editor == nil {
		return 0
	}
	n := 0
	for _, s := range e.editor.Selected() {
		if e.editor.RemoveShape(s.ID()) {
			n++
		}
	}
	return n
}

// SelectElement highlights an element of the tree and selects the shape
// drawing it. It returns that shape's id, or "" when the element is not
// drawn.
func (e *Engine) SelectElement(elementID string) (string, error) {
	if e.editor == nil {
		return "", ErrNoDocument
	}
	node, ok := e.tree.Lookup(elementID)
	if !ok {
		return "", fmt.Errorf("%w: %s", elements.ErrNotFound, elementID)
	}
	if s := e.editor.SelectNode(node); s != nil {
		return s.ID(), nil
	}
	return "", nil
}

func (e *Engine) ClearHighlight() {
	if e.editor != nil {
		e.editor.ClearHighlight()
	}
}

// --- Queries (frontend ← backend) ---

// HitTest returns the id of the front-most shape under (x, y), or "".
func (e *Engine) HitTest(x, y int) string {
	if e.editor == nil {
		return ""
	}
	if s := e.editor.DisplayItemAtPoint(preview.Pt(x, y)); s != nil {
		return s.ID()
	}
	return ""
}

// Render returns the draw command buffer for the current state as JSON.
func (e *Engine) Render() string {
	if e.editor == nil {
		return "[]"
	}
	out, err := DrawCommandsToJSON(CompileDrawCommands(e.editor.Frame(), e.doc.Background))
	if err != nil {
		return "[]"
	}
	return out
}

// GetFrame returns the raw preview frame as JSON.
func (e *Engine) GetFrame() string {
	if e.editor == nil {
		return "{}"
	}
	data, err := preview.FrameToJSON(e.editor.Frame())
	if err != nil {
		return "{}"
	}
	return string(data)
}

// GetDocument returns the layout with the editor's current shapes as JSON.
func (e *Engine) GetDocument() string {
	if e.doc == nil {
		return ""
	}
	e.doc.Capture(e.editor)
	data, err := json.Marshal(e.doc)
	if err != nil {
		return ""
	}
	return string(data)
}

// GetSelection returns the selected shape ids as a JSON array.
func (e *Engine) GetSelection() string {
	ids := []string{}
	if e.editor != nil {
		for _, s := range e.editor.Selected() {
			ids = append(ids, s.ID())
		}
	}
	data, _ := json.Marshal(ids)
	return string(data)
}

// Version increases on every change; the frontend repaints when it moves.
func (e *Engine) Version() uint64 {
	if e.editor == nil {
		return 0
	}
	return e.editor.Version()
}

// IsDirty reports unsaved edits since the last MarkSaved.
func (e *Engine) IsDirty() bool {
	return e.editor != nil && (e.editor.Dirty() || e.propsDirty)
}

func (e *Engine) MarkSaved() {
	if e.editor != nil {
		e.editor.MarkClean()
		e.propsDirty = false
	}
}
