package preview

import (
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/propstudio/propstudio/backend-go/internal/elements"
)

// Editor is the preview surface: the display shapes of one layout plus the
// selection, highlight and view they share. It owns the mouse protocol across
// shapes and hands each event to the shape being edited.
type Editor struct {
	shapes   []Shape
	selected []Shape

	// active receives mouse moves until MouseUp.
	active     Shape
	dragOrigin Point

	view        View
	highlighted map[string]struct{}

	nodeIndex map[string][]*Pixel

	version uint64
	dirty   bool

	logger *slog.Logger
}

// Option configures an Editor.
type Option func(*Editor)

// WithLogger sends interaction traces to l at debug level.
func WithLogger(l *slog.Logger) Option {
	return func(e *Editor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithView sets the initial view.
func WithView(v View) Option {
	return func(e *Editor) {
		e.view = v
	}
}

// NewEditor creates an empty editor.
func NewEditor(opts ...Option) *Editor {
	e := &Editor{
		view:        DefaultView(),
		highlighted: make(map[string]struct{}),
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// --- Change tracking ---

// Version increases on every change that affects what is drawn.
func (e *Editor) Version() uint64 {
	return e.version
}

// Dirty reports whether shapes changed since the last MarkClean.
func (e *Editor) Dirty() bool {
	return e.dirty
}

func (e *Editor) MarkClean() {
	e.dirty = false
}

// changed bumps the version for presentation-only changes.
func (e *Editor) changed() {
	e.version++
	e.nodeIndex = nil
}

// touch records a change that must be persisted.
func (e *Editor) touch() {
	e.changed()
	e.dirty = true
}

// --- View ---

func (e *Editor) View() View {
	return e.view
}

func (e *Editor) SetView(v View) {
	e.view = v
	for _, s := range e.shapes {
		s.SetView(v)
	}
	e.changed()
}

func (e *Editor) SetZoom(zoom float64) {
	v := e.view
	v.Zoom = zoom
	e.SetView(v)
}

// --- Shapes ---

// Shapes returns the shapes back to front.
func (e *Editor) Shapes() []Shape {
	return slices.Clone(e.shapes)
}

func (e *Editor) Len() int {
	return len(e.shapes)
}

func (e *Editor) Shape(id string) (Shape, bool) {
	for _, s := range e.shapes {
		if s.ID() == id {
			return s, true
		}
	}
	return nil, false
}

// AddShape puts s in front of every other shape and lays it out in the
// editor's view.
func (e *Editor) AddShape(s Shape) {
	s.SetView(e.view)
	e.shapes = append(e.shapes, s)
	e.touch()
}

// RemoveShape deletes the shape with id. It reports whether it existed.
func (e *Editor) RemoveShape(id string) bool {
	i := slices.IndexFunc(e.shapes, func(s Shape) bool { return s.ID() == id })
	if i < 0 {
		return false
	}

	s := e.shapes[i]
	e.shapes = slices.Delete(e.shapes, i, i+1)
	e.selected = slices.DeleteFunc(e.selected, func(o Shape) bool { return o == s })
	if e.active == s {
		e.active = nil
	}
	e.touch()
	return true
}

// UpdateShape runs fn on the shape with id and records the change, whether
// or not fn fails. Code outside this package that reshapes a shape (a new
// selection, a new node count) goes through it so the node index and dirty
// state stay current.
func (e *Editor) UpdateShape(id string, fn func(Shape) error) error {
	s, ok := e.Shape(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrShapeNotFound, id)
	}
	err := fn(s)
	e.touch()
	return err
}

// Duplicate adds a copy of the shape with id, offset by one select-point size.
func (e *Editor) Duplicate(id string) (Shape, error) {
	s, ok := e.Shape(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrShapeNotFound, id)
	}

	c := s.Clone()
	tl, br := s.TopLeft(), s.BottomRight()
	c.MoveTo(min(tl.X, br.X)+SelectPointSize, min(tl.Y, br.Y)+SelectPointSize)
	e.AddShape(c)
	e.selected = []Shape{c}
	return c, nil
}

// --- Selection ---

func (e *Editor) Selected() []Shape {
	return slices.Clone(e.selected)
}

func (e *Editor) IsSelected(id string) bool {
	return slices.ContainsFunc(e.selected, func(s Shape) bool { return s.ID() == id })
}

// Select adds the shape with id to the selection.
func (e *Editor) Select(id string) bool {
	s, ok := e.Shape(id)
	if !ok {
		return false
	}
	if !slices.Contains(e.selected, s) {
		e.selected = append(e.selected, s)
		e.changed()
	}
	return true
}

func (e *Editor) Deselect() {
	if len(e.selected) == 0 {
		return
	}
	e.selected = nil
	e.changed()
}

// DisplayItemAtPoint returns the front-most shape with a pixel under the
// screen position, or nil.
func (e *Editor) DisplayItemAtPoint(at Point) Shape {
	for i := len(e.shapes) - 1; i >= 0; i-- {
		if e.shapes[i].PointInShape(at) {
			return e.shapes[i]
		}
	}
	return nil
}

// --- Mouse protocol ---

// BeginPlacement adds a new shape of kind whose corners start at the screen
// position at. It follows the pointer until MouseUp.
func (e *Editor) BeginPlacement(kind Kind, at Point, node elements.Node) (Shape, error) {
	if e.active != nil {
		e.MouseUp()
	}

	s, err := Place(kind, e.view.ToLocal(at), node, e.view)
	if err != nil {
		return nil, err
	}

	e.AddShape(s)
	e.selected = []Shape{s}
	e.active = s
	e.dragOrigin = at
	e.logger.Debug("placing shape", "shape", s.ID(), "kind", kind, "pixels", s.PixelCount())
	return s, nil
}

// MouseDown starts an edit at the screen position at: a handle of a selected
// shape first, then the body of the front-most shape under the pointer.
// Clicking empty space clears the selection. It returns the shape being
// edited, or nil.
func (e *Editor) MouseDown(at Point) Shape {
	if e.active != nil {
		e.MouseUp()
	}
	e.dragOrigin = at

	for i := len(e.selected) - 1; i >= 0; i-- {
		s := e.selected[i]
		if h := s.HandleAt(at); h != nil {
			s.SetSelectPoint(h)
			e.active = s
			e.logger.Debug("handle selected", "shape", s.ID(), "handle", h.Type)
			return s
		}
	}

	s := e.DisplayItemAtPoint(at)
	if s == nil {
		e.Deselect()
		return nil
	}

	if !slices.Contains(e.selected, s) {
		e.selected = []Shape{s}
		e.changed()
	}
	s.SetSelectPoint(nil)
	e.active = s
	e.logger.Debug("body selected", "shape", s.ID())
	return s
}

// MouseMove forwards the pointer to the shape being edited. Deltas are
// measured from the mouse-down position. It reports whether anything moved.
func (e *Editor) MouseMove(at Point) bool {
	if e.active == nil {
		return false
	}
	e.active.MouseMove(at.X, at.Y, at.X-e.dragOrigin.X, at.Y-e.dragOrigin.Y)
	e.touch()
	return true
}

// MouseUp commits the current edit.
func (e *Editor) MouseUp() {
	if e.active == nil {
		return
	}
	e.logger.Debug("edit committed", "shape", e.active.ID(), "state", e.active.State())
	e.active.MouseUp()
	e.active = nil
	e.changed()
}

// Active returns the shape receiving mouse moves, or nil.
func (e *Editor) Active() Shape {
	return e.active
}

// ResizeSelection scales every selected shape from its mouse-down snapshot.
// When any shape rejects the aspect none is resized.
func (e *Editor) ResizeSelection(aspect float64) error {
	if len(e.selected) == 0 {
		return nil
	}
	for _, s := range e.selected {
		if err := s.CheckResize(aspect); err != nil {
			return fmt.Errorf("shape %s: %w", s.ID(), err)
		}
	}
	for _, s := range e.selected {
		if err := s.ResizeFromOriginal(aspect); err != nil {
			return fmt.Errorf("shape %s: %w", s.ID(), err)
		}
	}
	e.touch()
	return nil
}

// MatchSelection copies the size of the shape with sourceID onto every other
// selected shape of the same kind.
func (e *Editor) MatchSelection(sourceID string) error {
	src, ok := e.Shape(sourceID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrShapeNotFound, sourceID)
	}
	matched := false
	for _, s := range e.selected {
		if s != src && s.Match(src) {
			matched = true
		}
	}
	if matched {
		e.touch()
	}
	return nil
}

// RotateShape sets a shape's screen rotation in degrees.
func (e *Editor) RotateShape(id string, degrees float64) error {
	if math.IsNaN(degrees) || math.IsInf(degrees, 0) {
		return fmt.Errorf("%w: %v degrees", ErrInvalidRotation, degrees)
	}
	s, ok := e.Shape(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrShapeNotFound, id)
	}
	s.SetRotation(degrees)
	e.touch()
	return nil
}

// --- Element routing ---

// Highlight marks node and all of its descendants.
func (e *Editor) Highlight(node elements.Node) {
	elements.Walk(node, func(n elements.Node) bool {
		e.highlighted[n.ID()] = struct{}{}
		return true
	})
	e.changed()
}

func (e *Editor) ClearHighlight() {
	if len(e.highlighted) == 0 {
		return
	}
	clear(e.highlighted)
	e.changed()
}

func (e *Editor) IsHighlighted(nodeID string) bool {
	_, ok := e.highlighted[nodeID]
	return ok
}

// Highlighted returns the highlighted element ids, sorted.
func (e *Editor) Highlighted() []string {
	ids := make([]string, 0, len(e.highlighted))
	for id := range e.highlighted {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// NodeToPixel indexes every bound pixel by its element id. The index is
// rebuilt lazily after any change.
func (e *Editor) NodeToPixel() map[string][]*Pixel {
	if e.nodeIndex != nil {
		return e.nodeIndex
	}

	idx := make(map[string][]*Pixel)
	for _, s := range e.shapes {
		for _, px := range s.Pixels() {
			if id := px.NodeID(); id != "" {
				idx[id] = append(idx[id], px)
			}
		}
	}
	e.nodeIndex = idx
	return idx
}

func (e *Editor) PixelsForNode(nodeID string) []*Pixel {
	return e.NodeToPixel()[nodeID]
}

// ShapeForNode returns the shape drawing the first leaf of node, or nil.
func (e *Editor) ShapeForNode(node elements.Node) Shape {
	for _, leaf := range elements.LeafNodes(node) {
		pixels := e.PixelsForNode(leaf.ID())
		if len(pixels) == 0 {
			continue
		}
		target := pixels[0]
		for _, s := range e.shapes {
			if slices.Contains(s.Pixels(), target) {
				return s
			}
		}
	}
	return nil
}

// SelectNode routes a tree selection into the preview: node and its
// descendants are highlighted and the shape drawing it, if any, becomes the
// only selected shape.
func (e *Editor) SelectNode(node elements.Node) Shape {
	e.ClearHighlight()
	e.Highlight(node)

	s := e.ShapeForNode(node)
	if s != nil {
		e.selected = []Shape{s}
	}
	return s
}

// --- Persistence ---

// Records returns the persisted form of every shape, back to front.
func (e *Editor) Records() []Record {
	recs := make([]Record, len(e.shapes))
	for i, s := range e.shapes {
		recs[i] = s.Record()
	}
	return recs
}

// Load replaces every shape with the ones in recs. On error the editor is
// left unchanged.
func (e *Editor) Load(recs []Record, reg elements.Registry) error {
	shapes := make([]Shape, 0, len(recs))
	for i, rec := range recs {
		s, err := FromRecord(rec, reg, e.view)
		if err != nil {
			return fmt.Errorf("shape %d: %w", i, err)
		}
		shapes = append(shapes, s)
	}

	e.shapes = shapes
	e.selected = nil
	e.active = nil
	e.changed()
	e.dirty = false
	return nil
}
