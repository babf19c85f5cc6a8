package collab

import (
	"errors"
	"fmt"
	"time"

	"github.com/propstudio/propstudio/backend-go/internal/document"
	"github.com/propstudio/propstudio/backend-go/internal/elements"
	"github.com/propstudio/propstudio/backend-go/internal/preview"
	"github.com/propstudio/propstudio/backend-go/internal/propmodel"
	"github.com/propstudio/propstudio/backend-go/internal/typeid"
)

var (
	ErrUnknownOperation = errors.New("unknown operation type")
	ErrDragInProgress   = errors.New("another client is dragging")
	ErrMissingField     = errors.New("missing field")
)

// DocumentState holds the authoritative layout of a room and the live editor
// built from it. It is owned by the hub goroutine.
type DocumentState struct {
	doc    *document.Layout
	editor *preview.Editor
	tree   *elements.Tree

	serverSeq int64
	dirty     bool

	// dragOwner is the client whose pointer session the editor is in.
	dragOwner string
}

// NewDocumentState opens an editor over doc.
func NewDocumentState(doc *document.Layout, opts ...preview.Option) (*DocumentState, error) {
	ed, tree, err := doc.OpenEditor(opts...)
	if err != nil {
		return nil, err
	}
	return &DocumentState{doc: doc, editor: ed, tree: tree}, nil
}

func (ds *DocumentState) Editor() *preview.Editor {
	return ds.editor
}

func (ds *DocumentState) ServerSeq() int64 {
	return ds.serverSeq
}

// Dirty reports whether there are edits not yet handed to Snapshot.
func (ds *DocumentState) Dirty() bool {
	return ds.dirty || ds.editor.Dirty()
}

// Snapshot captures the editor into the document and clears the dirty state.
func (ds *DocumentState) Snapshot() *document.Layout {
	ds.doc.Capture(ds.editor)
	ds.editor.MarkClean()
	ds.dirty = false
	return ds.doc
}

// Document returns the document with the editor's current shapes.
func (ds *DocumentState) Document() *document.Layout {
	ds.doc.Capture(ds.editor)
	return ds.doc
}

// ApplyResult describes an applied operation.
type ApplyResult struct {
	ServerSeq int64
	// ShapeID is set for shape.add and shape.duplicate.
	ShapeID string
}

// ApplyOperation applies op on behalf of clientID and returns the new server
// sequence.
func (ds *DocumentState) ApplyOperation(clientID string, op Operation) (ApplyResult, error) {
	res, err := ds.apply(clientID, op)
	if err != nil {
		return ApplyResult{}, err
	}
	ds.serverSeq++
	res.ServerSeq = ds.serverSeq
	return res, nil
}

func (ds *DocumentState) apply(clientID string, op Operation) (ApplyResult, error) {
	switch op.Type {
	case OpShapeAdd:
		return ds.applyShapeAdd(clientID, op)
	case OpShapeDelete:
		return ApplyResult{}, ds.applyShapeDelete(op)
	case OpShapeMouseDown:
		return ApplyResult{}, ds.applyMouseDown(clientID, op)
	case OpShapeMouseMove:
		return ApplyResult{}, ds.applyMouseMove(clientID, op)
	case OpShapeMouseUp:
		return ApplyResult{}, ds.applyMouseUp(clientID)
	case OpShapeResize:
		return ApplyResult{}, ds.applyResize(op)
	case OpShapeReconfigure:
		return ApplyResult{}, ds.applyReconfigure(op)
	case OpShapeRotate:
		return ApplyResult{}, ds.applyRotate(op)
	case OpShapeDuplicate:
		return ds.applyDuplicate(op)
	case OpShapeMatch:
		return ApplyResult{}, ds.applyMatch(op)
	case OpPropConfigure:
		return ApplyResult{}, ds.applyPropConfigure(op)
	case OpViewZoom:
		return ApplyResult{}, ds.applyZoom(op)
	default:
		return ApplyResult{}, fmt.Errorf("%w: %s", ErrUnknownOperation, op.Type)
	}
}

// claimPointer starts a pointer session for clientID unless another client
// holds one.
func (ds *DocumentState) claimPointer(clientID string) error {
	if ds.dragOwner != "" && ds.dragOwner != clientID && ds.editor.Active() != nil {
		return ErrDragInProgress
	}
	ds.dragOwner = clientID
	return nil
}

// applyShapeAdd starts placing a shape at the pointer. The client drags the
// far corner with mouse moves and commits with mouse up. A prop for the
// element is recorded with the shape.
func (ds *DocumentState) applyShapeAdd(clientID string, op Operation) (ApplyResult, error) {
	if op.Point == nil {
		return ApplyResult{}, fmt.Errorf("%w: point", ErrMissingField)
	}
	node, ok := ds.tree.Lookup(op.ElementID)
	if !ok {
		return ApplyResult{}, fmt.Errorf("%w: %s", elements.ErrNotFound, op.ElementID)
	}
	if err := ds.claimPointer(clientID); err != nil {
		return ApplyResult{}, err
	}

	kind := op.Kind
	if kind == "" {
		kind = preview.KindArch
	}
	shape, err := ds.editor.BeginPlacement(kind, *op.Point, node)
	if err != nil {
		return ApplyResult{}, err
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
	if err := ds.doc.SetProp(prop); err != nil {
		ds.editor.RemoveShape(shape.ID())
		return ApplyResult{}, err
	}
	ds.dirty = true
	return ApplyResult{ShapeID: shape.ID()}, nil
}

func (ds *DocumentState) applyShapeDelete(op Operation) error {
	if !ds.editor.RemoveShape(op.ShapeID) {
		return fmt.Errorf("%w: %s", preview.ErrShapeNotFound, op.ShapeID)
	}
	return nil
}

func (ds *DocumentState) applyMouseDown(clientID string, op Operation) error {
	if op.Point == nil {
		return fmt.Errorf("%w: point", ErrMissingField)
	}
	if err := ds.claimPointer(clientID); err != nil {
		return err
	}
	ds.editor.MouseDown(*op.Point)
	return nil
}

func (ds *DocumentState) applyMouseMove(clientID string, op Operation) error {
	if op.Point == nil {
		return fmt.Errorf("%w: point", ErrMissingField)
	}
	if ds.dragOwner != clientID {
		return ErrDragInProgress
	}
	ds.editor.MouseMove(*op.Point)
	return nil
}

func (ds *DocumentState) applyMouseUp(clientID string) error {
	if ds.dragOwner != clientID {
		return ErrDragInProgress
	}
	ds.editor.MouseUp()
	ds.dragOwner = ""
	return nil
}

// ReleasePointer commits any edit clientID left in progress.
func (ds *DocumentState) ReleasePointer(clientID string) {
	if ds.dragOwner != clientID {
		return
	}
	ds.editor.MouseUp()
	ds.dragOwner = ""
}

func (ds *DocumentState) applyResize(op Operation) error {
	if op.Aspect == 0 {
		return fmt.Errorf("%w: aspect", ErrMissingField)
	}
	if err := ds.editor.ResizeSelection(op.Aspect); err != nil {
		return err
	}
	ds.dirty = true
	return nil
}

// applyReconfigure rebuilds a shape's pixels for another element and moves
// its prop along.
func (ds *DocumentState) applyReconfigure(op Operation) error {
	node, ok := ds.tree.Lookup(op.ElementID)
	if !ok {
		return fmt.Errorf("%w: %s", elements.ErrNotFound, op.ElementID)
	}
	if err := ds.doc.ReconfigureShape(ds.editor, op.ShapeID, node); err != nil {
		return err
	}
	ds.dirty = true
	return nil
}

func (ds *DocumentState) applyRotate(op Operation) error {
	return ds.editor.RotateShape(op.ShapeID, op.Degrees)
}

// applyDuplicate copies a shape, and its prop, next to the original.
func (ds *DocumentState) applyDuplicate(op Operation) (ApplyResult, error) {
	c, err := ds.doc.DuplicateShape(ds.editor, op.ShapeID)
	if err != nil {
		return ApplyResult{}, err
	}
	ds.dirty = true
	return ApplyResult{ShapeID: c.ID()}, nil
}

func (ds *DocumentState) applyMatch(op Operation) error {
	if op.ShapeID == "" {
		return fmt.Errorf("%w: shapeId", ErrMissingField)
	}
	return ds.editor.MatchSelection(op.ShapeID)
}

func (ds *DocumentState) applyPropConfigure(op Operation) error {
	if op.Params == nil {
		return fmt.Errorf("%w: params", ErrMissingField)
	}
	if _, err := ds.doc.ConfigureProp(ds.editor, op.PropID, *op.Params); err != nil {
		return err
	}
	ds.dirty = true
	return nil
}

func (ds *DocumentState) applyZoom(op Operation) error {
	if op.Zoom <= 0 {
		return fmt.Errorf("%w: zoom", ErrMissingField)
	}
	ds.editor.SetZoom(op.Zoom)
	ds.dirty = true
	return nil
}

// GetServerTimestamp returns the current server timestamp
func GetServerTimestamp() int64 {
	return time.Now().UnixMilli()
}
