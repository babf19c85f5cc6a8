// Package preview is the editable on-screen side of a light layout. Display
// shapes own their handles and pixels, lay the pixels out along the same
// parametric curves the prop models use, and implement the mouse protocol for
// placing, moving and resizing. Editor ties a set of shapes to one view.
//
// Nothing in here is safe for concurrent use. Every call runs on the caller's
// goroutine and completes its layout before returning.
package preview

import (
	"errors"
	"fmt"
	"slices"

	"github.com/propstudio/propstudio/backend-go/internal/elements"
	"github.com/propstudio/propstudio/backend-go/internal/geometry"
)

const (
	// SelectPointSize is the side of the square hit box around handles and pixels.
	SelectPointSize = 6

	// DefaultLightCount is used when a shape is not placed against a group
	// with enough leaves.
	DefaultLightCount = 25

	// MinGroupLeaves is the smallest group that gets one pixel per leaf.
	MinGroupLeaves = 4

	DefaultPixelSize = 2

	// MaxPixelCount bounds the pixels of one shape. Larger counts are clamped
	// when a shape is edited and rejected when a record is loaded.
	MaxPixelCount = 4096

	// MaxCoordinate bounds the handle coordinates a resize may produce.
	MaxCoordinate = 1 << 24
)

var (
	ErrUnknownShapeKind = errors.New("unknown shape kind")
	ErrInvalidRecord    = errors.New("invalid shape record")
	ErrShapeNotFound    = errors.New("shape not found")
	ErrInvalidResize    = errors.New("invalid resize")
	ErrInvalidRotation  = errors.New("invalid rotation")
)

// Kind names a display shape variant.
type Kind string

const KindArch Kind = "Arch"

// State is where a shape is in an edit session.
type State int

const (
	StateIdle State = iota
	StatePlacing
	StateHandleSelected
	StateBodySelected
)

func (s State) String() string {
	switch s {
	case StatePlacing:
		return "placing"
	case StateHandleSelected:
		return "handleSelected"
	case StateBodySelected:
		return "bodySelected"
	default:
		return "idle"
	}
}

// Shape is a display item in the preview.
//
// Mutators that change geometry lay the shape out before returning, except
// SetHandles which leaves that to an explicit Layout call so a batch of
// handle edits is laid out once.
type Shape interface {
	ID() string
	Kind() Kind
	State() State

	// Reconfigure rebuilds the pixels for a logical node or group and lays out.
	Reconfigure(node elements.Node)
	Layout()

	Pixels() []*Pixel
	PixelCount() int
	SetPixelCount(n int)
	PixelSize() int
	SetPixelSize(size int)

	TopLeft() Point
	BottomRight() Point
	SetHandles(topLeft, bottomRight Point)
	SelectDragPoints() []*Point
	ScreenHandles() []Point
	HandleAt(screen Point) *Point

	SetSelectPoint(p *Point)
	SelectDefaultSelectPoint()
	MouseMove(x, y, changeX, changeY int)
	MouseUp()

	PointInShape(screen Point) bool
	Resize(aspect float64) error
	ResizeFromOriginal(aspect float64) error
	// CheckResize returns the error ResizeFromOriginal(aspect) would return
	// without changing the shape.
	CheckResize(aspect float64) error
	MoveTo(x, y int)
	Match(other Shape) bool

	Bounds() geometry.Rect
	View() View
	SetView(v View)
	Rotation() float64
	SetRotation(degrees float64)

	Clone() Shape
	Record() Record
}

type placeFunc func(start Point, node elements.Node, view View) Shape

var placers = map[Kind]placeFunc{
	KindArch: func(start Point, node elements.Node, view View) Shape {
		return NewArch(start, node, view)
	},
}

// Place starts an interactive placement of a new shape of kind at the
// un-zoomed position start.
func Place(kind Kind, start Point, node elements.Node, view View) (Shape, error) {
	place, ok := placers[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownShapeKind, kind)
	}
	return place(start, node, view), nil
}

// Kinds lists the shape kinds that can be placed.
func Kinds() []Kind {
	kinds := make([]Kind, 0, len(placers))
	for k := range placers {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}
