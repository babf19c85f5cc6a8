package preview

import (
	"fmt"
	"math"

	"github.com/propstudio/propstudio/backend-go/internal/elements"
	"github.com/propstudio/propstudio/backend-go/internal/geometry"
)

// Arch lays its pixels along a half ellipse spanning the box between its
// TopLeft and BottomRight handles. TopRight and BottomLeft are derived from
// those two on every layout.
type Arch struct {
	lightBase

	topLeft     Point
	bottomRight Point
	topRight    Point
	bottomLeft  Point

	selected *Point
	p1Start  *Point
	p2Start  *Point
}

var _ Shape = (*Arch)(nil)

// NewArch starts placing an arch at start (un-zoomed coordinates). The shape
// is in the Placing state with BottomRight following the pointer until MouseUp.
func NewArch(start Point, node elements.Node, view View) *Arch {
	a := &Arch{lightBase: newLightBase(view)}
	a.initHandles(start, start)
	a.state = StatePlacing
	a.Reconfigure(node)
	a.SelectDefaultSelectPoint()
	return a
}

func (a *Arch) initHandles(topLeft, bottomRight Point) {
	a.topLeft = Point{X: topLeft.X, Y: topLeft.Y, Type: PointSizeTopLeft}
	a.bottomRight = Point{X: bottomRight.X, Y: bottomRight.Y, Type: PointSizeBottomRight}
	a.topRight.Type = PointSizeTopRight
	a.bottomLeft.Type = PointSizeBottomLeft
	a.syncDerived()
}

func (a *Arch) Kind() Kind {
	return KindArch
}

func (a *Arch) Reconfigure(node elements.Node) {
	a.rebuildPixels(node)
	a.Layout()
}

// Layout samples the arch for the current pixel count, maps the samples into
// the handle box and projects them to the screen.
func (a *Arch) Layout() {
	if a.layingOut {
		return
	}
	a.layingOut = true
	defer func() { a.layingOut = false }()

	a.syncDerived()
	if len(a.pixels) == 0 {
		return
	}

	width := float64(a.bottomRight.X - a.topLeft.X)
	height := float64(a.bottomRight.Y - a.topLeft.Y)
	samples := geometry.SampleArc(len(a.pixels), a.pixelSize, 0)
	for i, px := range a.pixels {
		px.X = a.topLeft.X + round(samples[i].X*width)
		px.Y = a.topLeft.Y + round(samples[i].Y*height)
		px.Size = a.pixelSize
	}
	a.project(a.transform())
}

func (a *Arch) syncDerived() {
	a.topRight.X, a.topRight.Y = a.bottomRight.X, a.topLeft.Y
	a.bottomLeft.X, a.bottomLeft.Y = a.topLeft.X, a.bottomRight.Y
}

func (a *Arch) center() (float64, float64) {
	return float64(a.topLeft.X+a.bottomRight.X) / 2, float64(a.topLeft.Y+a.bottomRight.Y) / 2
}

// transform maps arch-local coordinates to the screen.
func (a *Arch) transform() geometry.Matrix2D {
	cx, cy := a.center()
	return a.view.shapeMatrix(a.rotation, cx, cy)
}

func (a *Arch) toScreen(p Point) Point {
	x, y := a.transform().TransformPoint(float64(p.X), float64(p.Y))
	return Point{X: round(x), Y: round(y), Type: p.Type}
}

func (a *Arch) SetPixelCount(n int) {
	a.resizePixels(n)
	a.Layout()
}

func (a *Arch) SetPixelSize(size int) {
	a.pixelSize = max(size, 1)
	a.Layout()
}

func (a *Arch) TopLeft() Point {
	return a.topLeft
}

func (a *Arch) BottomRight() Point {
	return a.bottomRight
}

// SetHandles replaces both primary handles without laying out.
func (a *Arch) SetHandles(topLeft, bottomRight Point) {
	a.topLeft.X, a.topLeft.Y = topLeft.X, topLeft.Y
	a.bottomRight.X, a.bottomRight.Y = bottomRight.X, bottomRight.Y
	a.syncDerived()
}

// SelectDragPoints returns the four handles, primary ones first. The returned
// points belong to the arch.
func (a *Arch) SelectDragPoints() []*Point {
	a.syncDerived()
	return []*Point{&a.topLeft, &a.bottomRight, &a.topRight, &a.bottomLeft}
}

// ScreenHandles returns the four handles in screen coordinates.
func (a *Arch) ScreenHandles() []Point {
	handles := a.SelectDragPoints()
	out := make([]Point, len(handles))
	for i, h := range handles {
		out[i] = a.toScreen(*h)
	}
	return out
}

// HandleAt returns the handle whose hit box contains the screen position, or
// nil.
func (a *Arch) HandleAt(screen Point) *Point {
	const half = SelectPointSize / 2
	handles := a.SelectDragPoints()
	for i, s := range a.ScreenHandles() {
		if abs(screen.X-s.X) <= half && abs(screen.Y-s.Y) <= half {
			return handles[i]
		}
	}
	return nil
}

func (a *Arch) handle(t PointType) *Point {
	switch t {
	case PointSizeTopLeft:
		return &a.topLeft
	case PointSizeBottomRight:
		return &a.bottomRight
	case PointSizeTopRight:
		return &a.topRight
	case PointSizeBottomLeft:
		return &a.bottomLeft
	}
	return nil
}

// SetSelectPoint records the handle hit on mouse down. A nil or untyped point
// means the body was hit: the primary handles are snapshotted as the drag
// baseline and no handle is selected.
func (a *Arch) SetSelectPoint(p *Point) {
	var h *Point
	if p != nil {
		h = a.handle(p.Type)
	}

	if h == nil {
		a.snapshot()
		a.selected = nil
		if a.state != StatePlacing {
			a.state = StateBodySelected
		}
		return
	}

	a.selected = h
	if a.state != StatePlacing {
		a.state = StateHandleSelected
	}
}

func (a *Arch) SelectDefaultSelectPoint() {
	a.SetSelectPoint(&Point{Type: PointSizeBottomRight})
}

func (a *Arch) snapshot() {
	a.p1Start = a.topLeft.Copy()
	a.p2Start = a.bottomRight.Copy()
}

// MouseMove drags the selected handle to (x, y), or moves the whole arch by
// (changeX, changeY) from the mouse-down snapshot when no handle is selected.
// Coordinates and deltas are in screen space.
func (a *Arch) MouseMove(x, y, changeX, changeY int) {
	if a.selected != nil {
		lx, ly := a.transform().Invert().TransformPoint(float64(x), float64(y))
		px, py := round(lx), round(ly)

		switch a.selected.Type {
		case PointSizeTopLeft:
			a.topLeft.X, a.topLeft.Y = px, py
		case PointSizeBottomRight:
			a.bottomRight.X, a.bottomRight.Y = px, py
		case PointSizeTopRight:
			a.topLeft.Y = py
			a.bottomRight.X = px
		case PointSizeBottomLeft:
			a.topLeft.X = px
			a.bottomRight.Y = py
		}
	} else {
		if a.p1Start == nil || a.p2Start == nil {
			a.snapshot()
			if a.state == StateIdle {
				a.state = StateBodySelected
			}
		}

		zoom := a.view.ZoomLevel()
		dx := float64(changeX) / zoom
		dy := float64(changeY) / zoom
		a.topLeft.X = round(float64(a.p1Start.X) + dx)
		a.topLeft.Y = round(float64(a.p1Start.Y) + dy)
		a.bottomRight.X = round(float64(a.p2Start.X) + dx)
		a.bottomRight.Y = round(float64(a.p2Start.Y) + dy)
	}

	a.Layout()
}

// MouseUp ends the edit session. Nothing of the drag survives it.
func (a *Arch) MouseUp() {
	a.selected = nil
	a.p1Start = nil
	a.p2Start = nil
	a.state = StateIdle
}

// scaleHandles scales tl and br about the origin. The aspect must be a
// positive finite number and no scaled coordinate may pass MaxCoordinate.
func scaleHandles(tl, br Point, aspect float64) (Point, Point, error) {
	if math.IsNaN(aspect) || math.IsInf(aspect, 0) || aspect <= 0 {
		return tl, br, fmt.Errorf("%w: aspect %v", ErrInvalidResize, aspect)
	}

	coords := [4]float64{
		float64(tl.X) * aspect, float64(tl.Y) * aspect,
		float64(br.X) * aspect, float64(br.Y) * aspect,
	}
	for _, c := range coords {
		if math.Abs(c) > MaxCoordinate {
			return tl, br, fmt.Errorf("%w: aspect %v moves a handle past %d", ErrInvalidResize, aspect, MaxCoordinate)
		}
	}

	tl.X, tl.Y = round(coords[0]), round(coords[1])
	br.X, br.Y = round(coords[2]), round(coords[3])
	return tl, br, nil
}

// Resize scales both primary handles about the origin. A rejected aspect
// leaves the arch unchanged.
func (a *Arch) Resize(aspect float64) error {
	tl, br, err := scaleHandles(a.topLeft, a.bottomRight, aspect)
	if err != nil {
		return err
	}
	a.topLeft.X, a.topLeft.Y = tl.X, tl.Y
	a.bottomRight.X, a.bottomRight.Y = br.X, br.Y
	a.Layout()
	return nil
}

// resizeBase is the mouse-down snapshot, or the current handles without one.
func (a *Arch) resizeBase() (Point, Point) {
	if a.p1Start == nil || a.p2Start == nil {
		return a.topLeft, a.bottomRight
	}
	return *a.p1Start, *a.p2Start
}

// ResizeFromOriginal scales the mouse-down snapshot so that repeated resizes
// do not compound. Without a snapshot the current handles become the baseline.
func (a *Arch) ResizeFromOriginal(aspect float64) error {
	if err := a.CheckResize(aspect); err != nil {
		return err
	}
	if a.p1Start == nil || a.p2Start == nil {
		a.snapshot()
	}
	tl, br, _ := scaleHandles(*a.p1Start, *a.p2Start, aspect)
	a.topLeft.X, a.topLeft.Y = tl.X, tl.Y
	a.bottomRight.X, a.bottomRight.Y = br.X, br.Y
	a.Layout()
	return nil
}

func (a *Arch) CheckResize(aspect float64) error {
	tl, br := a.resizeBase()
	_, _, err := scaleHandles(tl, br, aspect)
	return err
}

func (a *Arch) Top() int {
	return min(a.topLeft.Y, a.bottomRight.Y)
}

func (a *Arch) Bottom() int {
	return max(a.topLeft.Y, a.bottomRight.Y)
}

func (a *Arch) Left() int {
	return min(a.topLeft.X, a.bottomRight.X)
}

func (a *Arch) Right() int {
	return max(a.topLeft.X, a.bottomRight.X)
}

func (a *Arch) Width() int {
	return a.Right() - a.Left()
}

func (a *Arch) Height() int {
	return a.Bottom() - a.Top()
}

// SetTop moves the arch vertically so its upper edge is at y.
func (a *Arch) SetTop(y int) {
	delta := y - a.Top()
	a.topLeft.Y += delta
	a.bottomRight.Y += delta
	a.Layout()
}

// SetLeft moves the arch horizontally so its left edge is at x.
func (a *Arch) SetLeft(x int) {
	delta := x - a.Left()
	a.topLeft.X += delta
	a.bottomRight.X += delta
	a.Layout()
}

func (a *Arch) SetWidth(w int) {
	a.bottomRight.X = a.topLeft.X + w
	a.Layout()
}

func (a *Arch) SetHeight(h int) {
	a.topLeft.Y = a.bottomRight.Y - h
	a.Layout()
}

// MoveTo puts the arch's top-left corner at (x, y).
func (a *Arch) MoveTo(x, y int) {
	dx := x - a.Left()
	dy := y - a.Top()
	a.topLeft.X += dx
	a.topLeft.Y += dy
	a.bottomRight.X += dx
	a.bottomRight.Y += dy
	a.Layout()
}

// Match copies size and pixel size from another arch. It reports false for
// other kinds.
func (a *Arch) Match(other Shape) bool {
	o, ok := other.(*Arch)
	if !ok || o == a {
		return false
	}
	a.pixelSize = o.pixelSize
	a.bottomRight.X = a.topLeft.X + (o.bottomRight.X - o.topLeft.X)
	a.topLeft.Y = a.bottomRight.Y - (o.bottomRight.Y - o.topLeft.Y)
	a.Layout()
	return true
}

// Bounds is the screen box of the four handles.
func (a *Arch) Bounds() geometry.Rect {
	handles := a.ScreenHandles()
	pts := make([]geometry.NodePoint, len(handles))
	for i, h := range handles {
		pts[i] = geometry.NodePoint{X: float64(h.X), Y: float64(h.Y)}
	}
	return geometry.BoundsOf(pts)
}

func (a *Arch) SetView(v View) {
	a.view = v
	a.Layout()
}

func (a *Arch) SetRotation(degrees float64) {
	a.rotation = degrees
	a.Layout()
}

// Clone returns an independent idle copy with a new id. Pixels are duplicated;
// their node references are shared.
func (a *Arch) Clone() Shape {
	c := &Arch{lightBase: a.cloneBase()}
	c.initHandles(a.topLeft, a.bottomRight)
	return c
}

func (a *Arch) Record() Record {
	return Record{
		ID:          a.id,
		TypeName:    KindArch,
		TopLeft:     a.topLeft.xy(),
		BottomRight: a.bottomRight.xy(),
		PixelCount:  len(a.pixels),
		PixelSize:   a.pixelSize,
		Rotation:    a.rotation,
		NodeIDs:     a.nodeIDs(),
	}
}

func restoreArch(rec Record, nodes []elements.Node, view View) Shape {
	a := &Arch{lightBase: newLightBase(view)}
	if rec.ID != "" {
		a.id = rec.ID
	}
	a.pixelSize = rec.PixelSize
	a.rotation = rec.Rotation
	a.initHandles(Pt(rec.TopLeft.X, rec.TopLeft.Y), Pt(rec.BottomRight.X, rec.BottomRight.Y))
	a.pixels = make([]*Pixel, len(nodes))
	for i, n := range nodes {
		a.pixels[i] = newPixel(a.pixelSize, n)
	}
	return a
}
