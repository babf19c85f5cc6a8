package preview

// PointType tells which role a handle plays.
type PointType int

const (
	PointNone PointType = iota
	PointSizeTopLeft
	PointSizeTopRight
	PointSizeBottomLeft
	PointSizeBottomRight
)

func (t PointType) String() string {
	switch t {
	case PointSizeTopLeft:
		return "topLeft"
	case PointSizeTopRight:
		return "topRight"
	case PointSizeBottomLeft:
		return "bottomLeft"
	case PointSizeBottomRight:
		return "bottomRight"
	default:
		return "none"
	}
}

// Point is an integer position in shape-local (un-zoomed) space. Handles carry
// their Type; pointer positions use PointNone.
type Point struct {
	X    int       `json:"x"`
	Y    int       `json:"y"`
	Type PointType `json:"-"`
}

// Pt builds a plain position.
func Pt(x, y int) Point {
	return Point{X: x, Y: y}
}

// Copy returns a detached copy of p.
func (p *Point) Copy() *Point {
	c := *p
	return &c
}

// XY is the persisted form of a point.
type XY struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (p Point) xy() XY {
	return XY{X: p.X, Y: p.Y}
}
