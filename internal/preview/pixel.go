package preview

import (
	"fmt"
	"image/color"

	"github.com/propstudio/propstudio/backend-go/internal/elements"
)

var defaultPixelColor = color.RGBA{R: 255, G: 255, B: 255, A: 255}

// Pixel is one light as drawn by a display shape. X/Y are shape-local layout
// coordinates, ScreenX/ScreenY the same position after the view transform.
// Node is a back-reference used as a key for selection routing; it is shared,
// never copied, when a pixel is cloned.
type Pixel struct {
	X       int
	Y       int
	ScreenX int
	ScreenY int
	Size    int
	Color   color.RGBA
	Node    elements.Node
}

func newPixel(size int, node elements.Node) *Pixel {
	return &Pixel{Size: size, Color: defaultPixelColor, Node: node}
}

// Clone returns an independent copy that still points at the same logical node.
func (p *Pixel) Clone() *Pixel {
	c := *p
	return &c
}

// NodeID returns the id of the bound logical node, or "" when unbound.
func (p *Pixel) NodeID() string {
	if p.Node == nil {
		return ""
	}
	return p.Node.ID()
}

// ScreenPoint returns the on-screen position.
func (p *Pixel) ScreenPoint() Point {
	return Pt(p.ScreenX, p.ScreenY)
}

func hexColor(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
