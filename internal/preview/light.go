package preview

import (
	"github.com/propstudio/propstudio/backend-go/internal/elements"
	"github.com/propstudio/propstudio/backend-go/internal/geometry"
	"github.com/propstudio/propstudio/backend-go/internal/typeid"
)

// lightBase is the state every light shape shares: its pixels, the view they
// are projected through and the edit state.
type lightBase struct {
	id        string
	pixels    []*Pixel
	pixelSize int
	view      View
	rotation  float64
	state     State
	layingOut bool
}

func newLightBase(view View) lightBase {
	return lightBase{
		id:        typeid.NewShapeID(),
		pixelSize: DefaultPixelSize,
		view:      view,
	}
}

func (b *lightBase) ID() string {
	return b.id
}

func (b *lightBase) State() State {
	return b.state
}

// Pixels returns the shape's own pixels. They are repositioned by every layout.
func (b *lightBase) Pixels() []*Pixel {
	return b.pixels
}

func (b *lightBase) PixelCount() int {
	return len(b.pixels)
}

func (b *lightBase) PixelSize() int {
	return b.pixelSize
}

func (b *lightBase) View() View {
	return b.view
}

func (b *lightBase) Rotation() float64 {
	return b.rotation
}

// rebuildPixels replaces the pixel sequence for node. A group with at least
// MinGroupLeaves leaves gets one pixel per leaf in depth-first order, up to
// MaxPixelCount; anything else gets DefaultLightCount pixels, all bound to
// node when it is a leaf.
func (b *lightBase) rebuildPixels(node elements.Node) {
	if node != nil && !node.IsLeaf() {
		if leaves := elements.LeafNodes(node); len(leaves) >= MinGroupLeaves {
			leaves = leaves[:min(len(leaves), MaxPixelCount)]
			b.pixels = make([]*Pixel, len(leaves))
			for i, leaf := range leaves {
				b.pixels[i] = newPixel(b.pixelSize, leaf)
			}
			return
		}
	}

	var bound elements.Node
	if node != nil && node.IsLeaf() {
		bound = node
	}
	b.pixels = make([]*Pixel, DefaultLightCount)
	for i := range b.pixels {
		b.pixels[i] = newPixel(b.pixelSize, bound)
	}
}

// resizePixels trims or extends the pixel sequence to n, clamped to
// 1..MaxPixelCount. Added pixels are unbound.
func (b *lightBase) resizePixels(n int) {
	n = min(max(n, 1), MaxPixelCount)
	if n <= len(b.pixels) {
		b.pixels = b.pixels[:n:n]
		return
	}
	for len(b.pixels) < n {
		b.pixels = append(b.pixels, newPixel(b.pixelSize, nil))
	}
}

// project writes screen positions for every pixel through m.
func (b *lightBase) project(m geometry.Matrix2D) {
	for _, px := range b.pixels {
		x, y := m.TransformPoint(float64(px.X), float64(px.Y))
		px.ScreenX, px.ScreenY = round(x), round(y)
	}
}

// PointInShape reports whether screen lies in any pixel's hit box.
func (b *lightBase) PointInShape(screen Point) bool {
	const half = SelectPointSize / 2
	for _, px := range b.pixels {
		if abs(screen.X-px.ScreenX) <= half && abs(screen.Y-px.ScreenY) <= half {
			return true
		}
	}
	return false
}

// nodeIDs returns the bound node id of every pixel, or nil when none is bound.
func (b *lightBase) nodeIDs() []string {
	ids := make([]string, len(b.pixels))
	bound := false
	for i, px := range b.pixels {
		ids[i] = px.NodeID()
		bound = bound || ids[i] != ""
	}
	if !bound {
		return nil
	}
	return ids
}

// cloneBase copies the pixels under a fresh id. Edit state is not carried over.
func (b *lightBase) cloneBase() lightBase {
	c := lightBase{
		id:        typeid.NewShapeID(),
		pixels:    make([]*Pixel, len(b.pixels)),
		pixelSize: b.pixelSize,
		view:      b.view,
		rotation:  b.rotation,
	}
	for i, px := range b.pixels {
		c.pixels[i] = px.Clone()
	}
	return c
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
