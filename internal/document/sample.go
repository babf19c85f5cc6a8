package document

import (
	"fmt"
	"time"

	"github.com/propstudio/propstudio/backend-go/internal/elements"
	"github.com/propstudio/propstudio/backend-go/internal/geometry"
	"github.com/propstudio/propstudio/backend-go/internal/preview"
	"github.com/propstudio/propstudio/backend-go/internal/propmodel"
	"github.com/propstudio/propstudio/backend-go/internal/typeid"
)

const sampleArchLights = 16

// NewSampleLayout returns a small yard: a driveway arch of sixteen lights
// with its shape already placed, and an unplaced window outline.
func NewSampleLayout(layoutID string) *Layout {
	now := time.Now().UTC().Format(time.RFC3339)

	l := NewEmptyLayout(layoutID, "Front Yard")
	l.Layout.CreatedAt = now
	l.Layout.UpdatedAt = now

	tree := elements.NewTree()
	yard := tree.Add(nil, "Yard")
	arch := tree.Add(yard, "Driveway Arch")
	for i := range sampleArchLights {
		tree.Add(arch, fmt.Sprintf("Driveway Arch %d", i+1))
	}
	window := tree.Add(yard, "Window")
	for range 4 {
		tree.Add(window, "Window Pixel")
	}
	l.SetTree(tree)

	shapeID := typeid.NewShapeID()
	nodeIDs := make([]string, 0, sampleArchLights)
	for _, leaf := range elements.LeafNodes(arch) {
		nodeIDs = append(nodeIDs, leaf.ID())
	}
	l.Shapes = append(l.Shapes, preview.Record{
		ID:          shapeID,
		TypeName:    preview.KindArch,
		TopLeft:     preview.XY{X: 200, Y: 300},
		BottomRight: preview.XY{X: 600, Y: 500},
		PixelCount:  sampleArchLights,
		PixelSize:   preview.DefaultPixelSize,
		NodeIDs:     nodeIDs,
	})

	propID := typeid.NewPropID()
	l.Props[propID] = Prop{
		ID:        propID,
		Kind:      propmodel.KindArch,
		ElementID: arch.ID(),
		ShapeID:   shapeID,
		Params: propmodel.ArchParams{
			NodeCount: sampleArchLights,
			LightSize: 2,
			Rotations: []geometry.AxisRotation{
				{Axis: geometry.AxisX, Angle: 0},
				{Axis: geometry.AxisY, Angle: 0},
				{Axis: geometry.AxisZ, Angle: 0},
			},
		},
	}

	return l
}
