package preview

import (
	"fmt"
	"math"

	"github.com/propstudio/propstudio/backend-go/internal/elements"
)

// Record is the persisted form of a display shape. Only the primary handles
// and pixel settings are stored; everything else is rebuilt by Layout on load.
// NodeIDs, when present, holds the bound element id of every pixel ("" for an
// unbound pixel).
type Record struct {
	ID          string   `json:"id,omitempty"`
	TypeName    Kind     `json:"typeName"`
	TopLeft     XY       `json:"topLeft"`
	BottomRight XY       `json:"bottomRight"`
	PixelCount  int      `json:"pixelCount"`
	PixelSize   int      `json:"pixelSize"`
	Rotation    float64  `json:"rotation,omitempty"`
	NodeIDs     []string `json:"nodeIds,omitempty"`
}

type restoreFunc func(rec Record, nodes []elements.Node, view View) Shape

var restorers = map[Kind]restoreFunc{
	KindArch: restoreArch,
}

// Validate checks the fields every shape kind needs.
func (r Record) Validate() error {
	if _, ok := restorers[r.TypeName]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownShapeKind, r.TypeName)
	}
	if r.PixelCount < 1 || r.PixelCount > MaxPixelCount {
		return fmt.Errorf("%w: pixel count %d, need 1 to %d", ErrInvalidRecord, r.PixelCount, MaxPixelCount)
	}
	if r.PixelSize < 1 {
		return fmt.Errorf("%w: pixel size %d", ErrInvalidRecord, r.PixelSize)
	}
	if math.IsNaN(r.Rotation) || math.IsInf(r.Rotation, 0) {
		return fmt.Errorf("%w: rotation %v", ErrInvalidRecord, r.Rotation)
	}
	if len(r.NodeIDs) > 0 && len(r.NodeIDs) != r.PixelCount {
		return fmt.Errorf("%w: %d node ids for %d pixels", ErrInvalidRecord, len(r.NodeIDs), r.PixelCount)
	}
	return nil
}

// FromRecord rebuilds a laid-out shape. Node ids are resolved through reg; ids
// it does not know (and every id when reg is nil) leave their pixel unbound.
func FromRecord(rec Record, reg elements.Registry, view View) (Shape, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	nodes := make([]elements.Node, rec.PixelCount)
	if reg != nil {
		for i, id := range rec.NodeIDs {
			if id == "" {
				continue
			}
			if n, ok := reg.Lookup(id); ok {
				nodes[i] = n
			}
		}
	}

	s := restorers[rec.TypeName](rec, nodes, view)
	s.Layout()
	return s, nil
}
