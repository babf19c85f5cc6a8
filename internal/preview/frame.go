package preview

import (
	"encoding/json"
	"slices"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/propstudio/propstudio/backend-go/internal/geometry"
)

// Frame is everything the presentation layer needs to paint the preview.
// Shapes are in painter's order (back to front).
type Frame struct {
	Version uint64       `json:"version" msgpack:"version"`
	View    View         `json:"view" msgpack:"view"`
	Shapes  []FrameShape `json:"shapes" msgpack:"shapes"`
}

type FrameShape struct {
	ID       string        `json:"id" msgpack:"id"`
	Kind     Kind          `json:"kind" msgpack:"kind"`
	State    string        `json:"state" msgpack:"state"`
	Selected bool          `json:"selected,omitempty" msgpack:"selected,omitempty"`
	Bounds   geometry.Rect `json:"bounds" msgpack:"bounds"`
	Handles  []FramePoint  `json:"handles,omitempty" msgpack:"handles,omitempty"` // Only for selected shapes
	Pixels   []FramePixel  `json:"pixels" msgpack:"pixels"`
}

type FramePoint struct {
	X    int    `json:"x" msgpack:"x"`
	Y    int    `json:"y" msgpack:"y"`
	Type string `json:"type" msgpack:"type"`
}

type FramePixel struct {
	X           int    `json:"x" msgpack:"x"`
	Y           int    `json:"y" msgpack:"y"`
	Size        int    `json:"size" msgpack:"size"`
	Color       string `json:"color" msgpack:"color"`
	NodeID      string `json:"nodeId,omitempty" msgpack:"nodeId,omitempty"`
	Highlighted bool   `json:"highlighted,omitempty" msgpack:"highlighted,omitempty"`
}

// Frame compiles the current state into screen-space draw data.
func (e *Editor) Frame() Frame {
	f := Frame{
		Version: e.version,
		View:    e.view,
		Shapes:  make([]FrameShape, 0, len(e.shapes)),
	}

	for _, s := range e.shapes {
		fs := FrameShape{
			ID:       s.ID(),
			Kind:     s.Kind(),
			State:    s.State().String(),
			Selected: slices.Contains(e.selected, s),
			Bounds:   s.Bounds(),
			Pixels:   make([]FramePixel, len(s.Pixels())),
		}

		if fs.Selected {
			for _, h := range s.ScreenHandles() {
				fs.Handles = append(fs.Handles, FramePoint{X: h.X, Y: h.Y, Type: h.Type.String()})
			}
		}

		for i, px := range s.Pixels() {
			id := px.NodeID()
			fs.Pixels[i] = FramePixel{
				X:           px.ScreenX,
				Y:           px.ScreenY,
				Size:        px.Size,
				Color:       hexColor(px.Color),
				NodeID:      id,
				Highlighted: id != "" && e.IsHighlighted(id),
			}
		}

		f.Shapes = append(f.Shapes, fs)
	}

	return f
}

// FrameToJSON serializes a frame to JSON.
func FrameToJSON(f Frame) ([]byte, error) {
	return json.Marshal(f)
}

// FrameToMsgpack serializes a frame to MessagePack for clients that poll at
// high rates.
func FrameToMsgpack(f Frame) ([]byte, error) {
	return msgpack.Marshal(f)
}

// FrameFromMsgpack decodes a frame produced by FrameToMsgpack.
func FrameFromMsgpack(data []byte) (Frame, error) {
	var f Frame
	err := msgpack.Unmarshal(data, &f)
	return f, err
}
