package engine

import (
	"encoding/json"

	"github.com/propstudio/propstudio/backend-go/internal/document"
	"github.com/propstudio/propstudio/backend-go/internal/geometry"
	"github.com/propstudio/propstudio/backend-go/internal/preview"
)

const (
	outlineColor   = "#4a90d9"
	handleColor    = "#ffffff"
	highlightColor = "#ffd400"
)

// DrawCommand is a single drawing operation for the frontend to execute on a
// Canvas2D context. Coordinates are screen pixels.
type DrawCommand struct {
	Op          string  `json:"op"` // "image", "outline", "pixel", "handle"
	ShapeID     string  `json:"shapeId,omitempty"`
	NodeID      string  `json:"nodeId,omitempty"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
	Fill        string  `json:"fill,omitempty"`
	Stroke      string  `json:"stroke,omitempty"`
	StrokeWidth float64 `json:"strokeWidth,omitempty"`
	ImageURL    string  `json:"imageUrl,omitempty"`
}

// CompileDrawCommands turns a preview frame into a draw command buffer in
// painter's order: the background, then each shape's pixels, with outline and
// handles on top of selected shapes.
func CompileDrawCommands(f preview.Frame, bg *document.Background) []DrawCommand {
	var cmds []DrawCommand

	if bg != nil && bg.URL != "" {
		z := f.View.ZoomLevel()
		cmds = append(cmds, DrawCommand{
			Op:       "image",
			X:        f.View.PanX,
			Y:        f.View.PanY,
			Width:    float64(bg.Width) * z,
			Height:   float64(bg.Height) * z,
			ImageURL: bg.URL,
		})
	}

	for _, s := range f.Shapes {
		for _, px := range s.Pixels {
			r := geometry.SquareAround(float64(px.X), float64(px.Y), float64(px.Size))
			cmd := DrawCommand{
				Op:      "pixel",
				ShapeID: s.ID,
				NodeID:  px.NodeID,
				X:       r.X,
				Y:       r.Y,
				Width:   r.Width,
				Height:  r.Height,
				Fill:    px.Color,
			}
			if px.Highlighted {
				cmd.Stroke = highlightColor
				cmd.StrokeWidth = 1
			}
			cmds = append(cmds, cmd)
		}

		if !s.Selected {
			continue
		}

		cmds = append(cmds, DrawCommand{
			Op:          "outline",
			ShapeID:     s.ID,
			X:           s.Bounds.X,
			Y:           s.Bounds.Y,
			Width:       s.Bounds.Width,
			Height:      s.Bounds.Height,
			Stroke:      outlineColor,
			StrokeWidth: 1,
		})
		for _, h := range s.Handles {
			r := geometry.SquareAround(float64(h.X), float64(h.Y), preview.SelectPointSize)
			cmds = append(cmds, DrawCommand{
				Op:          "handle",
				ShapeID:     s.ID,
				X:           r.X,
				Y:           r.Y,
				Width:       r.Width,
				Height:      r.Height,
				Fill:        handleColor,
				Stroke:      outlineColor,
				StrokeWidth: 1,
			})
		}
	}

	return cmds
}

// DrawCommandsToJSON serializes draw commands to JSON.
func DrawCommandsToJSON(cmds []DrawCommand) (string, error) {
	if cmds == nil {
		cmds = []DrawCommand{}
	}
	data, err := json.Marshal(cmds)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
