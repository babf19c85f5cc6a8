//go:build js && wasm

package main

import (
	"syscall/js"

	"github.com/propstudio/propstudio/backend-go/internal/engine"
)

var eng *engine.Engine

func main() {
	eng = engine.NewEngine()

	// Create the engine API object
	propEngine := js.Global().Get("Object").New()

	// --- Commands (frontend → backend) ---
	propEngine.Set("loadDocument", js.FuncOf(loadDocument))
	propEngine.Set("loadSampleDocument", js.FuncOf(loadSampleDocument))
	propEngine.Set("beginPlacement", js.FuncOf(beginPlacement))
	propEngine.Set("mouseDown", js.FuncOf(mouseDown))
	propEngine.Set("mouseMove", js.FuncOf(mouseMove))
	propEngine.Set("mouseUp", js.FuncOf(mouseUp))
	propEngine.Set("setZoom", js.FuncOf(setZoom))
	propEngine.Set("resizeSelection", js.FuncOf(resizeSelection))
	propEngine.Set("rotateShape", js.FuncOf(rotateShape))
	propEngine.Set("duplicateShape", js.FuncOf(duplicateShape))
	propEngine.Set("matchSelection", js.FuncOf(matchSelection))
	propEngine.Set("reconfigureShape", js.FuncOf(reconfigureShape))
	propEngine.Set("configureProp", js.FuncOf(configureProp))
	propEngine.Set("deleteSelection", js.FuncOf(deleteSelection))
	propEngine.Set("selectElement", js.FuncOf(selectElement))
	propEngine.Set("clearHighlight", js.FuncOf(clearHighlight))
	propEngine.Set("markSaved", js.FuncOf(markSaved))

	// --- Queries (frontend ← backend) ---
	propEngine.Set("render", js.FuncOf(render))
	propEngine.Set("hitTest", js.FuncOf(hitTest))
	propEngine.Set("getFrame", js.FuncOf(getFrame))
	propEngine.Set("getDocument", js.FuncOf(getDocument))
	propEngine.Set("getSelection", js.FuncOf(getSelection))
	propEngine.Set("getVersion", js.FuncOf(getVersion))
	propEngine.Set("isDirty", js.FuncOf(isDirty))

	// Register on global scope
	js.Global().Set("propEngine", propEngine)

	// Signal that WASM is ready
	js.Global().Set("propWasmReady", js.ValueOf(true))

	// Keep Go runtime alive
	select {}
}

func errorResult(err error) js.Value {
	return js.ValueOf(map[string]any{"error": err.Error()})
}

func okResult() js.Value {
	return js.ValueOf(map[string]any{"ok": true})
}

func resultOf(err error) js.Value {
	if err != nil {
		return errorResult(err)
	}
	return okResult()
}

// point reads screen coordinates from args[from] and args[from+1].
func point(args []js.Value, from int) (int, int, bool) {
	if len(args) < from+2 {
		return 0, 0, false
	}
	return args[from].Int(), args[from+1].Int(), true
}

// --- Command Handlers ---

func loadDocument(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return js.ValueOf(map[string]any{"error": "missing document JSON"})
	}
	if err := eng.LoadDocument(args[0].String()); err != nil {
		return errorResult(err)
	}
	return okResult()
}

func loadSampleDocument(this js.Value, args []js.Value) any {
	layoutID := "layout_sample"
	if len(args) > 0 && args[0].Type() == js.TypeString {
		layoutID = args[0].String()
	}
	if err := eng.LoadSampleDocument(layoutID); err != nil {
		return errorResult(err)
	}
	return okResult()
}

// beginPlacement(kind, elementId, x, y)
func beginPlacement(this js.Value, args []js.Value) any {
	x, y, ok := point(args, 2)
	if !ok {
		return js.ValueOf(map[string]any{"error": "expected kind, elementId, x, y"})
	}
	shapeID, err := eng.BeginPlacement(args[0].String(), args[1].String(), x, y)
	if err != nil {
		return errorResult(err)
	}
	return js.ValueOf(map[string]any{"ok": true, "shapeId": shapeID})
}

func mouseDown(this js.Value, args []js.Value) any {
	x, y, ok := point(args, 0)
	if !ok {
		return js.ValueOf("")
	}
	return js.ValueOf(eng.MouseDown(x, y))
}

func mouseMove(this js.Value, args []js.Value) any {
	x, y, ok := point(args, 0)
	if !ok {
		return js.ValueOf(false)
	}
	return js.ValueOf(eng.MouseMove(x, y))
}

func mouseUp(this js.Value, args []js.Value) any {
	eng.MouseUp()
	return nil
}

func setZoom(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return nil
	}
	eng.SetZoom(args[0].Float())
	return nil
}

func resizeSelection(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return js.ValueOf(map[string]any{"error": "missing aspect"})
	}
	return resultOf(eng.ResizeSelection(args[0].Float()))
}

// rotateShape(shapeId, degrees)
func rotateShape(this js.Value, args []js.Value) any {
	if len(args) < 2 {
		return js.ValueOf(map[string]any{"error": "expected shapeId, degrees"})
	}
	return resultOf(eng.RotateShape(args[0].String(), args[1].Float()))
}

func duplicateShape(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return js.ValueOf(map[string]any{"error": "missing shape id"})
	}
	shapeID, err := eng.DuplicateShape(args[0].String())
	if err != nil {
		return errorResult(err)
	}
	return js.ValueOf(map[string]any{"ok": true, "shapeId": shapeID})
}

func matchSelection(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return js.ValueOf(map[string]any{"error": "missing source shape id"})
	}
	return resultOf(eng.MatchSelection(args[0].String()))
}

// reconfigureShape(shapeId, elementId)
func reconfigureShape(this js.Value, args []js.Value) any {
	if len(args) < 2 {
		return js.ValueOf(map[string]any{"error": "expected shapeId, elementId"})
	}
	return resultOf(eng.ReconfigureShape(args[0].String(), args[1].String()))
}

// configureProp(propId, params) takes the parameters as a YAML or JSON string.
func configureProp(this js.Value, args []js.Value) any {
	if len(args) < 2 {
		return js.ValueOf(map[string]any{"error": "expected propId, params"})
	}
	prop, err := eng.ConfigureProp(args[0].String(), args[1].String())
	if err != nil {
		return errorResult(err)
	}
	return js.ValueOf(map[string]any{"ok": true, "prop": prop})
}

func deleteSelection(this js.Value, args []js.Value) any {
	return js.ValueOf(eng.DeleteSelection())
}

func selectElement(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return js.ValueOf(map[string]any{"error": "missing element id"})
	}
	shapeID, err := eng.SelectElement(args[0].String())
	if err != nil {
		return errorResult(err)
	}
	return js.ValueOf(map[string]any{"ok": true, "shapeId": shapeID})
}

func clearHighlight(this js.Value, args []js.Value) any {
	eng.ClearHighlight()
	return nil
}

func markSaved(this js.Value, args []js.Value) any {
	eng.MarkSaved()
	return nil
}

// --- Query Handlers ---

func render(this js.Value, args []js.Value) any {
	return js.ValueOf(eng.Render())
}

func hitTest(this js.Value, args []js.Value) any {
	x, y, ok := point(args, 0)
	if !ok {
		return js.ValueOf("")
	}
	return js.ValueOf(eng.HitTest(x, y))
}

func getFrame(this js.Value, args []js.Value) any {
	return js.ValueOf(eng.GetFrame())
}

func getDocument(this js.Value, args []js.Value) any {
	return js.ValueOf(eng.GetDocument())
}

func getSelection(this js.Value, args []js.Value) any {
	return js.ValueOf(eng.GetSelection())
}

func getVersion(this js.Value, args []js.Value) any {
	// JS numbers are doubles; versions stay well inside 2^53.
	return js.ValueOf(float64(eng.Version()))
}

func isDirty(this js.Value, args []js.Value) any {
	return js.ValueOf(eng.IsDirty())
}
