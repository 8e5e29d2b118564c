//go:build js && wasm

package main

import (
	"encoding/json"
	"syscall/js"
	"time"

	"github.com/markline/markline/backend-go/internal/annotation"
	"github.com/markline/markline/backend-go/internal/geom"
	"github.com/markline/markline/backend-go/internal/render"
	"github.com/markline/markline/backend-go/internal/tool"
	"github.com/markline/markline/backend-go/internal/viewer"
)

var (
	vw        *viewer.Viewer
	callbacks js.Value
)

func main() {
	marklineEngine := js.Global().Get("Object").New()

	// --- Lifecycle ---
	marklineEngine.Set("init", js.FuncOf(initEngine))
	marklineEngine.Set("openDocument", js.FuncOf(openDocument))
	marklineEngine.Set("closeDocument", js.FuncOf(closeDocument))

	// --- Commands (frontend → engine) ---
	marklineEngine.Set("setPage", js.FuncOf(setPage))
	marklineEngine.Set("nextPage", js.FuncOf(nextPage))
	marklineEngine.Set("prevPage", js.FuncOf(prevPage))
	marklineEngine.Set("setZoom", js.FuncOf(setZoom))
	marklineEngine.Set("setViewport", js.FuncOf(setViewport))
	marklineEngine.Set("setTool", js.FuncOf(setTool))
	marklineEngine.Set("setToolProperties", js.FuncOf(setToolProperties))
	marklineEngine.Set("pointerDown", js.FuncOf(pointerDown))
	marklineEngine.Set("pointerMove", js.FuncOf(pointerMove))
	marklineEngine.Set("pointerUp", js.FuncOf(pointerUp))
	marklineEngine.Set("beginTextEdit", js.FuncOf(beginTextEdit))
	marklineEngine.Set("commitText", js.FuncOf(commitText))
	marklineEngine.Set("updateAnnotation", js.FuncOf(updateAnnotation))
	marklineEngine.Set("deleteSelection", js.FuncOf(deleteSelection))
	marklineEngine.Set("selectAnnotation", js.FuncOf(selectAnnotation))
	marklineEngine.Set("addComment", js.FuncOf(addComment))
	marklineEngine.Set("undo", js.FuncOf(undo))
	marklineEngine.Set("redo", js.FuncOf(redo))
	marklineEngine.Set("copySelection", js.FuncOf(copySelection))
	marklineEngine.Set("paste", js.FuncOf(paste))

	// --- Queries (frontend ← engine) ---
	marklineEngine.Set("getState", js.FuncOf(getState))
	marklineEngine.Set("getAnnotations", js.FuncOf(getAnnotations))
	marklineEngine.Set("getSelection", js.FuncOf(getSelection))
	marklineEngine.Set("hitTest", js.FuncOf(hitTest))
	marklineEngine.Set("getMeasurementLabel", js.FuncOf(getMeasurementLabel))

	js.Global().Set("marklineEngine", marklineEngine)
	js.Global().Set("marklineWasmReady", js.ValueOf(true))

	// Keep Go runtime alive
	select {}
}

// initEngine creates the viewer. The single argument is an object whose
// function properties receive engine events: onAnnotationAdd, onAnnotationUpdate,
// onAnnotationDelete, onSceneReset, onRenderStateChange, onToolChangeRequest,
// onRaster.
func initEngine(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || args[0].Type() != js.TypeObject {
		return errResult("missing callbacks object")
	}
	callbacks = args[0]

	author := "Anonymous"
	if len(args) > 1 && args[1].Type() == js.TypeString {
		author = args[1].String()
	}

	vw = viewer.New(viewer.Options{
		Author:       author,
		MaxRasterDim: 8192,
		Timeout:      10 * time.Second,
		HistoryDepth: 50,
		Callbacks: viewer.Callbacks{
			OnAnnotationAdd: func(a *annotation.Annotation) {
				emitJSON("onAnnotationAdd", a)
			},
			OnAnnotationUpdate: func(a *annotation.Annotation) {
				emitJSON("onAnnotationUpdate", a)
			},
			OnAnnotationDelete: func(id string) {
				emit("onAnnotationDelete", js.ValueOf(id))
			},
			OnSceneReset: func(page int, annos []*annotation.Annotation) {
				data, err := json.Marshal(annos)
				if err != nil {
					return
				}
				emit("onSceneReset", js.ValueOf(page), js.ValueOf(string(data)))
			},
			OnRenderStateChange: func(state viewer.RenderState) {
				emitJSON("onRenderStateChange", state)
			},
			OnToolChangeRequest: func(t tool.Tool) {
				emit("onToolChangeRequest", js.ValueOf(string(t)))
			},
			OnRaster: func(r *render.Raster) {
				emit("onRaster", rasterToJS(r))
			},
		},
	})

	return okResult()
}

// --- Command Handlers ---

func openDocument(this js.Value, args []js.Value) interface{} {
	if vw == nil {
		return errResult("engine not initialized")
	}
	if len(args) < 1 {
		return errResult("missing document bytes")
	}

	data := make([]byte, args[0].Length())
	js.CopyBytesToGo(data, args[0])

	doc, err := render.LoadPDF(data)
	if err != nil {
		return errResult(err.Error())
	}

	var annos []*annotation.Annotation
	if len(args) > 1 && args[1].Type() == js.TypeString {
		if err := json.Unmarshal([]byte(args[1].String()), &annos); err != nil {
			doc.Close()
			return errResult("invalid annotations JSON: " + err.Error())
		}
	}

	if err := vw.OpenDocument(doc, annos); err != nil {
		return errResult(err.Error())
	}
	return okResult()
}

func closeDocument(this js.Value, args []js.Value) interface{} {
	if vw == nil {
		return nil
	}
	vw.Close()
	return nil
}

func setPage(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	if err := vw.SetPage(args[0].Int()); err != nil {
		return errResult(err.Error())
	}
	return okResult()
}

func nextPage(this js.Value, args []js.Value) interface{} {
	vw.NextPage()
	return nil
}

func prevPage(this js.Value, args []js.Value) interface{} {
	vw.PrevPage()
	return nil
}

func setZoom(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	if err := vw.SetZoom(args[0].Float()); err != nil {
		return errResult(err.Error())
	}
	return okResult()
}

func setViewport(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return nil
	}
	vw.SetViewport(geom.Size{Width: args[0].Float(), Height: args[1].Float()})
	return nil
}

func setTool(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	vw.SetTool(tool.Tool(args[0].String()))
	return nil
}

func setToolProperties(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	var props tool.Properties
	if err := json.Unmarshal([]byte(args[0].String()), &props); err != nil {
		return errResult("invalid properties JSON: " + err.Error())
	}
	vw.SetToolProperties(props)
	return okResult()
}

func pointerDown(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return nil
	}
	vw.PointerDown(args[0].Float(), args[1].Float())
	return nil
}

func pointerMove(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return nil
	}
	vw.PointerMove(args[0].Float(), args[1].Float())
	return nil
}

func pointerUp(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return nil
	}
	vw.PointerUp(args[0].Float(), args[1].Float())
	return nil
}

func beginTextEdit(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return js.ValueOf(false)
	}
	return js.ValueOf(vw.BeginTextEdit(args[0].String()))
}

func commitText(this js.Value, args []js.Value) interface{} {
	content := ""
	if len(args) > 0 {
		content = args[0].String()
	}
	vw.CommitText(content)
	return nil
}

func updateAnnotation(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errResult("missing annotation JSON")
	}
	var a annotation.Annotation
	if err := json.Unmarshal([]byte(args[0].String()), &a); err != nil {
		return errResult("invalid annotation JSON: " + err.Error())
	}
	if err := vw.UpdateAnnotation(&a); err != nil {
		return errResult(err.Error())
	}
	return okResult()
}

func deleteSelection(this js.Value, args []js.Value) interface{} {
	vw.DeleteSelection()
	return nil
}

func selectAnnotation(this js.Value, args []js.Value) interface{} {
	id := ""
	if len(args) > 0 {
		id = args[0].String()
	}
	if err := vw.Select(id); err != nil {
		return errResult(err.Error())
	}
	return okResult()
}

func addComment(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 {
		return errResult("addComment needs annotationId, author, text")
	}
	if err := vw.AddComment(args[0].String(), args[1].String(), args[2].String()); err != nil {
		return errResult(err.Error())
	}
	return okResult()
}

func undo(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(vw.Undo())
}

func redo(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(vw.Redo())
}

func copySelection(this js.Value, args []js.Value) interface{} {
	vw.Copy()
	return nil
}

func paste(this js.Value, args []js.Value) interface{} {
	a := vw.Paste()
	if a == nil {
		return js.Null()
	}
	data, err := json.Marshal(a)
	if err != nil {
		return js.Null()
	}
	return js.ValueOf(string(data))
}

// --- Query Handlers ---

func getState(this js.Value, args []js.Value) interface{} {
	data, err := json.Marshal(vw.State())
	if err != nil {
		return js.ValueOf("{}")
	}
	return js.ValueOf(string(data))
}

func getAnnotations(this js.Value, args []js.Value) interface{} {
	data, err := json.Marshal(vw.Annotations())
	if err != nil {
		return js.ValueOf("[]")
	}
	return js.ValueOf(string(data))
}

func getSelection(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(vw.SelectedID())
}

func hitTest(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return js.ValueOf("")
	}
	return js.ValueOf(vw.HitTest(args[0].Float(), args[1].Float()))
}

func getMeasurementLabel(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return js.ValueOf("")
	}
	return js.ValueOf(vw.MeasurementLabel(args[0].String()))
}

// --- Event plumbing ---

func emit(name string, args ...interface{}) {
	if callbacks.IsUndefined() {
		return
	}
	fn := callbacks.Get(name)
	if fn.Type() != js.TypeFunction {
		return
	}
	fn.Invoke(args...)
}

func emitJSON(name string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	emit(name, js.ValueOf(string(data)))
}

// rasterToJS hands the RGBA pixels to the host as a Uint8ClampedArray ready
// for ImageData.
func rasterToJS(r *render.Raster) js.Value {
	bounds := r.Image.Bounds()
	buf := js.Global().Get("Uint8ClampedArray").New(len(r.Image.Pix))
	js.CopyBytesToJS(buf, r.Image.Pix)

	obj := js.Global().Get("Object").New()
	obj.Set("page", r.Page)
	obj.Set("scale", r.Scale)
	obj.Set("width", bounds.Dx())
	obj.Set("height", bounds.Dy())
	obj.Set("pixels", buf)
	return obj
}

func okResult() js.Value {
	return js.ValueOf(map[string]interface{}{"ok": true})
}

func errResult(msg string) js.Value {
	return js.ValueOf(map[string]interface{}{"error": msg})
}
