package session

import (
	"encoding/json"

	"github.com/markline/markline/backend-go/internal/annotation"
	"github.com/markline/markline/backend-go/internal/geom"
	"github.com/markline/markline/backend-go/internal/viewer"
)

// Message is the wire envelope in both directions. Seq echoes the client's
// command sequence on direct replies; server-initiated events carry zero.
type Message struct {
	Type    string          `json:"type"`
	Seq     int64           `json:"seq,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Commands (client to server).
const (
	CmdPageSet     = "page.set"
	CmdPageNext    = "page.next"
	CmdPagePrev    = "page.prev"
	CmdZoomSet     = "zoom.set"
	CmdViewportSet = "viewport.set"
	CmdToolSet     = "tool.set"
	CmdToolProps   = "tool.props"
	CmdPointerDown = "pointer.down"
	CmdPointerMove = "pointer.move"
	CmdPointerUp   = "pointer.up"
	CmdTextEdit    = "text.edit"
	CmdTextCommit  = "text.commit"
	CmdAnnoUpdate  = "anno.update"
	CmdAnnoDelete  = "anno.delete"
	CmdAnnoSelect  = "anno.select"
	CmdCommentAdd  = "comment.add"
	CmdUndo        = "undo"
	CmdRedo        = "redo"
	CmdCopy        = "copy"
	CmdPaste       = "paste"
)

// Events (server to client).
const (
	EventWelcome     = "welcome"
	EventRenderState = "render.state"
	EventRaster      = "render.raster"
	EventAnnoAdd     = "anno.add"
	EventAnnoUpdate  = "anno.update"
	EventAnnoDelete  = "anno.delete"
	EventSceneReset  = "scene.reset"
	EventToolChange  = "tool.change"
	EventError       = "error"
)

type WelcomePayload struct {
	SessionID   string                   `json:"sessionId"`
	DocumentID  string                   `json:"documentId"`
	State       viewer.RenderState       `json:"state"`
	Annotations []*annotation.Annotation `json:"annotations"`
}

type PageSetPayload struct {
	Page int `json:"page"`
}

type ZoomSetPayload struct {
	Zoom float64 `json:"zoom"`
}

type ViewportSetPayload struct {
	Size geom.Size `json:"size"`
}

type ToolSetPayload struct {
	Tool string `json:"tool"`
}

type PointerPayload struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type TextEditPayload struct {
	ID string `json:"id"`
}

type TextCommitPayload struct {
	Content string `json:"content"`
}

type AnnoIDPayload struct {
	ID string `json:"id"`
}

type CommentAddPayload struct {
	AnnotationID string `json:"annotationId"`
	Text         string `json:"text"`
}

type SceneResetPayload struct {
	Page        int                      `json:"page"`
	Annotations []*annotation.Annotation `json:"annotations"`
}

type ToolChangePayload struct {
	Tool string `json:"tool"`
}

// RasterPayload carries the page raster as base64 PNG together with the
// render-space metadata hosts need to position the overlay.
type RasterPayload struct {
	Page   int     `json:"page"`
	Scale  float64 `json:"scale"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
	PNG    string  `json:"png"`
}

type ErrorPayload struct {
	Error string `json:"error"`
}
