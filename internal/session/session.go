package session

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image/png"
	"log/slog"
	"sync"
	"time"

	"github.com/markline/markline/backend-go/internal/annotation"
	"github.com/markline/markline/backend-go/internal/render"
	"github.com/markline/markline/backend-go/internal/store"
	"github.com/markline/markline/backend-go/internal/tool"
	"github.com/markline/markline/backend-go/internal/viewer"
)

const flushTimeout = 5 * time.Second

// Session binds one websocket client to its own viewer instance. Commands
// arrive on the read pump and are applied serially; engine events fan out
// through the client's send channel in the order the mutations occurred.
type Session struct {
	ID         string
	UserID     string
	DocumentID string

	client  *Client
	viewer  *viewer.Viewer
	store   *store.Store
	manager *Manager

	mu     sync.Mutex
	dirty  map[int]bool
	page   int
	closed bool
}

func newSession(id, userID, documentID string, st *store.Store, manager *Manager) *Session {
	return &Session{
		ID:         id,
		UserID:     userID,
		DocumentID: documentID,
		store:      st,
		manager:    manager,
		dirty:      make(map[int]bool),
	}
}

// callbacks wires viewer events onto the wire. Events fire synchronously
// inside the engine's mutation path, so everything here must be non-blocking:
// client.Send drops on a full buffer rather than stalling the engine.
func (s *Session) callbacks() viewer.Callbacks {
	return viewer.Callbacks{
		OnAnnotationAdd: func(a *annotation.Annotation) {
			s.markDirty(a.PageNumber)
			s.sendEvent(EventAnnoAdd, a)
		},
		OnAnnotationUpdate: func(a *annotation.Annotation) {
			s.markDirty(a.PageNumber)
			s.sendEvent(EventAnnoUpdate, a)
		},
		OnAnnotationDelete: func(id string) {
			s.markDirty(s.currentPage())
			s.sendEvent(EventAnnoDelete, AnnoIDPayload{ID: id})
		},
		OnSceneReset: func(page int, annotations []*annotation.Annotation) {
			s.markDirty(page)
			s.sendEvent(EventSceneReset, SceneResetPayload{Page: page, Annotations: annotations})
		},
		OnRenderStateChange: func(state viewer.RenderState) {
			s.mu.Lock()
			s.page = state.CurrentPage
			s.mu.Unlock()
			s.sendEvent(EventRenderState, state)
		},
		OnToolChangeRequest: func(t tool.Tool) {
			s.sendEvent(EventToolChange, ToolChangePayload{Tool: string(t)})
		},
		OnRaster: func(r *render.Raster) {
			s.sendRaster(r)
		},
	}
}

func (s *Session) handleCommand(ctx context.Context, msg *Message) {
	var err error

	switch msg.Type {
	case CmdPageSet:
		var p PageSetPayload
		if err = json.Unmarshal(msg.Payload, &p); err == nil {
			err = s.viewer.SetPage(p.Page)
		}
	case CmdPageNext:
		err = s.viewer.NextPage()
	case CmdPagePrev:
		err = s.viewer.PrevPage()
	case CmdZoomSet:
		var p ZoomSetPayload
		if err = json.Unmarshal(msg.Payload, &p); err == nil {
			err = s.viewer.SetZoom(p.Zoom)
		}
	case CmdViewportSet:
		var p ViewportSetPayload
		if err = json.Unmarshal(msg.Payload, &p); err == nil {
			err = s.viewer.SetViewport(p.Size)
		}
	case CmdToolSet:
		var p ToolSetPayload
		if err = json.Unmarshal(msg.Payload, &p); err == nil {
			s.viewer.SetTool(tool.Tool(p.Tool))
		}
	case CmdToolProps:
		var p tool.Properties
		if err = json.Unmarshal(msg.Payload, &p); err == nil {
			s.viewer.SetToolProperties(p)
		}
	case CmdPointerDown:
		var p PointerPayload
		if err = json.Unmarshal(msg.Payload, &p); err == nil {
			s.viewer.PointerDown(p.X, p.Y)
		}
	case CmdPointerMove:
		var p PointerPayload
		if err = json.Unmarshal(msg.Payload, &p); err == nil {
			s.viewer.PointerMove(p.X, p.Y)
		}
	case CmdPointerUp:
		var p PointerPayload
		if err = json.Unmarshal(msg.Payload, &p); err == nil {
			s.viewer.PointerUp(p.X, p.Y)
		}
	case CmdTextEdit:
		var p TextEditPayload
		if err = json.Unmarshal(msg.Payload, &p); err == nil {
			s.viewer.BeginTextEdit(p.ID)
		}
	case CmdTextCommit:
		var p TextCommitPayload
		if err = json.Unmarshal(msg.Payload, &p); err == nil {
			s.viewer.CommitText(p.Content)
		}
	case CmdAnnoUpdate:
		var a annotation.Annotation
		if err = json.Unmarshal(msg.Payload, &a); err == nil {
			err = s.viewer.UpdateAnnotation(&a)
		}
	case CmdAnnoDelete:
		var p AnnoIDPayload
		if err = json.Unmarshal(msg.Payload, &p); err == nil {
			if p.ID != "" {
				err = s.viewer.Select(p.ID)
			}
			if err == nil {
				s.viewer.DeleteSelection()
			}
		}
	case CmdAnnoSelect:
		var p AnnoIDPayload
		if err = json.Unmarshal(msg.Payload, &p); err == nil {
			err = s.viewer.Select(p.ID)
		}
	case CmdCommentAdd:
		var p CommentAddPayload
		if err = json.Unmarshal(msg.Payload, &p); err == nil {
			err = s.viewer.AddComment(p.AnnotationID, s.UserID, p.Text)
		}
	case CmdUndo:
		s.viewer.Undo()
	case CmdRedo:
		s.viewer.Redo()
	case CmdCopy:
		s.viewer.Copy()
	case CmdPaste:
		s.viewer.Paste()
	default:
		s.sendError(msg.Seq, "unknown command: "+msg.Type)
		return
	}

	if err != nil {
		s.sendError(msg.Seq, err.Error())
		return
	}

	s.flushDirty(ctx)
}

// currentPage is tracked session-side because engine events fire while the
// viewer's own lock is held.
func (s *Session) currentPage() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page
}

func (s *Session) markDirty(page int) {
	s.mu.Lock()
	s.dirty[page] = true
	s.mu.Unlock()
}

// flushDirty persists every page touched since the last flush. Pages flush
// whole, so the newest state always wins.
func (s *Session) flushDirty(ctx context.Context) {
	s.mu.Lock()
	pages := make([]int, 0, len(s.dirty))
	for page := range s.dirty {
		pages = append(pages, page)
	}
	s.dirty = make(map[int]bool)
	s.mu.Unlock()

	for _, page := range pages {
		annos := s.viewer.PageAnnotations(page)
		if err := s.store.ReplacePage(ctx, s.DocumentID, page, annos); err != nil {
			slog.Error("flush annotations", "error", err, "document", s.DocumentID, "page", page)
			s.markDirty(page)
		}
	}
}

func (s *Session) sendEvent(eventType string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal event payload", "error", err, "type", eventType)
		return
	}
	s.client.Send(&Message{Type: eventType, Payload: data})
}

func (s *Session) sendRaster(r *render.Raster) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, r.Image); err != nil {
		slog.Error("encode raster", "error", err)
		return
	}

	bounds := r.Image.Bounds()
	s.sendEvent(EventRaster, RasterPayload{
		Page:   r.Page,
		Scale:  r.Scale,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		PNG:    base64.StdEncoding.EncodeToString(buf.Bytes()),
	})
}

func (s *Session) sendError(seq int64, msg string) {
	data, _ := json.Marshal(ErrorPayload{Error: msg})
	s.client.Send(&Message{Type: EventError, Seq: seq, Payload: data})
}

// close flushes pending pages and releases the viewer. Safe to call twice;
// the read pump and manager shutdown can race here.
func (s *Session) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	s.flushDirty(ctx)

	if err := s.viewer.Close(); err != nil {
		slog.Debug("close viewer", "error", err, "session", s.ID)
	}
	s.manager.remove(s.ID)

	slog.Info("session closed", "session", s.ID, "document", s.DocumentID)
}
