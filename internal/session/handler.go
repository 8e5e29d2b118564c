package session

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5"

	"github.com/markline/markline/backend-go/internal/auth"
	"github.com/markline/markline/backend-go/internal/docsource"
	"github.com/markline/markline/backend-go/internal/render"
	"github.com/markline/markline/backend-go/internal/store"
	"github.com/markline/markline/backend-go/internal/typeid"
	"github.com/markline/markline/backend-go/internal/viewer"
)

// Options carries the engine tuning every new session starts with.
type Options struct {
	MaxRasterDim   int
	RenderTimeout  time.Duration
	HistoryDepth   int
	AllowedOrigins []string
}

// Handler upgrades websocket connections and binds each one to a session.
type Handler struct {
	store    *store.Store
	provider docsource.Provider
	authSvc  *auth.Service
	manager  *Manager
	opts     Options
}

func NewHandler(st *store.Store, provider docsource.Provider, authSvc *auth.Service, manager *Manager, opts Options) *Handler {
	return &Handler{
		store:    st,
		provider: provider,
		authSvc:  authSvc,
		manager:  manager,
		opts:     opts,
	}
}

// ServeWS handles GET /ws/documents/{id}. The caller must have run token
// auth already; the user id comes from the request context.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	documentID := mux.Vars(r)["id"]
	if err := typeid.Validate(documentID, typeid.PrefixDocument); err != nil {
		http.Error(w, "invalid document id", http.StatusBadRequest)
		return
	}

	userID := auth.UserIDFromContext(r.Context())

	record, err := h.store.GetDocument(r.Context(), documentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			http.Error(w, "document not found", http.StatusNotFound)
			return
		}
		slog.Error("get document", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if record.OwnerID != userID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	user, err := h.authSvc.GetUser(r.Context(), userID)
	if err != nil {
		http.Error(w, "user not found", http.StatusInternalServerError)
		return
	}

	data, err := h.provider.Load(documentID)
	if err != nil {
		http.Error(w, "document file not found", http.StatusNotFound)
		return
	}

	doc, err := render.LoadPDF(data)
	if err != nil {
		slog.Error("load document", "error", err, "document", documentID)
		http.Error(w, "document cannot be opened", http.StatusUnprocessableEntity)
		return
	}

	annotations, err := h.store.ListByDocument(r.Context(), documentID)
	if err != nil {
		doc.Close()
		slog.Error("list annotations", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.opts.AllowedOrigins,
	})
	if err != nil {
		doc.Close()
		slog.Error("websocket accept", "error", err)
		return
	}

	sess := newSession(typeid.NewSessionID(), userID, documentID, h.store, h.manager)
	sess.client = newClient(uuid.New().String(), conn, sess)
	sess.viewer = viewer.New(viewer.Options{
		Author:       user.DisplayName,
		MaxRasterDim: h.opts.MaxRasterDim,
		Timeout:      h.opts.RenderTimeout,
		HistoryDepth: h.opts.HistoryDepth,
		Callbacks:    sess.callbacks(),
	})
	h.manager.add(sess)

	if err := sess.viewer.OpenDocument(doc, annotations); err != nil {
		slog.Error("open document", "error", err, "document", documentID)
		sess.close()
		conn.Close(websocket.StatusInternalError, "open document")
		return
	}

	sess.sendEvent(EventWelcome, WelcomePayload{
		SessionID:   sess.ID,
		DocumentID:  documentID,
		State:       sess.viewer.State(),
		Annotations: annotations,
	})

	slog.Info("session opened", "session", sess.ID, "user", userID, "document", documentID, "client", sess.client.id)

	ctx := r.Context()
	go sess.client.writePump(ctx)
	sess.client.readPump(ctx)
}
