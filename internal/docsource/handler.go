package docsource

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5"

	"github.com/markline/markline/backend-go/internal/auth"
	"github.com/markline/markline/backend-go/internal/render"
	"github.com/markline/markline/backend-go/internal/store"
	"github.com/markline/markline/backend-go/internal/typeid"
)

const maxUploadSize = 50 << 20 // 50MB

// Handler serves document upload, listing, and retrieval endpoints.
type Handler struct {
	store    *store.Store
	provider *DirProvider
}

func NewHandler(st *store.Store, provider *DirProvider) *Handler {
	return &Handler{store: st, provider: provider}
}

// Upload handles POST /documents (multipart form with "file" field).
// The file must parse as a PDF; page count is taken from the page tree.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		http.Error(w, "file too large (max 50MB)", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "read upload", http.StatusBadRequest)
		return
	}

	doc, err := render.LoadPDF(data)
	if err != nil {
		http.Error(w, "invalid PDF: "+err.Error(), http.StatusBadRequest)
		return
	}
	pageCount := doc.NumPages()
	doc.Close()

	docID := typeid.NewDocumentID()
	if err := h.provider.Save(docID, data); err != nil {
		slog.Error("save document file", "error", err)
		http.Error(w, "failed to save file", http.StatusInternalServerError)
		return
	}

	record, err := h.store.CreateDocument(r.Context(), store.Document{
		ID:        docID,
		OwnerID:   auth.UserIDFromContext(r.Context()),
		Name:      header.Filename,
		PageCount: pageCount,
	})
	if err != nil {
		slog.Error("create document record", "error", err)
		h.provider.Remove(docID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, record)
}

// List handles GET /documents.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	docs, err := h.store.ListDocumentsForUser(r.Context(), auth.UserIDFromContext(r.Context()))
	if err != nil {
		slog.Error("list documents", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

// Get handles GET /documents/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	record, ok := h.authorized(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// File handles GET /documents/{id}/file, serving the raw PDF bytes.
func (h *Handler) File(w http.ResponseWriter, r *http.Request) {
	record, ok := h.authorized(w, r)
	if !ok {
		return
	}

	data, err := h.provider.Load(record.ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "document file not found", http.StatusNotFound)
			return
		}
		slog.Error("load document file", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Write(data)
}

// Delete handles DELETE /documents/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	record, ok := h.authorized(w, r)
	if !ok {
		return
	}

	if err := h.store.DeleteDocument(r.Context(), record.ID); err != nil {
		slog.Error("delete document", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.provider.Remove(record.ID)

	w.WriteHeader(http.StatusNoContent)
}

// authorized loads the document named by the route and checks ownership.
func (h *Handler) authorized(w http.ResponseWriter, r *http.Request) (store.Document, bool) {
	id := mux.Vars(r)["id"]
	if err := typeid.Validate(id, typeid.PrefixDocument); err != nil {
		http.Error(w, "invalid document id", http.StatusBadRequest)
		return store.Document{}, false
	}

	record, err := h.store.GetDocument(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			http.Error(w, "document not found", http.StatusNotFound)
			return store.Document{}, false
		}
		slog.Error("get document", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return store.Document{}, false
	}

	if record.OwnerID != auth.UserIDFromContext(r.Context()) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return store.Document{}, false
	}

	return record, true
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
