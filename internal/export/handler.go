package export

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5"

	"github.com/markline/markline/backend-go/internal/annotation"
	"github.com/markline/markline/backend-go/internal/auth"
	"github.com/markline/markline/backend-go/internal/store"
	"github.com/markline/markline/backend-go/internal/typeid"
)

// Handler serves annotation exports.
type Handler struct {
	store *store.Store
}

func NewHandler(st *store.Store) *Handler {
	return &Handler{store: st}
}

// Export handles GET /documents/{id}/export?format=csv|xfdf. An optional
// page parameter restricts the export to one page.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "xfdf" {
		http.Error(w, "invalid format: must be csv or xfdf", http.StatusBadRequest)
		return
	}

	id := mux.Vars(r)["id"]
	if err := typeid.Validate(id, typeid.PrefixDocument); err != nil {
		http.Error(w, "invalid document id", http.StatusBadRequest)
		return
	}

	record, err := h.store.GetDocument(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			http.Error(w, "document not found", http.StatusNotFound)
			return
		}
		slog.Error("get document", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if record.OwnerID != auth.UserIDFromContext(r.Context()) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	var annos []*annotation.Annotation
	if pageStr := r.URL.Query().Get("page"); pageStr != "" {
		page, perr := strconv.Atoi(pageStr)
		if perr != nil || page < 1 || page > record.PageCount {
			http.Error(w, "invalid page", http.StatusBadRequest)
			return
		}
		annos, err = h.store.ListByPage(r.Context(), id, page)
	} else {
		annos, err = h.store.ListByDocument(r.Context(), id)
	}
	if err != nil {
		slog.Error("list annotations", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	name := sanitizeName(record.Name)

	switch format {
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.csv"`, name))
		err = WriteCSV(w, annos)
	case "xfdf":
		w.Header().Set("Content-Type", "application/vnd.adobe.xfdf")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.xfdf"`, name))
		err = WriteXFDF(w, annos)
	}
	if err != nil {
		slog.Error("write export", "error", err, "format", format)
		return
	}

	slog.Info("export complete", "document", id, "format", format, "annotations", len(annos))
}

func sanitizeName(name string) string {
	name = strings.TrimSuffix(name, ".pdf")
	name = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, name)
	if name == "" {
		name = "annotations"
	}
	return name
}
