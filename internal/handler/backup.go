package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mrbobgradebook/easygrade/internal/model"
)

// handleExport streams the full gradebook as a JSON download.
func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(r)
	if err != nil {
		h.respondBookError(w, r, err)
		return
	}

	ds := sess.Book.Snapshot()
	ds.LastUpdated = time.Now().UTC().Format(time.RFC3339)

	filename := fmt.Sprintf("gradebook_backup_%s.json", time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(ds); err != nil {
		slog.Error("export encode", "error", err)
	}
}

// handleImport replaces the gradebook with an uploaded backup. The payload
// must carry the students, assignments and grades keys or it is rejected
// before anything is touched.
func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(r)
	if err != nil {
		h.respondBookError(w, r, err)
		return
	}

	defer r.Body.Close()
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 8<<20))
	if err != nil {
		h.respondNotice(w, r, http.StatusBadRequest, "InvalidBackup")
		return
	}

	ds, err := model.ParseBackup(data)
	if err != nil {
		if errors.Is(err, model.ErrInvalidBackup) {
			h.respondNotice(w, r, http.StatusBadRequest, "InvalidBackup")
			return
		}
		h.respondBookError(w, r, err)
		return
	}

	sess.Book.Replace(ds)
	w.WriteHeader(http.StatusNoContent)
}
