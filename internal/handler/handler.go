package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mrbobgradebook/easygrade/internal/book"
	appI18n "github.com/mrbobgradebook/easygrade/internal/i18n"
	"github.com/mrbobgradebook/easygrade/internal/llm"
	"github.com/mrbobgradebook/easygrade/internal/model"
	"github.com/mrbobgradebook/easygrade/internal/store"
	appSync "github.com/mrbobgradebook/easygrade/internal/sync"
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store    *store.Store
	sessions *appSync.Manager
	llm      *llm.Client // nil when no endpoint is configured
	config   model.Config
}

// New creates a new Handler.
func New(st *store.Store, sessions *appSync.Manager, llmClient *llm.Client, cfg model.Config) *Handler {
	return &Handler{store: st, sessions: sessions, llm: llmClient, config: cfg}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/api/login", h.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)
		r.Post("/api/logout", h.handleLogout)
		r.Get("/api/status", h.handleStatus)

		r.Get("/api/gradebook", h.handleGradebook)
		r.Get("/api/subjects", h.handleSubjects)

		r.Post("/api/students", h.handleAddStudent)
		r.Put("/api/students/{studentID}", h.handleRenameStudent)
		r.Delete("/api/students/{studentID}", h.handleDeleteStudent)
		r.Put("/api/students/{studentID}/group", h.handleSetStudentGroup)

		r.Post("/api/groups", h.handleAddGroup)
		r.Put("/api/groups/{name}", h.handleRenameGroup)
		r.Delete("/api/groups/{name}", h.handleDeleteGroup)

		r.Post("/api/assignments", h.handleAddAssignment)
		r.Delete("/api/assignments/{assignmentID}", h.handleDeleteAssignment)

		r.Put("/api/scores/{studentID}/{assignmentID}", h.handleSetScore)
		r.Put("/api/comments/{studentID}", h.handleSetComment)
		r.Put("/api/weights", h.handleSetWeights)

		r.Get("/api/report/{studentID}", h.handleReport)
		r.Post("/api/report/{studentID}/draft", h.handleDraftComment)

		r.Get("/api/export", h.handleExport)
		r.Post("/api/import", h.handleImport)
	})
}

// session returns the live gradebook session for the authenticated user.
func (h *Handler) session(r *http.Request) (*appSync.Session, error) {
	user := model.UserFromContext(r.Context())
	return h.sessions.Acquire(strconv.FormatInt(user.ID, 10))
}

func respondJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func (h *Handler) respondNotice(w http.ResponseWriter, r *http.Request, code int, msgID string) {
	respondJSON(w, code, map[string]string{"error": appI18n.T(r.Context(), msgID)})
}

// respondBookError maps a rejected mutation to a status code and a localized
// notice. Rejections are recoverable; nothing was partially applied.
func (h *Handler) respondBookError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, book.ErrDuplicateGroup):
		h.respondNotice(w, r, http.StatusConflict, "DuplicateGroup")
	case errors.Is(err, book.ErrReservedName):
		h.respondNotice(w, r, http.StatusBadRequest, "ReservedGroupName")
	case errors.Is(err, book.ErrEmptyName):
		h.respondNotice(w, r, http.StatusBadRequest, "EmptyName")
	case errors.Is(err, book.ErrUnknownGroup):
		h.respondNotice(w, r, http.StatusNotFound, "UnknownGroup")
	case errors.Is(err, book.ErrUnknownSubject):
		h.respondNotice(w, r, http.StatusNotFound, "UnknownSubject")
	case errors.Is(err, book.ErrUnknownStudent):
		h.respondNotice(w, r, http.StatusNotFound, "UnknownStudent")
	case errors.Is(err, book.ErrUnknownAssignment):
		h.respondNotice(w, r, http.StatusNotFound, "UnknownAssignment")
	case errors.Is(err, book.ErrRosterFull):
		respondJSON(w, http.StatusConflict, map[string]string{
			"error": appI18n.Td(r.Context(), "RosterFull", map[string]any{"Max": h.config.MaxStudents}),
		})
	case errors.Is(err, book.ErrInvalidType):
		h.respondNotice(w, r, http.StatusBadRequest, "InvalidType")
	case errors.Is(err, book.ErrInvalidWeight):
		h.respondNotice(w, r, http.StatusBadRequest, "InvalidWeight")
	default:
		slog.Error("gradebook operation failed", "error", err)
		h.respondNotice(w, r, http.StatusInternalServerError, "InternalError")
	}
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	return dec.Decode(v)
}

func urlID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(r)
	if err != nil {
		h.respondBookError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"sync": sess.Status().String()})
}

func (h *Handler) handleSubjects(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"subjects": h.config.Subjects})
}
