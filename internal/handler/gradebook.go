package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mrbobgradebook/easygrade/internal/grade"
	"github.com/mrbobgradebook/easygrade/internal/model"
)

// gradebookRow is one student line in the gradebook view.
type gradebookRow struct {
	Student model.Student     `json:"student"`
	Group   string            `json:"group"`
	Grade   grade.Result      `json:"grade"`
	Scores  map[string]string `json:"scores"` // assignment ID (decimal) -> raw score
}

// handleGradebook renders the (subject, group filter) view: visible students
// and assignments plus each student's computed grade.
func (h *Handler) handleGradebook(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(r)
	if err != nil {
		h.respondBookError(w, r, err)
		return
	}

	subject := r.URL.Query().Get("subject")
	if subject == "" && len(h.config.Subjects) > 0 {
		subject = h.config.Subjects[0]
	}
	if !h.validSubject(subject) {
		h.respondNotice(w, r, http.StatusNotFound, "UnknownSubject")
		return
	}
	groupFilter := r.URL.Query().Get("group")
	if groupFilter == "" {
		groupFilter = model.AllGroups
	}

	ds := sess.Book.Snapshot()
	students := grade.VisibleStudents(ds.Students, subject, groupFilter)
	assignments := grade.VisibleAssignments(ds.Assignments, subject, groupFilter)

	rows := make([]gradebookRow, 0, len(students))
	for _, s := range students {
		scores := make(map[string]string)
		for _, a := range assignments {
			if v, ok := ds.Grades[model.ScoreKey(s.ID, a.ID)]; ok {
				scores[strconv.FormatInt(a.ID, 10)] = v
			}
		}
		rows = append(rows, gradebookRow{
			Student: s,
			Group:   s.Group(subject),
			Grade:   grade.Compute(s.ID, subject, &ds, ds.Weights),
			Scores:  scores,
		})
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"subject":     subject,
		"group":       groupFilter,
		"groups":      ds.Groups,
		"students":    rows,
		"assignments": assignments,
		"weights":     ds.Weights,
	})
}

func (h *Handler) validSubject(subject string) bool {
	for _, s := range h.config.Subjects {
		if s == subject {
			return true
		}
	}
	return false
}

func (h *Handler) handleAddStudent(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(r)
	if err != nil {
		h.respondBookError(w, r, err)
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeBody(r, &req); err != nil {
		h.respondNotice(w, r, http.StatusBadRequest, "EmptyName")
		return
	}
	student, err := sess.Book.AddStudent(req.Name)
	if err != nil {
		h.respondBookError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, student)
}

func (h *Handler) handleRenameStudent(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(r)
	if err != nil {
		h.respondBookError(w, r, err)
		return
	}
	id, ok := urlID(r, "studentID")
	if !ok {
		h.respondNotice(w, r, http.StatusNotFound, "UnknownStudent")
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeBody(r, &req); err != nil {
		h.respondNotice(w, r, http.StatusBadRequest, "EmptyName")
		return
	}
	if err := sess.Book.RenameStudent(id, req.Name); err != nil {
		h.respondBookError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDeleteStudent(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(r)
	if err != nil {
		h.respondBookError(w, r, err)
		return
	}
	id, ok := urlID(r, "studentID")
	if !ok {
		h.respondNotice(w, r, http.StatusNotFound, "UnknownStudent")
		return
	}
	if err := sess.Book.DeleteStudent(id); err != nil {
		h.respondBookError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSetStudentGroup(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(r)
	if err != nil {
		h.respondBookError(w, r, err)
		return
	}
	id, ok := urlID(r, "studentID")
	if !ok {
		h.respondNotice(w, r, http.StatusNotFound, "UnknownStudent")
		return
	}
	var req struct {
		Subject string `json:"subject"`
		Group   string `json:"group"`
	}
	if err := decodeBody(r, &req); err != nil {
		h.respondNotice(w, r, http.StatusBadRequest, "UnknownSubject")
		return
	}
	if err := sess.Book.SetStudentGroup(id, req.Subject, req.Group); err != nil {
		h.respondBookError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAddGroup(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(r)
	if err != nil {
		h.respondBookError(w, r, err)
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeBody(r, &req); err != nil {
		h.respondNotice(w, r, http.StatusBadRequest, "EmptyName")
		return
	}
	if err := sess.Book.AddGroup(req.Name); err != nil {
		h.respondBookError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"name": req.Name})
}

func (h *Handler) handleRenameGroup(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(r)
	if err != nil {
		h.respondBookError(w, r, err)
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeBody(r, &req); err != nil {
		h.respondNotice(w, r, http.StatusBadRequest, "EmptyName")
		return
	}
	if err := sess.Book.RenameGroup(chi.URLParam(r, "name"), req.Name); err != nil {
		h.respondBookError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(r)
	if err != nil {
		h.respondBookError(w, r, err)
		return
	}
	if err := sess.Book.DeleteGroup(chi.URLParam(r, "name")); err != nil {
		h.respondBookError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAddAssignment(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(r)
	if err != nil {
		h.respondBookError(w, r, err)
		return
	}
	var req struct {
		Subject   string  `json:"subject"`
		Name      string  `json:"name"`
		MaxPoints float64 `json:"maxPoints"`
		Group     string  `json:"group"`
		Type      string  `json:"type"`
	}
	if err := decodeBody(r, &req); err != nil {
		h.respondNotice(w, r, http.StatusBadRequest, "EmptyName")
		return
	}
	a, err := sess.Book.AddAssignment(req.Subject, req.Name, req.MaxPoints, req.Group, model.AssignmentType(req.Type))
	if err != nil {
		h.respondBookError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, a)
}

func (h *Handler) handleDeleteAssignment(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(r)
	if err != nil {
		h.respondBookError(w, r, err)
		return
	}
	id, ok := urlID(r, "assignmentID")
	if !ok {
		h.respondNotice(w, r, http.StatusNotFound, "UnknownAssignment")
		return
	}
	if err := sess.Book.DeleteAssignment(id); err != nil {
		h.respondBookError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSetScore(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(r)
	if err != nil {
		h.respondBookError(w, r, err)
		return
	}
	studentID, ok1 := urlID(r, "studentID")
	assignmentID, ok2 := urlID(r, "assignmentID")
	if !ok1 || !ok2 {
		h.respondNotice(w, r, http.StatusNotFound, "UnknownAssignment")
		return
	}
	var req struct {
		Value string `json:"value"`
	}
	if err := decodeBody(r, &req); err != nil {
		h.respondNotice(w, r, http.StatusBadRequest, "InternalError")
		return
	}
	if err := sess.Book.SetScore(studentID, assignmentID, req.Value); err != nil {
		h.respondBookError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSetComment(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(r)
	if err != nil {
		h.respondBookError(w, r, err)
		return
	}
	id, ok := urlID(r, "studentID")
	if !ok {
		h.respondNotice(w, r, http.StatusNotFound, "UnknownStudent")
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if err := decodeBody(r, &req); err != nil {
		h.respondNotice(w, r, http.StatusBadRequest, "InternalError")
		return
	}
	if err := sess.Book.SetComment(id, req.Text); err != nil {
		h.respondBookError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSetWeights updates one side of the grading split; the counterpart is
// recomputed so the two always sum to 100. Exactly one field must be given.
func (h *Handler) handleSetWeights(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(r)
	if err != nil {
		h.respondBookError(w, r, err)
		return
	}
	var req struct {
		Summative *int `json:"summative"`
		Formative *int `json:"formative"`
	}
	if err := decodeBody(r, &req); err != nil || (req.Summative == nil) == (req.Formative == nil) {
		h.respondNotice(w, r, http.StatusBadRequest, "InvalidWeight")
		return
	}
	if req.Summative != nil {
		err = sess.Book.SetSummativeWeight(*req.Summative)
	} else {
		err = sess.Book.SetFormativeWeight(*req.Formative)
	}
	if err != nil {
		h.respondBookError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, sess.Book.Snapshot().Weights)
}
