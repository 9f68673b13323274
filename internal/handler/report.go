package handler

import (
	"net/http"
	"strconv"

	"github.com/mrbobgradebook/easygrade/internal/grade"
	"github.com/mrbobgradebook/easygrade/internal/llm"
	"github.com/mrbobgradebook/easygrade/internal/model"
)

type reportLine struct {
	Assignment model.Assignment `json:"assignment"`
	Score      string           `json:"score"` // "score/max" or "-"
}

type reportSubject struct {
	Subject string       `json:"subject"`
	Group   string       `json:"group"`
	Grade   grade.Result `json:"grade"`
	Lines   []reportLine `json:"lines"`
}

// handleReport builds the progress report for one student. Subjects where the
// student is not placed in a group and has no graded work are left out, so a
// kindergartner's report does not list five empty subjects.
func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
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

	ds := sess.Book.Snapshot()
	var student *model.Student
	for i := range ds.Students {
		if ds.Students[i].ID == id {
			student = &ds.Students[i]
			break
		}
	}
	if student == nil {
		h.respondNotice(w, r, http.StatusNotFound, "UnknownStudent")
		return
	}

	subjects := make([]reportSubject, 0, len(h.config.Subjects))
	for _, subject := range h.config.Subjects {
		group := student.Group(subject)
		relevant := grade.Relevant(ds.Assignments, subject, group)
		if group == model.NoGroup && !hasGradedWork(&ds, student.ID, relevant) {
			continue
		}

		lines := make([]reportLine, 0, len(relevant))
		for _, a := range relevant {
			score := "-"
			if v, ok := ds.Grades[model.ScoreKey(student.ID, a.ID)]; ok && v != "" {
				score = v + "/" + strconv.FormatFloat(a.MaxPoints, 'f', -1, 64)
			}
			lines = append(lines, reportLine{Assignment: a, Score: score})
		}

		subjects = append(subjects, reportSubject{
			Subject: subject,
			Group:   group,
			Grade:   grade.Compute(student.ID, subject, &ds, ds.Weights),
			Lines:   lines,
		})
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"student":  student,
		"subjects": subjects,
		"comment":  ds.ReportComments[strconv.FormatInt(student.ID, 10)],
	})
}

func hasGradedWork(ds *model.Dataset, studentID int64, assignments []model.Assignment) bool {
	for _, a := range assignments {
		if v, ok := ds.Grades[model.ScoreKey(studentID, a.ID)]; ok && v != "" {
			return true
		}
	}
	return false
}

// handleDraftComment asks the configured LLM for a report comment draft. The
// draft is returned to the caller, not stored; saving stays an explicit edit.
func (h *Handler) handleDraftComment(w http.ResponseWriter, r *http.Request) {
	if h.llm == nil {
		h.respondNotice(w, r, http.StatusServiceUnavailable, "InternalError")
		return
	}
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

	ds := sess.Book.Snapshot()
	var student *model.Student
	for i := range ds.Students {
		if ds.Students[i].ID == id {
			student = &ds.Students[i]
			break
		}
	}
	if student == nil {
		h.respondNotice(w, r, http.StatusNotFound, "UnknownStudent")
		return
	}

	var lines []llm.SubjectGrade
	for _, subject := range h.config.Subjects {
		res := grade.Compute(student.ID, subject, &ds, ds.Weights)
		if res.Letter == model.LetterNone {
			continue
		}
		lines = append(lines, llm.SubjectGrade{
			Subject: subject,
			Group:   student.Group(subject),
			Percent: res.Percent,
			Letter:  res.Letter,
		})
	}

	draft, err := h.llm.DraftComment(r.Context(), student.Name, lines)
	if err != nil {
		h.respondBookError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"draft": draft})
}
