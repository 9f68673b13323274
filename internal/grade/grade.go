// Package grade computes weighted grades over a gradebook dataset.
//
// Scores split into two buckets: summative (tests and quizzes) and formative
// (everything else). While only one bucket has graded work it carries the
// whole grade; once both do, the configured split applies. Ungraded
// assignments are excluded entirely, never counted as zero.
package grade

import (
	"math"
	"strconv"

	"github.com/mrbobgradebook/easygrade/internal/model"
)

// Result is a computed grade for one (student, subject) pair. Percent is a
// numeric string with one fractional digit, or "0" when no grade applies.
type Result struct {
	Percent string       `json:"percent"`
	Letter  model.Letter `json:"letter"`
}

func notApplicable() Result {
	return Result{Percent: "0", Letter: model.LetterNone}
}

// Compute returns the weighted grade for a student in a subject. Unknown
// students, subjects with no relevant assignments and subjects with no graded
// work all yield {0, N/A}.
func Compute(studentID int64, subject string, ds *model.Dataset, w model.Weights) Result {
	var student *model.Student
	for i := range ds.Students {
		if ds.Students[i].ID == studentID {
			student = &ds.Students[i]
			break
		}
	}
	if student == nil {
		return notApplicable()
	}

	group := student.Group(subject)
	relevant := Relevant(ds.Assignments, subject, group)
	if len(relevant) == 0 {
		return notApplicable()
	}

	var sumPoints, sumMax, formPoints, formMax float64
	for _, a := range relevant {
		raw, ok := ds.Grades[model.ScoreKey(studentID, a.ID)]
		if !ok || raw == "" {
			continue // ungraded: contributes to neither sum nor max
		}
		score, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		if a.Type.Summative() {
			sumPoints += score
			sumMax += a.MaxPoints
		} else {
			formPoints += score
			formMax += a.MaxPoints
		}
	}

	if sumMax == 0 && formMax == 0 {
		return notApplicable()
	}

	var weighted float64
	switch {
	case sumMax > 0 && formMax > 0:
		weighted = (sumPoints/sumMax)*w.SummativeFraction() + (formPoints/formMax)*w.FormativeFraction()
	case sumMax > 0:
		// Only summative work graded so far: it carries the whole grade.
		weighted = sumPoints / sumMax
	default:
		weighted = formPoints / formMax
	}

	percent := math.Round(weighted*1000) / 10
	return Result{
		Percent: strconv.FormatFloat(percent, 'f', 1, 64),
		Letter:  letterFor(percent),
	}
}

// letterFor maps a rounded percent to a letter grade, boundaries inclusive.
func letterFor(percent float64) model.Letter {
	switch {
	case percent >= 90:
		return model.LetterA
	case percent >= 80:
		return model.LetterB
	case percent >= 70:
		return model.LetterC
	case percent >= 60:
		return model.LetterD
	}
	return model.LetterF
}
