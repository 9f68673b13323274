package model

import (
	"context"
	"strconv"
	"strings"
	"time"
)

// Reserved group sentinels. Neither may be used as a real group name.
const (
	// NoGroup marks a student as not enrolled in any group for a subject.
	NoGroup = "No Group"
	// AllGroups scopes an assignment to every group of its subject.
	AllGroups = "All"
)

// DefaultSubjects is the closed subject list used when none is configured.
var DefaultSubjects = []string{"Math", "ELA", "Science", "Social Studies", "Phonics"}

// DefaultMaxStudents is the roster ceiling for a single classroom.
const DefaultMaxStudents = 40

// AssignmentType classifies an assignment into a weight bucket.
type AssignmentType string

const (
	TypeTest       AssignmentType = "Test"
	TypeQuiz       AssignmentType = "Quiz"
	TypeProject    AssignmentType = "Project"
	TypeHomework   AssignmentType = "Homework"
	TypeAssignment AssignmentType = "Assignment"
)

// Summative reports whether the type counts toward the summative bucket.
// Tests and quizzes are summative; everything else, including an empty type,
// is formative.
func (t AssignmentType) Summative() bool {
	return t == TypeTest || t == TypeQuiz
}

// Valid reports whether t is one of the known assignment types.
func (t AssignmentType) Valid() bool {
	switch t {
	case TypeTest, TypeQuiz, TypeProject, TypeHomework, TypeAssignment:
		return true
	}
	return false
}

// Letter is a letter grade.
type Letter string

const (
	LetterA    Letter = "A"
	LetterB    Letter = "B"
	LetterC    Letter = "C"
	LetterD    Letter = "D"
	LetterF    Letter = "F"
	LetterNone Letter = "N/A"
)

// Student is one class roster entry. Groups maps subject name to group name;
// a missing entry means the student is not enrolled for that subject.
type Student struct {
	ID     int64             `json:"id"`
	Name   string            `json:"name"`
	Groups map[string]string `json:"groups"`

	// LegacyGroup carries the old single-group backup format. Normalize maps
	// it onto the first configured subject and clears it.
	LegacyGroup string `json:"group,omitempty"`
}

// Group returns the student's group for a subject, or NoGroup when unenrolled.
func (s Student) Group(subject string) string {
	g := s.Groups[subject]
	if g == "" || g == NoGroup {
		return NoGroup
	}
	return g
}

// Assignment is a graded item scoped to a subject and optionally to one group.
type Assignment struct {
	ID        int64          `json:"id"`
	Subject   string         `json:"subject"`
	Name      string         `json:"name"`
	MaxPoints float64        `json:"maxPoints"`
	Date      string         `json:"date"` // YYYY-MM-DD
	Group     string         `json:"group"`
	Type      AssignmentType `json:"type"`
}

// Weights holds the grading split as integer percents. The two fields always
// sum to 100: setting either recomputes the other.
type Weights struct {
	Summative int `json:"summative"`
	Formative int `json:"formative"`
}

// DefaultWeights is the 40/60 summative/formative split.
func DefaultWeights() Weights {
	return Weights{Summative: 40, Formative: 60}
}

// SetSummative sets the summative percent and recomputes the formative one.
func (w *Weights) SetSummative(v int) {
	v = clampPercent(v)
	w.Summative = v
	w.Formative = 100 - v
}

// SetFormative sets the formative percent and recomputes the summative one.
func (w *Weights) SetFormative(v int) {
	v = clampPercent(v)
	w.Formative = v
	w.Summative = 100 - v
}

// SummativeFraction returns the summative weight as a 0..1 fraction.
func (w Weights) SummativeFraction() float64 { return float64(w.Summative) / 100 }

// FormativeFraction returns the formative weight as a 0..1 fraction.
func (w Weights) FormativeFraction() float64 { return float64(w.Formative) / 100 }

func clampPercent(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// ScoreKey builds the grades-map key for a (student, assignment) pair.
func ScoreKey(studentID, assignmentID int64) string {
	return strconv.FormatInt(studentID, 10) + "-" + strconv.FormatInt(assignmentID, 10)
}

// SplitScoreKey parses a grades-map key back into its pair of IDs.
func SplitScoreKey(key string) (studentID, assignmentID int64, ok bool) {
	i := strings.IndexByte(key, '-')
	if i < 0 {
		return 0, 0, false
	}
	studentID, err := strconv.ParseInt(key[:i], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	assignmentID, err = strconv.ParseInt(key[i+1:], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return studentID, assignmentID, true
}

// Config holds runtime settings shared across the server.
type Config struct {
	Subjects      []string
	MaxStudents   int
	SaveDebounce  time.Duration
	SecureCookies bool
	Lang          string

	// DefaultSummative overrides the summative percent of a brand-new
	// gradebook; zero keeps the standard 40/60 split.
	DefaultSummative int
}

// User is a signed-in teacher account.
type User struct {
	ID           int64
	Username     string
	DisplayName  string
	PasswordHash string
	Active       bool
	CreatedAt    time.Time
}

// AuthSession represents an authentication session.
type AuthSession struct {
	ID        string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

type userCtxKey struct{}

// ContextWithUser stores a user in the request context.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext retrieves the authenticated user from context, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userCtxKey{}).(*User)
	return u
}
