// Package book owns one user's gradebook dataset and serializes every
// mutation through cascade operations that keep students, groups, assignments
// and scores mutually consistent. Readers work on immutable snapshots.
package book

import (
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mrbobgradebook/easygrade/internal/model"
)

var (
	ErrEmptyName         = errors.New("name is empty")
	ErrReservedName      = errors.New("group name is reserved")
	ErrDuplicateGroup    = errors.New("group name already exists")
	ErrUnknownGroup      = errors.New("no such group")
	ErrUnknownSubject    = errors.New("no such subject")
	ErrUnknownStudent    = errors.New("no such student")
	ErrUnknownAssignment = errors.New("no such assignment")
	ErrRosterFull        = errors.New("student limit reached")
	ErrInvalidType       = errors.New("invalid assignment type")
	ErrInvalidWeight     = errors.New("weight must be between 0 and 100")
)

// Book is the owned, mutable gradebook state. All structural edits go through
// its methods; each either fully applies (including every cascade sub-edit)
// or returns an error with nothing written.
type Book struct {
	mu          sync.RWMutex
	subjects    []string
	maxStudents int
	data        model.Dataset
	lastID      int64
	changes     chan struct{}
}

// New wraps a loaded dataset. The dataset is normalized before use, and new
// record IDs are guaranteed to exceed every ID already present.
func New(data model.Dataset, subjects []string, maxStudents int) *Book {
	data.Normalize(subjects)
	b := &Book{
		subjects:    subjects,
		maxStudents: maxStudents,
		data:        data,
		changes:     make(chan struct{}, 1),
	}
	b.lastID = maxID(&b.data)
	return b
}

// Changes signals after every applied mutation. Signals are coalesced: a slow
// consumer sees at least one pending signal, not one per edit.
func (b *Book) Changes() <-chan struct{} {
	return b.changes
}

func (b *Book) notify() {
	select {
	case b.changes <- struct{}{}:
	default:
	}
}

// Subjects returns the configured subject list.
func (b *Book) Subjects() []string {
	return b.subjects
}

// Snapshot returns a deep copy of the dataset, safe for concurrent readers.
func (b *Book) Snapshot() model.Dataset {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.data.Clone()
}

// nextID issues a creation-time millisecond ID, bumped past the previous one
// when two records are created within the same millisecond.
func (b *Book) nextID() int64 {
	id := time.Now().UnixMilli()
	if id <= b.lastID {
		id = b.lastID + 1
	}
	b.lastID = id
	return id
}

func maxID(d *model.Dataset) int64 {
	var max int64
	for _, s := range d.Students {
		if s.ID > max {
			max = s.ID
		}
	}
	for _, a := range d.Assignments {
		if a.ID > max {
			max = a.ID
		}
	}
	return max
}

func (b *Book) hasGroup(name string) bool {
	for _, g := range b.data.Groups {
		if g == name {
			return true
		}
	}
	return false
}

func (b *Book) hasSubject(name string) bool {
	for _, s := range b.subjects {
		if s == name {
			return true
		}
	}
	return false
}

func validateGroupName(name string) error {
	if name == "" {
		return ErrEmptyName
	}
	if name == model.NoGroup || name == model.AllGroups {
		return ErrReservedName
	}
	return nil
}

// AddGroup appends a new group. The name must be non-empty, not reserved and
// not already taken (exact, case-sensitive match).
func (b *Book) AddGroup(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := validateGroupName(name); err != nil {
		return err
	}
	if b.hasGroup(name) {
		return ErrDuplicateGroup
	}
	b.data.Groups = append(b.data.Groups, name)
	b.notify()
	return nil
}

// RenameGroup renames a group everywhere in one step: the group set, every
// student enrollment and every assignment scope. A collision with a different
// existing group aborts with nothing written.
func (b *Book) RenameGroup(oldName, newName string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := validateGroupName(newName); err != nil {
		return err
	}
	if !b.hasGroup(oldName) {
		return ErrUnknownGroup
	}
	if newName == oldName {
		return nil
	}
	if b.hasGroup(newName) {
		return ErrDuplicateGroup
	}
	for i, g := range b.data.Groups {
		if g == oldName {
			b.data.Groups[i] = newName
		}
	}
	for i := range b.data.Students {
		for subject, g := range b.data.Students[i].Groups {
			if g == oldName {
				b.data.Students[i].Groups[subject] = newName
			}
		}
	}
	for i := range b.data.Assignments {
		if b.data.Assignments[i].Group == oldName {
			b.data.Assignments[i].Group = newName
		}
	}
	b.notify()
	return nil
}

// DeleteGroup removes a group. Students enrolled in it become unenrolled for
// the affected subjects; assignments scoped to it widen to AllGroups.
func (b *Book) DeleteGroup(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.hasGroup(name) {
		return ErrUnknownGroup
	}
	kept := b.data.Groups[:0]
	for _, g := range b.data.Groups {
		if g != name {
			kept = append(kept, g)
		}
	}
	b.data.Groups = kept
	for i := range b.data.Students {
		for subject, g := range b.data.Students[i].Groups {
			if g == name {
				delete(b.data.Students[i].Groups, subject)
			}
		}
	}
	for i := range b.data.Assignments {
		if b.data.Assignments[i].Group == name {
			b.data.Assignments[i].Group = model.AllGroups
		}
	}
	b.notify()
	return nil
}

// AddStudent appends a student with no enrollments. Fails with ErrRosterFull
// once the configured ceiling is reached.
func (b *Book) AddStudent(name string) (model.Student, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if name == "" {
		return model.Student{}, ErrEmptyName
	}
	if b.maxStudents > 0 && len(b.data.Students) >= b.maxStudents {
		return model.Student{}, ErrRosterFull
	}
	s := model.Student{
		ID:     b.nextID(),
		Name:   name,
		Groups: map[string]string{},
	}
	b.data.Students = append(b.data.Students, s)
	b.notify()
	return s, nil
}

// RenameStudent updates a student's display name.
func (b *Book) RenameStudent(id int64, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if name == "" {
		return ErrEmptyName
	}
	for i := range b.data.Students {
		if b.data.Students[i].ID == id {
			b.data.Students[i].Name = name
			b.notify()
			return nil
		}
	}
	return ErrUnknownStudent
}

// DeleteStudent removes a student together with their scores and report
// comment, so the persisted document does not accumulate orphaned keys.
func (b *Book) DeleteStudent(id int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	idx := -1
	for i := range b.data.Students {
		if b.data.Students[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrUnknownStudent
	}
	b.data.Students = append(b.data.Students[:idx], b.data.Students[idx+1:]...)
	prefix := strconv.FormatInt(id, 10) + "-"
	for key := range b.data.Grades {
		if strings.HasPrefix(key, prefix) {
			delete(b.data.Grades, key)
		}
	}
	delete(b.data.ReportComments, strconv.FormatInt(id, 10))
	b.notify()
	return nil
}

// SetStudentGroup enrolls a student in a group for one subject. Passing
// NoGroup (or an empty string) unenrolls instead.
func (b *Book) SetStudentGroup(studentID int64, subject, group string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.hasSubject(subject) {
		return ErrUnknownSubject
	}
	var student *model.Student
	for i := range b.data.Students {
		if b.data.Students[i].ID == studentID {
			student = &b.data.Students[i]
			break
		}
	}
	if student == nil {
		return ErrUnknownStudent
	}
	if group == "" || group == model.NoGroup {
		delete(student.Groups, subject)
		b.notify()
		return nil
	}
	if !b.hasGroup(group) {
		return ErrUnknownGroup
	}
	student.Groups[subject] = group
	b.notify()
	return nil
}

// AddAssignment creates an assignment for a subject. An empty group means
// AllGroups; an empty type means TypeAssignment; non-positive max points fall
// back to 100.
func (b *Book) AddAssignment(subject, name string, maxPoints float64, group string, typ model.AssignmentType) (model.Assignment, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if name == "" {
		return model.Assignment{}, ErrEmptyName
	}
	if !b.hasSubject(subject) {
		return model.Assignment{}, ErrUnknownSubject
	}
	if group == "" {
		group = model.AllGroups
	}
	if group != model.AllGroups && !b.hasGroup(group) {
		return model.Assignment{}, ErrUnknownGroup
	}
	if typ == "" {
		typ = model.TypeAssignment
	}
	if !typ.Valid() {
		return model.Assignment{}, ErrInvalidType
	}
	if maxPoints <= 0 {
		maxPoints = 100
	}
	a := model.Assignment{
		ID:        b.nextID(),
		Subject:   subject,
		Name:      name,
		MaxPoints: maxPoints,
		Date:      time.Now().Format("2006-01-02"),
		Group:     group,
		Type:      typ,
	}
	b.data.Assignments = append(b.data.Assignments, a)
	b.notify()
	return a, nil
}

// DeleteAssignment removes an assignment and every score recorded against it.
func (b *Book) DeleteAssignment(id int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	idx := -1
	for i := range b.data.Assignments {
		if b.data.Assignments[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrUnknownAssignment
	}
	b.data.Assignments = append(b.data.Assignments[:idx], b.data.Assignments[idx+1:]...)
	suffix := "-" + strconv.FormatInt(id, 10)
	for key := range b.data.Grades {
		if strings.HasSuffix(key, suffix) {
			delete(b.data.Grades, key)
		}
	}
	b.notify()
	return nil
}

// SetScore records a raw score string for a (student, assignment) pair. An
// empty value marks the cell cleared; it stays ungraded for the calculator.
func (b *Book) SetScore(studentID, assignmentID int64, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.hasStudent(studentID) {
		return ErrUnknownStudent
	}
	if !b.hasAssignment(assignmentID) {
		return ErrUnknownAssignment
	}
	b.data.Grades[model.ScoreKey(studentID, assignmentID)] = value
	b.notify()
	return nil
}

// SetComment stores a student's free-text report comment.
func (b *Book) SetComment(studentID int64, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.hasStudent(studentID) {
		return ErrUnknownStudent
	}
	b.data.ReportComments[strconv.FormatInt(studentID, 10)] = text
	b.notify()
	return nil
}

// SetSummativeWeight sets the summative percent; the formative percent is
// recomputed so the two always sum to 100.
func (b *Book) SetSummativeWeight(v int) error {
	if v < 0 || v > 100 {
		return ErrInvalidWeight
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data.Weights.SetSummative(v)
	b.notify()
	return nil
}

// SetFormativeWeight sets the formative percent; the summative percent is
// recomputed so the two always sum to 100.
func (b *Book) SetFormativeWeight(v int) error {
	if v < 0 || v > 100 {
		return ErrInvalidWeight
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data.Weights.SetFormative(v)
	b.notify()
	return nil
}

// Replace swaps in a whole dataset, as a backup restore or a remote snapshot
// does. The data is normalized and the ID counter advanced past its contents.
func (b *Book) Replace(data model.Dataset) {
	data.Normalize(b.subjects)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = data
	if id := maxID(&b.data); id > b.lastID {
		b.lastID = id
	}
	b.notify()
}

func (b *Book) hasStudent(id int64) bool {
	for i := range b.data.Students {
		if b.data.Students[i].ID == id {
			return true
		}
	}
	return false
}

func (b *Book) hasAssignment(id int64) bool {
	for i := range b.data.Assignments {
		if b.data.Assignments[i].ID == id {
			return true
		}
	}
	return false
}
