package book

import (
	"bytes"
	"errors"
	"testing"

	"github.com/mrbobgradebook/easygrade/internal/model"
)

var testSubjects = []string{"Math", "ELA"}

func newTestBook(t *testing.T, ds model.Dataset) *Book {
	t.Helper()
	return New(ds, testSubjects, 40)
}

func seededDataset() model.Dataset {
	return model.Dataset{
		Students: []model.Student{
			{ID: 1, Name: "Ava", Groups: map[string]string{"Math": "Block A", "ELA": "Block A"}},
			{ID: 2, Name: "Ben", Groups: map[string]string{"Math": "Block B"}},
		},
		Groups: []string{"Block A", "Block B"},
		Assignments: []model.Assignment{
			{ID: 10, Subject: "Math", Name: "Quiz 1", MaxPoints: 10, Group: "Block A", Type: model.TypeQuiz},
			{ID: 11, Subject: "Math", Name: "HW 1", MaxPoints: 20, Group: model.AllGroups, Type: model.TypeHomework},
		},
		Grades: map[string]string{
			model.ScoreKey(1, 10): "8",
			model.ScoreKey(1, 11): "18",
			model.ScoreKey(2, 11): "15",
		},
		ReportComments: map[string]string{"1": "Great start."},
		Weights:        model.DefaultWeights(),
	}
}

func TestAddGroupValidation(t *testing.T) {
	b := newTestBook(t, seededDataset())

	tests := []struct {
		name    string
		group   string
		wantErr error
	}{
		{"empty", "", ErrEmptyName},
		{"reserved no group", model.NoGroup, ErrReservedName},
		{"reserved all", model.AllGroups, ErrReservedName},
		{"duplicate", "Block A", ErrDuplicateGroup},
		{"ok", "Block C", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := b.AddGroup(tt.group)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("AddGroup(%q) = %v, want %v", tt.group, err, tt.wantErr)
			}
		})
	}
}

func TestRenameGroupCascade(t *testing.T) {
	b := newTestBook(t, seededDataset())

	if err := b.RenameGroup("Block A", "Red"); err != nil {
		t.Fatalf("RenameGroup: %v", err)
	}

	ds := b.Snapshot()
	for _, g := range ds.Groups {
		if g == "Block A" {
			t.Error("old group name still in group set")
		}
	}
	for _, s := range ds.Students {
		for subject, g := range s.Groups {
			if g == "Block A" {
				t.Errorf("student %s still enrolled in old name for %s", s.Name, subject)
			}
		}
	}
	for _, a := range ds.Assignments {
		if a.Group == "Block A" {
			t.Errorf("assignment %s still scoped to old name", a.Name)
		}
	}
	if ds.Students[0].Groups["Math"] != "Red" {
		t.Errorf("enrollment = %q, want Red", ds.Students[0].Groups["Math"])
	}
	if ds.Assignments[0].Group != "Red" {
		t.Errorf("assignment scope = %q, want Red", ds.Assignments[0].Group)
	}
}

func TestRenameGroupRoundTrip(t *testing.T) {
	b := newTestBook(t, seededDataset())
	before, err := b.Snapshot().Canonical()
	if err != nil {
		t.Fatalf("Canonical: %v", err)
	}

	if err := b.RenameGroup("Block A", "Red"); err != nil {
		t.Fatalf("rename forward: %v", err)
	}
	if err := b.RenameGroup("Red", "Block A"); err != nil {
		t.Fatalf("rename back: %v", err)
	}

	after, err := b.Snapshot().Canonical()
	if err != nil {
		t.Fatalf("Canonical: %v", err)
	}
	if !bytes.Equal(before, after) {
		t.Errorf("round-trip rename changed dataset:\nbefore %s\nafter  %s", before, after)
	}
}

func TestRenameGroupCollisionAborts(t *testing.T) {
	b := newTestBook(t, seededDataset())
	before, _ := b.Snapshot().Canonical()

	err := b.RenameGroup("Block A", "Block B")
	if !errors.Is(err, ErrDuplicateGroup) {
		t.Fatalf("RenameGroup collision = %v, want ErrDuplicateGroup", err)
	}

	after, _ := b.Snapshot().Canonical()
	if !bytes.Equal(before, after) {
		t.Error("aborted rename left a partial mutation")
	}
}

func TestRenameGroupSameNameNoOp(t *testing.T) {
	b := newTestBook(t, seededDataset())
	if err := b.RenameGroup("Block A", "Block A"); err != nil {
		t.Errorf("same-name rename = %v, want nil", err)
	}
}

func TestDeleteGroupCascade(t *testing.T) {
	b := newTestBook(t, seededDataset())

	if err := b.DeleteGroup("Block A"); err != nil {
		t.Fatalf("DeleteGroup: %v", err)
	}

	ds := b.Snapshot()
	for _, g := range ds.Groups {
		if g == "Block A" {
			t.Error("deleted group still in group set")
		}
	}
	// Enrolled students become unenrolled, not deleted.
	if len(ds.Students) != 2 {
		t.Fatalf("student count = %d, want 2", len(ds.Students))
	}
	if _, ok := ds.Students[0].Groups["Math"]; ok {
		t.Error("student still enrolled in deleted group")
	}
	// Scoped assignments widen to AllGroups, not deleted.
	if len(ds.Assignments) != 2 {
		t.Fatalf("assignment count = %d, want 2", len(ds.Assignments))
	}
	if ds.Assignments[0].Group != model.AllGroups {
		t.Errorf("assignment scope = %q, want %q", ds.Assignments[0].Group, model.AllGroups)
	}
}

func TestDeleteAssignmentPurgesScores(t *testing.T) {
	b := newTestBook(t, seededDataset())

	if err := b.DeleteAssignment(11); err != nil {
		t.Fatalf("DeleteAssignment: %v", err)
	}

	ds := b.Snapshot()
	if len(ds.Assignments) != 1 {
		t.Fatalf("assignment count = %d, want 1", len(ds.Assignments))
	}
	if _, ok := ds.Grades[model.ScoreKey(1, 11)]; ok {
		t.Error("score for deleted assignment survived")
	}
	if _, ok := ds.Grades[model.ScoreKey(2, 11)]; ok {
		t.Error("score for deleted assignment survived")
	}
	if _, ok := ds.Grades[model.ScoreKey(1, 10)]; !ok {
		t.Error("unrelated score was purged")
	}
}

func TestDeleteStudentPurgesScoresAndComment(t *testing.T) {
	b := newTestBook(t, seededDataset())

	if err := b.DeleteStudent(1); err != nil {
		t.Fatalf("DeleteStudent: %v", err)
	}

	ds := b.Snapshot()
	if len(ds.Students) != 1 || ds.Students[0].ID != 2 {
		t.Fatalf("students = %+v, want only ID 2", ds.Students)
	}
	for key := range ds.Grades {
		if key != model.ScoreKey(2, 11) {
			t.Errorf("unexpected surviving score key %q", key)
		}
	}
	if _, ok := ds.ReportComments["1"]; ok {
		t.Error("report comment for deleted student survived")
	}
}

func TestAddStudentCapacity(t *testing.T) {
	b := New(model.Dataset{}, testSubjects, 2)

	if _, err := b.AddStudent("Ava"); err != nil {
		t.Fatalf("AddStudent 1: %v", err)
	}
	if _, err := b.AddStudent("Ben"); err != nil {
		t.Fatalf("AddStudent 2: %v", err)
	}
	if _, err := b.AddStudent("Cal"); !errors.Is(err, ErrRosterFull) {
		t.Errorf("AddStudent over capacity = %v, want ErrRosterFull", err)
	}
}

func TestAddStudentUniqueIDs(t *testing.T) {
	b := newTestBook(t, model.Dataset{})

	seen := map[int64]bool{}
	for i := 0; i < 5; i++ {
		s, err := b.AddStudent("Student")
		if err != nil {
			t.Fatalf("AddStudent: %v", err)
		}
		if seen[s.ID] {
			t.Fatalf("duplicate ID %d", s.ID)
		}
		seen[s.ID] = true
	}
}

func TestSetStudentGroup(t *testing.T) {
	b := newTestBook(t, seededDataset())

	if err := b.SetStudentGroup(2, "ELA", "Block A"); err != nil {
		t.Fatalf("enroll: %v", err)
	}
	if got := b.Snapshot().Students[1].Groups["ELA"]; got != "Block A" {
		t.Errorf("enrollment = %q, want Block A", got)
	}

	// NoGroup unenrolls rather than storing the sentinel.
	if err := b.SetStudentGroup(2, "ELA", model.NoGroup); err != nil {
		t.Fatalf("unenroll: %v", err)
	}
	if _, ok := b.Snapshot().Students[1].Groups["ELA"]; ok {
		t.Error("sentinel enrollment was stored")
	}

	if err := b.SetStudentGroup(2, "Art", "Block A"); !errors.Is(err, ErrUnknownSubject) {
		t.Errorf("unknown subject = %v, want ErrUnknownSubject", err)
	}
	if err := b.SetStudentGroup(2, "Math", "Block Z"); !errors.Is(err, ErrUnknownGroup) {
		t.Errorf("unknown group = %v, want ErrUnknownGroup", err)
	}
}

func TestAddAssignmentDefaults(t *testing.T) {
	b := newTestBook(t, seededDataset())

	a, err := b.AddAssignment("Math", "Pop Quiz", 0, "", "")
	if err != nil {
		t.Fatalf("AddAssignment: %v", err)
	}
	if a.Group != model.AllGroups {
		t.Errorf("group = %q, want %q", a.Group, model.AllGroups)
	}
	if a.Type != model.TypeAssignment {
		t.Errorf("type = %q, want %q", a.Type, model.TypeAssignment)
	}
	if a.MaxPoints != 100 {
		t.Errorf("maxPoints = %v, want 100", a.MaxPoints)
	}
	if a.Date == "" {
		t.Error("date not stamped")
	}
}

func TestAddAssignmentValidation(t *testing.T) {
	b := newTestBook(t, seededDataset())

	if _, err := b.AddAssignment("Math", "", 10, "", model.TypeQuiz); !errors.Is(err, ErrEmptyName) {
		t.Errorf("empty name = %v, want ErrEmptyName", err)
	}
	if _, err := b.AddAssignment("Art", "Quiz", 10, "", model.TypeQuiz); !errors.Is(err, ErrUnknownSubject) {
		t.Errorf("unknown subject = %v, want ErrUnknownSubject", err)
	}
	if _, err := b.AddAssignment("Math", "Quiz", 10, "Block Z", model.TypeQuiz); !errors.Is(err, ErrUnknownGroup) {
		t.Errorf("unknown group = %v, want ErrUnknownGroup", err)
	}
	if _, err := b.AddAssignment("Math", "Quiz", 10, "", "Midterm"); !errors.Is(err, ErrInvalidType) {
		t.Errorf("invalid type = %v, want ErrInvalidType", err)
	}
}

func TestWeightInvariant(t *testing.T) {
	b := newTestBook(t, seededDataset())

	for _, v := range []int{0, 30, 55, 100} {
		if err := b.SetSummativeWeight(v); err != nil {
			t.Fatalf("SetSummativeWeight(%d): %v", v, err)
		}
		w := b.Snapshot().Weights
		if w.Summative+w.Formative != 100 {
			t.Errorf("after SetSummativeWeight(%d): %d+%d != 100", v, w.Summative, w.Formative)
		}
		if err := b.SetFormativeWeight(v); err != nil {
			t.Fatalf("SetFormativeWeight(%d): %v", v, err)
		}
		w = b.Snapshot().Weights
		if w.Summative+w.Formative != 100 {
			t.Errorf("after SetFormativeWeight(%d): %d+%d != 100", v, w.Summative, w.Formative)
		}
	}

	if err := b.SetSummativeWeight(101); !errors.Is(err, ErrInvalidWeight) {
		t.Errorf("out-of-range weight = %v, want ErrInvalidWeight", err)
	}
	if err := b.SetFormativeWeight(-1); !errors.Is(err, ErrInvalidWeight) {
		t.Errorf("negative weight = %v, want ErrInvalidWeight", err)
	}
}

func TestSetScoreValidation(t *testing.T) {
	b := newTestBook(t, seededDataset())

	if err := b.SetScore(999, 10, "5"); !errors.Is(err, ErrUnknownStudent) {
		t.Errorf("unknown student = %v, want ErrUnknownStudent", err)
	}
	if err := b.SetScore(1, 999, "5"); !errors.Is(err, ErrUnknownAssignment) {
		t.Errorf("unknown assignment = %v, want ErrUnknownAssignment", err)
	}
	if err := b.SetScore(1, 10, ""); err != nil {
		t.Errorf("clearing a score = %v, want nil", err)
	}
	if got := b.Snapshot().Grades[model.ScoreKey(1, 10)]; got != "" {
		t.Errorf("cleared score = %q, want empty", got)
	}
}

func TestChangesCoalesce(t *testing.T) {
	b := newTestBook(t, seededDataset())

	// Several edits with no consumer: the channel holds one pending signal.
	for i := 0; i < 3; i++ {
		if err := b.SetScore(1, 10, "9"); err != nil {
			t.Fatalf("SetScore: %v", err)
		}
	}

	select {
	case <-b.Changes():
	default:
		t.Fatal("no change signal pending")
	}
	select {
	case <-b.Changes():
		t.Fatal("signals were not coalesced")
	default:
	}
}

func TestSnapshotIsolation(t *testing.T) {
	b := newTestBook(t, seededDataset())

	snap := b.Snapshot()
	snap.Students[0].Name = "Changed"
	snap.Grades[model.ScoreKey(1, 10)] = "0"
	snap.Students[0].Groups["Math"] = "Block B"

	ds := b.Snapshot()
	if ds.Students[0].Name != "Ava" {
		t.Error("snapshot mutation leaked into book state")
	}
	if ds.Grades[model.ScoreKey(1, 10)] != "8" {
		t.Error("snapshot grade mutation leaked into book state")
	}
	if ds.Students[0].Groups["Math"] != "Block A" {
		t.Error("snapshot enrollment mutation leaked into book state")
	}
}

func TestReplaceAdvancesIDs(t *testing.T) {
	b := newTestBook(t, model.Dataset{})

	b.Replace(seededDataset())
	s, err := b.AddStudent("New")
	if err != nil {
		t.Fatalf("AddStudent: %v", err)
	}
	if s.ID <= 11 {
		t.Errorf("new ID %d not past replaced dataset's IDs", s.ID)
	}
}
