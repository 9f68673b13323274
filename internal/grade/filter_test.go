package grade

import (
	"testing"

	"github.com/mrbobgradebook/easygrade/internal/model"
)

func TestVisibleStudents(t *testing.T) {
	students := []model.Student{
		{ID: 1, Name: "Ava", Groups: map[string]string{"Math": "Block A"}},
		{ID: 2, Name: "Ben", Groups: map[string]string{"Math": "Block B"}},
		{ID: 3, Name: "Cal", Groups: map[string]string{}},
	}

	tests := []struct {
		name   string
		filter string
		want   []int64
	}{
		{"all shows enrolled only", model.AllGroups, []int64{1, 2}},
		{"specific group", "Block A", []int64{1}},
		{"no group filter", model.NoGroup, []int64{3}},
		{"unknown group", "Block C", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := VisibleStudents(students, "Math", tt.filter)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d students, want %d", len(got), len(tt.want))
			}
			for i, s := range got {
				if s.ID != tt.want[i] {
					t.Errorf("student[%d].ID = %d, want %d", i, s.ID, tt.want[i])
				}
			}
		})
	}
}

func TestVisibleStudentsExactMatch(t *testing.T) {
	// No case folding, no trimming.
	students := []model.Student{
		{ID: 1, Name: "Ava", Groups: map[string]string{"Math": "Block A"}},
	}
	if got := VisibleStudents(students, "Math", "block a"); len(got) != 0 {
		t.Errorf("case-folded filter matched %d students, want 0", len(got))
	}
	if got := VisibleStudents(students, "Math", "Block A "); len(got) != 0 {
		t.Errorf("untrimmed filter matched %d students, want 0", len(got))
	}
}

func TestVisibleAssignments(t *testing.T) {
	assignments := []model.Assignment{
		{ID: 10, Subject: "Math", Group: model.AllGroups},
		{ID: 11, Subject: "Math", Group: "Block A"},
		{ID: 12, Subject: "Math", Group: ""},
		{ID: 13, Subject: "ELA", Group: "Block A"},
	}

	tests := []struct {
		name   string
		filter string
		want   []int64
	}{
		{"all filter shows every math assignment", model.AllGroups, []int64{10, 11, 12}},
		{"group filter keeps unscoped plus own", "Block A", []int64{10, 11, 12}},
		{"other group hides scoped", "Block B", []int64{10, 12}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := VisibleAssignments(assignments, "Math", tt.filter)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d assignments, want %d", len(got), len(tt.want))
			}
			for i, a := range got {
				if a.ID != tt.want[i] {
					t.Errorf("assignment[%d].ID = %d, want %d", i, a.ID, tt.want[i])
				}
			}
		})
	}
}

func TestRelevant(t *testing.T) {
	assignments := []model.Assignment{
		{ID: 10, Subject: "Math", Group: model.AllGroups},
		{ID: 11, Subject: "Math", Group: "Block A"},
		{ID: 12, Subject: "Math", Group: "Block B"},
		{ID: 13, Subject: "ELA", Group: model.AllGroups},
	}

	got := Relevant(assignments, "Math", "Block A")
	want := []int64{10, 11}
	if len(got) != len(want) {
		t.Fatalf("got %d assignments, want %d", len(got), len(want))
	}
	for i, a := range got {
		if a.ID != want[i] {
			t.Errorf("assignment[%d].ID = %d, want %d", i, a.ID, want[i])
		}
	}
}
