package grade

import "github.com/mrbobgradebook/easygrade/internal/model"

// Group matching is exact string equality everywhere in this file: no case
// folding, no trimming. The calculator and every listing surface must agree
// byte for byte on which assignments are in scope.

// VisibleStudents returns the students listed for a subject under a group
// filter. With the AllGroups filter, only enrolled students appear; with a
// specific group, only its members.
func VisibleStudents(students []model.Student, subject, groupFilter string) []model.Student {
	var out []model.Student
	for _, s := range students {
		g := s.Group(subject)
		if groupFilter == model.AllGroups {
			if g != model.NoGroup {
				out = append(out, s)
			}
		} else if g == groupFilter {
			out = append(out, s)
		}
	}
	return out
}

// VisibleAssignments returns the assignments listed for a subject under a
// group filter. Unscoped assignments (empty or AllGroups scope) always show.
func VisibleAssignments(assignments []model.Assignment, subject, groupFilter string) []model.Assignment {
	var out []model.Assignment
	for _, a := range assignments {
		if a.Subject != subject {
			continue
		}
		if groupFilter == model.AllGroups || a.Group == "" || a.Group == model.AllGroups || a.Group == groupFilter {
			out = append(out, a)
		}
	}
	return out
}

// Relevant returns the assignments that count toward a student's grade: the
// subject matches and the scope is AllGroups, empty, or the student's own
// group.
func Relevant(assignments []model.Assignment, subject, group string) []model.Assignment {
	var out []model.Assignment
	for _, a := range assignments {
		if a.Subject != subject {
			continue
		}
		if a.Group == "" || a.Group == model.AllGroups || a.Group == group {
			out = append(out, a)
		}
	}
	return out
}
