package model

import (
	"encoding/json"
	"maps"
	"slices"
)

// Dataset is the whole gradebook aggregate: the unit of persistence. Grades
// maps ScoreKey(studentID, assignmentID) to a raw score string; an empty
// string means the cell was cleared. ReportComments is keyed by student ID.
type Dataset struct {
	Students       []Student         `json:"students"`
	Groups         []string          `json:"groups"`
	Assignments    []Assignment      `json:"assignments"`
	Grades         map[string]string `json:"grades"`
	ReportComments map[string]string `json:"reportComments"`
	Weights        Weights           `json:"weights"`
	LastUpdated    string            `json:"lastUpdated,omitempty"`
}

// Default returns the empty-but-valid dataset used on first sign-in.
func Default() Dataset {
	return Dataset{
		Students:       []Student{},
		Groups:         []string{"Block A"},
		Assignments:    []Assignment{},
		Grades:         map[string]string{},
		ReportComments: map[string]string{},
		Weights:        DefaultWeights(),
	}
}

// Normalize fills missing collections, restores the weight invariant and
// upgrades legacy single-group student records by applying the old group to
// the first configured subject. Safe to call on any loaded or imported data.
func (d *Dataset) Normalize(subjects []string) {
	if d.Students == nil {
		d.Students = []Student{}
	}
	if d.Groups == nil {
		d.Groups = []string{"General"}
	}
	if d.Assignments == nil {
		d.Assignments = []Assignment{}
	}
	if d.Grades == nil {
		d.Grades = map[string]string{}
	}
	if d.ReportComments == nil {
		d.ReportComments = map[string]string{}
	}
	if d.Weights.Summative == 0 && d.Weights.Formative == 0 {
		d.Weights = DefaultWeights()
	} else {
		d.Weights.SetSummative(d.Weights.Summative)
	}
	for i := range d.Students {
		s := &d.Students[i]
		if s.Groups == nil {
			s.Groups = map[string]string{}
			if s.LegacyGroup != "" && len(subjects) > 0 {
				s.Groups[subjects[0]] = s.LegacyGroup
			}
		}
		s.LegacyGroup = ""
	}
}

// Clone returns a deep copy of the dataset.
func (d Dataset) Clone() Dataset {
	out := d
	out.Students = make([]Student, len(d.Students))
	for i, s := range d.Students {
		s.Groups = maps.Clone(s.Groups)
		out.Students[i] = s
	}
	out.Groups = slices.Clone(d.Groups)
	out.Assignments = slices.Clone(d.Assignments)
	out.Grades = maps.Clone(d.Grades)
	out.ReportComments = maps.Clone(d.ReportComments)
	return out
}

// Canonical returns the serialization used for change detection: the persisted
// collections without the lastUpdated stamp, so a write's own echo compares
// equal to what was written.
func (d Dataset) Canonical() ([]byte, error) {
	type canonical struct {
		Students       []Student         `json:"students"`
		Groups         []string          `json:"groups"`
		Assignments    []Assignment      `json:"assignments"`
		Grades         map[string]string `json:"grades"`
		ReportComments map[string]string `json:"reportComments"`
		Weights        Weights           `json:"weights"`
	}
	return json.Marshal(canonical{
		Students:       d.Students,
		Groups:         d.Groups,
		Assignments:    d.Assignments,
		Grades:         d.Grades,
		ReportComments: d.ReportComments,
		Weights:        d.Weights,
	})
}
