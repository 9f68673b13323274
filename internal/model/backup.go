package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidBackup marks a backup payload that cannot be restored.
var ErrInvalidBackup = errors.New("invalid backup payload")

// ParseBackup decodes a backup/restore payload. The students, assignments and
// grades keys must all be present or the payload is rejected before any state
// is touched; a restore replaces the whole dataset, it never merges.
func ParseBackup(data []byte) (Dataset, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return Dataset{}, fmt.Errorf("%w: %v", ErrInvalidBackup, err)
	}
	for _, key := range []string{"students", "assignments", "grades"} {
		if _, ok := probe[key]; !ok {
			return Dataset{}, fmt.Errorf("%w: missing %q", ErrInvalidBackup, key)
		}
	}
	var ds Dataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return Dataset{}, fmt.Errorf("%w: %v", ErrInvalidBackup, err)
	}
	return ds, nil
}
