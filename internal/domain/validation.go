package domain

import (
	"sort"
	"strings"
)

// ValidationErrors collects messages per input field.
type ValidationErrors map[string][]string

func (v ValidationErrors) Add(field, msg string) {
	v[field] = append(v[field], msg)
}

func (v ValidationErrors) Has(field string) bool {
	return len(v[field]) > 0
}

// Err returns v as an error, or nil when nothing was collected.
func (v ValidationErrors) Err() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		for _, msg := range v[f] {
			parts = append(parts, f+" "+msg)
		}
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
