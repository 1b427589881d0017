// Package validate normalizes and checks user supplied wishlist, item and
// profile fields. Each entity has an explicit ordered list of field rules.
package validate

import (
	"sort"
	"strings"
)

// NonField is the key used for errors that concern the input as a whole
const NonField = "__all__"

// Errors maps field names to their messages
type Errors struct {
	Fields map[string][]string `json:"errors"`
}

// Add records msg for field
func (e *Errors) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], msg)
}

// Has reports whether field has at least one error
func (e *Errors) Has(field string) bool {
	return len(e.Fields[field]) > 0
}

// Empty reports whether no error was recorded
func (e *Errors) Empty() bool {
	return len(e.Fields) == 0
}

// Err returns e as an error, or nil when empty
func (e *Errors) Err() error {
	if e.Empty() {
		return nil
	}
	return e
}

func (e *Errors) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(e.Fields[k], "; "))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}
