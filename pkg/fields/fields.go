// Package fields holds the known bus fields and their display names.
package fields

import (
	"errors"
	"fmt"
)

var ErrUnknownField = errors.New("unknown field")

// Field describes a bus field.
type Field struct {
	ID   int
	Name string
}

// Registry maps field ids to fields.
type Registry struct {
	fields map[int]Field
}

// New creates a registry of the given fields. Duplicate ids are rejected.
func New(fields ...Field) (*Registry, error) {
	r := &Registry{fields: make(map[int]Field, len(fields))}
	for _, f := range fields {
		if _, ok := r.fields[f.ID]; ok {
			return nil, fmt.Errorf("duplicate field %d", f.ID)
		}
		r.fields[f.ID] = f
	}
	return r, nil
}

// Get returns the field with the given id.
func (r *Registry) Get(id int) (Field, bool) {
	f, ok := r.fields[id]
	return f, ok
}

// DisplayName returns the name of field id.
func (r *Registry) DisplayName(id int) (string, error) {
	f, ok := r.fields[id]
	if !ok {
		return "", fmt.Errorf("%w %d", ErrUnknownField, id)
	}
	return f.Name, nil
}

// Len returns the number of fields.
func (r *Registry) Len() int {
	return len(r.fields)
}
