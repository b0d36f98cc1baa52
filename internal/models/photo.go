// Package models defines the domain types for metaedit.
package models

import (
	"fmt"
	"sort"
	"strings"
)

// Field names one of the custom metadata fields.
type Field string

// Custom metadata fields, in display order.
const (
	FieldPeople   Field = "people"
	FieldLocation Field = "location"
	FieldDate     Field = "date"
	FieldGroup    Field = "group"
	FieldComment  Field = "comment"
)

// Fields lists every custom metadata field in display order.
var Fields = []Field{FieldPeople, FieldLocation, FieldDate, FieldGroup, FieldComment}

// ParseField maps user input (case-insensitive) to a Field.
func ParseField(s string) (Field, error) {
	f := Field(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Fields {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown field %q", s)
}

// PeopleSet is a set of trimmed, non-empty person names.
// Membership is case-sensitive.
type PeopleSet map[string]struct{}

// NewPeopleSet builds a set from names, trimming each and dropping empties.
// The result is never nil, so an empty input yields a set-but-empty field.
func NewPeopleSet(names ...string) PeopleSet {
	s := make(PeopleSet, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		s[n] = struct{}{}
	}
	return s
}

// Names returns the members in sorted order.
func (s PeopleSet) Names() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Join renders the set as a single comma-space separated string.
func (s PeopleSet) Join() string {
	return strings.Join(s.Names(), ", ")
}

// Clone returns a copy; a nil set stays nil.
func (s PeopleSet) Clone() PeopleSet {
	if s == nil {
		return nil
	}
	out := make(PeopleSet, len(s))
	for n := range s {
		out[n] = struct{}{}
	}
	return out
}

// Record is the parsed custom metadata of one indexed photo.
//
// A nil People or nil string pointer means the field was never set.
// A non-nil empty value means it was set and explicitly cleared.
type Record struct {
	Path     string
	People   PeopleSet
	Location *string
	Date     *string
	Group    *string
	Comment  *string
}

// Clone returns a deep copy of r.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	return &Record{
		Path:     r.Path,
		People:   r.People.Clone(),
		Location: cloneString(r.Location),
		Date:     cloneString(r.Date),
		Group:    cloneString(r.Group),
		Comment:  cloneString(r.Comment),
	}
}

// Text returns a pointer to the string field f, or nil for FieldPeople.
func (r *Record) Text(f Field) *string {
	switch f {
	case FieldLocation:
		return r.Location
	case FieldDate:
		return r.Date
	case FieldGroup:
		return r.Group
	case FieldComment:
		return r.Comment
	}
	return nil
}

// SetText sets a string field. Setting FieldPeople parses value as a
// comma-separated list.
func (r *Record) SetText(f Field, value string) {
	value = strings.TrimSpace(value)
	switch f {
	case FieldPeople:
		r.People = NewPeopleSet(strings.Split(value, ",")...)
	case FieldLocation:
		r.Location = &value
	case FieldDate:
		r.Date = &value
	case FieldGroup:
		r.Group = &value
	case FieldComment:
		r.Comment = &value
	}
}

// Display returns the field rendered for humans, and whether it is set.
func (r *Record) Display(f Field) (string, bool) {
	if f == FieldPeople {
		if r.People == nil {
			return "", false
		}
		return r.People.Join(), true
	}
	p := r.Text(f)
	if p == nil {
		return "", false
	}
	return *p, true
}

// Str returns a pointer to s.
func Str(s string) *string { return &s }

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
