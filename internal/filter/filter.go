// Package filter matches photo records against per-field criteria.
package filter

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/starford/metaedit/internal/models"
)

// Source is a read-only ordered view of indexed records.
type Source interface {
	Range(fn func(r *models.Record) bool)
}

// Criteria holds one predicate per field. An empty string or empty
// People list is a wildcard.
type Criteria struct {
	People   []string `json:"people,omitempty"`
	Location string   `json:"location,omitempty"`
	Date     string   `json:"date,omitempty"`
	Group    string   `json:"group,omitempty"`
	Comment  string   `json:"comment,omitempty"`
}

// IsWildcard reports whether c matches every record.
func (c Criteria) IsWildcard() bool {
	return len(c.People) == 0 && c.Location == "" && c.Date == "" && c.Group == "" && c.Comment == ""
}

// Set replaces the criterion for f from user text. Blank text resets the
// field to a wildcard.
func (c *Criteria) Set(f models.Field, text string) {
	text = strings.TrimSpace(text)
	switch f {
	case models.FieldPeople:
		c.People = ParsePeople(text)
	case models.FieldLocation:
		c.Location = text
	case models.FieldDate:
		c.Date = text
	case models.FieldGroup:
		c.Group = text
	case models.FieldComment:
		c.Comment = text
	}
}

// Normalize returns c with every criterion in the form Set produces:
// names and text trimmed, blank names dropped. Criteria decoded from
// JSON go through it before matching.
func (c Criteria) Normalize() Criteria {
	out := Criteria{
		Location: strings.TrimSpace(c.Location),
		Date:     strings.TrimSpace(c.Date),
		Group:    strings.TrimSpace(c.Group),
		Comment:  strings.TrimSpace(c.Comment),
	}
	for _, name := range c.People {
		if name = strings.TrimSpace(name); name != "" {
			out.People = append(out.People, name)
		}
	}
	return out
}

// Get returns the criterion for f as user text.
func (c Criteria) Get(f models.Field) string {
	switch f {
	case models.FieldPeople:
		return strings.Join(c.People, ", ")
	case models.FieldLocation:
		return c.Location
	case models.FieldDate:
		return c.Date
	case models.FieldGroup:
		return c.Group
	case models.FieldComment:
		return c.Comment
	}
	return ""
}

// ParsePeople splits a comma-separated list of names, trimming each and
// dropping empty ones.
func ParsePeople(text string) []string {
	var out []string
	for _, name := range strings.Split(text, ",") {
		if name = strings.TrimSpace(name); name != "" {
			out = append(out, name)
		}
	}
	return out
}

// Evaluate returns the paths of the records in src that satisfy every
// non-wildcard criterion, in src order.
func Evaluate(src Source, c Criteria) []string {
	m := newMatcher(c)
	out := []string{}
	src.Range(func(r *models.Record) bool {
		if m.match(r) {
			out = append(out, r.Path)
		}
		return true
	})
	return out
}

// Match reports whether r satisfies c.
func Match(r *models.Record, c Criteria) bool {
	return newMatcher(c).match(r)
}

// matcher holds criteria already lower-cased. It owns a Caser, which is
// not safe for concurrent use.
type matcher struct {
	lower  cases.Caser
	people []string
	text   map[models.Field]string
}

func newMatcher(c Criteria) *matcher {
	c = c.Normalize()
	m := &matcher{
		lower: cases.Lower(language.Und),
		text:  make(map[models.Field]string, 4),
	}
	for _, p := range c.People {
		m.people = append(m.people, m.key(p))
	}
	for _, f := range []models.Field{models.FieldLocation, models.FieldDate, models.FieldGroup, models.FieldComment} {
		if v := c.Get(f); v != "" {
			m.text[f] = m.key(v)
		}
	}
	return m
}

// key lower-cases s for case-insensitive comparison.
func (m *matcher) key(s string) string {
	return m.lower.String(s)
}

func (m *matcher) match(r *models.Record) bool {
	for f, want := range m.text {
		v := r.Text(f)
		if v == nil || !strings.Contains(m.key(*v), want) {
			return false
		}
	}
	if len(m.people) == 0 {
		return true
	}
	if r.People == nil {
		return false
	}
	have := make(map[string]struct{}, len(r.People))
	for name := range r.People {
		have[m.key(name)] = struct{}{}
	}
	for _, want := range m.people {
		if _, ok := have[want]; !ok {
			return false
		}
	}
	return true
}
