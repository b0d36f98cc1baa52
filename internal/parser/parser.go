// Package parser converts the structured description payload embedded in
// a photo to and from record fields.
package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf16"

	"github.com/starford/metaedit/internal/models"
)

// ErrMalformed is returned when the description is not a JSON object.
// Legacy free-text descriptions fall in this category.
var ErrMalformed = errors.New("malformed payload")

// Payload is a parsed description.
type Payload struct {
	// Record holds the known fields; Path is left empty.
	Record *models.Record
	// Extra holds keys this schema does not know. They are carried
	// through unchanged by Render.
	Extra map[string]json.RawMessage
	// Skipped lists known keys whose value had an unusable type.
	Skipped []string
}

// Parse decodes description text. Blank text yields an empty payload.
func Parse(text string) (*Payload, error) {
	p := &Payload{Record: &models.Record{}}
	text = strings.TrimSpace(text)
	if text == "" {
		return p, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if raw == nil {
		// Literal null.
		return nil, fmt.Errorf("%w: not an object", ErrMalformed)
	}

	for key, val := range raw {
		field, err := models.ParseField(key)
		if err != nil || string(field) != key {
			if p.Extra == nil {
				p.Extra = make(map[string]json.RawMessage)
			}
			p.Extra[key] = val
			continue
		}
		if !assign(p.Record, field, val) {
			p.Skipped = append(p.Skipped, key)
		}
	}
	return p, nil
}

// assign sets field from a raw JSON value and reports whether the value
// was usable.
func assign(r *models.Record, field models.Field, val json.RawMessage) bool {
	if bytes.Equal(bytes.TrimSpace(val), []byte("null")) {
		return true
	}
	var s string
	if err := json.Unmarshal(val, &s); err == nil {
		r.SetText(field, s)
		return true
	}
	if field == models.FieldPeople {
		// Older writers stored people as a JSON array.
		var list []string
		if err := json.Unmarshal(val, &list); err == nil {
			r.People = models.NewPeopleSet(list...)
			return true
		}
	}
	return false
}

// Render serializes r into description text. Unset fields are omitted;
// fields cleared to empty are written as "". Keys are emitted in sorted
// order and non-ASCII characters are escaped, so equal inputs always
// render to identical bytes.
func Render(r *models.Record, extra map[string]json.RawMessage) (string, error) {
	out := make(map[string]json.RawMessage, len(extra)+len(models.Fields))
	for k, v := range extra {
		if _, err := models.ParseField(k); err == nil && strings.ToLower(k) == k {
			continue
		}
		out[k] = v
	}
	for _, f := range models.Fields {
		v, ok := r.Display(f)
		if !ok {
			continue
		}
		enc, err := marshal(v)
		if err != nil {
			return "", fmt.Errorf("parser: encode %s: %w", f, err)
		}
		out[string(f)] = enc
	}

	enc, err := marshal(out)
	if err != nil {
		return "", fmt.Errorf("parser: encode payload: %w", err)
	}
	return asciiEscape(enc), nil
}

func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	e := json.NewEncoder(&buf)
	e.SetEscapeHTML(false)
	if err := e.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// asciiEscape rewrites every non-ASCII rune of a JSON document as a
// \uXXXX escape. Non-ASCII can only occur inside string literals, where
// the escape is equivalent.
func asciiEscape(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b))
	for _, r := range string(b) {
		if r < 0x80 {
			sb.WriteRune(r)
			continue
		}
		if r > 0xFFFF {
			r1, r2 := utf16.EncodeRune(r)
			fmt.Fprintf(&sb, `\u%04x\u%04x`, r1, r2)
			continue
		}
		fmt.Fprintf(&sb, `\u%04x`, r)
	}
	return sb.String()
}
