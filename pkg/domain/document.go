package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Document is a record in its stored wire form. Data always carries the "id"
// field so decoded records are self-describing.
type Document struct {
	Collection Collection      `json:"collection"`
	ID         string          `json:"id"`
	Data       json.RawMessage `json:"data"`
}

// Patch is a partial update with merge semantics: top-level keys replace the
// stored value, nil stores JSON null.
type Patch map[string]any

// Kind resolves the discriminant of the document from its collection.
func (d Document) Kind() Kind { return d.Collection.Kind() }

// Field returns the raw JSON value of a top-level field.
func (d Document) Field(name string) (json.RawMessage, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(d.Data, &fields); err != nil {
		return nil, false
	}
	raw, ok := fields[name]
	return raw, ok
}

// Matches reports whether the field equals value, comparing canonical JSON.
// Array fields match when any element equals value.
func (d Document) Matches(field string, value any) bool {
	raw, ok := d.Field(field)
	if !ok {
		return false
	}
	want, err := json.Marshal(value)
	if err != nil {
		return false
	}
	if jsonEqual(raw, want) {
		return true
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return false
	}
	for _, elem := range elems {
		if jsonEqual(elem, want) {
			return true
		}
	}
	return false
}

func jsonEqual(a, b []byte) bool {
	var ca, cb bytes.Buffer
	if err := json.Compact(&ca, a); err != nil {
		return false
	}
	if err := json.Compact(&cb, b); err != nil {
		return false
	}
	return bytes.Equal(ca.Bytes(), cb.Bytes())
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	cp := d
	if d.Data != nil {
		cp.Data = append(json.RawMessage(nil), d.Data...)
	}
	return cp
}

// Decode unmarshals a document into its typed record.
func Decode[T any](doc Document) (T, error) {
	var out T
	if err := json.Unmarshal(doc.Data, &out); err != nil {
		return out, fmt.Errorf("decode %s %q: %w", doc.Collection, doc.ID, err)
	}
	return out, nil
}

// DecodeAll decodes every document, skipping malformed entries. Derivations
// are total over their inputs, so a corrupt document must not poison a view.
func DecodeAll[T any](docs []Document) []T {
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		v, err := Decode[T](doc)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

// Encode converts a typed record or a Patch into a field map.
func Encode(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("encode: record must be an object: %w", err)
	}
	return fields, nil
}

// MergePatch applies p over raw and returns the merged document body.
func MergePatch(raw json.RawMessage, p Patch) (json.RawMessage, error) {
	fields := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("merge patch: %w", err)
		}
	}
	for k, v := range p {
		fields[k] = v
	}
	return json.Marshal(fields)
}
