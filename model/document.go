package model

import "encoding/json"

// JSONDocument is a mutable JSON tree held as raw bytes. Mutation happens by
// replacing Raw wholesale, which keeps the document format-native instead of
// round-tripping through map[string]interface{}.
type JSONDocument struct {
	Raw []byte
}

// NewJSONDocument wraps raw JSON bytes. An empty input becomes an empty object
// so writers always have a tree to extend.
func NewJSONDocument(raw []byte) *JSONDocument {
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	return &JSONDocument{Raw: raw}
}

// Bytes returns the current document bytes.
func (d *JSONDocument) Bytes() []byte {
	return d.Raw
}

func (d *JSONDocument) String() string {
	return string(d.Raw)
}

// IsValid reports whether the document currently holds well-formed JSON.
func (d *JSONDocument) IsValid() bool {
	return json.Valid(d.Raw)
}
