package executor

import (
	"bytes"
	"encoding/json"
	"errors"
)

// Shape is the top-level kind of a provider response.
type Shape int

const (
	ShapeSequence Shape = iota + 1 // JSON array of records
	ShapeKeyed                     // JSON object
	ShapeScalar                    // string, number, bool or null
)

func (s Shape) String() string {
	switch s {
	case ShapeSequence:
		return "sequence"
	case ShapeKeyed:
		return "keyed"
	case ShapeScalar:
		return "scalar"
	default:
		return "unknown"
	}
}

// Body is a parsed provider response. Exactly one of Records or Fields is
// populated, according to Shape.
type Body struct {
	shape   Shape
	records []json.RawMessage
	fields  map[string]json.RawMessage
}

var errInvalidJSON = errors.New("invalid JSON")

// ParseBody classifies data as a sequence, keyed map or scalar.
func ParseBody(data []byte) (Body, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || !json.Valid(trimmed) {
		return Body{}, errInvalidJSON
	}
	var b Body
	switch trimmed[0] {
	case '[':
		b.shape = ShapeSequence
		if err := json.Unmarshal(trimmed, &b.records); err != nil {
			return Body{}, err
		}
	case '{':
		b.shape = ShapeKeyed
		if err := json.Unmarshal(trimmed, &b.fields); err != nil {
			return Body{}, err
		}
	default:
		b.shape = ShapeScalar
	}
	return b, nil
}

func (b Body) Shape() Shape { return b.shape }

// Records returns the elements of a sequence body.
func (b Body) Records() []json.RawMessage { return b.records }

// Fields returns the members of a keyed body.
func (b Body) Fields() map[string]json.RawMessage { return b.fields }

