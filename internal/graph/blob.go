package graph

import (
	"bytes"
	"fmt"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
)

// blob is an immutable byte payload. The engine never interprets it beyond
// equality; by convention producers store JSON so tooling can query it.
type blob struct {
	raw []byte
}

func newBlob(raw []byte) blob {
	if len(raw) == 0 {
		return blob{}
	}
	return blob{raw: bytes.Clone(raw)}
}

func blobFromValue(v any) blob {
	if v == nil {
		return blob{}
	}
	// Sorted keys keep equal values byte-equal, which is what the differ compares.
	return blob{raw: []byte(oj.JSON(v, &oj.Options{Sort: true}))}
}

func (b blob) equal(o blob) bool {
	return bytes.Equal(b.raw, o.raw)
}

func (b blob) query(path string) ([]any, error) {
	if len(b.raw) == 0 {
		return nil, nil
	}
	x, err := jp.ParseString(path)
	if err != nil {
		return nil, fmt.Errorf("invalid jsonpath '%s': %w", path, err)
	}
	data, err := oj.Parse(b.raw)
	if err != nil {
		return nil, fmt.Errorf("blob is not JSON: %w", err)
	}
	return x.Get(data), nil
}

// Bytes returns a copy of the payload.
func (b blob) Bytes() []byte { return bytes.Clone(b.raw) }

// Len returns the payload size in bytes.
func (b blob) Len() int { return len(b.raw) }

// IsEmpty reports whether the payload is empty.
func (b blob) IsEmpty() bool { return len(b.raw) == 0 }

func (b blob) String() string { return string(b.raw) }

// Props is the opaque, immutable property blob attached to a node.
type Props struct{ blob }

// NewProps copies raw into a new property blob.
func NewProps(raw []byte) Props { return Props{newBlob(raw)} }

// PropsOf encodes v as canonical JSON.
func PropsOf(v any) Props { return Props{blobFromValue(v)} }

// Equal reports whether both blobs hold the same bytes.
func (p Props) Equal(o Props) bool { return p.equal(o.blob) }

// Query evaluates a JSONPath expression against the props, e.g. "$.style.width".
func (p Props) Query(path string) ([]any, error) { return p.query(path) }

// State is the opaque, immutable state blob attached to a node.
type State struct{ blob }

// NewState copies raw into a new state blob.
func NewState(raw []byte) State { return State{newBlob(raw)} }

// StateOf encodes v as canonical JSON.
func StateOf(v any) State { return State{blobFromValue(v)} }

// Equal reports whether both blobs hold the same bytes.
func (s State) Equal(o State) bool { return s.equal(o.blob) }

// Query evaluates a JSONPath expression against the state.
func (s State) Query(path string) ([]any, error) { return s.query(path) }

// ParseProps canonicalizes a JSON document into a property blob.
func ParseProps(raw []byte) (Props, error) {
	v, err := parseJSON(raw)
	if err != nil {
		return Props{}, err
	}
	return PropsOf(v), nil
}

// ParseState canonicalizes a JSON document into a state blob.
func ParseState(raw []byte) (State, error) {
	v, err := parseJSON(raw)
	if err != nil {
		return State{}, err
	}
	return StateOf(v), nil
}

func parseJSON(raw []byte) (any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	v, err := oj.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse blob: %w", err)
	}
	return v, nil
}
