package jspon

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Marshal collapses an entry and encodes the document as UTF-8 JSON bytes.
//
// encoding/json writes map keys in sorted order, which gives the canonical
// key ordering for on-disk documents. With pretty set, the output is
// indented for human consumption; the byte layout changes, the semantics do
// not.
func Marshal(entry *Entry, pretty bool) ([]byte, error) {
	doc, err := Collapse(entry)
	if err != nil {
		return nil, err
	}

	if pretty {
		return json.MarshalIndent(doc, "", "  ")
	}

	return json.Marshal(doc)
}

// Unmarshal decodes UTF-8 JSON bytes into a document tree and expands it.
//
// Numbers decode as [json.Number] so numeric payloads survive the byte
// round trip without float coercion. Trailing garbage after the document is
// rejected as [ErrMalformedDocument].
func Unmarshal(data []byte, extra ExtraAttrs) (*Entry, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any

	err := dec.Decode(&raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedDocument, err)
	}

	// A document is exactly one JSON value.
	err = dec.Decode(new(any))
	if !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after document", ErrMalformedDocument)
	}

	doc, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: top-level value must be an object, got %T", ErrMalformedDocument, raw)
	}

	return Expand(doc, extra)
}
