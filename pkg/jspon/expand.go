package jspon

import (
	"fmt"
)

// Expand converts a JSPON document tree back into an [Entry].
//
// Inverse of [Collapse]: structural keys are read off the wrapping map,
// mapping keys are unescaped, "$ref" maps become [Ref] values (not resolved
// to objects), and nested documents become embedded *[Entry] values.
//
// extra carries out-of-band facts, such as root membership discovered in a
// store's root index; they are injected into the returned entry without
// being part of the document.
//
// Returns [ErrMalformedDocument] if the document violates the required
// structural shape. On error no partially decoded entry is returned.
func Expand(doc map[string]any, extra ExtraAttrs) (*Entry, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: nil document", ErrMalformedDocument)
	}

	entry, err := expandEntry(doc)
	if err != nil {
		return nil, err
	}

	entry.Root = extra.Root

	return entry, nil
}

// expandEntry decodes one document map (top-level or embedded) into an
// Entry. The "data" key is mandatory; anything besides the three structural
// keys is malformed, because user keys with those spellings are escaped.
func expandEntry(doc map[string]any) (*Entry, error) {
	for key := range doc {
		if key != classKey && key != idKey && key != dataKey {
			return nil, fmt.Errorf("%w: unexpected key %q beside entry fields", ErrMalformedDocument, key)
		}
	}

	rawData, ok := doc[dataKey]
	if !ok {
		return nil, fmt.Errorf("%w: missing %q key", ErrMalformedDocument, dataKey)
	}

	entry := &Entry{}

	if rawClass, ok := doc[classKey]; ok {
		class, ok := rawClass.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %q must be a string, got %T", ErrMalformedDocument, classKey, rawClass)
		}

		entry.Class = class
	}

	if rawID, ok := doc[idKey]; ok {
		id, ok := rawID.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %q must be a string, got %T", ErrMalformedDocument, idKey, rawID)
		}

		entry.ID = id
	}

	data, err := expandValue(rawData)
	if err != nil {
		return nil, err
	}

	entry.Data = data

	return entry, nil
}

// expandRef decodes a "$ref" map. Only the optional "weak" flag may sit
// beside "$ref"; sibling data keys mean the document was corrupted or
// hand-built wrong.
func expandRef(doc map[string]any) (Ref, error) {
	for key := range doc {
		if key != refKey && key != weakKey {
			return Ref{}, fmt.Errorf("%w: unexpected key %q beside %q", ErrMalformedDocument, key, refKey)
		}
	}

	id, ok := doc[refKey].(string)
	if !ok || id == "" {
		return Ref{}, fmt.Errorf("%w: %q must be a non-empty string", ErrMalformedDocument, refKey)
	}

	ref := Ref{ID: id}

	if rawWeak, ok := doc[weakKey]; ok {
		weak, ok := rawWeak.(bool)
		if !ok {
			return Ref{}, fmt.Errorf("%w: %q must be a bool, got %T", ErrMalformedDocument, weakKey, rawWeak)
		}

		ref.Weak = weak
	}

	return ref, nil
}

func expandValue(value any) (any, error) {
	switch v := value.(type) {
	case map[string]any:
		if _, ok := v[refKey]; ok {
			return expandRef(v)
		}

		// An unescaped structural id or class key marks an embedded
		// entry document.
		_, hasID := v[idKey]
		_, hasClass := v[classKey]

		if hasID || hasClass {
			return expandEntry(v)
		}

		out := make(map[string]any, len(v))

		for key, elem := range v {
			expanded, err := expandValue(elem)
			if err != nil {
				return nil, err
			}

			out[unescapeKey(key)] = expanded
		}

		return out, nil

	case []any:
		out := make([]any, len(v))

		for i, elem := range v {
			expanded, err := expandValue(elem)
			if err != nil {
				return nil, err
			}

			out[i] = expanded
		}

		return out, nil

	default:
		// Scalars pass through untouched.
		return v, nil
	}
}
