package jspon

import (
	"encoding/json"
	"fmt"
)

// Collapse converts an entry into its JSPON document tree.
//
// The entry's data is walked recursively: sequences and mappings are walked
// structurally, mapping keys pass through the escaping rule, [Ref] values
// become "$ref" maps, and embedded *[Entry] values become nested documents.
// The transform is purely structural and deterministic; it preserves the
// caller's trees unmodified (output maps and slices are fresh).
//
// Returns [ErrUnsupportedValue] for any value outside the documented value
// domain. [Entry.Root] is intentionally not encoded; root membership lives
// in the store's root index, not in the document.
func Collapse(entry *Entry) (map[string]any, error) {
	if entry == nil {
		return nil, fmt.Errorf("%w: nil entry", ErrUnsupportedValue)
	}

	return collapseEntry(entry, true)
}

// collapseEntry wraps an entry's collapsed data with its structural keys.
// Top-level entries may omit both id and class; embedded ones may not,
// because the resulting bare {"data": ...} map would be indistinguishable
// from user data on expand.
func collapseEntry(entry *Entry, topLevel bool) (map[string]any, error) {
	if !topLevel && entry.ID == "" && entry.Class == "" {
		return nil, fmt.Errorf("%w: embedded entry must have an id or class", ErrUnsupportedValue)
	}

	doc := make(map[string]any, 3)

	if entry.Class != "" {
		doc[classKey] = entry.Class
	}

	if entry.ID != "" {
		doc[idKey] = entry.ID
	}

	data, err := collapseValue(entry.Data)
	if err != nil {
		return nil, err
	}

	doc[dataKey] = data

	return doc, nil
}

func collapseRef(ref Ref) (map[string]any, error) {
	if ref.ID == "" {
		return nil, fmt.Errorf("%w: reference with empty target id", ErrUnsupportedValue)
	}

	doc := map[string]any{refKey: ref.ID}
	if ref.Weak {
		doc[weakKey] = true
	}

	return doc, nil
}

func collapseValue(value any) (any, error) {
	switch v := value.(type) {
	case nil, bool, string,
		float32, float64,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		json.Number:
		return v, nil

	case []any:
		out := make([]any, len(v))

		for i, elem := range v {
			collapsed, err := collapseValue(elem)
			if err != nil {
				return nil, err
			}

			out[i] = collapsed
		}

		return out, nil

	case map[string]any:
		out := make(map[string]any, len(v))

		for key, elem := range v {
			collapsed, err := collapseValue(elem)
			if err != nil {
				return nil, err
			}

			out[escapeKey(key)] = collapsed
		}

		return out, nil

	case Ref:
		return collapseRef(v)

	case *Entry:
		if v == nil {
			return nil, fmt.Errorf("%w: nil embedded entry", ErrUnsupportedValue)
		}

		return collapseEntry(v, false)

	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedValue, value)
	}
}
