// Package jspon implements the JSPON encoding: a JSON-safe representation
// of object-graph entries that preserves reference semantics plain JSON
// cannot express (cycles, shared objects, weak references, type tags).
//
// The unit of persistence is an [Entry]: an opaque identifier, an optional
// class tag, and an arbitrary JSON-like data tree. Edges between entries are
// [Ref] values inside that tree; they carry only the target identifier and
// are never followed or resolved here.
//
// [Collapse] turns an Entry into a JSON-safe document tree with explicit
// reference maps; [Expand] is its inverse. Both are pure transforms with no
// I/O. Byte encoding is a separate step (see [Marshal] and [Unmarshal]).
//
// # Document shape
//
// A collapsed entry is a map with up to three structural keys:
//
//	{
//	    "__CLASS__": "Point",        // only when the entry has a class
//	    "id":        "A1",           // only when the entry has an id
//	    "data":      { "x": 1, "y": 2 }
//	}
//
// A reference inside data collapses to:
//
//	{ "$ref": "C", "weak": true }    // "weak" present only when true
//
// User data keys that collide with structural keys ("id", "$ref",
// "__CLASS__") or that already carry the escape prefix are escaped by
// prefixing them with "public::", and unescaped symmetrically on expand.
//
// # Value domain
//
// Data trees are built from the JSON-native Go types: nil, bool, string,
// numeric scalars (including [encoding/json.Number]), []any, and
// map[string]any with string keys, plus [Ref] and embedded *[Entry] values.
// Collapse fails with [ErrUnsupportedValue] on anything else; silent
// coercion would corrupt round-tripping.
package jspon

// Structural document keys and the key escape prefix.
const (
	classKey     = "__CLASS__"
	idKey        = "id"
	dataKey      = "data"
	refKey       = "$ref"
	weakKey      = "weak"
	escapePrefix = "public::"
)

// Entry is the persisted unit of the object graph.
type Entry struct {
	// ID is the opaque, externally assigned identifier. Unique across a
	// store. May be empty for embedded anonymous sub-entries, which cannot
	// be independently fetched.
	ID string

	// Class is an optional type tag, present only when the object's class
	// is non-default and needs to be reconstructed.
	Class string

	// Data is the entry's payload tree. See the package doc for the
	// allowed value kinds.
	Data any

	// Root reports whether the entry is a graph root. It is not part of
	// the document encoding; stores track it out of band and inject it on
	// expand via [ExtraAttrs].
	Root bool
}

// Ref is a directed edge from one entry's data to another entry.
//
// A Ref never carries inline data; resolving it to an object is the
// responsibility of the surrounding object-graph layer.
type Ref struct {
	// ID is the identifier of the referenced entry.
	ID string

	// Weak marks references that do not keep the target alive at the
	// owning-graph level. Irrelevant to storage itself, but round-trips.
	Weak bool
}

// ExtraAttrs carries out-of-band facts a caller wants injected into the
// expanded [Entry] without polluting the document schema. The store uses it
// to annotate root membership discovered in its root index.
type ExtraAttrs struct {
	// Root is copied to [Entry.Root].
	Root bool
}
