package jspon

import "strings"

// reservedKey reports whether a user data key would collide with a
// structural document key if written verbatim.
func reservedKey(key string) bool {
	return key == idKey || key == refKey || key == classKey
}

// escapeKey maps a user data key to its on-document form. Keys that collide
// with structural keys, or that already start with the escape prefix, gain
// one escape prefix. Escaping is injective, so distinct user keys never
// collide after escaping.
func escapeKey(key string) string {
	if reservedKey(key) || strings.HasPrefix(key, escapePrefix) {
		return escapePrefix + key
	}

	return key
}

// unescapeKey inverts escapeKey: one leading escape prefix is stripped.
func unescapeKey(key string) string {
	if after, ok := strings.CutPrefix(key, escapePrefix); ok {
		return after
	}

	return key
}
