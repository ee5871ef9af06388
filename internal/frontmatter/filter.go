package frontmatter

import "strings"

// ControlPrefix namespaces every header key owned by the sync engine.
const ControlPrefix = "kadi_"

// excludedKeys are host display fields and the native tag field; tags are
// sent as record tags, not as metadata.
var excludedKeys = map[string]struct{}{
	"cssclasses":  {},
	"cssclass":    {},
	"aliases":     {},
	"alias":       {},
	"position":    {},
	KeyNativeTags: {},
}

// IsControlKey reports whether key belongs to the sync engine's namespace.
func IsControlKey(key string) bool {
	return strings.HasPrefix(key, ControlPrefix)
}

// IsExcludedKey reports whether key is dropped from custom metadata.
func IsExcludedKey(key string) bool {
	if _, ok := excludedKeys[key]; ok {
		return true
	}
	return IsControlKey(key)
}

// Filter returns the custom metadata of a header: every key that is neither
// excluded nor a control key, in source order, values copied as-is.
func Filter(h *Header) *Header {
	out := NewHeader()
	if h == nil || h.OrderedMap == nil {
		return out
	}
	for p := h.Oldest(); p != nil; p = p.Next() {
		if IsExcludedKey(p.Key) {
			continue
		}
		out.Set(p.Key, p.Value)
	}
	return out
}
