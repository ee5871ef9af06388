// Package frontmatter decodes, inspects, and patches the YAML header of a Markdown note.
package frontmatter

import (
	"fmt"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"gopkg.in/yaml.v3"
)

// Header is a note's structured header with keys kept in source order.
type Header struct {
	*orderedmap.OrderedMap[string, any]
}

// NewHeader returns an empty header.
func NewHeader() *Header {
	return &Header{orderedmap.New[string, any]()}
}

// HeaderOf builds a header from alternating key/value pairs, mostly for tests.
func HeaderOf(kv ...any) *Header {
	h := NewHeader()
	for i := 0; i+1 < len(kv); i += 2 {
		h.Set(fmt.Sprint(kv[i]), kv[i+1])
	}
	return h
}

// Keys returns the header keys in order.
func (h *Header) Keys() []string {
	if h == nil || h.OrderedMap == nil {
		return nil
	}
	keys := make([]string, 0, h.Len())
	for p := h.Oldest(); p != nil; p = p.Next() {
		keys = append(keys, p.Key)
	}
	return keys
}

// Lookup returns the value stored under key. It is safe on a nil header.
func (h *Header) Lookup(key string) (any, bool) {
	if h == nil || h.OrderedMap == nil {
		return nil, false
	}
	return h.Get(key)
}

// Clone returns a deep copy so that callers can mutate nested values freely.
func (h *Header) Clone() *Header {
	out := NewHeader()
	if h == nil || h.OrderedMap == nil {
		return out
	}
	for p := h.Oldest(); p != nil; p = p.Next() {
		out.Set(p.Key, deepCopy(p.Value))
	}
	return out
}

// Merge sets every key of patch on h, leaving all other keys untouched.
func (h *Header) Merge(patch *Header) {
	if patch == nil {
		return
	}
	for p := patch.Oldest(); p != nil; p = p.Next() {
		h.Set(p.Key, p.Value)
	}
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case *orderedmap.OrderedMap[string, any]:
		m := orderedmap.New[string, any](t.Len())
		for p := t.Oldest(); p != nil; p = p.Next() {
			m.Set(p.Key, deepCopy(p.Value))
		}
		return m
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[k] = deepCopy(val)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, val := range t {
			s[i] = deepCopy(val)
		}
		return s
	default:
		return v
	}
}

// Split locates a leading header block. The first line must be exactly "---";
// the block ends at the next line that is exactly "---". block excludes both
// delimiter lines, body is everything after the closing delimiter line.
func Split(content string) (block, body string, ok bool) {
	blockStart, blockEnd, bodyStart, ok := locate(content)
	if !ok {
		return "", content, false
	}
	return content[blockStart:blockEnd], content[bodyStart:], true
}

func locate(content string) (blockStart, blockEnd, bodyStart int, ok bool) {
	first, next, found := cutLine(content, 0)
	if !found || first != "---" {
		return 0, 0, 0, false
	}
	blockStart = next
	for pos := next; pos < len(content); {
		line, after, _ := cutLine(content, pos)
		if line == "---" {
			return blockStart, pos, after, true
		}
		pos = after
	}
	return 0, 0, 0, false
}

// cutLine returns the line starting at pos without its terminator (and
// without a trailing \r), and the offset of the following line.
func cutLine(s string, pos int) (line string, next int, found bool) {
	if pos >= len(s) {
		return "", pos, false
	}
	i := strings.IndexByte(s[pos:], '\n')
	if i < 0 {
		return strings.TrimSuffix(s[pos:], "\r"), len(s), true
	}
	return strings.TrimSuffix(s[pos:pos+i], "\r"), pos + i + 1, true
}

// Decode parses a header block into an ordered header. An empty block yields
// an empty header. Nested mappings decode to ordered maps, so their keys keep
// source order too.
func Decode(block string) (*Header, error) {
	root, err := parseMapping(block)
	if err != nil {
		return nil, err
	}
	if root == nil {
		return NewHeader(), nil
	}
	m, err := decodeMapping(root)
	if err != nil {
		return nil, err
	}
	return &Header{m}, nil
}

func decodeMapping(n *yaml.Node) (*orderedmap.OrderedMap[string, any], error) {
	m := orderedmap.New[string, any]()
	var merged []*orderedmap.OrderedMap[string, any]
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		if k.Kind == yaml.ScalarNode && k.ShortTag() == "!!merge" {
			src, err := mergeSources(v)
			if err != nil {
				return nil, err
			}
			merged = append(merged, src...)
			continue
		}
		key := k.Value
		if k.Kind != yaml.ScalarNode {
			var raw any
			if err := k.Decode(&raw); err != nil {
				return nil, fmt.Errorf("frontmatter: decode key at line %d: %w", k.Line, err)
			}
			key = fmt.Sprint(raw)
		}
		val, err := decodeValue(v)
		if err != nil {
			return nil, fmt.Errorf("frontmatter: decode %q: %w", key, err)
		}
		m.Set(key, val)
	}
	// Explicit keys win over merged ones.
	for _, src := range merged {
		for p := src.Oldest(); p != nil; p = p.Next() {
			if _, ok := m.Get(p.Key); !ok {
				m.Set(p.Key, p.Value)
			}
		}
	}
	return m, nil
}

func mergeSources(v *yaml.Node) ([]*orderedmap.OrderedMap[string, any], error) {
	val, err := decodeValue(v)
	if err != nil {
		return nil, err
	}
	switch t := val.(type) {
	case *orderedmap.OrderedMap[string, any]:
		return []*orderedmap.OrderedMap[string, any]{t}, nil
	case []any:
		out := make([]*orderedmap.OrderedMap[string, any], 0, len(t))
		for _, item := range t {
			if m, ok := item.(*orderedmap.OrderedMap[string, any]); ok {
				out = append(out, m)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("frontmatter: merge key at line %d needs a mapping", v.Line)
	}
}

func decodeValue(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.AliasNode:
		return decodeValue(n.Alias)
	case yaml.MappingNode:
		return decodeMapping(n)
	case yaml.SequenceNode:
		out := make([]any, 0, len(n.Content))
		for _, item := range n.Content {
			v, err := decodeValue(item)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	default:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	}
}

// Parse splits content and decodes its header. Content without a header
// block yields a nil header and no error.
func Parse(content string) (*Header, string, error) {
	block, body, ok := Split(content)
	if !ok {
		return nil, body, nil
	}
	h, err := Decode(block)
	if err != nil {
		return nil, body, err
	}
	return h, body, nil
}

// parseMapping returns the top-level mapping node of block, or nil when the
// block holds no YAML document.
func parseMapping(block string) (*yaml.Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(block), &doc); err != nil {
		return nil, fmt.Errorf("frontmatter: invalid yaml: %w", err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return nil, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("frontmatter: header is not a mapping")
	}
	return root, nil
}
