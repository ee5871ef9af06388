package frontmatter

import (
	"fmt"
	"reflect"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"gopkg.in/yaml.v3"
)

// Rewrite produces the document that results from changing the header of
// content from before to after. Only keys whose value changed are
// re-encoded; removed keys are dropped, new keys are appended at the end of
// the block. Every other byte of content is preserved.
//
// A flow-style header, or one with several keys on a line, cannot be spliced
// line by line; its block is re-encoded from after in key order.
func Rewrite(content string, before, after *Header) (string, error) {
	blockStart, blockEnd, _, ok := locate(content)
	if !ok {
		if after == nil || after.Len() == 0 {
			return content, nil
		}
		entries, err := encodeHeader(after)
		if err != nil {
			return "", err
		}
		return "---\n" + entries + "---\n" + content, nil
	}

	block := content[blockStart:blockEnd]
	root, err := parseMapping(block)
	if err != nil {
		return "", err
	}

	changed, removed, added := diff(before, after)
	if len(changed) == 0 && len(removed) == 0 && len(added) == 0 {
		return content, nil
	}

	if root != nil && !lineAligned(root) {
		entries, err := encodeHeader(after)
		if err != nil {
			return "", err
		}
		return content[:blockStart] + entries + content[blockEnd:], nil
	}

	lines := strings.SplitAfter(block, "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}

	type span struct {
		key        string
		start, end int // line indexes, end exclusive
	}
	var spans []span
	if root != nil {
		for i := 0; i+1 < len(root.Content); i += 2 {
			start := root.Content[i].Line - 1
			end := len(lines)
			if i+2 < len(root.Content) {
				end = root.Content[i+2].Line - 1
			}
			// Trailing blank and comment lines stay with whatever follows.
			for end > start+1 && isTrivia(lines[end-1]) {
				end--
			}
			spans = append(spans, span{key: root.Content[i].Value, start: start, end: end})
		}
	}

	var b strings.Builder
	b.WriteString(content[:blockStart])
	pos := 0
	for _, s := range spans {
		_, isChanged := changed[s.key]
		_, isRemoved := removed[s.key]
		if !isChanged && !isRemoved {
			continue
		}
		for ; pos < s.start; pos++ {
			b.WriteString(lines[pos])
		}
		if isChanged {
			v, _ := after.Get(s.key)
			line, err := encodeEntry(s.key, v)
			if err != nil {
				return "", err
			}
			b.WriteString(line)
		}
		pos = s.end
	}
	for ; pos < len(lines); pos++ {
		b.WriteString(lines[pos])
	}
	if len(lines) > 0 && !strings.HasSuffix(lines[len(lines)-1], "\n") {
		b.WriteString("\n")
	}
	for _, k := range added {
		v, _ := after.Get(k)
		line, err := encodeEntry(k, v)
		if err != nil {
			return "", err
		}
		b.WriteString(line)
	}
	b.WriteString(content[blockEnd:])
	return b.String(), nil
}

func diff(before, after *Header) (changed, removed map[string]struct{}, added []string) {
	changed = make(map[string]struct{})
	removed = make(map[string]struct{})
	for _, k := range after.Keys() {
		nv, _ := after.Get(k)
		ov, ok := before.Lookup(k)
		switch {
		case !ok:
			added = append(added, k)
		case !sameValue(ov, nv):
			changed[k] = struct{}{}
		}
	}
	for _, k := range before.Keys() {
		if _, ok := after.Lookup(k); !ok {
			removed[k] = struct{}{}
		}
	}
	return changed, removed, added
}

// lineAligned reports whether every top-level key of root starts its own line.
func lineAligned(root *yaml.Node) bool {
	if root.Style&yaml.FlowStyle != 0 {
		return false
	}
	for i := 2; i < len(root.Content); i += 2 {
		if root.Content[i].Line == root.Content[i-2].Line {
			return false
		}
	}
	return true
}

// sameValue compares decoded header values, including the order of nested
// mapping keys.
func sameValue(a, b any) bool {
	am, aok := a.(*orderedmap.OrderedMap[string, any])
	bm, bok := b.(*orderedmap.OrderedMap[string, any])
	if aok || bok {
		if !aok || !bok || am.Len() != bm.Len() {
			return false
		}
		for pa, pb := am.Oldest(), bm.Oldest(); pa != nil; pa, pb = pa.Next(), pb.Next() {
			if pa.Key != pb.Key || !sameValue(pa.Value, pb.Value) {
				return false
			}
		}
		return true
	}
	as, aok := a.([]any)
	bs, bok := b.([]any)
	if aok || bok {
		if !aok || !bok || len(as) != len(bs) {
			return false
		}
		for i := range as {
			if !sameValue(as[i], bs[i]) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

func isTrivia(line string) bool {
	t := strings.TrimSpace(line)
	return t == "" || strings.HasPrefix(line, "#")
}

func encodeHeader(h *Header) (string, error) {
	var b strings.Builder
	for _, k := range h.Keys() {
		v, _ := h.Get(k)
		line, err := encodeEntry(k, v)
		if err != nil {
			return "", err
		}
		b.WriteString(line)
	}
	return b.String(), nil
}

func encodeEntry(key string, value any) (string, error) {
	out, err := yaml.Marshal(map[string]any{key: value})
	if err != nil {
		return "", fmt.Errorf("frontmatter: encode %q: %w", key, err)
	}
	return string(out), nil
}
