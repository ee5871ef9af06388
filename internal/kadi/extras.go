package kadi

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Extra value types understood by the API.
const (
	TypeStr   = "str"
	TypeInt   = "int"
	TypeFloat = "float"
	TypeBool  = "bool"
	TypeDate  = "date"
	TypeDict  = "dict"
	TypeList  = "list"
)

// Extra is one typed metadata entry of a record. Dict and list entries carry
// their children in Value; list children have no key.
type Extra struct {
	Type  string `json:"type"`
	Key   string `json:"key,omitempty"`
	Value any    `json:"value"`
	Unit  string `json:"unit,omitempty"`
}

// ConvertOptions tunes JSONToExtras.
type ConvertOptions struct {
	// NestObjects turns maps and slices into dict and list extras instead of
	// JSON strings.
	NestObjects bool
	// ParseUnits turns "25.5 °C" into a float extra with unit "°C".
	ParseUnits bool
}

var unitRe = regexp.MustCompile(`^([-+]?\d+(?:\.\d+)?)\s+(\S{1,16})$`)

// JSONToExtras converts metadata into extras, keeping the order of meta.
func JSONToExtras(meta *orderedmap.OrderedMap[string, any], opts ConvertOptions) []Extra {
	if meta == nil {
		return []Extra{}
	}
	out := make([]Extra, 0, meta.Len())
	for p := meta.Oldest(); p != nil; p = p.Next() {
		out = append(out, convert(p.Key, p.Value, opts))
	}
	return out
}

// CountNested returns how many top-level extras are dicts or lists.
func CountNested(extras []Extra) int {
	n := 0
	for _, e := range extras {
		if e.Type == TypeDict || e.Type == TypeList {
			n++
		}
	}
	return n
}

func convert(key string, v any, opts ConvertOptions) Extra {
	switch t := v.(type) {
	case nil:
		return Extra{Type: TypeStr, Key: key, Value: nil}
	case bool:
		return Extra{Type: TypeBool, Key: key, Value: t}
	case int:
		return Extra{Type: TypeInt, Key: key, Value: int64(t)}
	case int64:
		return Extra{Type: TypeInt, Key: key, Value: t}
	case uint64:
		if t > math.MaxInt64 {
			return Extra{Type: TypeFloat, Key: key, Value: float64(t)}
		}
		return Extra{Type: TypeInt, Key: key, Value: int64(t)}
	case float64:
		return Extra{Type: TypeFloat, Key: key, Value: t}
	case time.Time:
		return Extra{Type: TypeDate, Key: key, Value: t.UTC().Format(time.RFC3339Nano)}
	case string:
		return convertString(key, t, opts)
	case *orderedmap.OrderedMap[string, any]:
		if !opts.NestObjects {
			return Extra{Type: TypeStr, Key: key, Value: jsonString(t)}
		}
		return Extra{Type: TypeDict, Key: key, Value: JSONToExtras(t, opts)}
	case map[string]any:
		if !opts.NestObjects {
			return Extra{Type: TypeStr, Key: key, Value: jsonString(t)}
		}
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		children := make([]Extra, 0, len(keys))
		for _, k := range keys {
			children = append(children, convert(k, t[k], opts))
		}
		return Extra{Type: TypeDict, Key: key, Value: children}
	case []any:
		if !opts.NestObjects {
			return Extra{Type: TypeStr, Key: key, Value: jsonString(t)}
		}
		children := make([]Extra, 0, len(t))
		for _, item := range t {
			children = append(children, convert("", item, opts))
		}
		return Extra{Type: TypeList, Key: key, Value: children}
	default:
		return Extra{Type: TypeStr, Key: key, Value: fmt.Sprint(t)}
	}
}

func convertString(key, s string, opts ConvertOptions) Extra {
	if opts.ParseUnits {
		if m := unitRe.FindStringSubmatch(s); m != nil {
			if n, err := strconv.ParseInt(m[1], 10, 64); err == nil {
				return Extra{Type: TypeInt, Key: key, Value: n, Unit: m[2]}
			}
			if f, err := strconv.ParseFloat(m[1], 64); err == nil {
				return Extra{Type: TypeFloat, Key: key, Value: f, Unit: m[2]}
			}
		}
	}
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return Extra{Type: TypeDate, Key: key, Value: ts.UTC().Format(time.RFC3339Nano)}
	}
	return Extra{Type: TypeStr, Key: key, Value: s}
}

func jsonString(v any) string {
	out, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(out)
}
