package evaluator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// CompareOptions tunes output comparison.
type CompareOptions struct {
	// OrderInsensitive treats every array as a multiset.
	OrderInsensitive bool
}

// decodeJSON parses raw into a tree of map[string]any, []any, json.Number,
// string, bool and nil. Trailing data is rejected.
func decodeJSON(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("unexpected data after JSON value")
	}
	return v, nil
}

// expectedTree parses an expected output. Text that is not JSON is taken as
// a bare string, so `hello` matches a returned "hello".
func expectedTree(expected string) any {
	trimmed := strings.TrimSpace(expected)
	v, err := decodeJSON([]byte(trimmed))
	if err != nil {
		return trimmed
	}
	return v
}

// Match reports whether actual, a serialized return value, equals expected.
// Object key order and whitespace never matter; numbers compare by value.
func Match(expected string, actual json.RawMessage, opts CompareOptions) bool {
	got, err := decodeJSON(actual)
	if err != nil {
		return false
	}
	return cmp.Equal(expectedTree(expected), got, compareOptions(opts)...)
}

// Diff renders a human-readable difference, or "" when the values match.
func Diff(expected string, actual json.RawMessage, opts CompareOptions) string {
	got, err := decodeJSON(actual)
	if err != nil {
		return fmt.Sprintf("actual output is not JSON: %v", err)
	}
	return cmp.Diff(expectedTree(expected), got, compareOptions(opts)...)
}

func compareOptions(opts CompareOptions) []cmp.Option {
	out := []cmp.Option{cmp.Comparer(numbersEqual)}
	if opts.OrderInsensitive {
		out = append(out, cmpopts.SortSlices(func(a, b any) bool {
			return canonicalKey(a) < canonicalKey(b)
		}))
	}
	return out
}

func numbersEqual(a, b json.Number) bool {
	x, okX := new(big.Rat).SetString(a.String())
	y, okY := new(big.Rat).SetString(b.String())
	if !okX || !okY {
		return a == b
	}
	return x.Cmp(y) == 0
}

// Canonical returns raw re-encoded as compact JSON with sorted object keys.
func Canonical(raw json.RawMessage) (string, error) {
	v, err := decodeJSON(raw)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// canonicalKey is a total order key: numbers are normalised so values that
// compare equal also sort together.
func canonicalKey(v any) string {
	var b strings.Builder
	writeKey(&b, v)
	return b.String()
}

func writeKey(b *strings.Builder, v any) {
	switch t := v.(type) {
	case nil:
		b.WriteString("null")
	case bool:
		if t {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case json.Number:
		if r, ok := new(big.Rat).SetString(t.String()); ok {
			b.WriteString("n:" + r.RatString())
		} else {
			b.WriteString("n:" + t.String())
		}
	case string:
		out, _ := json.Marshal(t)
		b.Write(out)
	case []any:
		keys := make([]string, len(t))
		for i, e := range t {
			keys[i] = canonicalKey(e)
		}
		sort.Strings(keys)
		b.WriteByte('[')
		b.WriteString(strings.Join(keys, ","))
		b.WriteByte(']')
	case map[string]any:
		names := make([]string, 0, len(t))
		for k := range t {
			names = append(names, k)
		}
		sort.Strings(names)
		b.WriteByte('{')
		for i, k := range names {
			if i > 0 {
				b.WriteByte(',')
			}
			out, _ := json.Marshal(k)
			b.Write(out)
			b.WriteByte(':')
			writeKey(b, t[k])
		}
		b.WriteByte('}')
	default:
		fmt.Fprintf(b, "%v", t)
	}
}
