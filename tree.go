package veil

import (
	"sort"
	"strconv"

	"go.mongodb.org/mongo-driver/bson"
)

// DefaultMaxDepth bounds how deeply condition and result trees are walked.
const DefaultMaxDepth = 64

// Kind tags a Node variant.
type Kind uint8

const (
	KindScalar Kind = iota
	KindList
	KindMap
)

// shape records the container type a node was parsed from so Value can
// hand back the same type the caller passed in.
type shape uint8

const (
	shapeNone shape = iota
	shapeMap
	shapeStringMap
	shapeBSONM
	shapeBSOND
	shapeSlice
	shapeStrings
	shapeMapSlice
	shapeBSONA
)

// Node is a tagged variant over untyped condition and result data:
// Scalar(value) | List(items) | Map(entries).
type Node struct {
	Kind    Kind
	Scalar  any
	Items   []Node
	Entries []Entry
	shape   shape
}

// Entry is one key/value pair of a Map node, in traversal order.
type Entry struct {
	Key   string
	Value Node
}

// Parse converts v into a Node tree. Maps without an inherent order are
// visited in sorted key order; bson.D keeps document order. Containers of
// unrecognized types are treated as scalars and passed through untouched.
func Parse(v any, maxDepth int) (Node, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return parse(v, 0, maxDepth)
}

func parse(v any, depth, maxDepth int) (Node, error) {
	if depth > maxDepth {
		return Node{}, ErrTreeTooDeep
	}

	switch t := v.(type) {
	case map[string]any:
		return parseMap(t, shapeMap, depth, maxDepth)
	case bson.M:
		return parseMap(t, shapeBSONM, depth, maxDepth)
	case map[string]string:
		n := Node{Kind: KindMap, shape: shapeStringMap, Entries: make([]Entry, 0, len(t))}
		for _, k := range sortedKeys(t) {
			n.Entries = append(n.Entries, Entry{Key: k, Value: Node{Kind: KindScalar, Scalar: t[k]}})
		}
		return n, nil
	case bson.D:
		n := Node{Kind: KindMap, shape: shapeBSOND, Entries: make([]Entry, 0, len(t))}
		for _, e := range t {
			child, err := parse(e.Value, depth+1, maxDepth)
			if err != nil {
				return Node{}, err
			}
			n.Entries = append(n.Entries, Entry{Key: e.Key, Value: child})
		}
		return n, nil
	case []any:
		return parseList(t, shapeSlice, depth, maxDepth)
	case bson.A:
		return parseList(t, shapeBSONA, depth, maxDepth)
	case []string:
		n := Node{Kind: KindList, shape: shapeStrings, Items: make([]Node, len(t))}
		for i, s := range t {
			n.Items[i] = Node{Kind: KindScalar, Scalar: s}
		}
		return n, nil
	case []map[string]any:
		n := Node{Kind: KindList, shape: shapeMapSlice, Items: make([]Node, len(t))}
		for i, m := range t {
			child, err := parseMap(m, shapeMap, depth+1, maxDepth)
			if err != nil {
				return Node{}, err
			}
			n.Items[i] = child
		}
		return n, nil
	default:
		return Node{Kind: KindScalar, Scalar: v}, nil
	}
}

func parseMap(m map[string]any, s shape, depth, maxDepth int) (Node, error) {
	n := Node{Kind: KindMap, shape: s, Entries: make([]Entry, 0, len(m))}
	for _, k := range sortedKeys(m) {
		child, err := parse(m[k], depth+1, maxDepth)
		if err != nil {
			return Node{}, err
		}
		n.Entries = append(n.Entries, Entry{Key: k, Value: child})
	}
	return n, nil
}

func parseList(items []any, s shape, depth, maxDepth int) (Node, error) {
	n := Node{Kind: KindList, shape: s, Items: make([]Node, len(items))}
	for i, item := range items {
		child, err := parse(item, depth+1, maxDepth)
		if err != nil {
			return Node{}, err
		}
		n.Items[i] = child
	}
	return n, nil
}

// Value rebuilds the Go value the node was parsed from.
func (n Node) Value() any {
	switch n.Kind {
	case KindMap:
		switch n.shape {
		case shapeBSOND:
			d := make(bson.D, len(n.Entries))
			for i, e := range n.Entries {
				d[i] = bson.E{Key: e.Key, Value: e.Value.Value()}
			}
			return d
		case shapeStringMap:
			m := make(map[string]string, len(n.Entries))
			for _, e := range n.Entries {
				s, _ := stringify(e.Value.Scalar)
				m[e.Key] = s
			}
			return m
		case shapeBSONM:
			m := make(bson.M, len(n.Entries))
			for _, e := range n.Entries {
				m[e.Key] = e.Value.Value()
			}
			return m
		default:
			m := make(map[string]any, len(n.Entries))
			for _, e := range n.Entries {
				m[e.Key] = e.Value.Value()
			}
			return m
		}
	case KindList:
		switch n.shape {
		case shapeStrings:
			out := make([]string, len(n.Items))
			for i, item := range n.Items {
				out[i], _ = stringify(item.Scalar)
			}
			return out
		case shapeMapSlice:
			out := make([]map[string]any, len(n.Items))
			for i, item := range n.Items {
				out[i], _ = item.Value().(map[string]any)
			}
			return out
		case shapeBSONA:
			out := make(bson.A, len(n.Items))
			for i, item := range n.Items {
				out[i] = item.Value()
			}
			return out
		default:
			out := make([]any, len(n.Items))
			for i, item := range n.Items {
				out[i] = item.Value()
			}
			return out
		}
	default:
		return n.Scalar
	}
}

// isNumericKey reports whether a map key is a row index rather than a name.
func isNumericKey(k string) bool {
	if k == "" {
		return false
	}
	_, err := strconv.ParseUint(k, 10, 64)
	return err == nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// stringify returns the textual form of a scalar that can be encrypted.
// nil and containers report false.
func stringify(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case []byte:
		return string(t), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case int32:
		return strconv.FormatInt(int64(t), 10), true
	case uint:
		return strconv.FormatUint(uint64(t), 10), true
	case uint64:
		return strconv.FormatUint(t, 10), true
	case uint32:
		return strconv.FormatUint(uint64(t), 10), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), true
	case interface{ String() string }:
		return t.String(), true
	default:
		return "", false
	}
}
