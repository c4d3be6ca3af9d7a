package veil

import (
	"context"
	"regexp"
	"strings"
)

// clausePattern matches "[Qualifier.]field op value" inside a freeform
// condition string. Groups: 1 qualifier, 2 field, 3 operator, 4 single
// quoted value, 5 double quoted value, 6 bare value. Quoted values may
// escape their quote with a backslash or by doubling it.
var clausePattern = regexp.MustCompile(
	`(?:(\w+)\.)?(\w+)\s*(!=|<>|=)\s*` +
		`(?:'((?:[^'\\]|\\.|'')*)'|"((?:[^"\\]|\\.|"")*)"|([^\s'"` + "`" + `()]+))`)

// fieldRefPattern matches a bare value that names a column, not a literal.
var fieldRefPattern = regexp.MustCompile(`^\w+\.\w+$`)

// sqlTokenPattern matches bare values that are bind parameters or keywords.
var sqlTokenPattern = regexp.MustCompile(`(?i)^(?:\?|:\w+|\$\d+|@\w+|null|true|false)$`)

// equalityOperators are the document operators whose operands are compared
// for equality and so can match an envelope.
var equalityOperators = map[string]bool{
	"$eq":  true,
	"$ne":  true,
	"$in":  true,
	"$nin": true,
}

// conditionWalker rewrites a condition tree for one Model call.
type conditionWalker struct {
	ctx       context.Context
	model     *Model
	state     *modelState
	encrypted int
}

func (w *conditionWalker) walk(n Node) (Node, error) {
	switch n.Kind {
	case KindMap:
		for i, e := range n.Entries {
			out, err := w.entry(e.Key, e.Value)
			if err != nil {
				return Node{}, err
			}
			n.Entries[i].Value = out
		}
	case KindList:
		for i, item := range n.Items {
			out, err := w.item(item)
			if err != nil {
				return Node{}, err
			}
			n.Items[i] = out
		}
	}
	return n, nil
}

func (w *conditionWalker) entry(key string, v Node) (Node, error) {
	field, ok := bareField(key)
	managed := ok && w.state.policy.HasField(field)

	switch v.Kind {
	case KindList, KindMap:
		if managed {
			return w.encryptAll(field, v)
		}
		return w.walk(v)
	default:
		if managed {
			return w.encryptComparand(field, v)
		}
		return w.clause(v)
	}
}

// item handles list members; their keys are indexes, never field names.
func (w *conditionWalker) item(v Node) (Node, error) {
	if v.Kind == KindScalar {
		return w.clause(v)
	}
	return w.walk(v)
}

// encryptAll encrypts every comparand under a managed field: IN lists and
// equality operator documents such as {"$in": [...]}.
func (w *conditionWalker) encryptAll(field string, v Node) (Node, error) {
	switch v.Kind {
	case KindList:
		for i, item := range v.Items {
			out, err := w.encryptAll(field, item)
			if err != nil {
				return Node{}, err
			}
			v.Items[i] = out
		}
		return v, nil
	case KindMap:
		for i, e := range v.Entries {
			if strings.HasPrefix(e.Key, "$") && !equalityOperators[e.Key] {
				continue
			}
			out, err := w.encryptAll(field, e.Value)
			if err != nil {
				return Node{}, err
			}
			v.Entries[i].Value = out
		}
		return v, nil
	default:
		return w.encryptComparand(field, v)
	}
}

func (w *conditionWalker) encryptComparand(field string, v Node) (Node, error) {
	dt := w.model.registry.datatype(w.model.name, field)
	if !w.state.policy.IsManaged(field, dt) {
		return v, nil
	}
	out, changed, err := w.model.encryptScalar(w.ctx, w.state, field, dt, v.Scalar)
	if err != nil {
		return Node{}, err
	}
	if changed {
		w.encrypted++
		v.Scalar = out
	}
	return v, nil
}

// clause rewrites a freeform comparison string. Anything it cannot parse
// passes through unchanged.
func (w *conditionWalker) clause(v Node) (Node, error) {
	s, ok := v.Scalar.(string)
	if !ok || !strings.Contains(s, " ") {
		return v, nil
	}
	out, err := w.rewriteClause(s)
	if err != nil {
		return Node{}, err
	}
	v.Scalar = out
	return v, nil
}

func (w *conditionWalker) rewriteClause(clause string) (string, error) {
	matches := clausePattern.FindAllStringSubmatchIndex(clause, -1)
	if len(matches) == 0 {
		return clause, nil
	}

	var b strings.Builder
	last := 0
	for _, loc := range matches {
		quote, start, end := "", -1, -1
		switch {
		case loc[8] >= 0:
			quote, start, end = "'", loc[8], loc[9]
		case loc[10] >= 0:
			quote, start, end = `"`, loc[10], loc[11]
		case loc[12] >= 0:
			start, end = loc[12], loc[13]
		}
		// A quote right after the closing one means the literal did not end
		// where the pattern thinks it did.
		if quote != "" && strings.HasPrefix(clause[loc[1]:], quote) {
			return clause, nil
		}

		qualifier := submatch(clause, loc, 1)
		if qualifier != "" && qualifier != w.model.name {
			continue
		}
		field := submatch(clause, loc, 2)
		raw := clause[start:end]
		if quote == "" && (fieldRefPattern.MatchString(raw) || sqlTokenPattern.MatchString(raw)) {
			continue
		}

		// Raw envelope bytes cannot be embedded in a clause safely.
		dt := w.model.registry.datatype(w.model.name, field)
		if !w.state.policy.IsManaged(field, dt) || dt == TypeBinary {
			continue
		}

		value := unescapeQuoted(raw, quote)
		if value == "" || w.state.policy.envelope.IsEncrypted(value) {
			continue
		}

		out, changed, err := w.model.encryptScalar(w.ctx, w.state, field, dt, value)
		if err != nil {
			return "", err
		}
		if !changed {
			continue
		}
		env, _ := out.(string)
		if quote == "" {
			env = "'" + env + "'"
		}

		b.WriteString(clause[last:start])
		b.WriteString(env)
		last = end
		w.encrypted++
	}
	if last == 0 {
		return clause, nil
	}
	b.WriteString(clause[last:])
	return b.String(), nil
}

// bareField strips an optional "Qualifier." and a trailing equality operator
// from a condition key. Keys carrying any other operator (LIKE, >, ...)
// report false since an envelope cannot satisfy them.
func bareField(key string) (string, bool) {
	name := key
	if i := strings.IndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSpace(name)
	if field, op, ok := strings.Cut(name, " "); ok {
		switch strings.TrimSpace(op) {
		case "=", "!=", "<>":
			return field, true
		default:
			return "", false
		}
	}
	return name, name != ""
}

func submatch(s string, loc []int, group int) string {
	if loc[2*group] < 0 {
		return ""
	}
	return s[loc[2*group]:loc[2*group+1]]
}

func unescapeQuoted(raw, quote string) string {
	if quote == "" {
		return raw
	}
	return strings.NewReplacer(`\\`, `\`, `\`+quote, quote, quote+quote, quote).Replace(raw)
}
