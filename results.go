package veil

import "context"

// resultWalker decrypts a result tree for one Model call.
//
// The owner of a scalar is the nearest enclosing non-numeric map key. It is
// threaded down the recursion explicitly: a sibling subtree never sees
// another subtree's owner, and numeric keys (row indexes) and list items
// inherit the owner of their parent.
type resultWalker struct {
	ctx       context.Context
	model     *Model
	state     *modelState
	decrypted int
	failed    int
}

func (w *resultWalker) walk(n Node, owner string) Node {
	switch n.Kind {
	case KindMap:
		for i, e := range n.Entries {
			switch e.Value.Kind {
			case KindMap, KindList:
				child := owner
				if !isNumericKey(e.Key) {
					child = e.Key
				}
				n.Entries[i].Value = w.walk(e.Value, child)
			default:
				n.Entries[i].Value = w.scalar(e.Key, e.Value, owner)
			}
		}
	case KindList:
		for i, item := range n.Items {
			if item.Kind != KindScalar {
				n.Items[i] = w.walk(item, owner)
			}
		}
	}
	return n
}

func (w *resultWalker) scalar(key string, v Node, owner string) Node {
	policy := w.state.policy
	rt := w.model.name

	var dt Datatype
	field := key
	switch {
	case owner == rt && policy.HasField(key):
		dt = w.model.registry.datatype(rt, key)
	case owner != "" && policy.HasField(owner+"."+key):
		field = owner + "." + key
		dt = w.model.registry.datatype(owner, key)
	default:
		return v
	}

	out, changed, err := w.model.decryptScalar(w.state, field, dt, v.Scalar)
	if err != nil {
		w.failed++
		emitDecryptFailed(w.ctx, rt, field, err)
		return v
	}
	if changed {
		w.decrypted++
		v.Scalar = out
	}
	return v
}
