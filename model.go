package veil

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// modelState pairs a policy snapshot with the session that serves it.
// It is swapped as a unit so readers never see a policy without its engine.
type modelState struct {
	policy  *Policy
	session *Session
}

// Model applies one record type's policy at the persistence boundary.
//
// Hooks are safe for concurrent use. Configure may run concurrently with
// hooks; in-flight calls finish against the snapshot they started with.
type Model struct {
	name     string
	registry *Registry

	cfgMu sync.Mutex
	state atomic.Pointer[modelState]
}

func newModel(name string, r *Registry) *Model {
	return &Model{name: name, registry: r}
}

// Name returns the record type name.
func (m *Model) Name() string { return m.name }

// Policy returns the current policy snapshot.
func (m *Model) Policy() *Policy {
	if st := m.state.Load(); st != nil {
		return st.policy
	}
	return nil
}

// Configure merges s over the current policy (or the defaults) and opens
// the cipher engine. Errors are configuration errors: the previous policy
// stays in effect.
func (m *Model) Configure(ctx context.Context, s Settings) (*Policy, error) {
	m.cfgMu.Lock()
	defer m.cfgMu.Unlock()

	prev := m.state.Load()
	base := defaultPolicy(m.name)
	if prev != nil {
		base = prev.policy
	}
	next := base.merge(s)

	if next.envelope.Prefix == "" {
		return nil, newConfigError(ErrInvalidParameters, "prefix", m.name)
	}
	if !IsValidKeyDerivation(next.keyDerivation) {
		return nil, newConfigError(ErrUnsupportedAlgorithm, string(next.keyDerivation), m.name)
	}

	var session *Session
	if prev != nil && !prev.session.isClosed() && prev.session.Algorithm() == next.algorithm &&
		prev.session.Mode() == next.mode && prev.session.Directories() == next.dirs {
		session = prev.session
	} else {
		var err error
		session, err = Open(next.algorithm, next.mode, next.dirs)
		if err != nil {
			var ce *ConfigError
			if errors.As(err, &ce) {
				ce.RecordType = m.name
			}
			return nil, err
		}
	}

	secret := m.registry.secret
	if !next.explicitKey {
		switch next.keyDerivation {
		case KeyDerivationHKDF:
			key, err := session.DeriveKeyHKDF(secret)
			if err != nil {
				return nil, newConfigError(err, string(KeyDerivationHKDF), m.name)
			}
			next.key = key
		default:
			next.key = session.DeriveKey(secret)
		}
	}
	if !next.explicitIV {
		next.iv = session.DeriveIV(secret)
	}

	m.state.Store(&modelState{policy: next, session: session})
	emitConfigured(ctx, next)
	return next, nil
}

// Encrypt is the manual encryption API for callers that bypass the hooks.
// Already-encrypted and empty values are returned unchanged.
func (m *Model) Encrypt(ctx context.Context, value string) (string, error) {
	st, err := m.current()
	if err != nil {
		return "", err
	}
	out, _, err := m.encryptScalar(ctx, st, "", TypeString, value)
	if err != nil {
		return "", err
	}
	s, _ := out.(string)
	return s, nil
}

// Decrypt is the manual decryption API. Values without the prefix are
// returned unchanged.
func (m *Model) Decrypt(ctx context.Context, envelope string) (string, error) {
	st, err := m.current()
	if err != nil {
		return "", err
	}
	out, _, err := m.decryptScalar(st, "", TypeString, envelope)
	if err != nil {
		emitDecryptFailed(ctx, m.name, "", err)
		return envelope, err
	}
	s, _ := out.(string)
	return s, nil
}

// BeforeFind rewrites query conditions so comparands of managed fields
// match their stored envelopes.
func (m *Model) BeforeFind(ctx context.Context, conditions any) (any, error) {
	st, err := m.current()
	if err != nil {
		return nil, err
	}
	if conditions == nil || len(st.policy.fields) == 0 {
		return conditions, nil
	}

	start := time.Now()
	emitQueryStart(ctx, m.name)

	w := &conditionWalker{ctx: ctx, model: m, state: st}
	var retErr error
	defer func() {
		emitQueryComplete(ctx, m.name, time.Since(start), w.encrypted, retErr)
	}()

	root, err := Parse(conditions, m.registry.maxDepth)
	if err != nil {
		retErr = err
		return nil, retErr
	}
	out, err := w.walk(root)
	if err != nil {
		retErr = err
		return nil, retErr
	}
	return out.Value(), nil
}

// BeforeSave encrypts managed fields of an outgoing record. The input map
// is not modified. Any failure aborts the write.
func (m *Model) BeforeSave(ctx context.Context, record map[string]any) (map[string]any, error) {
	st, err := m.current()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	emitWriteStart(ctx, m.name)

	encrypted := 0
	var retErr error
	defer func() {
		emitWriteComplete(ctx, m.name, time.Since(start), encrypted, retErr)
	}()

	out := make(map[string]any, len(record))
	for k, v := range record {
		out[k] = v
	}

	for _, field := range st.policy.Fields() {
		value, ok := out[field]
		if !ok {
			continue
		}
		dt := m.registry.datatype(m.name, field)
		if !st.policy.IsManaged(field, dt) {
			continue
		}
		enc, changed, err := m.encryptScalar(ctx, st, field, dt, value)
		if err != nil {
			retErr = err
			return nil, retErr
		}
		if changed {
			out[field] = enc
			encrypted++
		}
	}

	return out, nil
}

// AfterFind decrypts a primary query result. Non-primary results and
// policies with AutoDecrypt disabled pass through unchanged. Values that
// fail to decrypt are left as stored.
func (m *Model) AfterFind(ctx context.Context, result any, primary bool) (any, error) {
	st, err := m.current()
	if err != nil {
		return nil, err
	}
	if result == nil || !primary || !st.policy.autoDecrypt || len(st.policy.fields) == 0 {
		return result, nil
	}
	return m.decryptTree(ctx, st, result, "")
}

// DecryptRecord decrypts a flat record, or a list of flat records, whose top
// level belongs to this record type. It ignores AutoDecrypt.
func (m *Model) DecryptRecord(ctx context.Context, record any) (any, error) {
	st, err := m.current()
	if err != nil {
		return nil, err
	}
	if record == nil || len(st.policy.fields) == 0 {
		return record, nil
	}
	return m.decryptTree(ctx, st, record, m.name)
}

func (m *Model) decryptTree(ctx context.Context, st *modelState, result any, owner string) (any, error) {
	start := time.Now()
	emitResultStart(ctx, m.name)

	w := &resultWalker{ctx: ctx, model: m, state: st}
	var retErr error
	defer func() {
		emitResultComplete(ctx, m.name, time.Since(start), w.decrypted, w.failed, retErr)
	}()

	root, err := Parse(result, m.registry.maxDepth)
	if err != nil {
		retErr = err
		return nil, retErr
	}
	return w.walk(root, owner).Value(), nil
}

func (m *Model) current() (*modelState, error) {
	st := m.state.Load()
	if st == nil {
		return nil, newConfigError(ErrUnknownRecordType, "", m.name)
	}
	return st, nil
}

// encryptScalar encrypts one comparand or field value. It reports false when
// the value was left alone (empty, non-textual, or already an envelope).
// []byte input yields []byte output.
func (m *Model) encryptScalar(ctx context.Context, st *modelState, field string, dt Datatype, value any) (any, bool, error) {
	s, ok := stringify(value)
	if !ok || s == "" || st.policy.envelope.IsEncrypted(s) {
		return value, false, nil
	}

	ct, err := st.session.Encrypt([]byte(s), st.policy.key, st.policy.iv)
	if err != nil {
		err = newTransformError(ErrEncrypt, m.name, field, err)
		emitEncryptFailed(ctx, m.name, field, m.registry.masker.Mask(s), err)
		return value, false, err
	}

	env := st.policy.envelope.Encode(ct, dt)
	if _, isBytes := value.([]byte); isBytes {
		return []byte(env), true, nil
	}
	return env, true, nil
}

// decryptScalar reverses encryptScalar. Values that are not envelopes are
// returned unchanged with false.
func (m *Model) decryptScalar(st *modelState, field string, dt Datatype, value any) (any, bool, error) {
	if !st.policy.envelope.IsEncrypted(value) {
		return value, false, nil
	}

	var env string
	b, isBytes := value.([]byte)
	if isBytes {
		env = string(b)
	} else {
		env, _ = value.(string)
	}

	ct, err := st.policy.envelope.Decode(env, dt)
	if err != nil {
		return value, false, newTransformError(ErrDecrypt, m.name, field, err)
	}
	pt, err := st.session.Decrypt(ct, st.policy.key, st.policy.iv)
	if err != nil {
		return value, false, newTransformError(ErrDecrypt, m.name, field, err)
	}

	if isBytes {
		return bytes.Clone(pt), true, nil
	}
	return string(pt), true, nil
}
