package veil

import (
	"bytes"
	"context"
	"sort"
	"sync"
)

// Registry holds the models of every configured record type.
//
// Configuration is expected once per record type at startup, but the
// registry tolerates reconfiguration alongside hook traffic.
type Registry struct {
	mu     sync.RWMutex
	models map[string]*Model

	secret   []byte
	schema   Schema
	maxDepth int
	masker   Masker
}

// Option configures a Registry.
type Option func(*Registry)

// WithSecret sets the master secret that keys and IVs are derived from when
// a record type's settings do not supply them.
func WithSecret(secret []byte) Option {
	return func(r *Registry) {
		r.secret = bytes.Clone(secret)
	}
}

// WithSchema sets the datatype lookup. Without one every field is TypeString.
func WithSchema(s Schema) Option {
	return func(r *Registry) {
		r.schema = s
	}
}

// WithMaxDepth bounds condition and result tree depth.
func WithMaxDepth(depth int) Option {
	return func(r *Registry) {
		if depth > 0 {
			r.maxDepth = depth
		}
	}
}

// WithMasker sets the masker applied to values before they appear in events.
func WithMasker(m Masker) Option {
	return func(r *Registry) {
		if m != nil {
			r.masker = m
		}
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		models:   make(map[string]*Model),
		maxDepth: DefaultMaxDepth,
		masker:   DefaultMasker(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Configure creates or reconfigures the model for recordType.
func (r *Registry) Configure(ctx context.Context, recordType string, s Settings) (*Policy, error) {
	return r.model(recordType).Configure(ctx, s)
}

// model returns the model for recordType, creating it if needed.
func (r *Registry) model(recordType string) *Model {
	// Fast path: read-lock lookup
	r.mu.RLock()
	if m, ok := r.models[recordType]; ok {
		r.mu.RUnlock()
		return m
	}
	r.mu.RUnlock()

	// Slow path: create with write-lock
	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check pattern
	if m, ok := r.models[recordType]; ok {
		return m
	}

	m := newModel(recordType, r)
	r.models[recordType] = m
	return m
}

// Model returns the configured model for recordType.
func (r *Registry) Model(recordType string) (*Model, error) {
	r.mu.RLock()
	m, ok := r.models[recordType]
	r.mu.RUnlock()
	if !ok || m.Policy() == nil {
		return nil, newConfigError(ErrUnknownRecordType, "", recordType)
	}
	return m, nil
}

// Policy returns the current policy for recordType.
func (r *Registry) Policy(recordType string) (*Policy, bool) {
	m, err := r.Model(recordType)
	if err != nil {
		return nil, false
	}
	return m.Policy(), true
}

// RecordTypes returns the configured record type names, sorted.
func (r *Registry) RecordTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.models))
	for name, m := range r.models {
		if m.Policy() != nil {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// BeforeFind rewrites conditions for recordType. See Model.BeforeFind.
func (r *Registry) BeforeFind(ctx context.Context, recordType string, conditions any) (any, error) {
	m, err := r.Model(recordType)
	if err != nil {
		return nil, err
	}
	return m.BeforeFind(ctx, conditions)
}

// BeforeSave encrypts an outgoing record of recordType. See Model.BeforeSave.
func (r *Registry) BeforeSave(ctx context.Context, recordType string, record map[string]any) (map[string]any, error) {
	m, err := r.Model(recordType)
	if err != nil {
		return nil, err
	}
	return m.BeforeSave(ctx, record)
}

// AfterFind decrypts a result for recordType. See Model.AfterFind.
func (r *Registry) AfterFind(ctx context.Context, recordType string, result any, primary bool) (any, error) {
	m, err := r.Model(recordType)
	if err != nil {
		return nil, err
	}
	return m.AfterFind(ctx, result, primary)
}

// DecryptRecord decrypts a flat record of recordType. See Model.DecryptRecord.
func (r *Registry) DecryptRecord(ctx context.Context, recordType string, record any) (any, error) {
	m, err := r.Model(recordType)
	if err != nil {
		return nil, err
	}
	return m.DecryptRecord(ctx, record)
}

// Close releases every model's cipher engine. Transforms fail until the
// model is configured again.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.models {
		if st := m.state.Load(); st != nil {
			_ = st.session.Close()
		}
	}
	return nil
}

func (r *Registry) datatype(recordType, field string) Datatype {
	if r.schema == nil {
		return TypeString
	}
	if dt := r.schema.Datatype(recordType, field); dt != "" {
		return dt
	}
	return TypeString
}
