package veil

import (
	"bytes"
	"sort"
)

// Settings configure one record type. Zero values mean "unspecified": on
// reconfiguration they leave the previous value in place.
type Settings struct {
	Key           []byte        // explicit key, used verbatim
	IV            []byte        // explicit IV, used verbatim
	Fields        []string      // managed field names, optionally "Owner.field"
	Prefix        *string       // envelope prefix
	AutoDecrypt   *bool         // decrypt primary results automatically
	Algorithm     Algorithm     // cipher algorithm
	Mode          Mode          // cipher mode
	Directories   *Directories  // algorithm/mode search paths
	DisabledTypes []Datatype    // datatypes never encrypted
	KeyDerivation KeyDerivation // how Key/IV are derived from the registry secret
}

// Policy is an immutable snapshot of a record type's configuration.
// Reconfiguration produces a new Policy; readers holding the old one are unaffected.
type Policy struct {
	recordType    string
	fields        map[string]struct{}
	disabled      map[Datatype]struct{}
	envelope      Envelope
	autoDecrypt   bool
	algorithm     Algorithm
	mode          Mode
	dirs          Directories
	keyDerivation KeyDerivation
	key           []byte
	iv            []byte
	explicitKey   bool
	explicitIV    bool
}

// defaultPolicy returns the hard defaults for a new record type.
func defaultPolicy(recordType string) *Policy {
	return &Policy{
		recordType:    recordType,
		fields:        map[string]struct{}{},
		disabled:      toTypeSet(DefaultDisabledTypes()),
		envelope:      Envelope{Prefix: DefaultPrefix},
		autoDecrypt:   true,
		algorithm:     AlgorithmCAST128,
		mode:          ModeECB,
		keyDerivation: KeyDerivationLegacy,
	}
}

// merge returns a copy of p with s applied on top.
func (p *Policy) merge(s Settings) *Policy {
	next := *p
	next.fields = cloneSet(p.fields)
	next.disabled = cloneSet(p.disabled)

	if s.Fields != nil {
		next.fields = toFieldSet(s.Fields)
	}
	if s.DisabledTypes != nil {
		next.disabled = toTypeSet(s.DisabledTypes)
	}
	if s.Prefix != nil {
		next.envelope = Envelope{Prefix: *s.Prefix}
	}
	if s.AutoDecrypt != nil {
		next.autoDecrypt = *s.AutoDecrypt
	}
	if s.Algorithm != "" {
		next.algorithm = s.Algorithm
	}
	if s.Mode != "" {
		next.mode = s.Mode
	}
	if s.Directories != nil {
		next.dirs = *s.Directories
	}
	if s.KeyDerivation != "" {
		next.keyDerivation = s.KeyDerivation
	}
	if s.Key != nil {
		next.key = bytes.Clone(s.Key)
		next.explicitKey = true
	}
	if s.IV != nil {
		next.iv = bytes.Clone(s.IV)
		next.explicitIV = true
	}
	return &next
}

// RecordType returns the record type this policy governs.
func (p *Policy) RecordType() string { return p.recordType }

// Fields returns the managed field names, sorted.
func (p *Policy) Fields() []string {
	out := make([]string, 0, len(p.fields))
	for f := range p.fields {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// HasField reports whether name is in the managed set. Datatypes are not consulted.
func (p *Policy) HasField(name string) bool {
	_, ok := p.fields[name]
	return ok
}

// IsDisabled reports whether values of datatype dt are exempt from encryption.
func (p *Policy) IsDisabled(dt Datatype) bool {
	_, ok := p.disabled[dt]
	return ok
}

// IsManaged reports whether field is managed and its datatype is not exempt.
func (p *Policy) IsManaged(field string, dt Datatype) bool {
	return p.HasField(field) && !p.IsDisabled(dt)
}

// Envelope returns the envelope codec for this policy's prefix.
func (p *Policy) Envelope() Envelope { return p.envelope }

// Prefix returns the envelope prefix.
func (p *Policy) Prefix() string { return p.envelope.Prefix }

// AutoDecrypt reports whether primary results are decrypted automatically.
func (p *Policy) AutoDecrypt() bool { return p.autoDecrypt }

// Algorithm returns the configured cipher algorithm.
func (p *Policy) Algorithm() Algorithm { return p.algorithm }

// Mode returns the configured cipher mode.
func (p *Policy) Mode() Mode { return p.mode }

// KeyDerivation returns the configured key derivation scheme.
func (p *Policy) KeyDerivation() KeyDerivation { return p.keyDerivation }

func toFieldSet(fields []string) map[string]struct{} {
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if f != "" {
			set[f] = struct{}{}
		}
	}
	return set
}

func toTypeSet(types []Datatype) map[Datatype]struct{} {
	set := make(map[Datatype]struct{}, len(types))
	for _, t := range types {
		set[t] = struct{}{}
	}
	return set
}

func cloneSet[K comparable](in map[K]struct{}) map[K]struct{} {
	out := make(map[K]struct{}, len(in))
	for k := range in {
		out[k] = struct{}{}
	}
	return out
}
