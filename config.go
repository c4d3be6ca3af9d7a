package veil

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is a complete veil configuration document.
type Config struct {
	Secret   string        `json:"secret,omitempty" yaml:"secret,omitempty" xml:"secret,omitempty" bson:"secret,omitempty" msgpack:"secret,omitempty"`
	MaxDepth int           `json:"max_depth,omitempty" yaml:"max_depth,omitempty" xml:"max_depth,omitempty" bson:"max_depth,omitempty" msgpack:"max_depth,omitempty"`
	Models   []ModelConfig `json:"models" yaml:"models" xml:"model" bson:"models" msgpack:"models"`
}

// ModelConfig is the serializable form of one record type's Settings.
//
// Key, IV and Secret are taken as raw bytes; a "hex:" prefix selects hex.
type ModelConfig struct {
	Name               string    `json:"name" yaml:"name" xml:"name,attr" bson:"name" msgpack:"name"`
	Key                string    `json:"key,omitempty" yaml:"key,omitempty" xml:"key,omitempty" bson:"key,omitempty" msgpack:"key,omitempty"`
	IV                 string    `json:"iv,omitempty" yaml:"iv,omitempty" xml:"iv,omitempty" bson:"iv,omitempty" msgpack:"iv,omitempty"`
	Fields             FieldList `json:"fields,omitempty" yaml:"fields,omitempty" xml:"field" bson:"fields,omitempty" msgpack:"fields,omitempty"`
	Prefix             *string   `json:"prefix,omitempty" yaml:"prefix,omitempty" xml:"prefix,omitempty" bson:"prefix,omitempty" msgpack:"prefix,omitempty"`
	AutoDecrypt        *bool     `json:"auto_decrypt,omitempty" yaml:"auto_decrypt,omitempty" xml:"auto_decrypt,omitempty" bson:"auto_decrypt,omitempty" msgpack:"auto_decrypt,omitempty"`
	Algorithm          string    `json:"algorithm,omitempty" yaml:"algorithm,omitempty" xml:"algorithm,omitempty" bson:"algorithm,omitempty" msgpack:"algorithm,omitempty"`
	Mode               string    `json:"mode,omitempty" yaml:"mode,omitempty" xml:"mode,omitempty" bson:"mode,omitempty" msgpack:"mode,omitempty"`
	AlgorithmDirectory string    `json:"algorithm_directory,omitempty" yaml:"algorithm_directory,omitempty" xml:"algorithm_directory,omitempty" bson:"algorithm_directory,omitempty" msgpack:"algorithm_directory,omitempty"`
	ModeDirectory      string    `json:"mode_directory,omitempty" yaml:"mode_directory,omitempty" xml:"mode_directory,omitempty" bson:"mode_directory,omitempty" msgpack:"mode_directory,omitempty"`
	DisabledTypes      []string  `json:"disabled_types,omitempty" yaml:"disabled_types,omitempty" xml:"disabled_type" bson:"disabled_types,omitempty" msgpack:"disabled_types,omitempty"`
	KeyDerivation      string    `json:"key_derivation,omitempty" yaml:"key_derivation,omitempty" xml:"key_derivation,omitempty" bson:"key_derivation,omitempty" msgpack:"key_derivation,omitempty"`
}

// FieldList is a list of field names that also decodes from a single
// scalar, so `fields: email` and `fields: [email]` are equivalent.
type FieldList []string

// UnmarshalJSON accepts a string or an array of strings.
func (f *FieldList) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*f = FieldList{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("fields: %w", err)
	}
	*f = many
	return nil
}

// UnmarshalYAML accepts a scalar or a sequence.
func (f *FieldList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*f = FieldList{node.Value}
		return nil
	}
	var many []string
	if err := node.Decode(&many); err != nil {
		return fmt.Errorf("fields: %w", err)
	}
	*f = many
	return nil
}

// LoadConfig decodes a configuration document with codec.
func LoadConfig(codec Codec, data []byte) (*Config, error) {
	var cfg Config
	if err := codec.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode %s config: %w", codec.ContentType(), err)
	}
	return &cfg, nil
}

// Settings converts the document form to Settings.
func (mc ModelConfig) Settings() (Settings, error) {
	s := Settings{
		Prefix:        mc.Prefix,
		AutoDecrypt:   mc.AutoDecrypt,
		Algorithm:     Algorithm(mc.Algorithm),
		Mode:          Mode(mc.Mode),
		KeyDerivation: KeyDerivation(mc.KeyDerivation),
	}
	if mc.Fields != nil {
		s.Fields = append([]string(nil), mc.Fields...)
	}
	if mc.DisabledTypes != nil {
		s.DisabledTypes = make([]Datatype, len(mc.DisabledTypes))
		for i, dt := range mc.DisabledTypes {
			s.DisabledTypes[i] = Datatype(dt)
		}
	}
	if mc.AlgorithmDirectory != "" || mc.ModeDirectory != "" {
		s.Directories = &Directories{Algorithm: mc.AlgorithmDirectory, Mode: mc.ModeDirectory}
	}

	var err error
	if s.Key, err = decodeSecret(mc.Key); err != nil {
		return Settings{}, fmt.Errorf("model %s key: %w", mc.Name, err)
	}
	if s.IV, err = decodeSecret(mc.IV); err != nil {
		return Settings{}, fmt.Errorf("model %s iv: %w", mc.Name, err)
	}
	return s, nil
}

// NewRegistryFromConfig builds a registry and configures every model in cfg.
// Options are applied after the document's own settings.
func NewRegistryFromConfig(ctx context.Context, cfg *Config, opts ...Option) (*Registry, error) {
	secret, err := decodeSecret(cfg.Secret)
	if err != nil {
		return nil, fmt.Errorf("secret: %w", err)
	}

	base := []Option{WithSecret(secret), WithMaxDepth(cfg.MaxDepth)}
	r := NewRegistry(append(base, opts...)...)

	for _, mc := range cfg.Models {
		if mc.Name == "" {
			return nil, fmt.Errorf("model without a name")
		}
		s, err := mc.Settings()
		if err != nil {
			return nil, err
		}
		if _, err := r.Configure(ctx, mc.Name, s); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// decodeSecret returns nil for "", hex-decodes "hex:..." and otherwise
// returns the raw bytes.
func decodeSecret(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	if rest, ok := strings.CutPrefix(s, "hex:"); ok {
		return hex.DecodeString(rest)
	}
	return []byte(s), nil
}
