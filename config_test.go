package veil

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestFieldList_JSON(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{`"email"`, []string{"email"}},
		{`["email","phone"]`, []string{"email", "phone"}},
		{`[]`, []string{}},
	}
	for _, tt := range tests {
		var f FieldList
		if err := json.Unmarshal([]byte(tt.in), &f); err != nil {
			t.Fatalf("Unmarshal(%s) error: %v", tt.in, err)
		}
		if len(f) != len(tt.want) {
			t.Errorf("Unmarshal(%s) = %v, want %v", tt.in, f, tt.want)
			continue
		}
		for i := range f {
			if f[i] != tt.want[i] {
				t.Errorf("Unmarshal(%s) = %v, want %v", tt.in, f, tt.want)
			}
		}
	}

	var f FieldList
	if err := json.Unmarshal([]byte(`{"a":1}`), &f); err == nil {
		t.Error("Unmarshal(object) should return error")
	}
}

func TestFieldList_YAML(t *testing.T) {
	var doc struct {
		One  FieldList `yaml:"one"`
		Many FieldList `yaml:"many"`
	}
	if err := yaml.Unmarshal([]byte("one: email\nmany: [a, b]\n"), &doc); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if len(doc.One) != 1 || doc.One[0] != "email" {
		t.Errorf("one = %v, want [email]", doc.One)
	}
	if len(doc.Many) != 2 || doc.Many[1] != "b" {
		t.Errorf("many = %v, want [a b]", doc.Many)
	}
}

func TestModelConfig_Settings(t *testing.T) {
	off := false
	mc := ModelConfig{
		Name:               "User",
		Key:                "hex:00010203",
		IV:                 "rawiv",
		Fields:             FieldList{"email"},
		AutoDecrypt:        &off,
		Algorithm:          "blowfish",
		Mode:               "cbc",
		AlgorithmDirectory: "/usr/lib/mcrypt",
		DisabledTypes:      []string{"boolean"},
		KeyDerivation:      "legacy",
	}

	s, err := mc.Settings()
	if err != nil {
		t.Fatalf("Settings() error: %v", err)
	}
	if !bytes.Equal(s.Key, []byte{0, 1, 2, 3}) {
		t.Errorf("Key = %x, want 00010203", s.Key)
	}
	if string(s.IV) != "rawiv" {
		t.Errorf("IV = %q, want %q", s.IV, "rawiv")
	}
	if s.Algorithm != AlgorithmBlowfish || s.Mode != ModeCBC {
		t.Errorf("cipher = %s/%s, want blowfish/cbc", s.Algorithm, s.Mode)
	}
	if s.Directories == nil || s.Directories.Algorithm != "/usr/lib/mcrypt" {
		t.Errorf("Directories = %+v", s.Directories)
	}
	if len(s.DisabledTypes) != 1 || s.DisabledTypes[0] != TypeBoolean {
		t.Errorf("DisabledTypes = %v, want [boolean]", s.DisabledTypes)
	}
	if s.AutoDecrypt == nil || *s.AutoDecrypt {
		t.Error("AutoDecrypt should be false")
	}

	if _, err := (ModelConfig{Name: "User", Key: "hex:zz"}).Settings(); err == nil {
		t.Error("Settings() with bad hex key should return error")
	}

	empty, err := (ModelConfig{Name: "User"}).Settings()
	if err != nil {
		t.Fatalf("Settings() error: %v", err)
	}
	if empty.Fields != nil || empty.Key != nil || empty.Directories != nil {
		t.Errorf("empty config produced %+v, want unspecified settings", empty)
	}
}

func TestNewRegistryFromConfig(t *testing.T) {
	ctx := context.Background()
	cfg := &Config{
		Secret:   "hex:000102030405060708090a0b0c0d0e0f",
		MaxDepth: 4,
		Models: []ModelConfig{
			{Name: "User", Fields: FieldList{"email"}},
			{Name: "Comment", Fields: FieldList{"body"}, Mode: "cbc"},
		},
	}

	reg, err := NewRegistryFromConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("NewRegistryFromConfig() error: %v", err)
	}
	defer reg.Close()

	if got := reg.RecordTypes(); len(got) != 2 {
		t.Errorf("RecordTypes() = %v, want 2", got)
	}
	if reg.maxDepth != 4 {
		t.Errorf("maxDepth = %d, want 4", reg.maxDepth)
	}
	if len(reg.secret) != 16 {
		t.Errorf("len(secret) = %d, want 16", len(reg.secret))
	}
	p, _ := reg.Policy("Comment")
	if p.Mode() != ModeCBC {
		t.Errorf("Comment mode = %q, want cbc", p.Mode())
	}
}

func TestNewRegistryFromConfig_Errors(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		cfg  *Config
	}{
		{"bad secret", &Config{Secret: "hex:xyz"}},
		{"unnamed model", &Config{Models: []ModelConfig{{Fields: FieldList{"email"}}}}},
		{"bad key", &Config{Models: []ModelConfig{{Name: "User", Key: "hex:q"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewRegistryFromConfig(ctx, tt.cfg); err == nil {
				t.Error("NewRegistryFromConfig() should return error")
			}
		})
	}

	_, err := NewRegistryFromConfig(ctx, &Config{Models: []ModelConfig{{Name: "User", Algorithm: "rot13"}}})
	if !errors.Is(err, ErrUnsupportedAlgorithm) {
		t.Errorf("NewRegistryFromConfig(rot13) error = %v, want ErrUnsupportedAlgorithm", err)
	}
}
