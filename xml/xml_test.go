package xml

import (
	"testing"

	"github.com/zoobzio/veil"
)

func TestNew(t *testing.T) {
	c := New()
	if c == nil {
		t.Fatal("New() returned nil")
	}
}

func TestContentType(t *testing.T) {
	c := New()
	if ct := c.ContentType(); ct != "application/xml" {
		t.Errorf("ContentType() = %q, want %q", ct, "application/xml")
	}
}

func TestUnmarshal_MalformedXML(t *testing.T) {
	c := New()

	testCases := []struct {
		name  string
		input string
	}{
		{"unclosed tag", "<veil><secret>test</veil>"},
		{"mismatched tags", "<veil></wrong>"},
		{"unclosed element", "<veil><model>"},
		{"invalid attribute", `<veil><model name=>x</model></veil>`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var cfg veil.Config
			if err := c.Unmarshal([]byte(tc.input), &cfg); err == nil {
				t.Errorf("Unmarshal(%q) should return error", tc.input)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	doc := `<veil>
	<secret>hex:0011223344556677</secret>
	<max_depth>8</max_depth>
	<model name="User">
		<field>email</field>
		<field>phone</field>
		<auto_decrypt>false</auto_decrypt>
		<disabled_type>boolean</disabled_type>
	</model>
	<model name="Comment">
		<field>body</field>
		<prefix>#c#</prefix>
		<algorithm>twofish</algorithm>
	</model>
</veil>`

	cfg, err := veil.LoadConfig(New(), []byte(doc))
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.Secret != "hex:0011223344556677" {
		t.Errorf("Secret = %q", cfg.Secret)
	}
	if cfg.MaxDepth != 8 {
		t.Errorf("MaxDepth = %d, want 8", cfg.MaxDepth)
	}
	if len(cfg.Models) != 2 {
		t.Fatalf("len(Models) = %d, want 2", len(cfg.Models))
	}

	user := cfg.Models[0]
	if user.Name != "User" {
		t.Errorf("Name = %q, want %q", user.Name, "User")
	}
	if len(user.Fields) != 2 || user.Fields[0] != "email" || user.Fields[1] != "phone" {
		t.Errorf("Fields = %v, want [email phone]", user.Fields)
	}
	if user.AutoDecrypt == nil || *user.AutoDecrypt {
		t.Errorf("AutoDecrypt = %v, want false", user.AutoDecrypt)
	}
	if len(user.DisabledTypes) != 1 || user.DisabledTypes[0] != "boolean" {
		t.Errorf("DisabledTypes = %v, want [boolean]", user.DisabledTypes)
	}

	comment := cfg.Models[1]
	if comment.Prefix == nil || *comment.Prefix != "#c#" {
		t.Errorf("Prefix = %v, want #c#", comment.Prefix)
	}
	if comment.Algorithm != "twofish" {
		t.Errorf("Algorithm = %q, want %q", comment.Algorithm, "twofish")
	}
}
