package veil

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"testing"
)

var testSchema = SchemaMap{
	"User": {
		"id":     TypePrimaryKey,
		"active": TypeBoolean,
		"age":    TypeInteger,
		"bio":    TypeText,
		"avatar": TypeBinary,
	},
}

// newTestModel configures a User model on a fresh registry.
func newTestModel(t *testing.T, s Settings) *Model {
	t.Helper()
	reg := NewRegistry(WithSecret(testSecret), WithSchema(testSchema))
	t.Cleanup(func() { _ = reg.Close() })

	if _, err := reg.Configure(context.Background(), "User", s); err != nil {
		t.Fatalf("Configure() error: %v", err)
	}
	m, err := reg.Model("User")
	if err != nil {
		t.Fatalf("Model() error: %v", err)
	}
	return m
}

func mustEncrypt(t *testing.T, m *Model, value string) string {
	t.Helper()
	env, err := m.Encrypt(context.Background(), value)
	if err != nil {
		t.Fatalf("Encrypt(%q) error: %v", value, err)
	}
	return env
}

func TestModel_EncryptDecrypt(t *testing.T) {
	ctx := context.Background()
	m := newTestModel(t, Settings{Fields: []string{"email"}})

	env := mustEncrypt(t, m, "alice@example.com")
	if !m.Policy().Envelope().IsEncrypted(env) {
		t.Fatalf("Encrypt() = %q, want envelope", env)
	}

	got, err := m.Decrypt(ctx, env)
	if err != nil {
		t.Fatalf("Decrypt() error: %v", err)
	}
	if got != "alice@example.com" {
		t.Errorf("Decrypt() = %q, want %q", got, "alice@example.com")
	}

	if again := mustEncrypt(t, m, env); again != env {
		t.Error("Encrypt() re-encrypted an envelope")
	}
	if empty := mustEncrypt(t, m, ""); empty != "" {
		t.Errorf("Encrypt(\"\") = %q, want empty", empty)
	}
	if plain, _ := m.Decrypt(ctx, "plain"); plain != "plain" {
		t.Errorf("Decrypt(plain) = %q, want unchanged", plain)
	}

	if _, err := m.Decrypt(ctx, "$E$zz"); !errors.Is(err, ErrDecrypt) {
		t.Errorf("Decrypt(malformed) error = %v, want ErrDecrypt", err)
	}
}

func TestModel_Configure(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(WithSecret(testSecret))
	defer reg.Close()

	empty := ""
	_, err := reg.Configure(ctx, "User", Settings{Prefix: &empty})
	if !errors.Is(err, ErrInvalidParameters) {
		t.Errorf("Configure(empty prefix) error = %v, want ErrInvalidParameters", err)
	}

	_, err = reg.Configure(ctx, "User", Settings{KeyDerivation: "pbkdf2"})
	if !errors.Is(err, ErrUnsupportedAlgorithm) {
		t.Errorf("Configure(pbkdf2) error = %v, want ErrUnsupportedAlgorithm", err)
	}

	p, err := reg.Configure(ctx, "User", Settings{Fields: []string{"email"}, Mode: ModeCBC})
	if err != nil {
		t.Fatalf("Configure() error: %v", err)
	}
	if !bytes.Equal(p.key, []byte("fedcba9876543210")) {
		t.Errorf("derived key = %q, want reversed secret prefix", p.key)
	}
	if !bytes.Equal(p.iv, testSecret[:8]) {
		t.Errorf("derived iv = %q, want %q", p.iv, testSecret[:8])
	}
}

func TestModel_ConfigureReusesSession(t *testing.T) {
	ctx := context.Background()
	m := newTestModel(t, Settings{Fields: []string{"email"}})
	first := m.state.Load().session

	if _, err := m.Configure(ctx, Settings{Fields: []string{"email", "phone"}}); err != nil {
		t.Fatalf("Configure() error: %v", err)
	}
	if m.state.Load().session != first {
		t.Error("unchanged cipher pair should keep the session")
	}

	if _, err := m.Configure(ctx, Settings{Algorithm: AlgorithmBlowfish}); err != nil {
		t.Fatalf("Configure() error: %v", err)
	}
	if m.state.Load().session == first {
		t.Error("changed algorithm should open a new session")
	}
}

func TestModel_ExplicitKey(t *testing.T) {
	key := []byte("kkkkkkkkkkkkkkkk")
	m := newTestModel(t, Settings{Fields: []string{"email"}, Key: key})

	if !bytes.Equal(m.Policy().key, key) {
		t.Errorf("key = %q, want explicit key %q", m.Policy().key, key)
	}

	derived := newTestModel(t, Settings{Fields: []string{"email"}})
	if mustEncrypt(t, m, "x") == mustEncrypt(t, derived, "x") {
		t.Error("explicit and derived keys produced the same envelope")
	}
}

func TestModel_HKDF(t *testing.T) {
	ctx := context.Background()
	legacy := newTestModel(t, Settings{Fields: []string{"email"}})
	m := newTestModel(t, Settings{Fields: []string{"email"}, KeyDerivation: KeyDerivationHKDF})

	env := mustEncrypt(t, m, "alice@example.com")
	if env == mustEncrypt(t, legacy, "alice@example.com") {
		t.Error("hkdf and legacy keys produced the same envelope")
	}
	got, err := m.Decrypt(ctx, env)
	if err != nil || got != "alice@example.com" {
		t.Errorf("Decrypt() = %q, %v", got, err)
	}
}

func TestModel_BeforeSave(t *testing.T) {
	ctx := context.Background()
	m := newTestModel(t, Settings{Fields: []string{"email", "bio", "active", "age", "missing"}})

	record := map[string]any{
		"email":  "alice@example.com",
		"bio":    "",
		"active": true,
		"age":    42,
		"name":   "Alice",
	}
	out, err := m.BeforeSave(ctx, record)
	if err != nil {
		t.Fatalf("BeforeSave() error: %v", err)
	}

	if out["email"] != mustEncrypt(t, m, "alice@example.com") {
		t.Errorf("email = %v, want envelope", out["email"])
	}
	if out["bio"] != "" {
		t.Errorf("bio = %v, want empty string left alone", out["bio"])
	}
	if out["active"] != true {
		t.Errorf("active = %v, want boolean left alone", out["active"])
	}
	if out["age"] != 42 {
		t.Errorf("age = %v, want integer left alone", out["age"])
	}
	if out["name"] != "Alice" {
		t.Errorf("name = %v, want unmanaged field left alone", out["name"])
	}
	if _, ok := out["missing"]; ok {
		t.Error("BeforeSave() added an absent field")
	}
	if record["email"] != "alice@example.com" {
		t.Error("BeforeSave() modified its input")
	}

	again, err := m.BeforeSave(ctx, out)
	if err != nil {
		t.Fatalf("BeforeSave() error: %v", err)
	}
	if !reflect.DeepEqual(again, out) {
		t.Error("BeforeSave() re-encrypted envelopes")
	}
}

func TestModel_BeforeSaveBinary(t *testing.T) {
	ctx := context.Background()
	m := newTestModel(t, Settings{Fields: []string{"avatar"}})

	out, err := m.BeforeSave(ctx, map[string]any{"avatar": []byte("png-bytes")})
	if err != nil {
		t.Fatalf("BeforeSave() error: %v", err)
	}
	stored, ok := out["avatar"].([]byte)
	if !ok {
		t.Fatalf("avatar = %T, want []byte", out["avatar"])
	}
	if !bytes.HasPrefix(stored, []byte(DefaultPrefix)) {
		t.Errorf("avatar = %q, want raw envelope", stored)
	}

	res, err := m.DecryptRecord(ctx, out)
	if err != nil {
		t.Fatalf("DecryptRecord() error: %v", err)
	}
	if got := res.(map[string]any)["avatar"]; !bytes.Equal(got.([]byte), []byte("png-bytes")) {
		t.Errorf("avatar = %q, want %q", got, "png-bytes")
	}
}

func TestModel_BeforeSaveAbortsOnFailure(t *testing.T) {
	ctx := context.Background()
	m := newTestModel(t, Settings{Fields: []string{"email"}, Key: []byte("short")})

	out, err := m.BeforeSave(ctx, map[string]any{"email": "alice@example.com"})
	if out != nil {
		t.Errorf("BeforeSave() = %v, want nil on failure", out)
	}
	if !errors.Is(err, ErrEncrypt) || !errors.Is(err, ErrIncorrectKeySize) {
		t.Errorf("BeforeSave() error = %v, want ErrEncrypt wrapping ErrIncorrectKeySize", err)
	}
	var te *TransformError
	if !errors.As(err, &te) || te.Field != "email" || te.RecordType != "User" {
		t.Errorf("TransformError = %+v, want User.email", te)
	}
}

func TestModel_AfterFindPassThrough(t *testing.T) {
	ctx := context.Background()
	m := newTestModel(t, Settings{Fields: []string{"email"}})
	env := mustEncrypt(t, m, "alice@example.com")
	result := []any{map[string]any{"User": map[string]any{"email": env}}}

	out, err := m.AfterFind(ctx, result, false)
	if err != nil {
		t.Fatalf("AfterFind() error: %v", err)
	}
	if !reflect.DeepEqual(out, result) {
		t.Error("AfterFind(non-primary) should pass through")
	}

	off := false
	if _, err := m.Configure(ctx, Settings{AutoDecrypt: &off}); err != nil {
		t.Fatalf("Configure() error: %v", err)
	}
	out, err = m.AfterFind(ctx, result, true)
	if err != nil {
		t.Fatalf("AfterFind() error: %v", err)
	}
	if !reflect.DeepEqual(out, result) {
		t.Error("AfterFind() with auto decrypt off should pass through")
	}

	rec, err := m.DecryptRecord(ctx, map[string]any{"email": env})
	if err != nil {
		t.Fatalf("DecryptRecord() error: %v", err)
	}
	if got := rec.(map[string]any)["email"]; got != "alice@example.com" {
		t.Errorf("DecryptRecord() email = %v, want plaintext", got)
	}
}

func TestModel_Unconfigured(t *testing.T) {
	m := newModel("User", NewRegistry())
	if _, err := m.BeforeSave(context.Background(), map[string]any{}); !errors.Is(err, ErrUnknownRecordType) {
		t.Errorf("BeforeSave() error = %v, want ErrUnknownRecordType", err)
	}
	if m.Policy() != nil {
		t.Error("Policy() should be nil before Configure")
	}
}

func TestModel_RoundTripAllCiphers(t *testing.T) {
	ctx := context.Background()

	for _, alg := range SupportedAlgorithms() {
		mode := ModeCBC
		if alg == AlgorithmArcfour {
			mode = ModeStream
		}
		t.Run(string(alg), func(t *testing.T) {
			m := newTestModel(t, Settings{Fields: []string{"email"}, Algorithm: alg, Mode: mode})

			row, err := m.BeforeSave(ctx, map[string]any{"email": "alice@example.com"})
			if err != nil {
				t.Fatalf("BeforeSave() error: %v", err)
			}
			out, err := m.AfterFind(ctx, []any{map[string]any{"User": row}}, true)
			if err != nil {
				t.Fatalf("AfterFind() error: %v", err)
			}
			got := out.([]any)[0].(map[string]any)["User"].(map[string]any)["email"]
			if got != "alice@example.com" {
				t.Errorf("email = %v, want plaintext", got)
			}
		})
	}
}

func TestModel_LegacyDefaultsKnownAnswer(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(WithSecret(legacySecret))
	t.Cleanup(func() { _ = reg.Close() })

	if _, err := reg.Configure(ctx, "User", Settings{Fields: []string{"email"}}); err != nil {
		t.Fatalf("Configure() error: %v", err)
	}
	m, err := reg.Model("User")
	if err != nil {
		t.Fatalf("Model() error: %v", err)
	}

	const want = "$E$220ab567563d09aaf51c3b1da6cf3c3762472389703d4b67"
	env, err := m.Encrypt(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}
	if env != want {
		t.Errorf("Encrypt() = %q, want %q", env, want)
	}

	got, err := m.Decrypt(ctx, want)
	if err != nil {
		t.Fatalf("Decrypt() error: %v", err)
	}
	if got != "alice@example.com" {
		t.Errorf("Decrypt() = %q, want %q", got, "alice@example.com")
	}
}
