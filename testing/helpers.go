// Package testing provides test utilities for veil.
package testing

import (
	"context"
	"testing"

	"github.com/zoobzio/veil"
)

// TestSecret returns a master secret long enough for every supported algorithm.
func TestSecret() []byte {
	return []byte("32-byte-secret-for-veil-testing!")
}

// TestSchema returns datatypes for the User and Comment record types.
func TestSchema() veil.SchemaMap {
	return veil.SchemaMap{
		"User": {
			"id":     veil.TypePrimaryKey,
			"email":  veil.TypeString,
			"phone":  veil.TypeString,
			"ssn":    veil.TypeString,
			"active": veil.TypeBoolean,
			"age":    veil.TypeInteger,
		},
		"Comment": {
			"id":   veil.TypePrimaryKey,
			"body": veil.TypeText,
		},
	}
}

// NewTestRegistry returns a registry with User (email, phone, ssn, active)
// and Comment (body) configured. It is closed when the test ends.
func NewTestRegistry(tb testing.TB, opts ...veil.Option) *veil.Registry {
	tb.Helper()

	base := []veil.Option{veil.WithSecret(TestSecret()), veil.WithSchema(TestSchema())}
	reg := veil.NewRegistry(append(base, opts...)...)
	tb.Cleanup(func() { _ = reg.Close() })

	ctx := context.Background()
	if _, err := reg.Configure(ctx, "User", veil.Settings{Fields: []string{"email", "phone", "ssn", "active"}}); err != nil {
		tb.Fatalf("Configure(User) error: %v", err)
	}
	if _, err := reg.Configure(ctx, "Comment", veil.Settings{Fields: []string{"body"}}); err != nil {
		tb.Fatalf("Configure(Comment) error: %v", err)
	}
	return reg
}

// User is a record type described by struct tags, for Introspect.
type User struct {
	ID     int64  `db:"id" veil:"primary_key"`
	Email  string `db:"email" veil:"encrypt"`
	Phone  string `db:"phone" veil:"encrypt"`
	SSN    string `db:"ssn" veil:"encrypt"`
	Active bool   `db:"active" veil:"encrypt"`
	Name   string `db:"name"`
}

// SampleUser returns a User row as a data layer would hand it to BeforeSave.
func SampleUser() map[string]any {
	return map[string]any{
		"id":     int64(1),
		"email":  "alice@example.com",
		"phone":  "555-123-4567",
		"ssn":    "123-45-6789",
		"active": true,
		"name":   "Alice",
	}
}

// Wrap nests a row under its record type inside a one-row result, the shape
// AfterFind receives from a find call.
func Wrap(recordType string, row map[string]any) []any {
	return []any{map[string]any{recordType: row}}
}

// Unwrap reverses Wrap.
func Unwrap(tb testing.TB, result any, recordType string) map[string]any {
	tb.Helper()
	rows, ok := result.([]any)
	if !ok || len(rows) != 1 {
		tb.Fatalf("result = %#v, want one row", result)
	}
	row, ok := rows[0].(map[string]any)[recordType].(map[string]any)
	if !ok {
		tb.Fatalf("row = %#v, want %s record", rows[0], recordType)
	}
	return row
}
