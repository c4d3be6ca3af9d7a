// Package veil provides transparent field-level encryption at the
// persistence boundary.
//
// Selected fields of a record are encrypted before they are written and
// decrypted after they are read. Query conditions are rewritten so that
// equality comparisons against encrypted fields still match.
//
// # Record Types
//
// Each record type (table, collection, model) gets its own policy:
//
//	reg := veil.NewRegistry(
//	    veil.WithSecret(appSecret),
//	    veil.WithSchema(schema),
//	)
//	_, err := reg.Configure(ctx, "User", veil.Settings{
//	    Fields: []string{"email", "phone"},
//	})
//
// Reconfiguring merges: settings left at their zero value keep the
// previous value.
//
// # Hooks
//
// A data-access layer calls three hooks per record type:
//
//	conds, err := reg.BeforeFind(ctx, "User", map[string]any{"User.email": "a@b.com"})
//	row, err := reg.BeforeSave(ctx, "User", map[string]any{"email": "a@b.com"})
//	res, err := reg.AfterFind(ctx, "User", result, true)
//
// Condition trees may mix maps, lists and freeform clause strings such as
// "User.email = 'a@b.com'". Result trees may nest associated records under
// their record type name:
//
//	[]any{
//	    map[string]any{
//	        "User":    map[string]any{"email": "$E$..."},
//	        "Comment": map[string]any{"email": "plain"},
//	    },
//	}
//
// A field is decrypted only when it belongs to the configured record type,
// or when the policy names it with an owner qualifier ("Comment.email").
// bson.M, bson.D and bson.A documents are accepted anywhere a map or list is.
//
// # Envelopes
//
// Encrypted values are stored as prefix ++ hex(ciphertext), or
// prefix ++ ciphertext for binary columns. The default prefix is "$E$".
// A value carrying the prefix is never encrypted twice.
//
// # Ciphers
//
// Algorithms and modes use mcrypt names so existing data stays readable:
// cast-128 (default), blowfish, twofish, xtea, tea, des, tripledes,
// rijndael-128 and arcfour; modes ecb (default), cbc, cfb, ofb, ctr and
// stream. The default is deterministic so equality queries work; it offers
// no integrity protection.
//
// # Events
//
// Operations emit capitan signals (see signals.go). Plaintext never appears
// in events; failing values are masked first.
package veil
