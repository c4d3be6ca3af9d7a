package veil

// Algorithm names a symmetric cipher. Names follow the mcrypt convention so
// settings written for existing deployments keep working.
type Algorithm string

const (
	// AlgorithmCAST128 uses CAST5 (RFC 2144), 16 byte keys. This is the default.
	AlgorithmCAST128 Algorithm = "cast-128"

	// AlgorithmBlowfish uses Blowfish, 1 to 56 byte keys.
	AlgorithmBlowfish Algorithm = "blowfish"

	// AlgorithmTwofish uses Twofish, 16, 24 or 32 byte keys.
	AlgorithmTwofish Algorithm = "twofish"

	// AlgorithmXTEA uses XTEA, 16 byte keys.
	AlgorithmXTEA Algorithm = "xtea"

	// AlgorithmTEA uses TEA, 16 byte keys.
	AlgorithmTEA Algorithm = "tea"

	// AlgorithmDES uses single DES, 8 byte keys. Legacy data only.
	AlgorithmDES Algorithm = "des"

	// AlgorithmTripleDES uses 3DES EDE, 24 byte keys.
	AlgorithmTripleDES Algorithm = "tripledes"

	// AlgorithmRijndael128 uses AES, 16, 24 or 32 byte keys.
	AlgorithmRijndael128 Algorithm = "rijndael-128"

	// AlgorithmArcfour uses RC4, 1 to 256 byte keys. Stream mode only.
	AlgorithmArcfour Algorithm = "arcfour"
)

// Mode names a cipher mode of operation.
type Mode string

const (
	ModeECB    Mode = "ecb" // default; deterministic, no IV
	ModeCBC    Mode = "cbc"
	ModeCFB    Mode = "cfb"
	ModeOFB    Mode = "ofb"
	ModeCTR    Mode = "ctr"
	ModeStream Mode = "stream" // stream algorithms only
)

// Datatype is a persistence-layer column type tag.
type Datatype string

const (
	TypeString     Datatype = "string"
	TypeText       Datatype = "text"
	TypeBinary     Datatype = "binary"
	TypeBoolean    Datatype = "boolean"
	TypeInteger    Datatype = "integer"
	TypeFloat      Datatype = "float"
	TypeDatetime   Datatype = "datetime"
	TypeTimestamp  Datatype = "timestamp"
	TypeTime       Datatype = "time"
	TypeDate       Datatype = "date"
	TypePrimaryKey Datatype = "primary_key"
)

// KeyDerivation selects how a working key is produced from a master secret.
type KeyDerivation string

const (
	// KeyDerivationLegacy truncates the secret to the key size and reverses it.
	// Envelopes written by earlier deployments depend on it.
	KeyDerivationLegacy KeyDerivation = "legacy"

	// KeyDerivationHKDF expands the secret with HKDF-SHA256 to the exact key size.
	KeyDerivationHKDF KeyDerivation = "hkdf"
)

// validModes contains all valid cipher modes.
var validModes = map[Mode]bool{
	ModeECB:    true,
	ModeCBC:    true,
	ModeCFB:    true,
	ModeOFB:    true,
	ModeCTR:    true,
	ModeStream: true,
}

// validKeyDerivations contains all valid key derivation schemes.
var validKeyDerivations = map[KeyDerivation]bool{
	KeyDerivationLegacy: true,
	KeyDerivationHKDF:   true,
}

// IsValidMode returns true if the mode is a known cipher mode.
func IsValidMode(m Mode) bool {
	return validModes[m]
}

// IsValidKeyDerivation returns true if the scheme is known.
func IsValidKeyDerivation(kd KeyDerivation) bool {
	return validKeyDerivations[kd]
}

// DefaultDisabledTypes returns the datatypes exempt from encryption by default.
// Encrypted values of these types would not fit back into their columns.
func DefaultDisabledTypes() []Datatype {
	return []Datatype{
		TypeBoolean,
		TypeInteger,
		TypeFloat,
		TypeDatetime,
		TypeTimestamp,
		TypeTime,
		TypeDate,
		TypePrimaryKey,
	}
}
