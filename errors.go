package veil

import (
	"errors"
	"fmt"
)

// Sentinel errors for programmatic error handling.
// Use errors.Is() to check for these error types.
var (
	// ErrUnsupportedAlgorithm indicates the cipher algorithm or mode is not available on this host.
	ErrUnsupportedAlgorithm = errors.New("unsupported algorithm")

	// ErrEngineUnavailable indicates the cipher engine could not be opened.
	ErrEngineUnavailable = errors.New("engine unavailable")

	// ErrIncorrectKeySize indicates the key length is not accepted by the algorithm.
	ErrIncorrectKeySize = errors.New("incorrect key size")

	// ErrAllocationFailure indicates the cipher state could not be allocated.
	ErrAllocationFailure = errors.New("allocation failure")

	// ErrInvalidParameters indicates the engine was initialized with bad parameters
	// (wrong IV length, closed handle).
	ErrInvalidParameters = errors.New("invalid parameters")

	// ErrUnknownInit indicates an engine initialization failure of unknown cause.
	ErrUnknownInit = errors.New("unknown init failure")

	// ErrEncrypt indicates encryption of a field failed.
	ErrEncrypt = errors.New("encrypt failed")

	// ErrDecrypt indicates decryption of a field failed.
	ErrDecrypt = errors.New("decrypt failed")

	// ErrMalformedEnvelope indicates an envelope payload could not be decoded.
	ErrMalformedEnvelope = errors.New("malformed envelope")

	// ErrUnknownRecordType indicates no policy is configured for a record type.
	ErrUnknownRecordType = errors.New("unknown record type")

	// ErrTreeTooDeep indicates a condition or result tree exceeded the depth cap.
	ErrTreeTooDeep = errors.New("tree too deep")
)

// InitKind classifies an engine initialization failure.
type InitKind uint8

const (
	InitUnknown InitKind = iota
	InitIncorrectKeySize
	InitAllocationFailure
	InitInvalidParameters
)

func (k InitKind) String() string {
	switch k {
	case InitIncorrectKeySize:
		return "incorrect key size"
	case InitAllocationFailure:
		return "allocation failure"
	case InitInvalidParameters:
		return "invalid parameters"
	default:
		return "unknown"
	}
}

func (k InitKind) sentinel() error {
	switch k {
	case InitIncorrectKeySize:
		return ErrIncorrectKeySize
	case InitAllocationFailure:
		return ErrAllocationFailure
	case InitInvalidParameters:
		return ErrInvalidParameters
	default:
		return ErrUnknownInit
	}
}

// ConfigError represents a configuration-time failure.
// These are fatal: the record type cannot be used until reconfigured.
type ConfigError struct {
	Err        error  // Underlying sentinel error (ErrUnsupportedAlgorithm, etc.)
	RecordType string // Record type being configured
	Algorithm  string // Algorithm or mode that was missing/invalid
}

func (e *ConfigError) Error() string {
	if e.RecordType != "" && e.Algorithm != "" {
		return fmt.Sprintf("%s %q (record type %s)", e.Err.Error(), e.Algorithm, e.RecordType)
	}
	if e.Algorithm != "" {
		return fmt.Sprintf("%s %q", e.Err.Error(), e.Algorithm)
	}
	if e.RecordType != "" {
		return fmt.Sprintf("%s (record type %s)", e.Err.Error(), e.RecordType)
	}
	return e.Err.Error()
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// InitError represents a failed engine initialization for a single transform.
type InitError struct {
	Kind  InitKind
	Op    string // encrypt or decrypt
	Cause error  // Original error from the cipher library, if any
}

func (e *InitError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("init %s: %s: %v", e.Op, e.Kind, e.Cause)
	}
	return fmt.Sprintf("init %s: %s", e.Op, e.Kind)
}

func (e *InitError) Unwrap() error {
	return e.Kind.sentinel()
}

// TransformError represents an error during field transformation.
// It wraps a sentinel error with context about which field and operation failed.
type TransformError struct {
	Err        error  // Underlying sentinel error (ErrEncrypt, ErrDecrypt)
	RecordType string // Record type owning the field
	Field      string // Field name that failed
	Cause      error  // Original error from the underlying operation
}

func (e *TransformError) Error() string {
	op := "transform"
	switch {
	case errors.Is(e.Err, ErrEncrypt):
		op = "encrypt"
	case errors.Is(e.Err, ErrDecrypt):
		op = "decrypt"
	}
	name := e.Field
	if e.RecordType != "" {
		name = e.RecordType + "." + e.Field
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s field %s: %v", op, name, e.Cause)
	}
	return fmt.Sprintf("%s field %s", op, name)
}

// Unwrap exposes both the sentinel and the cause so errors.Is matches either.
func (e *TransformError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

// newConfigError creates a ConfigError.
func newConfigError(sentinel error, algorithm, recordType string) error {
	return &ConfigError{
		Err:        sentinel,
		Algorithm:  algorithm,
		RecordType: recordType,
	}
}

// newInitError creates an InitError.
func newInitError(kind InitKind, op string, cause error) error {
	return &InitError{
		Kind:  kind,
		Op:    op,
		Cause: cause,
	}
}

// newTransformError creates a TransformError for field transformation failures.
func newTransformError(sentinel error, recordType, field string, cause error) error {
	return &TransformError{
		Err:        sentinel,
		RecordType: recordType,
		Field:      field,
		Cause:      cause,
	}
}
