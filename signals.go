package veil

import (
	"context"
	"strings"
	"time"

	"github.com/zoobzio/capitan"
)

// Signals for veil events.
var (
	SignalModelConfigured = capitan.NewSignal("veil.model.configured", "Record type policy configured")
	SignalQueryStart      = capitan.NewSignal("veil.query.start", "Condition rewrite beginning")
	SignalQueryComplete   = capitan.NewSignal("veil.query.complete", "Condition rewrite finished")
	SignalWriteStart      = capitan.NewSignal("veil.write.start", "Record encryption beginning")
	SignalWriteComplete   = capitan.NewSignal("veil.write.complete", "Record encryption finished")
	SignalResultStart     = capitan.NewSignal("veil.result.start", "Result decryption beginning")
	SignalResultComplete  = capitan.NewSignal("veil.result.complete", "Result decryption finished")
	SignalEncryptFailed   = capitan.NewSignal("veil.encrypt.failed", "A value could not be encrypted")
	SignalDecryptFailed   = capitan.NewSignal("veil.decrypt.failed", "A value could not be decrypted and was left as stored")
)

// Keys for typed event data.
var (
	KeyRecordType     = capitan.NewStringKey("record_type")
	KeyField          = capitan.NewStringKey("field")
	KeyFields         = capitan.NewStringKey("fields")
	KeyAlgorithm      = capitan.NewStringKey("algorithm")
	KeyMode           = capitan.NewStringKey("mode")
	KeyKeyDerivation  = capitan.NewStringKey("key_derivation")
	KeyMaskedValue    = capitan.NewStringKey("masked_value")
	KeyDuration       = capitan.NewDurationKey("duration")
	KeyError          = capitan.NewErrorKey("error")
	KeyEncryptedCount = capitan.NewIntKey("encrypted_count")
	KeyDecryptedCount = capitan.NewIntKey("decrypted_count")
	KeyFailedCount    = capitan.NewIntKey("failed_count")
)

// emitConfigured emits an event when a record type's policy is published.
func emitConfigured(ctx context.Context, p *Policy) {
	capitan.Emit(ctx, SignalModelConfigured,
		KeyRecordType.Field(p.RecordType()),
		KeyFields.Field(strings.Join(p.Fields(), ",")),
		KeyAlgorithm.Field(string(p.Algorithm())),
		KeyMode.Field(string(p.Mode())),
		KeyKeyDerivation.Field(string(p.KeyDerivation())),
	)
}

// emitQueryStart emits an event when condition rewriting begins.
func emitQueryStart(ctx context.Context, recordType string) {
	capitan.Emit(ctx, SignalQueryStart,
		KeyRecordType.Field(recordType),
	)
}

// emitQueryComplete emits an event when condition rewriting finishes.
func emitQueryComplete(ctx context.Context, recordType string, duration time.Duration, encrypted int, err error) {
	fields := []capitan.Field{
		KeyRecordType.Field(recordType),
		KeyDuration.Field(duration),
		KeyEncryptedCount.Field(encrypted),
	}
	if err != nil {
		fields = append(fields, KeyError.Field(err))
		capitan.Error(ctx, SignalQueryComplete, fields...)
	} else {
		capitan.Emit(ctx, SignalQueryComplete, fields...)
	}
}

// emitWriteStart emits an event when record encryption begins.
func emitWriteStart(ctx context.Context, recordType string) {
	capitan.Emit(ctx, SignalWriteStart,
		KeyRecordType.Field(recordType),
	)
}

// emitWriteComplete emits an event when record encryption finishes.
func emitWriteComplete(ctx context.Context, recordType string, duration time.Duration, encrypted int, err error) {
	fields := []capitan.Field{
		KeyRecordType.Field(recordType),
		KeyDuration.Field(duration),
		KeyEncryptedCount.Field(encrypted),
	}
	if err != nil {
		fields = append(fields, KeyError.Field(err))
		capitan.Error(ctx, SignalWriteComplete, fields...)
	} else {
		capitan.Emit(ctx, SignalWriteComplete, fields...)
	}
}

// emitResultStart emits an event when result decryption begins.
func emitResultStart(ctx context.Context, recordType string) {
	capitan.Emit(ctx, SignalResultStart,
		KeyRecordType.Field(recordType),
	)
}

// emitResultComplete emits an event when result decryption finishes.
func emitResultComplete(ctx context.Context, recordType string, duration time.Duration, decrypted, failed int, err error) {
	fields := []capitan.Field{
		KeyRecordType.Field(recordType),
		KeyDuration.Field(duration),
		KeyDecryptedCount.Field(decrypted),
		KeyFailedCount.Field(failed),
	}
	if err != nil {
		fields = append(fields, KeyError.Field(err))
		capitan.Error(ctx, SignalResultComplete, fields...)
	} else {
		capitan.Emit(ctx, SignalResultComplete, fields...)
	}
}

// emitEncryptFailed reports a value that could not be encrypted.
// masked must already have passed through a Masker.
func emitEncryptFailed(ctx context.Context, recordType, field, masked string, err error) {
	capitan.Error(ctx, SignalEncryptFailed,
		KeyRecordType.Field(recordType),
		KeyField.Field(field),
		KeyMaskedValue.Field(masked),
		KeyError.Field(err),
	)
}

// emitDecryptFailed reports a stored value left encrypted.
func emitDecryptFailed(ctx context.Context, recordType, field string, err error) {
	capitan.Error(ctx, SignalDecryptFailed,
		KeyRecordType.Field(recordType),
		KeyField.Field(field),
		KeyError.Field(err),
	)
}
