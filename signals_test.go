package veil

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestEmitConfigured(_ *testing.T) {
	// Should not panic
	emitConfigured(context.Background(), defaultPolicy("User").merge(Settings{Fields: []string{"email"}}))
}

func TestEmitQueryStart(_ *testing.T) {
	emitQueryStart(context.Background(), "User")
}

func TestEmitQueryComplete_Success(_ *testing.T) {
	emitQueryComplete(context.Background(), "User", 100*time.Millisecond, 2, nil)
}

func TestEmitQueryComplete_Error(_ *testing.T) {
	emitQueryComplete(context.Background(), "User", 100*time.Millisecond, 0, errors.New("test error"))
}

func TestEmitWriteStart(_ *testing.T) {
	emitWriteStart(context.Background(), "User")
}

func TestEmitWriteComplete_Success(_ *testing.T) {
	emitWriteComplete(context.Background(), "User", 100*time.Millisecond, 3, nil)
}

func TestEmitWriteComplete_Error(_ *testing.T) {
	emitWriteComplete(context.Background(), "User", 100*time.Millisecond, 0, errors.New("test error"))
}

func TestEmitResultStart(_ *testing.T) {
	emitResultStart(context.Background(), "User")
}

func TestEmitResultComplete_Success(_ *testing.T) {
	emitResultComplete(context.Background(), "User", 100*time.Millisecond, 5, 0, nil)
}

func TestEmitResultComplete_Error(_ *testing.T) {
	emitResultComplete(context.Background(), "User", 100*time.Millisecond, 0, 0, errors.New("test error"))
}

func TestEmitEncryptFailed(_ *testing.T) {
	emitEncryptFailed(context.Background(), "User", "email", "a***@example.com", errors.New("test error"))
}

func TestEmitDecryptFailed(_ *testing.T) {
	emitDecryptFailed(context.Background(), "User", "Comment.email", errors.New("test error"))
}
