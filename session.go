package veil

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"sync"

	"golang.org/x/crypto/hkdf"
)

// Directories are the algorithm and mode search paths from the configuration.
// The cipher implementations are compiled in, so they are carried for
// reporting only.
type Directories struct {
	Algorithm string `json:"algorithm_directory,omitempty" yaml:"algorithm_directory,omitempty"`
	Mode      string `json:"mode_directory,omitempty" yaml:"mode_directory,omitempty"`
}

// Session owns the cipher engine for one configured (algorithm, mode) pair.
//
// Every Encrypt and Decrypt call holds the session lock for a full
// init, transform, deinit cycle, so a Session is safe for concurrent use
// but transforms on it never overlap.
type Session struct {
	mu   sync.Mutex
	eng  *engine
	dirs Directories
}

// Open validates the algorithm against SupportedAlgorithms and opens an engine.
func Open(algorithm Algorithm, mode Mode, dirs Directories) (*Session, error) {
	if _, ok := algorithms[algorithm]; !ok {
		return nil, newConfigError(ErrUnsupportedAlgorithm, string(algorithm), "")
	}
	if !IsValidMode(mode) {
		return nil, newConfigError(ErrUnsupportedAlgorithm, string(mode), "")
	}

	eng := openEngine(algorithm, mode)
	if eng == nil {
		return nil, newConfigError(ErrEngineUnavailable, string(algorithm)+"/"+string(mode), "")
	}

	return &Session{eng: eng, dirs: dirs}, nil
}

// Algorithm returns the session's cipher algorithm.
func (s *Session) Algorithm() Algorithm { return s.eng.algorithm }

// Mode returns the session's cipher mode.
func (s *Session) Mode() Mode { return s.eng.mode }

// Directories returns the configured search paths.
func (s *Session) Directories() Directories { return s.dirs }

// KeySize returns the largest key the algorithm accepts.
func (s *Session) KeySize() int { return s.eng.keySize() }

// IVSize returns the IV length the mode requires, 0 when it takes none.
func (s *Session) IVSize() int { return s.eng.ivSize() }

// DeriveKey truncates secret to KeySize and reverses its bytes.
//
// The reversal has no cryptographic purpose. It is kept so envelopes written
// by earlier deployments still decrypt; use DeriveKeyHKDF for new data.
func (s *Session) DeriveKey(secret []byte) []byte {
	key := bytes.Clone(secret)
	if size := s.KeySize(); len(key) > size {
		key = key[:size]
	}
	for i, j := 0, len(key)-1; i < j; i, j = i+1, j-1 {
		key[i], key[j] = key[j], key[i]
	}
	return key
}

// DeriveKeyHKDF expands secret to exactly KeySize bytes with HKDF-SHA256.
func (s *Session) DeriveKeyHKDF(secret []byte) ([]byte, error) {
	info := []byte("veil:" + string(s.Algorithm()) + "/" + string(s.Mode()))
	key := make([]byte, s.KeySize())
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, info), key); err != nil {
		return nil, fmt.Errorf("hkdf: %w", err)
	}
	return key, nil
}

// DeriveIV fits secret to IVSize, truncating or repeating its bytes.
// Returns nil when the mode takes no IV.
func (s *Session) DeriveIV(secret []byte) []byte {
	size := s.IVSize()
	if size == 0 || len(secret) == 0 {
		return nil
	}
	iv := make([]byte, size)
	for i := range iv {
		iv[i] = secret[i%len(secret)]
	}
	return iv
}

// Encrypt runs one init, transform, deinit cycle over plaintext.
// Block modes without a keystream are NUL padded to the block size.
func (s *Session) Encrypt(plaintext, key, iv []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.eng.init(opEncrypt, key, iv); err != nil {
		return nil, err
	}
	defer s.eng.deinit()

	return s.eng.transform(true, plaintext)
}

// Decrypt runs one init, transform, deinit cycle over ciphertext and strips
// trailing NUL and whitespace left by block padding.
func (s *Session) Decrypt(ciphertext, key, iv []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.eng.init(opDecrypt, key, iv); err != nil {
		return nil, err
	}
	defer s.eng.deinit()

	out, err := s.eng.transform(false, ciphertext)
	if err != nil {
		return nil, err
	}
	return trimPadding(out), nil
}

// Close releases the engine. Later transforms fail with ErrInvalidParameters.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eng.close()
	return nil
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eng.closed
}

// trimPadding right-trims NUL and ASCII whitespace.
func trimPadding(b []byte) []byte {
	return bytes.TrimRight(b, " \t\n\r\x00\x0b")
}
