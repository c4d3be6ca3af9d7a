package veil

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/des"
	"crypto/rc4"
	"fmt"
	"sort"

	"golang.org/x/crypto/blowfish"
	"golang.org/x/crypto/cast5"
	"golang.org/x/crypto/tea"
	"golang.org/x/crypto/twofish"
	"golang.org/x/crypto/xtea"
)

const (
	opEncrypt = "encrypt"
	opDecrypt = "decrypt"
)

// algorithmSpec describes how to build cipher state for one algorithm.
// Exactly one of newBlock and newStream is set.
type algorithmSpec struct {
	maxKey    int
	validKey  func(n int) bool
	blockSize int
	newBlock  func(key []byte) (cipher.Block, error)
	newStream func(key []byte) (cipher.Stream, error)
}

func exactly(sizes ...int) func(int) bool {
	return func(n int) bool {
		for _, s := range sizes {
			if n == s {
				return true
			}
		}
		return false
	}
}

func between(lo, hi int) func(int) bool {
	return func(n int) bool { return n >= lo && n <= hi }
}

// algorithms is the host's supported-algorithm list.
var algorithms = map[Algorithm]*algorithmSpec{
	AlgorithmCAST128: {
		maxKey:    cast5.KeySize,
		validKey:  exactly(cast5.KeySize),
		blockSize: cast5.BlockSize,
		newBlock:  func(k []byte) (cipher.Block, error) { return cast5.NewCipher(k) },
	},
	AlgorithmBlowfish: {
		maxKey:    56,
		validKey:  between(1, 56),
		blockSize: blowfish.BlockSize,
		newBlock:  func(k []byte) (cipher.Block, error) { return blowfish.NewCipher(k) },
	},
	AlgorithmTwofish: {
		maxKey:    32,
		validKey:  exactly(16, 24, 32),
		blockSize: twofish.BlockSize,
		newBlock:  func(k []byte) (cipher.Block, error) { return twofish.NewCipher(k) },
	},
	AlgorithmXTEA: {
		maxKey:    16,
		validKey:  exactly(16),
		blockSize: xtea.BlockSize,
		newBlock:  func(k []byte) (cipher.Block, error) { return xtea.NewCipher(k) },
	},
	AlgorithmTEA: {
		maxKey:    tea.KeySize,
		validKey:  exactly(tea.KeySize),
		blockSize: tea.BlockSize,
		newBlock:  tea.NewCipher,
	},
	AlgorithmDES: {
		maxKey:    8,
		validKey:  exactly(8),
		blockSize: des.BlockSize,
		newBlock:  des.NewCipher,
	},
	AlgorithmTripleDES: {
		maxKey:    24,
		validKey:  exactly(24),
		blockSize: des.BlockSize,
		newBlock:  des.NewTripleDESCipher,
	},
	AlgorithmRijndael128: {
		maxKey:    32,
		validKey:  exactly(16, 24, 32),
		blockSize: aes.BlockSize,
		newBlock:  aes.NewCipher,
	},
	AlgorithmArcfour: {
		maxKey:    256,
		validKey:  between(1, 256),
		newStream: func(k []byte) (cipher.Stream, error) { return rc4.NewCipher(k) },
	},
}

// SupportedAlgorithms lists the algorithms available on this host, sorted.
func SupportedAlgorithms() []Algorithm {
	out := make([]Algorithm, 0, len(algorithms))
	for a := range algorithms {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SupportedModes lists the cipher modes available on this host, sorted.
func SupportedModes() []Mode {
	out := make([]Mode, 0, len(validModes))
	for m := range validModes {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// engine is an opened cipher handle for one (algorithm, mode) pair.
// Between init and deinit it holds per-value cipher state. It is not safe
// for concurrent use; Session serializes access.
type engine struct {
	algorithm Algorithm
	mode      Mode
	spec      *algorithmSpec
	closed    bool

	// per-transform state, valid between init and deinit
	block  cipher.Block
	stream cipher.Stream
	iv     []byte
	ready  bool
}

// openEngine returns nil when the pair cannot produce a handle.
func openEngine(algorithm Algorithm, mode Mode) *engine {
	spec, ok := algorithms[algorithm]
	if !ok || !validModes[mode] {
		return nil
	}
	if spec.newStream != nil && mode != ModeStream {
		return nil
	}
	if spec.newBlock != nil && mode == ModeStream {
		return nil
	}
	return &engine{algorithm: algorithm, mode: mode, spec: spec}
}

func (e *engine) keySize() int {
	return e.spec.maxKey
}

func (e *engine) ivSize() int {
	switch e.mode {
	case ModeECB, ModeStream:
		return 0
	default:
		return e.spec.blockSize
	}
}

// padded reports whether the mode works on whole blocks only.
func (e *engine) padded() bool {
	return e.mode == ModeECB || e.mode == ModeCBC
}

func (e *engine) init(op string, key, iv []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e.deinit()
			err = newInitError(InitUnknown, op, fmt.Errorf("%v", r))
		}
	}()

	if e.closed {
		return newInitError(InitInvalidParameters, op, ErrEngineUnavailable)
	}
	if !e.spec.validKey(len(key)) {
		return newInitError(InitIncorrectKeySize, op,
			fmt.Errorf("%s does not accept %d byte keys", e.algorithm, len(key)))
	}
	if size := e.ivSize(); size > 0 && len(iv) != size {
		return newInitError(InitInvalidParameters, op,
			fmt.Errorf("%s/%s requires a %d byte iv, got %d", e.algorithm, e.mode, size, len(iv)))
	}

	if e.spec.newStream != nil {
		s, err := e.spec.newStream(key)
		if err != nil {
			return newInitError(InitAllocationFailure, op, err)
		}
		e.stream = s
	} else {
		b, err := e.spec.newBlock(key)
		if err != nil {
			return newInitError(InitAllocationFailure, op, err)
		}
		e.block = b
	}

	if size := e.ivSize(); size > 0 {
		e.iv = append(make([]byte, 0, size), iv...)
	}
	e.ready = true
	return nil
}

func (e *engine) transform(encrypt bool, in []byte) ([]byte, error) {
	if !e.ready {
		return nil, ErrInvalidParameters
	}

	if e.stream != nil {
		out := make([]byte, len(in))
		e.stream.XORKeyStream(out, in)
		return out, nil
	}

	bs := e.block.BlockSize()
	if e.padded() {
		if encrypt {
			in = zeroPad(in, bs)
		} else if len(in)%bs != 0 {
			return nil, fmt.Errorf("%w: ciphertext length %d is not a multiple of %d", ErrMalformedEnvelope, len(in), bs)
		}
	}

	out := make([]byte, len(in))
	switch e.mode {
	case ModeECB:
		for i := 0; i < len(in); i += bs {
			if encrypt {
				e.block.Encrypt(out[i:i+bs], in[i:i+bs])
			} else {
				e.block.Decrypt(out[i:i+bs], in[i:i+bs])
			}
		}
	case ModeCBC:
		if encrypt {
			cipher.NewCBCEncrypter(e.block, e.iv).CryptBlocks(out, in)
		} else {
			cipher.NewCBCDecrypter(e.block, e.iv).CryptBlocks(out, in)
		}
	case ModeCFB:
		if encrypt {
			cipher.NewCFBEncrypter(e.block, e.iv).XORKeyStream(out, in) //nolint:staticcheck // legacy envelopes
		} else {
			cipher.NewCFBDecrypter(e.block, e.iv).XORKeyStream(out, in) //nolint:staticcheck // legacy envelopes
		}
	case ModeOFB:
		cipher.NewOFB(e.block, e.iv).XORKeyStream(out, in) //nolint:staticcheck // legacy envelopes
	case ModeCTR:
		cipher.NewCTR(e.block, e.iv).XORKeyStream(out, in)
	default:
		return nil, fmt.Errorf("%w: mode %s", ErrInvalidParameters, e.mode)
	}
	return out, nil
}

// deinit drops all per-value state so nothing leaks into the next transform.
func (e *engine) deinit() {
	for i := range e.iv {
		e.iv[i] = 0
	}
	e.iv = nil
	e.block = nil
	e.stream = nil
	e.ready = false
}

func (e *engine) close() {
	e.deinit()
	e.closed = true
}

// zeroPad right-pads data with NUL bytes to a multiple of size.
func zeroPad(data []byte, size int) []byte {
	rem := len(data) % size
	if rem == 0 && len(data) > 0 {
		return data
	}
	out := make([]byte, len(data)+size-rem)
	copy(out, data)
	return out
}
