package secure

import (
	"sync"

	"github.com/awnumar/memguard"
)

// SecureBuffer keeps a secret encrypted in memory between uses.
// It wraps memguard.Enclave, which encrypts the data with XSalsa20Poly1305
// and mlocks the key material where the platform allows it.
type SecureBuffer struct {
	enclave *memguard.Enclave
	mu      sync.RWMutex
	// destroyed makes Destroy idempotent and blocks use after destroy
	destroyed bool
}

// NewSecureBuffer seals data into a new enclave.
// memguard wipes the slice it is given, so the buffer seals a private copy
// and leaves data untouched. Callers should zero data themselves.
func NewSecureBuffer(data []byte) (*SecureBuffer, error) {
	sealed := make([]byte, len(data))
	copy(sealed, data)

	// NewEnclave returns nil for empty input.
	return &SecureBuffer{enclave: memguard.NewEnclave(sealed)}, nil
}

// FromString seals a string value.
func FromString(value string) (*SecureBuffer, error) {
	return NewSecureBuffer([]byte(value))
}

// Open decrypts the enclave into a locked buffer.
// The caller MUST call Destroy() on the returned LockedBuffer when done.
//
//	locked, err := buf.Open()
//	if err != nil {
//	    return err
//	}
//	defer locked.Destroy()
//	secret := locked.Bytes()
func (s *SecureBuffer) Open() (*memguard.LockedBuffer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.destroyed || s.enclave == nil {
		return memguard.NewBufferFromBytes([]byte{}), nil
	}

	return s.enclave.Open()
}

// Use opens the buffer, hands the plaintext to fn as a string and wipes the
// locked buffer afterwards. The string passed to fn is a copy living on the
// Go heap; fn should not retain it.
func (s *SecureBuffer) Use(fn func(value string) error) error {
	locked, err := s.Open()
	if err != nil {
		return err
	}
	defer locked.Destroy()

	return fn(string(locked.Bytes()))
}

// Empty reports whether the buffer holds no data.
func (s *SecureBuffer) Empty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.destroyed || s.enclave == nil || s.enclave.Size() == 0
}

// Destroy drops the enclave. It is idempotent; after Destroy, Open returns
// an empty buffer.
//
// Call memguard.Purge() at process exit to wipe the session key as well.
func (s *SecureBuffer) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return
	}

	s.enclave = nil
	s.destroyed = true
}
