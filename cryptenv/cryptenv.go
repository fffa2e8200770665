// Package cryptenv implements per-session authenticated encryption: deriving
// a data-encryption key from a passphrase, sealing and opening AEAD records,
// and crypto-shredding a session by destroying its key material.
package cryptenv

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const (
	SaltSize = 16
	KeySize  = 32 // AES-256
	nonceLen = 12
	tagLen   = 16

	// Argon2id parameters, chosen to exceed the OWASP-recommended floor
	// (time cost >= 3, memory cost >= 64 MiB, parallelism >= 1).
	kdfTime    = 3
	kdfMemory  = 64 * 1024 // KiB
	kdfThreads = 2
)

var (
	// ErrShredded is returned by any operation on an Envelope after its key
	// has been destroyed.
	ErrShredded = errors.New("cryptenv: key has been shredded")
	// ErrDecryptionFailed wraps AEAD open failures (wrong key, corruption,
	// or truncated records).
	ErrDecryptionFailed = errors.New("cryptenv: decryption failed")
	// ErrRecordTooShort is returned when a sealed record is smaller than
	// nonce+tag, so it cannot possibly be valid.
	ErrRecordTooShort = errors.New("cryptenv: record too short")
)

// NewSalt returns a fresh random 16-byte salt for a new encrypted session.
func NewSalt() ([SaltSize]byte, error) {
	var salt [SaltSize]byte
	if _, err := rand.Read(salt[:]); err != nil {
		return salt, fmt.Errorf("cryptenv: generating salt: %w", err)
	}
	return salt, nil
}

// DeriveKey derives a 32-byte DEK from passphrase and salt via Argon2id.
func DeriveKey(passphrase string, salt [SaltSize]byte) [KeySize]byte {
	derived := argon2.IDKey([]byte(passphrase), salt[:], kdfTime, kdfMemory, kdfThreads, KeySize)
	var key [KeySize]byte
	copy(key[:], derived)
	return key
}

// Envelope holds one session's live DEK and performs AES-256-GCM sealing
// and opening. The zero value is not usable; construct via New.
type Envelope struct {
	key      [KeySize]byte
	shredded bool
}

// New derives a fresh envelope's key from passphrase and salt. Used when
// creating a new encrypted session.
func New(passphrase string, salt [SaltSize]byte) *Envelope {
	return &Envelope{key: DeriveKey(passphrase, salt)}
}

// Seal encrypts plaintext, binding associatedData (the summary id, the
// literal "bookmarks", or empty for snapshots) to the ciphertext. The
// returned record is nonce || ciphertext || tag.
func (e *Envelope) Seal(plaintext, associatedData []byte) ([]byte, error) {
	if e.shredded {
		return nil, ErrShredded
	}
	block, err := aes.NewCipher(e.key[:])
	if err != nil {
		return nil, fmt.Errorf("cryptenv: building cipher: %w", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, nonceLen)
	if err != nil {
		return nil, fmt.Errorf("cryptenv: building GCM: %w", err)
	}
	nonce := make([]byte, nonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("cryptenv: generating nonce: %w", err)
	}
	sealed := gcm.Seal(nil, nonce, plaintext, associatedData)
	return append(nonce, sealed...), nil
}

// Open decrypts a record produced by Seal. A mismatched key, corrupted
// ciphertext, or wrong associatedData all surface as ErrDecryptionFailed;
// the caller decides whether that is fatal to one record or to the whole
// session.
func (e *Envelope) Open(record, associatedData []byte) ([]byte, error) {
	if e.shredded {
		return nil, ErrShredded
	}
	if len(record) < nonceLen+tagLen {
		return nil, ErrRecordTooShort
	}
	block, err := aes.NewCipher(e.key[:])
	if err != nil {
		return nil, fmt.Errorf("cryptenv: building cipher: %w", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, nonceLen)
	if err != nil {
		return nil, fmt.Errorf("cryptenv: building GCM: %w", err)
	}
	nonce, ciphertext := record[:nonceLen], record[nonceLen:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, associatedData)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	return plaintext, nil
}

// Shred zeroizes the in-memory key and marks the envelope unusable. No Seal
// or Open call succeeds afterward. Callers must also delete the session's
// salt file; without the salt the key cannot be re-derived even with the
// original passphrase.
func (e *Envelope) Shred() {
	for i := range e.key {
		e.key[i] = 0
	}
	e.shredded = true
}

// Shredded reports whether Shred has been called.
func (e *Envelope) Shredded() bool {
	return e.shredded
}
