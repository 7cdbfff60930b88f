package snapshot

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// Encryption errors.
var (
	ErrKeyTooShort       = errors.New("snapshot: encryption key too short (minimum 16 bytes)")
	ErrPassphraseTooWeak = errors.New("snapshot: passphrase too weak (minimum 8 characters)")
	ErrDecryptionFailed  = errors.New("snapshot: decryption failed - wrong key or corrupted data")
	ErrNoCipher          = errors.New("snapshot: record is encrypted but no key is configured")
)

// Supported algorithms.
const (
	AlgorithmAuto     = "auto"
	AlgorithmAESGCM   = "aes-gcm"
	AlgorithmChaCha20 = "chacha20-poly1305"
)

const (
	// MinKeyLength is the minimum raw key length.
	MinKeyLength = 16

	// MinPassphraseLength is the minimum passphrase length.
	MinPassphraseLength = 8

	// SaltLength is the Argon2id salt length.
	SaltLength = 16

	argon2Time    = 3
	argon2Memory  = 64 * 1024
	argon2Threads = 4

	recordKeyInfo = "wsnap snapshot record v1"
	keyLength     = 32
)

// Cipher seals and opens record payloads. The nonce is prepended to the
// ciphertext.
type Cipher interface {
	Algorithm() string
	Seal(plaintext, additionalData []byte) ([]byte, error)
	Open(ciphertext, additionalData []byte) ([]byte, error)
}

// EncryptionConfig configures record encryption.
// Passphrase takes precedence over Key. Both empty disables encryption.
type EncryptionConfig struct {
	Key        []byte
	Passphrase []byte
	Algorithm  string
}

// Enabled reports whether any key material is configured.
func (c EncryptionConfig) Enabled() bool {
	return len(c.Key) > 0 || len(c.Passphrase) > 0
}

// Validate checks key material lengths and algorithm name.
func (c EncryptionConfig) Validate() error {
	switch c.Algorithm {
	case "", AlgorithmAuto, AlgorithmAESGCM, AlgorithmChaCha20:
	default:
		return fmt.Errorf("snapshot: unsupported algorithm: %s", c.Algorithm)
	}
	if len(c.Passphrase) > 0 {
		if len(c.Passphrase) < MinPassphraseLength {
			return ErrPassphraseTooWeak
		}
		return nil
	}
	if len(c.Key) > 0 && len(c.Key) < MinKeyLength {
		return ErrKeyTooShort
	}
	return nil
}

type aeadCipher struct {
	algorithm string
	aead      cipher.AEAD
}

// NewCipher creates a cipher for algorithm from master key material.
// The record key is derived with HKDF-SHA256, so any key of at least
// MinKeyLength bytes is accepted.
func NewCipher(algorithm string, masterKey []byte) (Cipher, error) {
	if len(masterKey) < MinKeyLength {
		return nil, ErrKeyTooShort
	}
	key, err := deriveSubkey(masterKey, recordKeyInfo, keyLength)
	if err != nil {
		return nil, err
	}

	if algorithm == "" || algorithm == AlgorithmAuto {
		algorithm = preferredAlgorithm()
	}

	var aead cipher.AEAD
	switch algorithm {
	case AlgorithmAESGCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, err
		}
		aead, err = cipher.NewGCM(block)
		if err != nil {
			return nil, err
		}
	case AlgorithmChaCha20:
		aead, err = chacha20poly1305.New(key)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("snapshot: unsupported algorithm: %s", algorithm)
	}
	return &aeadCipher{algorithm: algorithm, aead: aead}, nil
}

func (c *aeadCipher) Algorithm() string { return c.algorithm }

func (c *aeadCipher) Seal(plaintext, additionalData []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plaintext)+c.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("snapshot: nonce: %w", err)
	}
	return c.aead.Seal(nonce, nonce, plaintext, additionalData), nil
}

func (c *aeadCipher) Open(ciphertext, additionalData []byte) ([]byte, error) {
	ns := c.aead.NonceSize()
	if len(ciphertext) < ns+c.aead.Overhead() {
		return nil, ErrDecryptionFailed
	}
	plain, err := c.aead.Open(nil, ciphertext[:ns], ciphertext[ns:], additionalData)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plain, nil
}

// preferredAlgorithm picks AES-GCM where Go has hardware AES support.
func preferredAlgorithm() string {
	switch runtime.GOARCH {
	case "amd64", "arm64", "s390x", "ppc64le":
		return AlgorithmAESGCM
	default:
		return AlgorithmChaCha20
	}
}

// DeriveKeyFromPassphrase derives a 32-byte key from a passphrase using Argon2id.
func DeriveKeyFromPassphrase(passphrase, salt []byte) ([]byte, error) {
	if len(passphrase) < MinPassphraseLength {
		return nil, ErrPassphraseTooWeak
	}
	if len(salt) != SaltLength {
		return nil, fmt.Errorf("snapshot: salt must be %d bytes", SaltLength)
	}
	return argon2.IDKey(passphrase, salt, argon2Time, argon2Memory, argon2Threads, keyLength), nil
}

// NewSalt returns a random Argon2id salt.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("snapshot: generate salt: %w", err)
	}
	return salt, nil
}

func deriveSubkey(masterKey []byte, info string, length int) ([]byte, error) {
	reader := hkdf.New(sha256.New, masterKey, nil, []byte(info))
	key := make([]byte, length)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("snapshot: derive subkey: %w", err)
	}
	return key, nil
}

// GenerateKey returns a random key encoded as hex, suitable for
// snapshot.encryption_key.
func GenerateKey() (string, error) {
	key := make([]byte, keyLength)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("snapshot: generate key: %w", err)
	}
	return hex.EncodeToString(key), nil
}

// ParseKey decodes a configured key given as hex or standard base64.
func ParseKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if b, err := hex.DecodeString(s); err == nil {
		return b, nil
	}
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return nil, errors.New("snapshot: encryption key must be hex or base64")
}

// ZeroKey zeros key material in place.
func ZeroKey(key []byte) {
	for i := range key {
		key[i] = 0
	}
}
