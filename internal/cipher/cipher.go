// Package cipher is the at-rest encryption layer for message bodies.
//
// Keys are derived deterministically per conversation from a fixed application secret,
// so nothing key-related is ever persisted. This is obfuscation at rest, not a security
// boundary against a local attacker.
package cipher

import (
	"crypto/aes"
	stdcipher "crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"sync"

	"hush-cli/internal/model"

	"golang.org/x/crypto/pbkdf2"
)

const (
	NonceSize  = 12
	KeySize    = 32
	Iterations = 100_000

	// DefaultSecret is used when the config does not override it.
	DefaultSecret = "hush-local-store-v1"

	// Undecryptable is the default text shown in place of a message that fails to decrypt.
	Undecryptable = "[unable to decrypt]"
)

type Key [KeySize]byte

// DeriveKey is PBKDF2-HMAC-SHA256(secret+conversationID, salt=conversationID).
func DeriveKey(secret, conversationID string) Key {
	var k Key
	copy(k[:], pbkdf2.Key([]byte(secret+conversationID), []byte(conversationID), Iterations, KeySize, sha256.New))
	return k
}

// Result is the outcome of a decryption. A failed result carries no partial text.
type Result struct {
	text string
	ok   bool
}

func Ok(text string) Result { return Result{text: text, ok: true} }

// DecryptFailed is the single failure value.
var DecryptFailed = Result{}

func (r Result) OK() bool { return r.ok }

// TextOr returns the plaintext, or sentinel when decryption failed.
func (r Result) TextOr(sentinel string) string {
	if !r.ok {
		return sentinel
	}
	return r.text
}

// Text returns the plaintext or the default Undecryptable sentinel.
func (r Result) Text() string { return r.TextOr(Undecryptable) }

type Service struct {
	secret string
	rand   io.Reader

	mu   sync.Mutex
	keys map[string]Key
}

func New(secret string) *Service {
	if secret == "" {
		secret = DefaultSecret
	}
	return &Service{secret: secret, rand: rand.Reader, keys: map[string]Key{}}
}

// Key returns the derived key for a conversation, memoized in memory.
func (s *Service) Key(conversationID string) Key {
	s.mu.Lock()
	k, ok := s.keys[conversationID]
	s.mu.Unlock()
	if ok {
		return k
	}
	k = DeriveKey(s.secret, conversationID)
	s.mu.Lock()
	s.keys[conversationID] = k
	s.mu.Unlock()
	return k
}

func (s *Service) aead(conversationID string) (stdcipher.AEAD, error) {
	k := s.Key(conversationID)
	block, err := aes.NewCipher(k[:])
	if err != nil {
		return nil, err
	}
	return stdcipher.NewGCM(block)
}

// Encrypt seals plaintext under the conversation key with a fresh random nonce.
func (s *Service) Encrypt(conversationID, plaintext string) (model.CipherPayload, error) {
	gcm, err := s.aead(conversationID)
	if err != nil {
		return model.CipherPayload{}, fmt.Errorf("encrypt: %w", err)
	}
	iv := make([]byte, NonceSize)
	if _, err := io.ReadFull(s.rand, iv); err != nil {
		return model.CipherPayload{}, fmt.Errorf("encrypt: nonce: %w", err)
	}
	return model.CipherPayload{
		IV:   iv,
		Data: gcm.Seal(nil, iv, []byte(plaintext), nil),
	}, nil
}

var errBadNonce = errors.New("bad nonce length")

// Decrypt never returns an error: any failure (wrong key, tampering, malformed
// payload) is reported as DecryptFailed.
func (s *Service) Decrypt(conversationID string, p model.CipherPayload) (res Result) {
	defer func() {
		if recover() != nil {
			res = DecryptFailed
		}
	}()
	plain, err := s.open(conversationID, p)
	if err != nil {
		return DecryptFailed
	}
	return Ok(string(plain))
}

func (s *Service) open(conversationID string, p model.CipherPayload) ([]byte, error) {
	if len(p.IV) != NonceSize {
		return nil, errBadNonce
	}
	gcm, err := s.aead(conversationID)
	if err != nil {
		return nil, err
	}
	return gcm.Open(nil, p.IV, p.Data, nil)
}
