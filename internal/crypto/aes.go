package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"

	"golang.org/x/crypto/scrypt"
)

// Associated-data label bound into every auth tag.
const aadLabel = "chatbot-auth"

// Fixed KDF salt; the derived key lives for the process lifetime.
const kdfSalt = "salt"

var ErrDecrypt = errors.New("decryption failed")

// EncryptedField is the at-rest form of a sensitive value: hex-encoded
// ciphertext, nonce and GCM tag kept as separate fields.
type EncryptedField struct {
	Encrypted string `bson:"encrypted" json:"encrypted"`
	IV        string `bson:"iv" json:"iv"`
	AuthTag   string `bson:"authTag" json:"authTag"`
}

// Service wraps a single AES-256-GCM key derived once from the configured
// secret.
type Service struct {
	aead cipher.AEAD
}

func NewService(secret string) (*Service, error) {
	if secret == "" {
		return nil, errors.New("encryption secret required")
	}
	key, err := scrypt.Key([]byte(secret), []byte(kdfSalt), 16384, 8, 1, 32)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Service{aead: aead}, nil
}

func (s *Service) Encrypt(plaintext string) (*EncryptedField, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	sealed := s.aead.Seal(nil, nonce, []byte(plaintext), []byte(aadLabel))
	// GCM appends the tag to the ciphertext
	tagStart := len(sealed) - s.aead.Overhead()
	return &EncryptedField{
		Encrypted: hex.EncodeToString(sealed[:tagStart]),
		IV:        hex.EncodeToString(nonce),
		AuthTag:   hex.EncodeToString(sealed[tagStart:]),
	}, nil
}

// Decrypt verifies and opens a field. Any structural problem or tag mismatch
// comes back as ErrDecrypt; callers substitute a redacted placeholder instead
// of surfacing it.
func (s *Service) Decrypt(f *EncryptedField) (string, error) {
	if f == nil || f.Encrypted == "" {
		return "", ErrDecrypt
	}
	ct, err := hex.DecodeString(f.Encrypted)
	if err != nil {
		return "", ErrDecrypt
	}
	nonce, err := hex.DecodeString(f.IV)
	if err != nil || len(nonce) != s.aead.NonceSize() {
		return "", ErrDecrypt
	}
	tag, err := hex.DecodeString(f.AuthTag)
	if err != nil || len(tag) != s.aead.Overhead() {
		return "", ErrDecrypt
	}
	plain, err := s.aead.Open(nil, nonce, append(ct, tag...), []byte(aadLabel))
	if err != nil {
		return "", ErrDecrypt
	}
	return string(plain), nil
}

// Hash returns the hex SHA-256 of data (one-way, for audit identifiers).
func Hash(data string) string {
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}

// RandomToken returns length random bytes as hex.
func RandomToken(length int) string {
	if length <= 0 {
		length = 32
	}
	b := make([]byte, length)
	_, _ = io.ReadFull(rand.Reader, b)
	return hex.EncodeToString(b)
}
