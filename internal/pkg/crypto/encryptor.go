package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrBadKey is returned when NewEncryptor is given a key of the wrong
// length.
var ErrBadKey = errors.New("crypto: encryption key must be 32 bytes (64 hex characters)")

// ErrBadCiphertext is returned when a ciphertext string doesn't match the
// `HEX(IV):HEX(ciphertext)` shape.
var ErrBadCiphertext = errors.New("crypto: malformed ciphertext")

// Encryptor implements AES-256-CBC with PKCS#7 padding, representing
// ciphertext as the ASCII string HEX(IV) ":" HEX(ciphertext).
type Encryptor struct {
	key []byte
}

// NewEncryptor builds an Encryptor from a 32-byte key. key is either 64 hex
// characters, decoded to the key bytes, or a raw 32-byte string (e.g. a
// sliced JWT secret) used directly as key bytes; any other length returns
// ErrBadKey.
func NewEncryptor(key string) (*Encryptor, error) {
	if len(key) == 64 {
		if decoded, err := hex.DecodeString(key); err == nil && len(decoded) == 32 {
			return &Encryptor{key: decoded}, nil
		}
	}
	if len(key) == 32 {
		return &Encryptor{key: []byte(key)}, nil
	}
	return nil, ErrBadKey
}

// Encrypt encrypts plaintext and returns the HEX(IV):HEX(ciphertext) string.
func (e *Encryptor) Encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(e.key)
	if err != nil {
		return "", fmt.Errorf("crypto: new cipher: %w", err)
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("crypto: generate iv: %w", err)
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	mode := cipher.NewCBCEncrypter(block, iv)
	mode.CryptBlocks(ciphertext, padded)

	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(ciphertext), nil
}

// Decrypt reverses Encrypt. It rejects any ciphertext not shaped exactly
// HEX(IV):HEX(ciphertext) with ErrBadCiphertext.
func (e *Encryptor) Decrypt(ciphertext string) (string, error) {
	parts := strings.SplitN(ciphertext, ":", 2)
	if len(parts) != 2 {
		return "", ErrBadCiphertext
	}
	iv, err := hex.DecodeString(parts[0])
	if err != nil || len(iv) != aes.BlockSize {
		return "", ErrBadCiphertext
	}
	data, err := hex.DecodeString(parts[1])
	if err != nil || len(data) == 0 || len(data)%aes.BlockSize != 0 {
		return "", ErrBadCiphertext
	}

	block, err := aes.NewCipher(e.key)
	if err != nil {
		return "", fmt.Errorf("crypto: new cipher: %w", err)
	}

	plain := make([]byte, len(data))
	mode := cipher.NewCBCDecrypter(block, iv)
	mode.CryptBlocks(plain, data)

	unpadded, err := pkcs7Unpad(plain, aes.BlockSize)
	if err != nil {
		return "", ErrBadCiphertext
	}
	return string(unpadded), nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padding := bytes.Repeat([]byte{byte(padLen)}, padLen)
	return append(data, padding...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	length := len(data)
	if length == 0 || length%blockSize != 0 {
		return nil, errors.New("crypto: invalid padded data length")
	}
	padLen := int(data[length-1])
	if padLen == 0 || padLen > blockSize || padLen > length {
		return nil, errors.New("crypto: invalid padding")
	}
	for _, b := range data[length-padLen:] {
		if int(b) != padLen {
			return nil, errors.New("crypto: invalid padding bytes")
		}
	}
	return data[:length-padLen], nil
}
