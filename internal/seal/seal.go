// Package seal seals and unseals the access server password stored in the
// schedule document. Values are AES-CBC encrypted with PKCS#7 padding and a
// fixed initialization vector, then base64 encoded, so documents written by
// earlier tooling keep working.
package seal

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
)

// initVector is shared by every sealed value. Changing it invalidates all
// existing documents.
var initVector = []byte("RandomInitVector")

// Sentinel errors for sealing operations.
var (
	// ErrKeyFile indicates the key file is missing or does not hold a valid
	// hex-encoded AES key.
	ErrKeyFile = errors.New("seal: invalid key file")

	// ErrUnseal indicates a sealed value could not be decrypted.
	ErrUnseal = errors.New("seal: cannot unseal value")
)

// Unsealer turns a sealed credential back into plaintext.
type Unsealer interface {
	Unseal(sealed string) (string, error)
}

// AES seals and unseals values with a fixed symmetric key.
type AES struct {
	block cipher.Block
}

// Compile-time interface check.
var _ Unsealer = (*AES)(nil)

// New returns an AES sealer for a 16, 24 or 32 byte key.
func New(key []byte) (*AES, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyFile, err)
	}
	return &AES{block: block}, nil
}

// LoadKeyFile reads a hex-encoded key from path. Surrounding whitespace is
// ignored.
func LoadKeyFile(path string) (*AES, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyFile, err)
	}
	key, err := hex.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrKeyFile, path, err)
	}
	return New(key)
}

// Seal encrypts plain and returns its base64 form.
func (a *AES) Seal(plain string) (string, error) {
	padded := pad([]byte(plain), aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(a.block, initVector).CryptBlocks(out, padded)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Unseal decrypts a value produced by Seal.
func (a *AES) Unseal(sealed string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(sealed))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnseal, err)
	}
	if len(data) == 0 || len(data)%aes.BlockSize != 0 {
		return "", fmt.Errorf("%w: ciphertext length %d is not a multiple of the block size", ErrUnseal, len(data))
	}

	out := make([]byte, len(data))
	cipher.NewCBCDecrypter(a.block, initVector).CryptBlocks(out, data)

	plain, err := unpad(out, aes.BlockSize)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnseal, err)
	}
	return string(plain), nil
}

// KeyFile unseals with the key currently stored at Path. The file is read
// on every call, so a missing or rotated key only affects the firings that
// run while it is missing.
type KeyFile struct {
	Path string
}

// Compile-time interface check.
var _ Unsealer = KeyFile{}

// Unseal implements Unsealer.
func (k KeyFile) Unseal(sealed string) (string, error) {
	a, err := LoadKeyFile(k.Path)
	if err != nil {
		return "", err
	}
	return a.Unseal(sealed)
}

func pad(data []byte, size int) []byte {
	n := size - len(data)%size
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(data []byte, size int) ([]byte, error) {
	n := int(data[len(data)-1])
	if n == 0 || n > size || n > len(data) {
		return nil, errors.New("bad padding")
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, errors.New("bad padding")
		}
	}
	return data[:len(data)-n], nil
}
