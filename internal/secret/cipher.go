// Package secret encrypts custody key material at rest.
//
// Secrets are sealed with AES-256-CBC under the configured key and
// authenticated with HMAC-SHA256 over iv||ciphertext, so a wrong IV or a
// tampered ciphertext fails instead of yielding a different plaintext.
package secret

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	// KeySize is the required length of the decoded encryption key.
	KeySize = 32
	macSize = sha256.Size
	macInfo = "polo-core custody secret mac v1"
)

var (
	// ErrInvalidKey reports a missing or wrongly sized encryption key.
	ErrInvalidKey = errors.New("encryption key must be 64 hex characters (32 bytes)")
	// ErrDecrypt reports a ciphertext that does not authenticate under the
	// supplied IV. The message carries no detail about the input.
	ErrDecrypt = errors.New("decryption failed")
)

// Sealed is the at-rest form of a secret. Both fields are hex encoded.
type Sealed struct {
	IV         string
	Ciphertext string
}

// Cipher seals and opens custody secrets. It is safe for concurrent use.
type Cipher struct {
	block  cipher.Block
	macKey []byte
	rand   io.Reader
}

// NewCipher validates the hex encoded key and prepares the block cipher.
func NewCipher(hexKey string) (*Cipher, error) {
	if len(hexKey) != KeySize*2 {
		return nil, fmt.Errorf("%w: got %d characters", ErrInvalidKey, len(hexKey))
	}
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, ErrInvalidKey
	}
	return newCipher(key, rand.Reader)
}

func newCipher(key []byte, random io.Reader) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init aes: %w", err)
	}
	macKey := make([]byte, macSize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, key, nil, []byte(macInfo)), macKey); err != nil {
		return nil, fmt.Errorf("derive mac key: %w", err)
	}
	return &Cipher{block: block, macKey: macKey, rand: random}, nil
}

// Encrypt seals plaintext under a fresh random IV.
func (c *Cipher) Encrypt(plaintext []byte) (Sealed, error) {
	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(c.rand, iv); err != nil {
		return Sealed{}, fmt.Errorf("generate iv: %w", err)
	}

	padded := pad(plaintext)
	defer Wipe(padded)

	out := make([]byte, len(padded), len(padded)+macSize)
	cipher.NewCBCEncrypter(c.block, iv).CryptBlocks(out, padded)
	out = append(out, c.mac(iv, out)...)

	return Sealed{IV: hex.EncodeToString(iv), Ciphertext: hex.EncodeToString(out)}, nil
}

// Decrypt opens a sealed secret. The caller owns the returned slice and
// should Wipe it as soon as it is no longer needed.
func (c *Cipher) Decrypt(ciphertextHex, ivHex string) ([]byte, error) {
	iv, err := hex.DecodeString(ivHex)
	if err != nil || len(iv) != aes.BlockSize {
		return nil, ErrDecrypt
	}
	raw, err := hex.DecodeString(ciphertextHex)
	if err != nil || len(raw) < aes.BlockSize+macSize {
		return nil, ErrDecrypt
	}
	body, tag := raw[:len(raw)-macSize], raw[len(raw)-macSize:]
	if len(body)%aes.BlockSize != 0 {
		return nil, ErrDecrypt
	}
	if !hmac.Equal(tag, c.mac(iv, body)) {
		return nil, ErrDecrypt
	}

	plain := make([]byte, len(body))
	cipher.NewCBCDecrypter(c.block, iv).CryptBlocks(plain, body)
	unpadded, err := unpad(plain)
	if err != nil {
		Wipe(plain)
		return nil, ErrDecrypt
	}
	return unpadded, nil
}

func (c *Cipher) mac(iv, body []byte) []byte {
	h := hmac.New(sha256.New, c.macKey)
	h.Write(iv)
	h.Write(body)
	return h.Sum(nil)
}

// Wipe zeroes b in place.
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

func pad(src []byte) []byte {
	n := aes.BlockSize - len(src)%aes.BlockSize
	out := make([]byte, len(src), len(src)+n)
	copy(out, src)
	return append(out, bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(src []byte) ([]byte, error) {
	if len(src) == 0 {
		return nil, ErrDecrypt
	}
	n := int(src[len(src)-1])
	if n == 0 || n > aes.BlockSize || n > len(src) {
		return nil, ErrDecrypt
	}
	for _, b := range src[len(src)-n:] {
		if int(b) != n {
			return nil, ErrDecrypt
		}
	}
	return src[:len(src)-n], nil
}
