// Package cryptox seals backup snapshots with a passphrase: the key is derived
// with Argon2id and the payload is encrypted with AES-256-GCM.
package cryptox

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"

	"golang.org/x/crypto/argon2"
)

const (
	saltSize = 16
	keySize  = 32
)

// magic prefixes every sealed blob so Open can reject foreign data early.
var magic = []byte("FBK1")

var (
	ErrMalformed     = errors.New("sealed data is malformed")
	ErrEmptyPassword = errors.New("empty passphrase")
)

// DeriveMasterKey stretches password into a 32-byte AES key.
func DeriveMasterKey(password []byte, salt []byte) []byte {
	return argon2.IDKey(password, salt, 1, 64*1024, 4, keySize)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Seal encrypts plaintext with a key derived from passphrase. The result is
// magic | salt | nonce | ciphertext and is safe to store as an opaque object.
func Seal(plaintext, passphrase []byte) ([]byte, error) {
	if len(passphrase) == 0 {
		return nil, ErrEmptyPassword
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	key := DeriveMasterKey(passphrase, salt)
	defer clear(key)

	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aesgcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(magic)+saltSize+len(nonce)+len(plaintext)+aesgcm.Overhead())
	out = append(out, magic...)
	out = append(out, salt...)
	out = append(out, nonce...)
	return aesgcm.Seal(out, nonce, plaintext, magic), nil
}

// Open reverses Seal. A wrong passphrase or tampered data fails.
func Open(sealed, passphrase []byte) ([]byte, error) {
	if len(passphrase) == 0 {
		return nil, ErrEmptyPassword
	}
	if !bytes.HasPrefix(sealed, magic) || len(sealed) < len(magic)+saltSize {
		return nil, ErrMalformed
	}
	rest := sealed[len(magic):]
	salt, rest := rest[:saltSize], rest[saltSize:]

	key := DeriveMasterKey(passphrase, salt)
	defer clear(key)

	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(rest) < aesgcm.NonceSize()+aesgcm.Overhead() {
		return nil, ErrMalformed
	}
	nonce, ciphertext := rest[:aesgcm.NonceSize()], rest[aesgcm.NonceSize():]

	return aesgcm.Open(nil, nonce, ciphertext, magic)
}
