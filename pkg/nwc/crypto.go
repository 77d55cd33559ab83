package nwc

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// sharedSecret derives the 32-byte symmetric key for a descriptor: the x
// coordinate of the ECDH point between the client secret and the wallet key.
func sharedSecret(d *ConnectionDescriptor) []byte {
	x, _ := crypto.S256().ScalarMult(d.walletKey.X, d.walletKey.Y, d.secret.D.Bytes())
	key := make([]byte, 32)
	x.FillBytes(key)
	return key
}

// encryptPayload encrypts plaintext for the descriptor's wallet using
// AES-256-CBC with a random IV. The output format is
// base64(ciphertext) + "?iv=" + base64(iv).
func encryptPayload(d *ConnectionDescriptor, plaintext []byte) (string, error) {
	block, err := aes.NewCipher(sharedSecret(d))
	if err != nil {
		return "", err
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", err
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ct := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ct, padded)

	return base64.StdEncoding.EncodeToString(ct) + "?iv=" + base64.StdEncoding.EncodeToString(iv), nil
}

// decryptPayload reverses encryptPayload. All failure modes are reported as
// ErrDecrypt so callers can distinguish them from timeouts and remote errors.
func decryptPayload(d *ConnectionDescriptor, content string) ([]byte, error) {
	parts := strings.Split(content, "?iv=")
	if len(parts) != 2 {
		return nil, fmt.Errorf("%w: missing iv separator", ErrDecrypt)
	}

	ct, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, fmt.Errorf("%w: ciphertext: %v", ErrDecrypt, err)
	}
	iv, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: iv: %v", ErrDecrypt, err)
	}
	if len(iv) != aes.BlockSize || len(ct) == 0 || len(ct)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: bad block sizes", ErrDecrypt)
	}

	block, err := aes.NewCipher(sharedSecret(d))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}

	pt := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(pt, ct)

	unpadded, err := pkcs7Unpad(pt, aes.BlockSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	return unpadded, nil
}

func pkcs7Pad(b []byte, blockSize int) []byte {
	n := blockSize - len(b)%blockSize
	padded := make([]byte, len(b)+n)
	copy(padded, b)
	for i := len(b); i < len(padded); i++ {
		padded[i] = byte(n)
	}
	return padded
}

func pkcs7Unpad(b []byte, blockSize int) ([]byte, error) {
	if len(b) == 0 || len(b)%blockSize != 0 {
		return nil, fmt.Errorf("invalid padded length %d", len(b))
	}
	n := int(b[len(b)-1])
	if n == 0 || n > blockSize || n > len(b) {
		return nil, fmt.Errorf("invalid padding byte %d", n)
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, fmt.Errorf("inconsistent padding")
		}
	}
	return b[:len(b)-n], nil
}
