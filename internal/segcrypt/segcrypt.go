// Package segcrypt implements the per-segment authenticated encryption
// primitive: AES-128-GCM with a fresh random key and nonce generated on
// every call to Scramble. The key travels alongside the ciphertext as a
// KeyData column: this guards segment bytes at rest on a storage backend,
// not against anyone with database access, since the key sits right next
// to the ciphertext reference.
package segcrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/scottschroeder/lucille-go/internal/lucerr"
)

const (
	keySize   = 16 // AES-128
	nonceSize = 12
)

// KeyData is a tagged key+nonce bundle. Today only EasyAesGcmInMemory
// exists; the Variant field makes room for future key-management schemes
// without changing the wire shape.
type KeyData struct {
	Variant string `json:"variant"`
	Key     []byte `json:"key"`
	Nonce   []byte `json:"nonce"`
}

const variantEasyAesGcmInMemory = "EasyAesGcmInMemory"

// String serializes KeyData as JSON then base64, for storage in a text column.
func (k KeyData) String() string {
	b, err := json.Marshal(k)
	if err != nil {
		// KeyData only ever holds []byte and a string; Marshal cannot fail.
		panic(fmt.Sprintf("segcrypt: marshal KeyData: %v", err))
	}
	return base64.StdEncoding.EncodeToString(b)
}

// ParseKeyData reverses KeyData.String.
func ParseKeyData(s string) (KeyData, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return KeyData{}, lucerr.New("segcrypt.ParseKeyData", lucerr.KindDecode, err)
	}
	var k KeyData
	if err := json.Unmarshal(raw, &k); err != nil {
		return KeyData{}, lucerr.New("segcrypt.ParseKeyData", lucerr.KindDecode, err)
	}
	return k, nil
}

// Scramble encrypts plaintext under a freshly generated key and nonce.
func Scramble(plaintext []byte) (KeyData, []byte, error) {
	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return KeyData{}, nil, lucerr.New("segcrypt.Scramble", lucerr.KindIO, err)
	}
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return KeyData{}, nil, lucerr.New("segcrypt.Scramble", lucerr.KindIO, err)
	}

	gcm, err := newGCM(key)
	if err != nil {
		return KeyData{}, nil, lucerr.New("segcrypt.Scramble", lucerr.KindIO, err)
	}

	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)
	return KeyData{Variant: variantEasyAesGcmInMemory, Key: key, Nonce: nonce}, ciphertext, nil
}

// Unscramble decrypts ciphertext using the key+nonce in meta, failing with
// KindDecryptionFailed on authentication-tag mismatch.
func Unscramble(ciphertext []byte, meta KeyData) ([]byte, error) {
	gcm, err := newGCM(meta.Key)
	if err != nil {
		return nil, lucerr.New("segcrypt.Unscramble", lucerr.KindDecryptionFailed, err)
	}
	plaintext, err := gcm.Open(nil, meta.Nonce, ciphertext, nil)
	if err != nil {
		return nil, lucerr.New("segcrypt.Unscramble", lucerr.KindDecryptionFailed, err)
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
