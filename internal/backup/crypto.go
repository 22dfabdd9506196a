package backup

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"

	"golang.org/x/crypto/pbkdf2"
)

// KeyManager derives encryption keys from passwords
type KeyManager struct {
	iterations int
}

// NewKeyManager creates a key manager with the standard work factor
func NewKeyManager() *KeyManager {
	return &KeyManager{iterations: PBKDF2Iterations}
}

// DeriveKey derives an AES-256 key from a password and salt using PBKDF2-SHA512
func (km *KeyManager) DeriveKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, km.iterations, KeySize, sha512.New)
}

// GenerateSalt creates a fresh random salt
func (km *KeyManager) GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, NewEncryptionError("failed to generate salt", err)
	}
	return salt, nil
}

// GenerateIV creates a fresh random nonce
func (km *KeyManager) GenerateIV() ([]byte, error) {
	iv := make([]byte, IVSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, NewEncryptionError("failed to generate IV", err)
	}
	return iv, nil
}

// CheckPasswordPolicy enforces the minimum password requirements
func CheckPasswordPolicy(password string) error {
	if len(password) < MinPasswordLength {
		return NewPolicyError("backup password must be at least 12 characters", nil)
	}
	return nil
}

// CryptoManager seals and opens archive payloads with AES-256-GCM.
// The format version and cipher identifier are bound as additional
// authenticated data so a tampered header fails authentication.
type CryptoManager struct {
	keyManager *KeyManager
}

// NewCryptoManager creates a crypto manager
func NewCryptoManager() *CryptoManager {
	return &CryptoManager{keyManager: NewKeyManager()}
}

// KeyManager exposes the key derivation component
func (cm *CryptoManager) KeyManager() *KeyManager {
	return cm.keyManager
}

func additionalData() []byte {
	return []byte(FormatVersion + ":" + Algorithm)
}

// Seal encrypts plaintext with the given key and nonce, returning the
// ciphertext and the authentication tag separately.
func (cm *CryptoManager) Seal(key, iv, plaintext []byte) (ciphertext, tag []byte, err error) {
	if len(key) != KeySize {
		return nil, nil, NewEncryptionError("invalid key length", nil)
	}
	if len(iv) != IVSize {
		return nil, nil, NewEncryptionError("invalid IV length", nil)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, NewEncryptionError("failed to create cipher", err)
	}

	gcm, err := cipher.NewGCMWithNonceSize(block, IVSize)
	if err != nil {
		return nil, nil, NewEncryptionError("failed to create GCM", err)
	}

	sealed := gcm.Seal(nil, iv, plaintext, additionalData())
	if len(sealed) < TagSize {
		return nil, nil, NewEncryptionError("sealed payload too short", nil)
	}

	split := len(sealed) - TagSize
	return sealed[:split], sealed[split:], nil
}

// Open authenticates and decrypts a sealed payload. Authentication failure
// is reported as a validation error and never yields plaintext.
func (cm *CryptoManager) Open(key, iv, ciphertext, tag []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, NewEncryptionError("invalid key length", nil)
	}
	if len(iv) != IVSize {
		return nil, NewEncryptionError("invalid IV length", nil)
	}
	if len(tag) != TagSize {
		return nil, NewValidationError("invalid authentication tag length", nil)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, NewEncryptionError("failed to create cipher", err)
	}

	gcm, err := cipher.NewGCMWithNonceSize(block, IVSize)
	if err != nil {
		return nil, NewEncryptionError("failed to create GCM", err)
	}

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := gcm.Open(nil, iv, sealed, additionalData())
	if err != nil {
		return nil, NewValidationError("authentication failed - wrong password or tampered archive", err)
	}

	return plaintext, nil
}

// VerifyChecksum compares a payload digest in constant time
func VerifyChecksum(data []byte, expectedHex string) bool {
	actual := CalculateDataChecksum(data)
	return subtle.ConstantTimeCompare([]byte(actual), []byte(expectedHex)) == 1
}
