package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/scrypt"
)

const (
	scryptN      = 16384
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 64
	saltLen      = 16
)

var errInvalidHashFormat = errors.New("invalid password hash format")

// hashPassword derives a salted scrypt hash and stores it as "hash.salt",
// both hex encoded, so verification can recover the salt.
func hashPassword(password string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	key, err := scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return "", err
	}

	return hex.EncodeToString(key) + "." + hex.EncodeToString(salt), nil
}

// checkPasswordHash re-derives the key with the stored salt and compares in
// constant time. A mismatch returns (false, nil); only a malformed stored
// value is an error.
func checkPasswordHash(password, stored string) (bool, error) {
	hashed, saltHex, found := strings.Cut(stored, ".")
	if !found || hashed == "" || saltHex == "" {
		return false, errInvalidHashFormat
	}

	storedKey, err := hex.DecodeString(hashed)
	if err != nil {
		return false, errInvalidHashFormat
	}
	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return false, errInvalidHashFormat
	}

	key, err := scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, len(storedKey))
	if err != nil {
		return false, err
	}

	return subtle.ConstantTimeCompare(storedKey, key) == 1, nil
}

// generateVerificationCode returns a uniform random 6-digit code.
func generateVerificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
