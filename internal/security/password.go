// Package security hashes and checks account passwords.
package security

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/geocoder89/mealplanner/internal/apperr"
)

// bcrypt ignores everything past 72 bytes, so longer input is refused.
const MaxPasswordBytes = 72

// Cost is lowered by tests.
var Cost = bcrypt.DefaultCost

func HashPassword(plain string) (string, error) {
	if len(plain) > MaxPasswordBytes {
		return "", apperr.Validation("password must be at most %d bytes", MaxPasswordBytes)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(plain), Cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword returns nil only if plain matches hash.
func CheckPassword(hash, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
}
