package utils

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLen is the shortest password createuser accepts.
const MinPasswordLen = 8

var ErrPasswordLength = fmt.Errorf("password must be %d to 72 bytes", MinPasswordLen)

// HashPassword returns the bcrypt hash of plain.  Costs outside bcrypt's
// range fall back to bcrypt.DefaultCost.
func HashPassword(plain string, cost int) (string, error) {
	if len(plain) > 72 {
		return "", ErrPasswordLength
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// CheckPasswordPolicy reports whether plain may be stored for a new account.
func CheckPasswordPolicy(plain string) error {
	if len(plain) < MinPasswordLen || len(plain) > 72 {
		return ErrPasswordLength
	}
	return nil
}

// VerifyPassword compares a stored hash with plain.  A malformed hash
// never matches.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
