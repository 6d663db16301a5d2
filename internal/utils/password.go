package utils

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrNoAdminPassword means neither a stored hash nor a plain admin
// password was configured.
var ErrNoAdminPassword = errors.New("admin password not configured")

// HashPassword hashes the admin password for the login handler.  Costs
// outside bcrypt's range fall back to bcrypt.DefaultCost.
func HashPassword(plain string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword reports whether plain matches the admin hash.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// AdminPasswordHash picks the hash POST /v1/admin/login checks against.  A
// configured hash wins and must be a bcrypt hash; otherwise plain is
// hashed at cost.
func AdminPasswordHash(hash, plain string, cost int) (string, error) {
	if hash != "" {
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return "", fmt.Errorf("admin password hash: %w", err)
		}
		return hash, nil
	}
	if plain == "" {
		return "", ErrNoAdminPassword
	}
	return HashPassword(plain, cost)
}
