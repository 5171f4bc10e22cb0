package utils

import "golang.org/x/crypto/bcrypt"

// HashPin hashes a PIN (or recovery code) with bcrypt. bcrypt embeds its own
// per-hash salt, so the stored value is self-contained.
func HashPin(pin string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckPin(pin, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin)) == nil
}
