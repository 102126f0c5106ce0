package auth

import "golang.org/x/crypto/bcrypt"

// HashToken generates a bcrypt hash of the admin token.
// The cost parameter (14) is a good balance between security and performance.
func HashToken(token string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(token), 14)
	return string(bytes), err
}

// CheckTokenHash compares a plaintext token with a stored bcrypt hash.
// It returns true if the token matches the hash.
func CheckTokenHash(token, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(token))
	return err == nil
}
