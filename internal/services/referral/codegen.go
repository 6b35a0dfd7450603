package referral

import (
	"crypto/rand"
	"fmt"
)

// codeAlphabet excludes visually confusable characters (0/O, 1/I)
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// codeExistsFunc reports whether a candidate code is already taken
type codeExistsFunc func(code string) (bool, error)

// generateUniqueCode draws random codes until one passes the collision
// check or the attempt ceiling is hit. There is no reservation step; the
// caller must persist the referral promptly after generation.
func generateUniqueCode(length, maxAttempts int, exists codeExistsFunc) (string, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		code, err := randomCode(length)
		if err != nil {
			return "", err
		}

		taken, err := exists(code)
		if err != nil {
			return "", fmt.Errorf("failed to check code collision: %w", err)
		}
		if !taken {
			return code, nil
		}
	}

	return "", ErrCodeSpaceExhausted
}

// randomCode generates a random string from the ambiguity-reduced alphabet
func randomCode(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}

	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}

	return string(buf), nil
}
