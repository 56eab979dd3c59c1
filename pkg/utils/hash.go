package utils

import (
	"crypto/sha256"
	"fmt"
)

// HashBytes returns the hex SHA-256 of the input, used for cache keys and
// content fingerprints.
func HashBytes(input []byte) string {
	sum := sha256.Sum256(input)
	return fmt.Sprintf("%x", sum)
}

func HashString(input string) string {
	return HashBytes([]byte(input))
}
