package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashToken derives the cache key for a token value. Keys are fixed-length
// and never expose the raw credential to the cache backend.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
