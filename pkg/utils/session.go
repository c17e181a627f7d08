// backend/pkg/utils/session.go
package utils

import (
	"crypto/md5"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

// GenerateSessionID generates a fresh random session identifier
func GenerateSessionID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:16]
}

// GenerateOrderID generates a short order identifier like "ORD-3FA8C21B"
func GenerateOrderID() string {
	hexID := strings.ReplaceAll(uuid.New().String(), "-", "")
	return "ORD-" + strings.ToUpper(hexID[:8])
}

// GenerateRandomID generates a short random identifier of the given length
func GenerateRandomID(length int) string {
	hexID := strings.ReplaceAll(uuid.New().String(), "-", "")
	if length > len(hexID) {
		length = len(hexID)
	}
	return hexID[:length]
}

// MD5Hash generates MD5 hash of input string, used for cache keys and
// dataset checksums
func MD5Hash(input string) string {
	hash := md5.Sum([]byte(input))
	return hex.EncodeToString(hash[:])
}

// ValidateSessionID rejects identifiers that are empty or absurdly long;
// the agent creates sessions lazily so any reasonable token is accepted
func ValidateSessionID(sessionID string) bool {
	return sessionID != "" && len(sessionID) <= 64
}
