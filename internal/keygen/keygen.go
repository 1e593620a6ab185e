// Package keygen mints and masks API keys for the run trigger endpoint.
package keygen

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
)

// Keys carry a versioned prefix so a leaked token is recognizable in config
// review and log scrubbing.
const prefix = "sched-v1-"

// New mints an API key: the versioned prefix followed by 32 bytes of
// entropy in unpadded URL-safe base64.
func New() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return prefix + base64.RawURLEncoding.EncodeToString(buf), nil
}

// Mask returns a loggable form of key: the prefix plus the first four token
// characters. Keys in any other format mask completely.
func Mask(key string) string {
	if !strings.HasPrefix(key, prefix) || len(key) < len(prefix)+8 {
		return "***"
	}
	return key[:len(prefix)+4] + "***"
}
