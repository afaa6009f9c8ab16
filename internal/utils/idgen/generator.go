package idgen

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// Public identifier prefixes.
const (
	PrefixConversation = "conv"
	PrefixMessage      = "msg"
	PrefixAnonymous    = "anon"
)

// GenerateSecureID returns prefix_ followed by length random base36 characters.
func GenerateSecureID(prefix string, length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("id length must be positive, got %d", length)
	}

	max := big.NewInt(int64(len(alphabet)))
	var b strings.Builder
	b.Grow(len(prefix) + 1 + length)
	b.WriteString(prefix)
	b.WriteByte('_')
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		b.WriteByte(alphabet[n.Int64()])
	}
	return b.String(), nil
}

// MustGenerate is GenerateSecureID for callers that cannot recover from an exhausted entropy source.
func MustGenerate(prefix string, length int) string {
	id, err := GenerateSecureID(prefix, length)
	if err != nil {
		panic(err)
	}
	return id
}

// ValidateIDFormat reports whether id is expectedPrefix_ followed by lowercase base36 characters.
func ValidateIDFormat(id, expectedPrefix string) bool {
	suffix, ok := strings.CutPrefix(id, expectedPrefix+"_")
	if !ok || suffix == "" {
		return false
	}
	for _, c := range suffix {
		if !strings.ContainsRune(alphabet, c) {
			return false
		}
	}
	return true
}
