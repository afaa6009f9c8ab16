package telemetry

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"regexp"
)

// PIILevel controls how much visitor data reaches logs and spans.
type PIILevel string

const (
	// PIILevelNone redacts all visitor content
	PIILevelNone PIILevel = "none"
	// PIILevelHashed replaces identities and detected PII with salted hashes
	PIILevelHashed PIILevel = "hashed"
	// PIILevelFull performs no sanitization
	PIILevelFull PIILevel = "full"
)

const redacted = "[REDACTED]"

// identityParams are query parameters carrying visitor identities.
var identityParams = []string{"anonymous_client_id", "account_id", "access_token"}

// Sanitizer strips personal data from chat bodies, identities and request
// metadata before they are logged.
type Sanitizer struct {
	level PIILevel
	salt  string

	emailPattern      *regexp.Regexp
	phonePattern      *regexp.Regexp
	creditCardPattern *regexp.Regexp
	ipv4Pattern       *regexp.Regexp
}

// NewSanitizer creates a sanitizer. salt keeps hashes stable per deployment.
func NewSanitizer(level PIILevel, salt string) *Sanitizer {
	return &Sanitizer{
		level:             level,
		salt:              salt,
		emailPattern:      regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`),
		phonePattern:      regexp.MustCompile(`\+?\d[\d\s().-]{7,}\d`),
		creditCardPattern: regexp.MustCompile(`\b\d{4}[- ]?\d{4}[- ]?\d{4}[- ]?\d{4}\b`),
		ipv4Pattern:       regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`),
	}
}

// Level returns the configured level.
func (s *Sanitizer) Level() PIILevel {
	return s.level
}

// SanitizeBody sanitizes a chat message body.
func (s *Sanitizer) SanitizeBody(body string) string {
	switch s.level {
	case PIILevelNone:
		return redacted
	case PIILevelFull:
		return body
	default:
		return s.hashPII(body)
	}
}

// SanitizeUserID sanitizes an anonymous client id or account id.
func (s *Sanitizer) SanitizeUserID(userID string) string {
	if userID == "" {
		return ""
	}

	switch s.level {
	case PIILevelNone:
		return redacted
	case PIILevelFull:
		return userID
	default:
		return s.hash(userID)
	}
}

// SanitizeQuery rewrites identity parameters of a raw query string.
func (s *Sanitizer) SanitizeQuery(rawQuery string) string {
	if rawQuery == "" || s.level == PIILevelFull {
		return rawQuery
	}
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return redacted
	}
	for _, key := range identityParams {
		if v := values.Get(key); v != "" {
			values.Set(key, s.SanitizeUserID(v))
		}
	}
	return values.Encode()
}

func (s *Sanitizer) hashPII(input string) string {
	result := s.creditCardPattern.ReplaceAllString(input, "[CC:REDACTED]")

	result = s.emailPattern.ReplaceAllStringFunc(result, func(match string) string {
		return fmt.Sprintf("[EMAIL:%s]", s.hash(match))
	})

	result = s.ipv4Pattern.ReplaceAllStringFunc(result, func(match string) string {
		return fmt.Sprintf("[IP:%s]", s.hash(match))
	})

	result = s.phonePattern.ReplaceAllStringFunc(result, func(match string) string {
		return fmt.Sprintf("[PHONE:%s]", s.hash(match))
	})

	return result
}

// hash returns the first 8 hex characters of a salted SHA-256.
func (s *Sanitizer) hash(data string) string {
	h := sha256.New()
	h.Write([]byte(data + s.salt))
	return hex.EncodeToString(h.Sum(nil))[:8]
}
