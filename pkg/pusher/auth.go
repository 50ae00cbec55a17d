package pusher

import (
	"crypto/subtle"
	"strings"

	"github.com/sguter90/weatherlog/pkg/models"
	"github.com/sguter90/weatherlog/pkg/normalizer"
)

// Lookup returns the first field matching key case-insensitively as a string
func Lookup(fields models.Fields, key string) (string, bool) {
	if v, ok := fields[key]; ok {
		return stringValue(v)
	}
	for k, v := range fields {
		if strings.EqualFold(k, key) {
			return stringValue(v)
		}
	}
	return "", false
}

func stringValue(v interface{}) (string, bool) {
	s := normalizer.Text(v)
	if s == nil {
		return "", false
	}
	return *s, true
}

// SecretMatches compares a presented secret with the configured one in
// constant time
func SecretMatches(presented, configured string) bool {
	return subtle.ConstantTimeCompare([]byte(presented), []byte(configured)) == 1
}

// CheckPasskey validates a single shared secret field. The secret is only
// compared when the payload carries it; a missing secret is rejected only when
// required is set. A required secret that is not configured rejects everything.
func CheckPasskey(fields models.Fields, field, passkey string, required bool) error {
	if required && passkey == "" {
		return ErrUnauthorized
	}
	presented, ok := Lookup(fields, field)
	if !ok {
		if required {
			return ErrUnauthorized
		}
		return nil
	}
	if passkey != "" && !SecretMatches(presented, passkey) {
		return ErrUnauthorized
	}
	return nil
}
