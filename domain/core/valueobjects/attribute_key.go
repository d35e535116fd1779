package valueobjects

import (
	"regexp"
	"strings"

	pkgerrors "topicgraph/pkg/errors"
)

// DefaultMaxKeyLength bounds attribute, relationship and reference keys
const DefaultMaxKeyLength = 128

var keyPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.\-]*$`)

// NormalizeKey validates key and returns its case-folded form, which is the
// identity a collection uses for uniqueness.
func NormalizeKey(key string, maxLength int) (string, error) {
	if maxLength <= 0 {
		maxLength = DefaultMaxKeyLength
	}
	if key == "" {
		return "", pkgerrors.NewInvalidKeyError(key, "key cannot be empty")
	}
	if len(key) > maxLength {
		return "", pkgerrors.NewInvalidKeyError(key, "key exceeds maximum length").
			WithDetail("maxLength", maxLength)
	}
	if !keyPattern.MatchString(key) {
		return "", pkgerrors.NewInvalidKeyError(key,
			"key must start with a letter or underscore and contain only letters, digits, '_', '.' or '-'")
	}
	return strings.ToLower(key), nil
}

// KeysEqual compares two keys the way collections do
func KeysEqual(a, b string) bool {
	return strings.EqualFold(a, b)
}
