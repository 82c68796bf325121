// Package security provides validation, sanitization, and limits for the
// durajobs package.
package security

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/jdziat/durajobs/pkg/core"
)

// Security limits and configuration
const (
	// MaxKindLength is the maximum length for job kinds
	MaxKindLength = 255

	// MaxArgsSize is the maximum size in bytes for job arguments (1MB)
	MaxArgsSize = 1 << 20

	// MaxAttemptsCeiling is the hard limit for max_attempts
	MaxAttemptsCeiling = 100

	// MaxConcurrency is the hard limit for per-queue concurrency
	MaxConcurrency = 1000

	// MaxErrorMessageLength is the maximum length for stored error messages
	MaxErrorMessageLength = 4096

	// MaxQueueNameLength is the maximum length for queue names
	MaxQueueNameLength = 255

	// MaxUniqueKeyLength is the maximum length for unique keys
	MaxUniqueKeyLength = 255
)

// validName matches alphanumeric, hyphens, underscores, and dots
var validName = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_\-\.]*$`)

// ValidateKind validates a job kind
func ValidateKind(name string) error {
	if name == "" {
		return core.ErrInvalidKind
	}
	if len(name) > MaxKindLength {
		return core.ErrKindTooLong
	}
	if !validName.MatchString(name) {
		return core.ErrInvalidKind
	}
	return nil
}

// ValidateQueueName validates a queue name
func ValidateQueueName(name string) error {
	if name == "" {
		return core.ErrInvalidQueueName
	}
	if len(name) > MaxQueueNameLength {
		return core.ErrQueueNameTooLong
	}
	if !validName.MatchString(name) {
		return core.ErrInvalidQueueName
	}
	return nil
}

// ValidateUniqueKey validates a unique key length
func ValidateUniqueKey(key string) error {
	if len(key) > MaxUniqueKeyLength {
		return core.ErrUniqueKeyTooLong
	}
	return nil
}

// SanitizeErrorMessage truncates and sanitizes error messages for storage
func SanitizeErrorMessage(msg string) string {
	if msg == "" {
		return ""
	}

	// Remove any null bytes or control characters (except newlines)
	var sanitized strings.Builder
	sanitized.Grow(len(msg))

	for _, r := range msg {
		if r == '\n' || r == '\r' || r == '\t' || (r >= 32 && r != 127) {
			sanitized.WriteRune(r)
		}
	}

	result := sanitized.String()

	// Truncate if too long
	if utf8.RuneCountInString(result) > MaxErrorMessageLength {
		runes := []rune(result)
		result = string(runes[:MaxErrorMessageLength-3]) + "..."
	}

	return result
}

// ClampMaxAttempts ensures an attempt ceiling is within limits
func ClampMaxAttempts(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxAttemptsCeiling {
		return MaxAttemptsCeiling
	}
	return n
}

// ClampConcurrency ensures concurrency is within limits
func ClampConcurrency(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxConcurrency {
		return MaxConcurrency
	}
	return n
}
