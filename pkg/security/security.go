// Package security provides validation, sanitization, and limits for flowline.
package security

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/mdekker/flowline/pkg/core"
)

// Limits enforced at the engine boundary.
const (
	// MaxJobTypeNameLength is the maximum length for job type names.
	MaxJobTypeNameLength = 255

	// MaxJobArgsSize is the maximum size in bytes for job arguments (1MB).
	MaxJobArgsSize = 1 << 20

	// MaxRetries is the hard limit for retry attempts.
	MaxRetries = 100

	// MaxConcurrency is the hard limit for worker concurrency.
	MaxConcurrency = 1000

	// MaxErrorMessageLength is the maximum length for stored error messages.
	MaxErrorMessageLength = 4096

	// MaxQueueNameLength is the maximum length for queue names.
	MaxQueueNameLength = 255

	// MaxUniqueKeyLength is the maximum length for unique keys.
	MaxUniqueKeyLength = 255
)

// validName matches alphanumeric, hyphens, underscores, and dots.
var validName = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_\-\.]*$`)

// ValidateJobTypeName validates a job type name.
func ValidateJobTypeName(name string) error {
	if name == "" {
		return core.ErrInvalidJobTypeName
	}
	if len(name) > MaxJobTypeNameLength {
		return core.ErrJobTypeNameTooLong
	}
	if !validName.MatchString(name) {
		return core.ErrInvalidJobTypeName
	}
	return nil
}

// ValidateQueueName validates a queue name.
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

// ValidateUniqueKey validates a deduplication key.
func ValidateUniqueKey(key string) error {
	if len(key) > MaxUniqueKeyLength {
		return core.ErrUniqueKeyTooLong
	}
	return nil
}

// SanitizeErrorMessage strips control characters and truncates error messages
// before they are written to the store.
func SanitizeErrorMessage(msg string) string {
	if msg == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(msg))
	for _, r := range msg {
		if r == '\n' || r == '\r' || r == '\t' || (r >= 32 && r != 127) {
			b.WriteRune(r)
		}
	}

	result := b.String()
	if utf8.RuneCountInString(result) > MaxErrorMessageLength {
		runes := []rune(result)
		result = string(runes[:MaxErrorMessageLength-3]) + "..."
	}
	return result
}

// ClampRetries ensures a retry count is within limits.
func ClampRetries(n int) int {
	if n < 0 {
		return 0
	}
	if n > MaxRetries {
		return MaxRetries
	}
	return n
}

// ClampConcurrency ensures a concurrency value is within limits.
func ClampConcurrency(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxConcurrency {
		return MaxConcurrency
	}
	return n
}
