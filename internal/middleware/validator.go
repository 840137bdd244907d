package middleware

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// maxObjectName is the S3 limit on key length in bytes.
const maxObjectName = 1024

// ValidateObjectName rejects names no bucket could hold.
func ValidateObjectName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("object name cannot be empty")
	}
	if len(name) > maxObjectName {
		return fmt.Errorf("object name longer than %d bytes", maxObjectName)
	}
	if !utf8.ValidString(name) {
		return fmt.Errorf("object name is not valid UTF-8")
	}
	if strings.ContainsAny(name, "\x00\r\n") {
		return fmt.Errorf("invalid characters in object name")
	}
	return nil
}

// ValidateLimit validates pagination limit
func ValidateLimit(limit int) int {
	if limit <= 0 {
		return 20 // default
	}
	if limit > 100 {
		return 100 // max limit
	}
	return limit
}

// ValidateDays validates days parameter
func ValidateDays(days int) int {
	if days <= 0 {
		return 7 // default
	}
	if days > 365 {
		return 365 // max 1 year
	}
	return days
}
