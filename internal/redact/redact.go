// Package redact removes sensitive information from strings before they are
// logged or returned in error responses: credentials embedded in connection
// strings, bearer tokens and signing secrets, file paths, SQL fragments from
// driver errors, and stack traces.
package redact

import (
	"regexp"
)

// Constants for redaction placeholders
const (
	RedactedPathPlaceholder       = "[REDACTED_PATH]"
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedKeyPlaceholder        = "[REDACTED_KEY]"
	RedactedJWTPlaceholder        = "[REDACTED_JWT]"
	RedactedEmailPlaceholder      = "[REDACTED_EMAIL]"
	RedactedSQLPlaceholder        = "[REDACTED_SQL]"
	RedactedStackPlaceholder      = "[STACK_TRACE_REDACTED]"
)

type rule struct {
	pattern     *regexp.Regexp
	placeholder string
}

// rules run in order; a stack trace swallows the rest of the message, and
// JWTs are replaced before the generic key pattern can split them.
var rules = []rule{
	{regexp.MustCompile(`(?:goroutine \d+|panic:)[\s\S]*`), RedactedStackPlaceholder},
	{regexp.MustCompile(`(?i)\b[a-z][a-z0-9+.-]*://[^@\s/]+@`), RedactedCredentialPlaceholder},
	{regexp.MustCompile(`(?i)(?:password|passwd|pwd)\s*[=:]\s*['"]?[^'"&\s]+`), RedactedCredentialPlaceholder},
	{regexp.MustCompile(`eyJ[A-Za-z0-9_-]+\.eyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+`), RedactedJWTPlaceholder},
	{regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9_\-.~+/]+=*`), RedactedKeyPlaceholder},
	{
		regexp.MustCompile(`(?i)(?:api[_-]?key|secret|token)\s*[=:]\s*['"]?[A-Za-z0-9_\-.~+/]{8,}`),
		RedactedKeyPlaceholder,
	},
	{regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`), RedactedEmailPlaceholder},
	{
		regexp.MustCompile(`(?i)\b(?:SELECT\s.+?\sFROM|INSERT\s+INTO|UPDATE\s+\w+\s+SET|DELETE\s+FROM)\b[^;]*`),
		RedactedSQLPlaceholder,
	},
	{regexp.MustCompile(`(?:/[\w.-]+){2,}`), RedactedPathPlaceholder},
}

// String redacts sensitive information from the input string
func String(input string) string {
	if input == "" {
		return input
	}

	result := input
	for _, r := range rules {
		result = r.pattern.ReplaceAllString(result, r.placeholder)
	}
	return result
}

// Error redacts sensitive information from an error's Error() output
func Error(err error) string {
	if err == nil {
		return ""
	}

	return String(err.Error())
}
