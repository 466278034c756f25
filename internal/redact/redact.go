// Package redact removes credentials from strings before they are logged or
// returned in error responses: signed-URL signatures, connection-string
// passwords, bearer tokens, JWTs and API keys.
package redact

import (
	"net/url"
	"regexp"
	"strings"
)

// Constants for redaction placeholders
const (
	RedactionPlaceholder          = "[REDACTED]"
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedKeyPlaceholder        = "[REDACTED_KEY]"
	RedactedJWTPlaceholder        = "[REDACTED_JWT]"
)

// signedQueryParams are query parameters that carry a signature or a
// credential in GCS V4, S3 presigned and API-key URLs.
var signedQueryParams = []string{
	"x-goog-signature", "x-goog-credential", "googleaccessid", "signature",
	"x-amz-signature", "x-amz-credential", "x-amz-security-token",
	"key", "token", "access_token",
}

type rule struct {
	pattern     *regexp.Regexp
	replacement string
}

// rules run in order; earlier rules see the raw input.
var rules = []rule{
	{
		regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`),
		RedactedJWTPlaceholder,
	},
	{
		regexp.MustCompile(`(?i)([?&](?:` + strings.Join(signedQueryParams, "|") + `)=)[^&\s"']+`),
		"${1}" + RedactionPlaceholder,
	},
	{
		regexp.MustCompile(`(?i)((?:postgres|postgresql|redis|rediss|mysql)://[^:/@\s]+:)[^@\s]+@`),
		"${1}" + RedactedCredentialPlaceholder + "@",
	},
	{
		regexp.MustCompile(`(?i)\b(password|passwd|pwd)(\s*[=:]\s*)['"]?[^'"&\s]+`),
		"${1}${2}" + RedactedCredentialPlaceholder,
	},
	{
		regexp.MustCompile(`(?i)\b(bearer\s+)[A-Za-z0-9_\-.~+/]+=*`),
		"${1}" + RedactedCredentialPlaceholder,
	},
	{
		regexp.MustCompile(`(?i)\b(api[_-]?key|secret|client[_-]?secret)(['"\s:=]+)[A-Za-z0-9_\-.~+/]{8,}`),
		"${1}${2}" + RedactedKeyPlaceholder,
	},
	{
		regexp.MustCompile(`\b(?:AKIA|ASIA)[A-Z0-9]{16}\b`),
		RedactedKeyPlaceholder,
	},
}

// String redacts sensitive information from the input string
func String(input string) string {
	if input == "" {
		return input
	}

	result := input
	for _, r := range rules {
		result = r.pattern.ReplaceAllString(result, r.replacement)
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

// URL returns raw with its query string dropped, for logging signed artifact
// URLs. Unparseable input is redacted as a plain string.
func URL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return String(raw)
	}
	u.User = nil
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
