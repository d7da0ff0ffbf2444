// Package redact strips sensitive material from text bound for the model
// prompt and decides which repository files may contribute context at all.
package redact

import (
	"regexp"
	"strings"
)

const placeholder = "***REDACTED***"

// keyedSecretPattern matches key/token/secret assignments. The assignment
// prefix is captured so the key name survives redaction and only the value
// is masked.
var keyedSecretPattern = regexp.MustCompile(
	`(?i)((?:api[_-]?key|token|secret|password|passwd|pwd|auth)\s*[:=]\s*)["']?[A-Za-z0-9+/=_\-]{4,}["']?`)

// bareSecretPatterns match secrets with no key context worth preserving.
var bareSecretPatterns = []*regexp.Regexp{
	// Bearer tokens in HTTP headers (JWT-shaped values)
	regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9\-_=]+\.[A-Za-z0-9\-_=]+[A-Za-z0-9.\-_=]*`),
	// Private key blocks
	regexp.MustCompile(`(?s)-----BEGIN [A-Z ]*PRIVATE KEY-----.*?-----END [A-Z ]*PRIVATE KEY-----`),
	// Provider-prefixed API keys
	regexp.MustCompile(`\bsk-[A-Za-z0-9_\-]{20,}\b`),
	regexp.MustCompile(`\bglpat-[A-Za-z0-9_\-]{20,}\b`),
	regexp.MustCompile(`\bgh[pousr]_[A-Za-z0-9_]{36,}\b`),
}

// Secrets masks secret values in text, keeping key names where a key/value
// shape is recognizable. Returns the redacted text and the replacement count.
func Secrets(text string) (string, int) {
	count := 0

	result := keyedSecretPattern.ReplaceAllStringFunc(text, func(m string) string {
		count++
		prefix := keyedSecretPattern.FindStringSubmatch(m)[1]
		return prefix + placeholder
	})

	for _, pat := range bareSecretPatterns {
		result = pat.ReplaceAllStringFunc(result, func(string) string {
			count++
			return placeholder
		})
	}

	return result, count
}

// InternalURLs masks URLs whose host matches any of the given internal
// domain substrings. An empty domain list leaves the text untouched.
func InternalURLs(text string, domains []string) (string, int) {
	if len(domains) == 0 {
		return text, 0
	}

	escaped := make([]string, len(domains))
	for i, d := range domains {
		escaped[i] = regexp.QuoteMeta(d)
	}
	pattern := regexp.MustCompile(
		`(?i)https?://[^/\s'"<>]*(?:` + strings.Join(escaped, "|") + `)[^\s'"<>]*`)

	count := 0
	result := pattern.ReplaceAllStringFunc(text, func(string) string {
		count++
		return "http://***INTERNAL-URL-REDACTED***"
	})
	return result, count
}
