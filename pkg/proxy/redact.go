package proxy

import "regexp"

// redactPattern pairs a compiled secret-shaped regex with its
// replacement.
type redactPattern struct {
	regex       *regexp.Regexp
	replacement string
}

// redactPatterns cover the secrets that can leak into upstream error
// bodies: our own tenant keys, vendor API keys, and bearer headers echoed
// back by proxies.
var redactPatterns = []redactPattern{
	{regexp.MustCompile(`wts_[A-Za-z0-9]{40}`), "__REDACTED_TENANT_KEY__"},
	// sk- covers both OpenAI and Anthropic (sk-ant-...) keys.
	{regexp.MustCompile(`sk-[A-Za-z0-9_\-]{20,}`), "__REDACTED_API_KEY__"},
	{regexp.MustCompile(`AIza[0-9A-Za-z_\-]{35}`), "__REDACTED_API_KEY__"},
	{regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9_\-\.=]{16,}`), "Bearer __REDACTED_TOKEN__"},
	{regexp.MustCompile(`(?i)(x-api-key["':\s=]+)[A-Za-z0-9_\-\.]{16,}`), "${1}__REDACTED_TOKEN__"},
}

// RedactSecrets scrubs secret-shaped substrings out of s. Every error
// message destined for the request log passes through here before insert.
func RedactSecrets(s string) string {
	if s == "" {
		return s
	}
	for _, p := range redactPatterns {
		s = p.regex.ReplaceAllString(s, p.replacement)
	}
	return s
}
