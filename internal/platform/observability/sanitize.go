package observability

import (
	"net/url"
	"strings"
	"unicode"
)

const defaultStringLimit = 256

// redactedQueryKeys are never written to logs verbatim.
var redactedQueryKeys = map[string]struct{}{
	"token":        {},
	"access_token": {},
	"id_token":     {},
	"key":          {},
	"secret":       {},
}

// sanitizeString drops control characters and truncates to limit runes.
func sanitizeString(value string, limit int) string {
	if limit <= 0 {
		limit = defaultStringLimit
	}
	cleaned := make([]rune, 0, len(value))
	for _, r := range value {
		if unicode.IsControl(r) {
			continue
		}
		cleaned = append(cleaned, r)
		if len(cleaned) == limit {
			break
		}
	}
	return string(cleaned)
}

// SanitizeRoute cleans a route pattern or path for logging.
func SanitizeRoute(route string) string {
	if route == "" {
		return "/"
	}
	return sanitizeString(route, 180)
}

// SanitizeMethod cleans an HTTP method for logging.
func SanitizeMethod(method string) string {
	return sanitizeString(method, 10)
}

// SanitizeUserID bounds identity values written to logs.
func SanitizeUserID(uid string) string {
	if uid == "" {
		return ""
	}
	return sanitizeString(uid, 64)
}

// SanitizeQuery renders a query string with credential-like parameters redacted and values
// stripped of control characters.
func SanitizeQuery(values url.Values) string {
	if len(values) == 0 {
		return ""
	}
	clean := make(url.Values, len(values))
	for key, vals := range values {
		k := sanitizeString(key, 64)
		if _, redact := redactedQueryKeys[strings.ToLower(k)]; redact {
			clean.Set(k, "REDACTED")
			continue
		}
		for _, v := range vals {
			clean.Add(k, sanitizeString(v, 128))
		}
	}
	return sanitizeString(clean.Encode(), 512)
}
