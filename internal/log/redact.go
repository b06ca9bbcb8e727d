package log

import (
	"net/url"
	"regexp"
	"strings"
)

// MaskValue replaces any attribute value considered sensitive.
const MaskValue = "***REDACTED***"

// sensitiveKeys are attribute keys whose values are always masked. They
// cover the request headers a mirror job may carry through site configs.
var sensitiveKeys = map[string]bool{
	"authorization":       true,
	"proxy-authorization": true,
	"cookie":              true,
	"set-cookie":          true,
	"x-api-key":           true,
	"x-auth-token":        true,
	"x-csrf-token":        true,
	"api_key":             true,
	"apikey":              true,
	"api-key":             true,
	"private_key":         true,
	"secret_key":          true,
	"session":             true,
	"session_id":          true,
	"sessionid":           true,
	"sid":                 true,
	"jsessionid":          true,
	"phpsessid":           true,
}

// sensitiveKeywords mark a key as sensitive when they appear anywhere in it.
// The bare word "key" is left out: cache_key or sort_key are harmless.
var sensitiveKeywords = []string{
	"password", "passwd", "secret", "token", "auth", "credential", "private",
}

// sensitiveQuery are query parameters masked inside logged URLs. Signed
// asset URLs (CDNs, object stores) put their credentials there.
var sensitiveQuery = map[string]bool{
	"token":            true,
	"access_token":     true,
	"auth":             true,
	"key":              true,
	"api_key":          true,
	"apikey":           true,
	"sig":              true,
	"signature":        true,
	"x-amz-signature":  true,
	"x-amz-credential": true,
	"x-goog-signature": true,
	"password":         true,
	"session":          true,
	"sid":              true,
}

var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`), // JWT
	regexp.MustCompile(`(?i)^bearer\s+.+`),
	regexp.MustCompile(`(?i)^basic\s+[A-Za-z0-9+/=]+$`),
	regexp.MustCompile(`^AKIA[0-9A-Z]{16}$`),
	regexp.MustCompile(`(?i)-----BEGIN.*(PRIVATE|SECRET).*KEY-----`),
}

func containsSensitiveKeyword(key string) bool {
	for _, keyword := range sensitiveKeywords {
		if strings.Contains(key, keyword) {
			return true
		}
	}
	return false
}

func isSensitiveKey(key string) bool {
	key = strings.ToLower(key)
	return sensitiveKeys[key] || containsSensitiveKeyword(key)
}

func isSensitiveValue(value string) bool {
	for _, pattern := range sensitivePatterns {
		if pattern.MatchString(value) {
			return true
		}
	}
	return false
}

// RedactURL masks the password of a URL's userinfo and the values of
// credential-like query parameters. Anything that does not parse as an
// absolute URL is returned unchanged.
func RedactURL(raw string) string {
	if !strings.Contains(raw, "://") {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	changed := false
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), MaskValue)
		changed = true
	}
	if u.RawQuery != "" {
		q := u.Query()
		for name := range q {
			if sensitiveQuery[strings.ToLower(name)] {
				q.Set(name, MaskValue)
				changed = true
			}
		}
		if changed {
			u.RawQuery = q.Encode()
		}
	}
	if !changed {
		return raw
	}
	out := u.String()
	// url.String escapes the mask; keep it readable.
	out = strings.ReplaceAll(out, url.QueryEscape(MaskValue), MaskValue)
	return strings.ReplaceAll(out, url.PathEscape(MaskValue), MaskValue)
}
