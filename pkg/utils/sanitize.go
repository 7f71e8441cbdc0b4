package utils

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Message length limits
const (
	MaxMessageLength    = 8000
	MaxNameLength       = 120
	maxAttachmentURLLen = 2048
)

var (
	scriptTagRegex = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	htmlTagRegex   = regexp.MustCompile(`<[^>]*>`)
)

var (
	ErrMessageTooLong  = errors.New("message exceeds maximum length")
	ErrInvalidURL      = errors.New("invalid attachment URL")
	ErrURLTooLong      = errors.New("attachment URL too long (max 2048 characters)")
	ErrUnsupportedHost = errors.New("attachment host is not allowed")
)

// SanitizeMessageContent trims content, strips script tags and enforces the
// length limit. Empty output is allowed; callers decide whether an
// attachment makes up for it.
func SanitizeMessageContent(content string) (string, error) {
	content = scriptTagRegex.ReplaceAllString(content, "")
	content = strings.TrimSpace(content)
	if utf8.RuneCountInString(content) > MaxMessageLength {
		return "", ErrMessageTooLong
	}
	return content, nil
}

// SanitizeName strips markup from a display or group name and truncates it.
func SanitizeName(name string) string {
	name = strings.TrimSpace(StripHTML(name))
	return TruncateString(name, MaxNameLength)
}

// StripHTML removes all HTML tags from a string
func StripHTML(input string) string {
	return htmlTagRegex.ReplaceAllString(input, "")
}

// TruncateString safely truncates a string to max length (in runes)
func TruncateString(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen])
}

// ValidateAttachmentURL accepts absolute http(s) URLs. When allowedHosts is
// non-empty the host must match one of them (or be a subdomain).
func ValidateAttachmentURL(raw string, allowedHosts []string) error {
	raw = strings.TrimSpace(raw)
	if len(raw) > maxAttachmentURLLen {
		return ErrURLTooLong
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ErrInvalidURL
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return ErrInvalidURL
	}
	if len(allowedHosts) == 0 {
		return nil
	}
	host := strings.ToLower(u.Hostname())
	for _, h := range allowedHosts {
		h = strings.ToLower(h)
		if host == h || strings.HasSuffix(host, "."+h) {
			return nil
		}
	}
	return ErrUnsupportedHost
}
