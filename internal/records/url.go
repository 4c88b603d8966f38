package records

import (
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"
)

const faviconService = "https://www.google.com/s2/favicons"

// NormalizeURL trims the input and prefixes https:// when no http(s) scheme is
// present.
func NormalizeURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	lower := strings.ToLower(trimmed)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return trimmed
	}
	return "https://" + trimmed
}

// ValidURL reports whether raw parses as an absolute URL with a host.
func ValidURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != ""
}

// Domain returns the hostname of raw without a leading "www.". Unparseable
// input is returned unchanged.
func Domain(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return raw
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}

// TitleFromURL derives a display title from the first label of the domain,
// e.g. "https://www.github.com/x" becomes "Github".
func TitleFromURL(raw string) string {
	domain := Domain(raw)
	if domain == "" || domain == raw && !ValidURL(raw) {
		return ""
	}
	label, _, _ := strings.Cut(domain, ".")
	r, size := utf8.DecodeRuneInString(label)
	if r == utf8.RuneError {
		return label
	}
	return string(unicode.ToUpper(r)) + label[size:]
}

// FaviconURL returns the favicon service URL for the bookmark's host, or ""
// when the URL has no host.
func FaviconURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	q := url.Values{}
	q.Set("domain", u.Hostname())
	q.Set("sz", "64")
	return faviconService + "?" + q.Encode()
}
