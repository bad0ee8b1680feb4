package server

import (
	"net/url"
	"strings"
)

// originAllowed applies the configured allowlist to a browser Origin header.
//
// Requests without an Origin header (CLI clients, curl) are always allowed;
// "*" in the allowlist disables the check entirely. Everything else must
// match an allowlist entry after normalization.
func originAllowed(originHeader string, allowed []string) bool {
	if strings.TrimSpace(originHeader) == "" {
		return true
	}
	for _, entry := range allowed {
		if entry == "*" {
			return true
		}
	}

	origin, ok := normalizeOrigin(originHeader)
	if !ok {
		return false
	}
	for _, entry := range allowed {
		if norm, ok := normalizeOrigin(entry); ok && norm == origin {
			return true
		}
	}
	return false
}

// normalizeOrigin lowercases the scheme and host and strips default ports,
// so https://App.Example:443 and https://app.example compare equal.
func normalizeOrigin(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", false
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", false
	}
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}

	port := u.Port()
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		host = host + ":" + port
	}
	return scheme + "://" + host, true
}
