package service

import (
	"net"
	"net/url"
	"regexp"
	"strings"
)

// Alias validation regex: 3-50 chars, alphanumeric plus hyphen and
// underscore.
var aliasRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{3,50}$`)

// hostLabelRegex matches one DNS label: alphanumeric with interior
// hyphens.
var hostLabelRegex = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9-]*[A-Za-z0-9])?$`)

const maxOriginalURLLength = 2048

// validateOriginalURL trims and validates a candidate destination.
// Every rejection collapses to ErrInvalidURL.
func validateOriginalURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrInvalidURL
	}
	if len(trimmed) > maxOriginalURLLength {
		return "", ErrInvalidURL
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", ErrInvalidURL
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", ErrInvalidURL
	}
	if !validHost(parsed.Hostname()) {
		return "", ErrInvalidURL
	}
	// Embedded credentials are an open-redirect phishing vector.
	if parsed.User != nil {
		return "", ErrInvalidURL
	}

	return trimmed, nil
}

// validHost accepts an IP literal or a hostname whose labels are all
// well formed. url.Parse is permissive about the authority, so "!!!"
// or similar junk would otherwise pass as a host.
func validHost(host string) bool {
	if host == "" {
		return false
	}
	if net.ParseIP(host) != nil {
		return true
	}
	for _, label := range strings.Split(host, ".") {
		if !hostLabelRegex.MatchString(label) {
			return false
		}
	}
	return true
}

// validateAlias checks a custom alias against the accepted format.
func validateAlias(alias string) error {
	if !aliasRegex.MatchString(alias) {
		return ErrInvalidAlias
	}
	return nil
}
