package utils

import (
	"crypto/subtle"
	"net/url"
	"strings"
)

// SecretMatches compares a client-supplied secret in constant time. An empty
// server secret never matches.
func SecretMatches(client, server string) bool {
	if server == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(client), []byte(server)) == 1
}

// IsAllowedOrigin reports whether origin matches any of the patterns.
// Patterns: "*", exact origins, "https://*.example.com" (subdomains only)
// and "https://**.example.com" (apex plus subdomains).
func IsAllowedOrigin(origin string, patterns []string) bool {
	if origin == "" {
		return false
	}
	cleanOrigin := getCleanOrigin(origin)
	for _, pattern := range patterns {
		if MatchOrigin(cleanOrigin, pattern) {
			return true
		}
	}
	return false
}

func getCleanOrigin(originURL string) string {
	u, err := url.Parse(originURL)
	if err != nil {
		return originURL
	}
	if u.Scheme != "" && u.Host != "" {
		return u.Scheme + "://" + u.Host
	}
	return originURL
}

func MatchOrigin(origin, pattern string) bool {
	if pattern == "*" || origin == pattern {
		return true
	}

	if strings.Contains(pattern, "**.") {
		base := strings.Replace(pattern, "**.", "", 1)
		if origin == base {
			return true
		}
		if strings.HasSuffix(origin, "."+removeProtocol(base)) {
			return true
		}
	}

	if strings.Contains(pattern, "*.") {
		parts := strings.Split(pattern, "*")
		if len(parts) == 2 {
			prefix, suffix := parts[0], parts[1]
			if strings.HasPrefix(origin, prefix) && strings.HasSuffix(origin, suffix) &&
				len(origin) > len(prefix)+len(suffix) {
				middle := origin[len(prefix) : len(origin)-len(suffix)]
				if !strings.Contains(middle, "/") {
					return true
				}
			}
		}
	}

	return false
}

func removeProtocol(urlStr string) string {
	urlStr = strings.TrimPrefix(urlStr, "https://")
	return strings.TrimPrefix(urlStr, "http://")
}
