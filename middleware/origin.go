package middleware

import (
	"net/url"
	"strings"
)

// OriginAllowed reports whether a browser origin may call the API. With no
// configured origins only local pages are accepted.
func OriginAllowed(allowed []string, origin string) bool {
	if origin == "" {
		return false
	}

	for _, candidate := range allowed {
		if candidate == "*" || strings.EqualFold(candidate, origin) {
			return true
		}
	}
	if len(allowed) > 0 {
		return false
	}

	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}

	switch parsed.Scheme {
	case "http", "https":
		switch parsed.Hostname() {
		case "localhost", "127.0.0.1", "::1":
			return true
		}
	}

	return false
}
