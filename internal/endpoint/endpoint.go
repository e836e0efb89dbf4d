// Package endpoint resolves the base URL of the analysis backend.
package endpoint

import (
	"net/url"
	"strings"
)

// DefaultBaseURL is used when no usable origin is available, e.g. when the
// client was started from a local file instead of the backend's own address.
const DefaultBaseURL = "http://127.0.0.1:8000"

// Resolve returns the origin of the given page address when it is served over a
// non-file scheme, and DefaultBaseURL otherwise. It never fails.
func Resolve(origin string) string {
	origin = strings.TrimSpace(origin)
	if origin == "" {
		return DefaultBaseURL
	}
	u, err := url.Parse(origin)
	if err != nil || u.Scheme == "" || strings.EqualFold(u.Scheme, "file") || u.Host == "" {
		return DefaultBaseURL
	}
	return u.Scheme + "://" + u.Host
}

// BaseURL picks an explicit override when set and resolves origin otherwise
func BaseURL(override, origin string) string {
	if o := strings.TrimRight(strings.TrimSpace(override), "/"); o != "" {
		return o
	}
	return Resolve(origin)
}
