// Package apiclient talks to the campify REST backend: it owns the single
// base URL every provider resolves against and the JSON/multipart client
// they share.
package apiclient

import (
	"fmt"
	"net/url"
	"strings"
)

// DefaultBaseURL is used when no backend location is configured.
const DefaultBaseURL = "http://127.0.0.1:8000"

// Location is the API location provider: one base URL for every call and
// every image reference.
type Location struct {
	base string
}

// NewLocation validates raw as an absolute http(s) URL. Empty means DefaultBaseURL.
func NewLocation(raw string) (Location, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = DefaultBaseURL
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, fmt.Errorf("apiclient: parse base url %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Location{}, fmt.Errorf("apiclient: base url %q must use http or https", raw)
	}
	if u.Host == "" {
		return Location{}, fmt.Errorf("apiclient: base url %q has no host", raw)
	}
	return Location{base: strings.TrimRight(raw, "/")}, nil
}

// MustLocation is NewLocation for hard-coded values.
func MustLocation(raw string) Location {
	loc, err := NewLocation(raw)
	if err != nil {
		panic(err)
	}
	return loc
}

// BaseURL returns the base without a trailing slash.
func (l Location) BaseURL() string {
	return l.base
}

// URL joins path onto the base.
func (l Location) URL(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return l.base + path
}

// ResolveImage turns an image reference into something a view can load.
// Absolute http(s) references are kept; anything else is a storage key
// served from {base}/uploads/.
func (l Location) ResolveImage(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	return l.base + "/uploads/" + strings.TrimLeft(ref, "/")
}
