package cachekey

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

var ErrorMethodNotSupported = fmt.Errorf("Method not supported")

const methodSeparator = ":"

// GetKey returns the cache key (request descriptor) for a request.
// The key is the method and the canonical request URI, e.g. `GET:/api/nearby-hospitals?lat=1`.
// Scheme, host and fragment are not part of the key, since every store serves a single origin.
func GetKey(r *http.Request) string {
	return r.Method + methodSeparator + canonicalURI(r.URL)
}

// GetKeyForPath returns the GET key for the given path (which may include a query).
func GetKeyForPath(path string) (string, error) {
	u, err := url.Parse(path)
	if err != nil {
		return "", err
	}
	return http.MethodGet + methodSeparator + canonicalURI(u), nil
}

// GetPath returns the request URI part of a key.
func GetPath(key string) string {
	_, uri, _ := strings.Cut(key, methodSeparator)
	return uri
}

// GetRequestFromKey creates a request that results in the provided key.
// Only GET keys are ever stored, so other methods return ErrorMethodNotSupported.
func GetRequestFromKey(key string) (*http.Request, error) {
	method, uri, found := strings.Cut(key, methodSeparator)
	if !found || uri == "" {
		return nil, fmt.Errorf("Malformed key: %s", key)
	}
	if method != http.MethodGet {
		return nil, ErrorMethodNotSupported
	}
	return http.NewRequest(method, uri, nil)
}

func canonicalURI(u *url.URL) string {
	uri := u.EscapedPath()
	if uri == "" {
		uri = "/"
	}
	if u.RawQuery != "" {
		uri += "?" + u.RawQuery
	}
	return uri
}
