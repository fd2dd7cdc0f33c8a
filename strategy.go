package offlinecache

import (
	"net/http"
	"path"
	"strings"
)

// Strategy is the cache/network ordering applied to a request.
type Strategy string

const (
	// Not intercepted; forwarded untouched and never stored.
	StrategyPassthrough            Strategy = "passthrough"
	StrategyCacheFirst             Strategy = "cache-first"
	StrategyNetworkFirstAPI        Strategy = "network-first-api"
	StrategyNetworkFirstNavigation Strategy = "network-first-navigation"
)

// Destination is the kind of resource a request is for, as reported by the browser
// in the Sec-Fetch-Dest header.
type Destination string

const (
	DestinationNone     Destination = ""
	DestinationDocument Destination = "document"
	DestinationScript   Destination = "script"
	DestinationStyle    Destination = "style"
	DestinationImage    Destination = "image"
)

// RequestDestination returns the destination of the request.
// Navigations without a Sec-Fetch-Dest header are recognized by Sec-Fetch-Mode,
// or, when the browser sends no fetch metadata at all, by accepting HTML.
func RequestDestination(r *http.Request) Destination {
	header := r.Header.Get("Sec-Fetch-Dest")
	dest := Destination(strings.ToLower(header))
	if dest == "empty" {
		dest = DestinationNone
	}
	if dest == DestinationNone && strings.EqualFold(r.Header.Get("Sec-Fetch-Mode"), "navigate") {
		return DestinationDocument
	}
	if header == "" && r.Method == http.MethodGet && acceptsHTML(r) {
		return DestinationDocument
	}
	return dest
}

func acceptsHTML(r *http.Request) bool {
	for _, accept := range r.Header.Values("Accept") {
		for _, mediaRange := range strings.Split(accept, ",") {
			mediaType, _, _ := strings.Cut(mediaRange, ";")
			if strings.EqualFold(strings.TrimSpace(mediaType), "text/html") {
				return true
			}
		}
	}
	return false
}

// Classify returns the strategy for the request. It never fails:
// requests matching no rule take the cache-first default.
func Classify(r *http.Request, apiPrefixes []string) Strategy {
	if r.Method != http.MethodGet {
		return StrategyPassthrough
	}
	switch RequestDestination(r) {
	case DestinationDocument:
		return StrategyNetworkFirstNavigation
	case DestinationScript, DestinationStyle, DestinationImage:
		return StrategyCacheFirst
	}
	for _, prefix := range apiPrefixes {
		if prefix != "" && strings.HasPrefix(r.URL.Path, prefix) {
			return StrategyNetworkFirstAPI
		}
	}
	return StrategyCacheFirst
}

var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".webp": true, ".svg": true, ".ico": true, ".avif": true,
}

// isImageRequest reports whether a failed fetch should be answered with the image placeholder.
func isImageRequest(r *http.Request) bool {
	if RequestDestination(r) == DestinationImage {
		return true
	}
	return imageExtensions[strings.ToLower(path.Ext(r.URL.Path))]
}
