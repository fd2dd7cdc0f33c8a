package rfc9211

import (
	"strconv"
	"strings"
)

// §  2.  The Cache-Status HTTP Response Header Field
// §
// §     The Cache-Status HTTP response header field indicates caches'
// §     handling of the request corresponding to the response it occurs
// §     within.
// §
// §     Its value is a List (Section 3.1 of [STRUCTURED-FIELDS]):
// §
// §     Cache-Status   = sf-list
// §
// §     Each member of the list represents a cache that has handled the
// §     request.

// HeaderName is the name of the response header field.
const HeaderName = "Cache-Status"

// CacheName identifies this layer in the Cache-Status list.
const CacheName = "OfflineCache"

type FwdReason string

// §  2.2.  The fwd parameter
// §
// §     "fwd" indicates that the request went forward towards the origin.
// §     Its value MUST be a Token.
const (
	// §  bypass - The cache was configured to not handle this request.
	FwdReasonBypass FwdReason = "bypass"
	// §  method - The request method's semantics require the request to be
	// §     forwarded.
	FwdReasonMethod FwdReason = "method"
	// §  uri-miss - The cache did not contain any responses that matched the
	// §     request URI.
	FwdReasonUriMiss FwdReason = "uri-miss"
	// §  miss - The cache did not contain any responses that could be used to
	// §     satisfy this request.
	FwdReasonMiss FwdReason = "miss"
	// §  request - The cache was able to select a fresh response for the
	// §     request, but the request's semantics did not allow its use.
	FwdReasonRequest FwdReason = "request"
)

type Status string

const (
	StatusHit Status = "hit"
	StatusFwd Status = "fwd"
)

type CacheStatus struct {
	Status    Status
	FwdReason FwdReason
	// §  2.3.  The fwd-status parameter
	// §
	// §     "fwd-status" indicates what status code the next hop server returned
	// §     in response to the forwarded request.
	FwdStatus int
	// §  2.5.  The stored parameter
	// §
	// §     "stored" indicates whether the cache stored the response (Section 3
	// §     of [HTTP-CACHING]); a true value indicates that it did.
	Stored bool
	// §  2.8.  The detail parameter
	// §
	// §     "detail" allows implementations to convey additional information not
	// §     captured in other parameters, such as implementation-specific states
	// §     or other caching-related metrics.
	Detail string
}

// §  2.1.  The hit parameter
// §
// §     "hit", when true, indicates that the request was satisfied by the
// §     cache; that is, it was not forwarded, and the response was obtained
// §     from the cache.
func (cs *CacheStatus) Hit() {
	cs.Status = StatusHit
	cs.FwdReason = ""
}

func (cs *CacheStatus) Forward(reason FwdReason) {
	cs.Status = StatusFwd
	cs.FwdReason = reason
}

// IsHit reports whether the response came from the cache.
func (cs CacheStatus) IsHit() bool {
	return cs.Status == StatusHit
}

// String returns the list member for this cache, e.g. `OfflineCache; fwd=uri-miss; stored`.
func (cs CacheStatus) String() string {
	parts := []string{CacheName}
	switch cs.Status {
	case StatusHit:
		parts = append(parts, "hit")
	case StatusFwd:
		reason := cs.FwdReason
		if reason == "" {
			reason = FwdReasonMiss
		}
		parts = append(parts, "fwd="+string(reason))
		if cs.FwdStatus != 0 {
			parts = append(parts, "fwd-status="+strconv.Itoa(cs.FwdStatus))
		}
	}
	if cs.Stored {
		parts = append(parts, "stored")
	}
	if cs.Detail != "" {
		// §  The detail parameter value MUST be a String or a Token.
		parts = append(parts, "detail="+cs.Detail)
	}
	return strings.Join(parts, "; ")
}
