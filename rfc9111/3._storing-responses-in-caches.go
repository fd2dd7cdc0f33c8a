// Package rfc9111 holds the parts of HTTP Caching (RFC 9111) that decide
// what a shared cache may store.
package rfc9111

import "net/http"

// § 3.  Storing Responses in Caches
//
// MayStore reports whether a shared cache may store the final response with the
// given status and header, received for req.
//
// Responses without explicit freshness information are storable: they are only
// ever served when the origin cannot be reached.
func MayStore(req *http.Request, statusCode int, header http.Header) bool {
	resCacheControl := ParseCacheControl(header.Values("Cache-Control"))
	reqCacheControl := ParseCacheControl(req.Header.Values("Cache-Control"))
	// §    A cache MUST NOT store a response to a request unless:
	// §      *  the request method is understood by the cache;
	return requestMethodIsUnderstood(req.Method) &&
		// §  *  the response status code is final (see Section 15 of [HTTP]);
		responseStatusCodeIsFinal(statusCode) &&
		// §  *  if the response status code is 206 or 304, or the must-understand
		// §     cache directive (see Section 5.2.2.3) is present: the cache
		// §     understands the response status code;
		statusCodeUnderstoodIfNeeded(statusCode, resCacheControl) &&
		// §  *  the no-store cache directive is not present in the response (see
		// §     Section 5.2.2.5);
		!resCacheControl.HasDirective("no-store") &&
		// §  5.2.1.5.  no-store
		// §     The no-store request directive indicates that a cache MUST NOT store
		// §     any part of either this request or any response to it.
		!reqCacheControl.HasDirective("no-store") &&
		// §  *  if the cache is shared: the private response directive is either
		// §     not present or allows a shared cache to store a modified response;
		// §     see Section 5.2.2.7);
		//
		// the second part of the or is a "MAY" - we don't do that
		!resCacheControl.HasDirective("private") &&
		// §  *  if the cache is shared: the Authorization header field is not
		// §     present in the request (see Section 11.6.2 of [HTTP]) or a
		// §     response directive is present that explicitly allows shared
		// §     caching (see Section 3.5); and
		//
		// cookies identify the user just like credentials do
		(!isAuthenticated(req) || mayUseResponseForAuthenticatedRequest(resCacheControl))
	// §  *  the response contains at least one of the following: [...]
	//
	// not used: the offline cache stores responses regardless of their freshness
}

func isAuthenticated(req *http.Request) bool {
	return req.Header.Get("Authorization") != "" || req.Header.Get("Cookie") != ""
}

// statusCodeUnderstoodIfNeeded returns false if the response status code needs
// to be understood but isn't.
//
// §  *  if the response status code is 206 or 304, or the must-understand
// §     cache directive (see Section 5.2.2.3) is present: the cache
// §     understands the response status code;
func statusCodeUnderstoodIfNeeded(statusCode int, resCacheControl CacheControl) bool {
	if statusCode == http.StatusPartialContent || statusCode == http.StatusNotModified || resCacheControl.HasDirective("must-understand") {
		return responseStatusCodeIsUnderstood(statusCode)
	}
	return true
}

// §  In this context, a cache has "understood" a request method or a
// §  response status code if it recognizes it and implements all specified
// §  caching-related behavior.

func requestMethodIsUnderstood(method string) bool {
	return method == http.MethodGet
}

func responseStatusCodeIsUnderstood(statusCode int) bool {
	return statusCode == http.StatusOK
}

func responseStatusCodeIsFinal(statusCode int) bool {
	return statusCode >= 200 && statusCode <= 599
}

// §  3.5.  Storing Responses to Authenticated Requests
// §
// §     In this specification, the following response directives have such an
// §     effect: must-revalidate (Section 5.2.2.2), public (Section 5.2.2.9),
// §     and s-maxage (Section 5.2.2.10).
func mayUseResponseForAuthenticatedRequest(resCacheControl CacheControl) bool {
	return resCacheControl.HasDirective("public") ||
		resCacheControl.HasDirective("s-maxage") ||
		resCacheControl.HasDirective("must-revalidate")
}
