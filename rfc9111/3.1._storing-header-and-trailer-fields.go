package rfc9111

import "net/http"

// StorableHeader returns a copy of the response header without the fields
// that must not be stored by a shared cache.
//
// §  3.1.  Storing Header and Trailer Fields
func StorableHeader(header http.Header) http.Header {
	if header == nil {
		return nil
	}
	// §     Caches MUST include all received response header fields -- including
	// §     unrecognized ones -- when storing a response; this assures that new
	// §     HTTP header fields can be successfully deployed.  However, the
	// §     following exceptions are made:
	h := header.Clone()
	// §
	// §     *  The Connection header field and fields whose names are listed in
	// §        it are required by Section 7.6.1 of [HTTP] to be removed before
	// §        forwarding the message.  This MAY be implemented by doing so
	// §        before storage.
	for _, field := range GetListHeader(header, "Connection") {
		h.Del(field)
	}
	h.Del("Connection")
	// §
	// §     *  Likewise, some fields' semantics require them to be removed before
	// §        forwarding the message, and this MAY be implemented by doing so
	// §        before storage; see Section 7.6.1 of [HTTP] for some examples.
	h.Del("Proxy-Connection")
	h.Del("Keep-Alive")
	h.Del("TE")
	h.Del("Transfer-Encoding")
	h.Del("Upgrade")
	// §
	// §     *  Header fields that are specific to the proxy that a cache uses
	// §        when forwarding a request MUST NOT be stored, unless the cache
	// §        incorporates the identity of the proxy into the cache key.
	h.Del("Proxy-Authenticate")
	h.Del("Proxy-Authentication-Info")
	h.Del("Proxy-Authorization")
	// a session cookie replayed from the cache would hand it to another client
	h.Del("Set-Cookie")
	return h
}
