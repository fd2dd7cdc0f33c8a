package rfc9111

import (
	"net/http"
	"testing"
)

func newRequest(method string, headers ...string) *http.Request {
	r, err := http.NewRequest(method, "/api/vitals", nil)
	if err != nil {
		panic(err)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		r.Header.Set(headers[i], headers[i+1])
	}
	return r
}

func TestMayStore(t *testing.T) {
	tests := []struct {
		name         string
		request      *http.Request
		status       int
		cacheControl string
		expected     bool
	}{
		{"plain response", newRequest("GET"), 200, "", true},
		{"max-age", newRequest("GET"), 200, "max-age=60", true},
		{"post", newRequest("POST"), 200, "public", false},
		{"no-store", newRequest("GET"), 200, "no-store", false},
		{"private", newRequest("GET"), 200, "private, max-age=60", false},
		{"request no-store", newRequest("GET", "Cache-Control", "no-store"), 200, "", false},
		{"authorization", newRequest("GET", "Authorization", "Bearer abc"), 200, "", false},
		{"authorization with max-age", newRequest("GET", "Authorization", "Bearer abc"), 200, "max-age=60", false},
		{"authorization with public", newRequest("GET", "Authorization", "Bearer abc"), 200, "public", true},
		{"authorization with s-maxage", newRequest("GET", "Authorization", "Bearer abc"), 200, "s-maxage=60", true},
		{"cookie", newRequest("GET", "Cookie", "session=abc"), 200, "", false},
		{"cookie with must-revalidate", newRequest("GET", "Cookie", "session=abc"), 200, "must-revalidate", true},
		{"partial content", newRequest("GET"), 206, "", false},
		{"informational", newRequest("GET"), 103, "", false},
	}
	for _, test := range tests {
		header := http.Header{}
		if test.cacheControl != "" {
			header.Set("Cache-Control", test.cacheControl)
		}
		if ok := MayStore(test.request, test.status, header); ok != test.expected {
			t.Fatalf("%s: got %v, expected %v", test.name, ok, test.expected)
		}
	}
}

func TestStorableHeader(t *testing.T) {
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Add("Set-Cookie", "session=alice-secret")
	header.Set("Connection", "X-Trace")
	header.Set("X-Trace", "1")
	header.Set("Keep-Alive", "timeout=5")

	h := StorableHeader(header)
	if h.Get("Content-Type") != "application/json" {
		t.Fatal("Content-Type was removed")
	}
	for _, field := range []string{"Set-Cookie", "Connection", "X-Trace", "Keep-Alive"} {
		if _, ok := h[field]; ok {
			t.Fatalf("%s was stored", field)
		}
	}
	if header.Get("Set-Cookie") == "" {
		t.Fatal("Original header was modified")
	}
	if StorableHeader(nil) != nil {
		t.Fatal("nil header became non-nil")
	}
}
