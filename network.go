package offlinecache

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"

	serializer "github.com/always-cache/offline-cache/pkg/response-serializer"
	tee "github.com/always-cache/offline-cache/pkg/response-writer-tee"
)

// Network fetches responses from the origin.
// An error means that no response was received at all; HTTP error statuses are not errors.
type Network interface {
	Fetch(ctx context.Context, r *http.Request) (serializer.Snapshot, error)
}

// Forwarder is a network that can stream a request and its response
// between client and origin without buffering.
type Forwarder interface {
	Forward(w http.ResponseWriter, r *http.Request)
}

// NetworkFunc adapts a function to the Network interface.
type NetworkFunc func(ctx context.Context, r *http.Request) (serializer.Snapshot, error)

func (f NetworkFunc) Fetch(ctx context.Context, r *http.Request) (serializer.Snapshot, error) {
	return f(ctx, r)
}

type FetchErrorCause string

const (
	ErrCauseTimeout        FetchErrorCause = "timeout"
	ErrCauseAborted        FetchErrorCause = "aborted"
	ErrCauseNetworkFailure FetchErrorCause = "network failure"
)

// FetchError is returned when no response could be obtained from the origin.
// Timeouts and aborted requests are failures just like transport errors.
type FetchError struct {
	URL   string
	Cause FetchErrorCause
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Cause, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// newFetchError wraps err, classifying context errors as timeouts or aborts.
func newFetchError(r *http.Request, err error) *FetchError {
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr
	}
	cause := ErrCauseNetworkFailure
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		cause = ErrCauseTimeout
	case errors.Is(err, context.Canceled):
		cause = ErrCauseAborted
	}
	return &FetchError{URL: r.URL.RequestURI(), Cause: cause, Err: err}
}

// HandlerNetwork uses an in-process handler as the origin.
// The handler is expected to respect the request context.
func HandlerNetwork(h http.Handler) Network {
	return NetworkFunc(func(ctx context.Context, r *http.Request) (serializer.Snapshot, error) {
		saver := tee.NewResponseSaver(nil)
		h.ServeHTTP(saver, r.WithContext(ctx))
		if err := saver.Err(); err != nil {
			return serializer.Snapshot{}, err
		}
		return saver.Snapshot(), nil
	})
}

// ProxyNetwork fetches from the origin with a reverse proxy.
type ProxyNetwork struct {
	reverseproxy *httputil.ReverseProxy
}

// NewProxyNetwork creates a network for the given origin.
// If hostHeader is set, it is used for the Host header and TLS negotiation
// (e.g. when the origin URL is just an IP address).
func NewProxyNetwork(origin url.URL, hostHeader string) *ProxyNetwork {
	host := origin.Host
	transport := http.DefaultTransport
	if hostHeader != "" {
		transport = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{
				ServerName: hostHeader,
			},
		}
	} else {
		hostHeader = host
	}
	return &ProxyNetwork{
		reverseproxy: &httputil.ReverseProxy{
			Director:  createDirector(origin.Scheme, host, hostHeader),
			Transport: transport,
			// streamed responses reach the client as they arrive
			FlushInterval: -1,
			ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
				if saver, ok := w.(*tee.ResponseSaver); ok {
					saver.Fail(err)
					return
				}
				http.Error(w, "Could not connect to origin", http.StatusBadGateway)
			},
		},
	}
}

func (p *ProxyNetwork) Fetch(ctx context.Context, r *http.Request) (snap serializer.Snapshot, err error) {
	req := r.Clone(ctx)
	req.RequestURI = ""
	saver := tee.NewResponseSaver(nil)
	defer func() {
		// the reverse proxy aborts with a panic when the body cannot be copied completely
		if rec := recover(); rec != nil {
			if rec != http.ErrAbortHandler {
				panic(rec)
			}
			err = newFetchError(r, fmt.Errorf("incomplete response body"))
		}
	}()
	p.reverseproxy.ServeHTTP(saver, req)
	// a done context explains the failure better than the transport error
	if err := ctx.Err(); err != nil {
		return snap, newFetchError(r, err)
	}
	if err := saver.Err(); err != nil {
		return snap, newFetchError(r, err)
	}
	return saver.Snapshot(), nil
}

// Forward proxies the request to the origin, copying the response to w as it arrives.
// The client gets a 502 if no response could be obtained.
func (p *ProxyNetwork) Forward(w http.ResponseWriter, r *http.Request) {
	p.reverseproxy.ServeHTTP(w, r)
}

func createDirector(scheme, host, hostHeader string) func(req *http.Request) {
	return func(req *http.Request) {
		req.URL.Scheme = scheme
		req.URL.Host = host
		if hostHeader != "" {
			req.Host = hostHeader
		}
	}
}
