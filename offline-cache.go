package offlinecache

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/always-cache/offline-cache/cache"
	serializer "github.com/always-cache/offline-cache/pkg/response-serializer"
	"github.com/always-cache/offline-cache/rfc9111"
	"github.com/always-cache/offline-cache/rfc9211"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultVersion is the version embedded in the generation names.
	// Bumping it invalidates every previously cached entry on the next activation.
	DefaultVersion           = "v1.0.0"
	DefaultGuidePath         = "/offline-medical-guide"
	DefaultChatPath          = "/chat"
	DefaultNavigationTimeout = 3 * time.Second

	tracerName = "github.com/always-cache/offline-cache"
)

var (
	DefaultAPIPrefixes = []string{"/api/"}
	DefaultManifest    = []string{
		"/",
		DefaultGuidePath,
		"/manifest.json",
		"/icons/icon-192x192.png",
		"/icons/icon-512x512.png",
		"/styles/critical.css",
	}
)

type Config struct {
	// Storage for cache generations.
	// An in-memory registry is used if nil.
	Registry cache.Registry
	// Network used to reach the origin.
	// If nil, a reverse proxy to OriginURL is used.
	Network Network
	// URL of the origin server.
	OriginURL url.URL
	// Hostname to use for HTTP requests and TLS negotiation.
	OriginHost string
	// Version suffix of all generation names.
	Version string
	// Paths pre-cached into the static generation on install.
	Manifest []string
	// Path prefixes of API requests.
	APIPrefixes []string
	// Path of the offline medical guide.
	GuidePath string
	// Path of the chat page, which redirects to the guide when offline.
	ChatPath string
	// Maximum wait for the network on navigations.
	NavigationTimeout time.Duration
	// Number shown and dialed by every emergency-call action.
	EmergencyNumber string
	// Serve non-2xx navigation responses (e.g. a 404 page) instead of falling back.
	ServeErrorPages bool
	// Logger to use. A console logger is used if nil.
	Logger *zerolog.Logger
	// Clock used for synthesized documents. time.Now is used if nil.
	Now func() time.Time
}

type OfflineCache struct {
	registry          cache.Registry
	network           Network
	generations       cache.Generations
	version           string
	manifest          []string
	apiPrefixes       []string
	guidePath         string
	chatPath          string
	navigationTimeout time.Duration
	emergencyNumber   string
	serveErrorPages   bool
	log               zerolog.Logger
	tracer            trace.Tracer
	now               func() time.Time

	stateMutex sync.RWMutex
	state      State
}

// New creates the offline cache. It does not install or activate;
// stores are created lazily when requests are handled.
func New(config Config) *OfflineCache {
	// use console logger if not specified in config
	var logger zerolog.Logger
	if config.Logger == nil {
		logger = zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()
	} else {
		logger = *config.Logger
	}

	a := &OfflineCache{
		registry:          config.Registry,
		network:           config.Network,
		version:           withDefault(config.Version, DefaultVersion),
		manifest:          config.Manifest,
		apiPrefixes:       config.APIPrefixes,
		guidePath:         withDefault(config.GuidePath, DefaultGuidePath),
		chatPath:          withDefault(config.ChatPath, DefaultChatPath),
		navigationTimeout: config.NavigationTimeout,
		emergencyNumber:   config.EmergencyNumber,
		serveErrorPages:   config.ServeErrorPages,
		tracer:            otel.Tracer(tracerName),
		now:               config.Now,
	}
	if a.registry == nil {
		a.registry = cache.NewMemRegistry()
	}
	if a.network == nil {
		a.network = NewProxyNetwork(config.OriginURL, config.OriginHost)
	}
	if a.manifest == nil {
		a.manifest = DefaultManifest
	}
	if a.apiPrefixes == nil {
		a.apiPrefixes = DefaultAPIPrefixes
	}
	if a.navigationTimeout <= 0 {
		a.navigationTimeout = DefaultNavigationTimeout
	}
	if a.now == nil {
		a.now = time.Now
	}
	a.generations = cache.CurrentGenerations(a.version)
	a.state = State{Phase: PhaseNew, Version: a.version}

	// create a child logger and add defaults
	a.log = logger.With().
		Str("version", a.version).
		Logger()
	if config.OriginURL.Host != "" {
		a.log = a.log.With().Str("origin", config.OriginURL.String()).Logger()
	}

	return a
}

func withDefault(value, def string) string {
	if value == "" {
		return def
	}
	return value
}

// Version returns the version embedded in the generation names.
func (a *OfflineCache) Version() string {
	return a.version
}

// Generations returns the current generations.
func (a *OfflineCache) Generations() cache.Generations {
	return a.generations
}

// ServeHTTP implements the http.Handler interface.
func (a *OfflineCache) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer a.recover(w, r)

	ctx, span := a.tracer.Start(r.Context(), "offline-cache.fetch",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(httpAttributes(r)...))
	defer span.End()

	if forwarder, ok := a.network.(Forwarder); ok && Classify(r, a.apiPrefixes) == StrategyPassthrough {
		result := a.forward(forwarder, w, r.WithContext(ctx))
		span.SetAttributes(resultAttributes(result)...)
		a.logRequest(r, result)
		return
	}

	result, err := a.Handle(ctx, r)
	span.SetAttributes(resultAttributes(result)...)
	if err != nil {
		span.RecordError(err)
		a.log.Error().Err(err).Str("url", r.URL.String()).Msg("Could not fetch asset")
		http.Error(w, "Could not connect to origin", http.StatusBadGateway)
		return
	}

	// requests that are not intercepted are answered as the origin answered them
	var extra http.Header
	if result.Strategy != StrategyPassthrough {
		extra = http.Header{rfc9211.HeaderName: []string{result.CacheStatus().String()}}
	}
	bytesWritten, err := result.Snapshot.Write(w, extra)
	if err != nil {
		a.log.Error().Err(err).Msg("Could not write response body to client")
	}
	a.logRequest(r, result)
	a.log.Trace().Msgf("Wrote body (%d bytes)", bytesWritten)
}

// forward streams a request that is not intercepted straight through to the origin.
func (a *OfflineCache) forward(forwarder Forwarder, w http.ResponseWriter, r *http.Request) Result {
	ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
	forwarder.Forward(ww, r)
	status := ww.Status()
	if status == 0 {
		status = http.StatusOK
	}
	a.log.Trace().Msgf("Forwarded body (%d bytes)", ww.BytesWritten())
	return Result{
		Strategy: StrategyPassthrough,
		Outcome:  OutcomeNetwork,
		Snapshot: serializer.Snapshot{StatusCode: status},
	}
}

// recover recovers from panics so that the client still gets a renderable answer.
func (a *OfflineCache) recover(w http.ResponseWriter, r *http.Request) {
	if err := recover(); err != nil {
		if err == http.ErrAbortHandler {
			panic(err)
		}
		a.log.WithLevel(zerolog.PanicLevel).Interface("error", err).Str("url", r.URL.String()).Msg("Panic in cache handler")
		if Classify(r, a.apiPrefixes) == StrategyNetworkFirstNavigation {
			a.synthesizeNotice(r).Snapshot.Write(w, nil)
			return
		}
		http.Error(w, "Could not connect to origin", http.StatusBadGateway)
	}
}

func (a *OfflineCache) logRequest(r *http.Request, result Result) {
	isHit := 0
	if result.Outcome == OutcomeCacheHit {
		isHit = 1
	}
	a.log.Debug().
		Str("method", r.Method).
		Str("url", r.URL.String()).
		Str("sourceIp", getRequestSourceIp(r)).
		Str("strategy", string(result.Strategy)).
		Str("outcome", string(result.Outcome)).
		Int("status", result.Snapshot.StatusCode).
		Bool("stored", result.Stored).
		Int("hit", isHit).
		Msg("Sending response to client")
}

func getRequestSourceIp(r *http.Request) string {
	// RemoteAddr is in the format:
	// 1.2.3.4:10000 for ipv4
	// [1:2:3]:10000 for ipv6
	ipAndPort := r.RemoteAddr
	portSepIdx := strings.LastIndex(ipAndPort, ":")
	// if not found, return
	if portSepIdx < 0 {
		return ipAndPort
	}
	return ipAndPort[:portSepIdx]
}

// fetch fetches from the network, giving up when ctx is done even if the network does not.
func (a *OfflineCache) fetch(ctx context.Context, r *http.Request) (serializer.Snapshot, error) {
	type fetched struct {
		snap serializer.Snapshot
		err  error
	}
	done := make(chan fetched, 1)
	go func() {
		snap, err := a.network.Fetch(ctx, r.WithContext(ctx))
		done <- fetched{snap, err}
	}()
	select {
	case f := <-done:
		if f.err != nil {
			return f.snap, newFetchError(r, f.err)
		}
		return f.snap, nil
	case <-ctx.Done():
		return serializer.Snapshot{}, newFetchError(r, ctx.Err())
	}
}

// match looks up the key in the store.
// Read and decode errors are logged and treated as a miss.
func (a *OfflineCache) match(ctx context.Context, store cache.Store, key string) (serializer.Snapshot, bool) {
	if store == nil {
		return serializer.Snapshot{}, false
	}
	b, ok, err := store.Match(ctx, key)
	if err != nil {
		a.log.Error().Err(err).Str("store", store.Name()).Str("key", key).Msg("Could not retrieve from cache")
		return serializer.Snapshot{}, false
	}
	if !ok {
		return serializer.Snapshot{}, false
	}
	snap, err := serializer.BytesToSnapshot(b)
	if err != nil {
		a.log.Error().Err(err).Str("store", store.Name()).Str("key", key).Msg("Could not decode cached response")
		return serializer.Snapshot{}, false
	}
	return snap, true
}

// mayStore reports whether the response to r may be kept in a generation,
// which is shared by every client of the proxy.
func (a *OfflineCache) mayStore(r *http.Request, snap serializer.Snapshot) bool {
	if !snap.OK() {
		return false
	}
	if !rfc9111.MayStore(r, snap.StatusCode, snap.Header) {
		a.log.Trace().Str("url", r.URL.String()).Msg("Response must not be stored in a shared cache")
		return false
	}
	return true
}

// storable returns the snapshot without the header fields that must not be stored.
// The original snapshot, which goes to the requesting client, is not modified.
func storable(snap serializer.Snapshot) serializer.Snapshot {
	snap.Header = rfc9111.StorableHeader(snap.Header)
	return snap
}

// put writes the snapshot into the store. An identical stored snapshot is left in place.
// Callers check mayStore first.
func (a *OfflineCache) put(ctx context.Context, store cache.Store, key string, snap serializer.Snapshot) bool {
	if store == nil {
		return false
	}
	snap = storable(snap)
	if existing, ok := a.match(ctx, store, key); ok && existing.Digest() == snap.Digest() {
		a.log.Trace().Str("store", store.Name()).Str("key", key).Msg("Cached response unchanged")
		return true
	}
	b, err := serializer.SnapshotToBytes(snap)
	if err != nil {
		a.log.Error().Err(err).Str("key", key).Msg("Could not encode response")
		return false
	}
	a.log.Trace().Str("store", store.Name()).Msgf("Writing to cache: %v", key)
	if err := store.Put(ctx, key, b); err != nil {
		a.log.Error().Err(err).Str("store", store.Name()).Str("key", key).Msg("Could not write to cache")
		return false
	}
	return true
}

// open opens the store, logging failures. A nil store means the cache is unavailable.
func (a *OfflineCache) open(ctx context.Context, g cache.Generation) cache.Store {
	store, err := a.registry.Open(ctx, g.Name())
	if err != nil {
		a.log.Error().Err(err).Str("store", g.Name()).Msg("Could not open cache store")
		return nil
	}
	return store
}
