package offlinecache

import (
	"context"
	"fmt"
	"net/http"

	serializer "github.com/always-cache/offline-cache/pkg/response-serializer"
	"github.com/always-cache/offline-cache/rfc9211"

	"go.opentelemetry.io/otel/attribute"
)

// Outcome is the terminal state of a handled request.
type Outcome string

const (
	OutcomeNetwork            Outcome = "network"
	OutcomeCacheHit           Outcome = "cache-hit"
	OutcomeSynthesizedGuide   Outcome = "synthesized-guide"
	OutcomeRedirected         Outcome = "redirected"
	OutcomeSynthesizedGeneric Outcome = "synthesized-generic"
	OutcomePlaceholder        Outcome = "image-placeholder"
	OutcomeOfflineError       Outcome = "offline-error"
	OutcomeFailed             Outcome = "failed"
)

// Result is the response chosen for a request and how it was obtained.
type Result struct {
	Strategy Strategy
	Outcome  Outcome
	Snapshot serializer.Snapshot
	// Whether the response was written to a cache generation.
	Stored bool
}

// CacheStatus describes the result as a Cache-Status list member.
func (r Result) CacheStatus() rfc9211.CacheStatus {
	cs := rfc9211.CacheStatus{Stored: r.Stored}
	switch r.Outcome {
	case OutcomeCacheHit:
		cs.Hit()
		if r.Strategy != StrategyCacheFirst {
			cs.Detail = "network-unavailable"
		}
	case OutcomeNetwork:
		switch r.Strategy {
		case StrategyPassthrough:
			cs.Forward(rfc9211.FwdReasonMethod)
		case StrategyCacheFirst:
			cs.Forward(rfc9211.FwdReasonUriMiss)
		default:
			cs.Forward(rfc9211.FwdReasonBypass)
		}
		cs.FwdStatus = r.Snapshot.StatusCode
	default:
		cs.Forward(rfc9211.FwdReasonMiss)
		cs.Detail = string(r.Outcome)
	}
	return cs
}

// Event is a lifecycle or fetch event delivered to Dispatch.
type Event interface {
	eventName() string
}

// InstallEvent pre-caches the manifest.
type InstallEvent struct{}

// ActivateEvent deletes stale generations.
type ActivateEvent struct{}

// FetchEvent is an intercepted request.
type FetchEvent struct {
	Request *http.Request
}

func (InstallEvent) eventName() string  { return "install" }
func (ActivateEvent) eventName() string { return "activate" }
func (FetchEvent) eventName() string    { return "fetch" }

// Reply is the outcome of a dispatched event.
// Lifecycle events set Report, fetch events set Result.
type Reply struct {
	Report *Report
	Result *Result
}

// Dispatch routes lifecycle events to the lifecycle manager and fetch events
// to the executor chosen by Classify.
func (a *OfflineCache) Dispatch(ctx context.Context, event Event) (Reply, error) {
	switch ev := event.(type) {
	case InstallEvent:
		report, err := a.Install(ctx)
		return Reply{Report: &report}, err
	case ActivateEvent:
		report, err := a.Activate(ctx)
		return Reply{Report: &report}, err
	case FetchEvent:
		result, err := a.Handle(ctx, ev.Request)
		return Reply{Result: &result}, err
	case nil:
		return Reply{}, fmt.Errorf("nil event")
	default:
		return Reply{}, fmt.Errorf("unknown event %q", event.eventName())
	}
}

// Handle answers an intercepted request.
// Only cache-first requests for non-image assets can return an error,
// when neither the cache nor the network has the asset.
func (a *OfflineCache) Handle(ctx context.Context, r *http.Request) (Result, error) {
	switch strategy := Classify(r, a.apiPrefixes); strategy {
	case StrategyPassthrough:
		return a.passthrough(ctx, r)
	case StrategyNetworkFirstNavigation:
		return a.navigate(ctx, r), nil
	case StrategyNetworkFirstAPI:
		return a.networkFirstAPI(ctx, r), nil
	default:
		return a.cacheFirst(ctx, r)
	}
}

// passthrough forwards the request to the origin. Nothing is stored.
// ServeHTTP streams such requests directly when the network is a Forwarder.
func (a *OfflineCache) passthrough(ctx context.Context, r *http.Request) (Result, error) {
	snap, err := a.fetch(ctx, r)
	if err != nil {
		return Result{Strategy: StrategyPassthrough, Outcome: OutcomeFailed}, err
	}
	return Result{Strategy: StrategyPassthrough, Outcome: OutcomeNetwork, Snapshot: snap}, nil
}

func httpAttributes(r *http.Request) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("http.request.method", r.Method),
		attribute.String("url.path", r.URL.Path),
		attribute.String("offline_cache.destination", string(RequestDestination(r))),
	}
}

func resultAttributes(r Result) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("offline_cache.strategy", string(r.Strategy)),
		attribute.String("offline_cache.outcome", string(r.Outcome)),
		attribute.Int("http.response.status_code", r.Snapshot.StatusCode),
		attribute.Bool("offline_cache.stored", r.Stored),
	}
}
