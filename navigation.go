package offlinecache

import (
	"context"
	"html"
	"net/http"

	"github.com/always-cache/offline-cache/cache"
	cachekey "github.com/always-cache/offline-cache/pkg/cache-key"
	offlinepages "github.com/always-cache/offline-cache/pkg/offline-pages"
	serializer "github.com/always-cache/offline-cache/pkg/response-serializer"
)

// navigate serves page loads. It always produces a renderable document:
// the network response, a cached copy, the medical guide, a redirect to it, or the offline notice.
func (a *OfflineCache) navigate(ctx context.Context, r *http.Request) Result {
	key := cachekey.GetKey(r)
	log := a.log.With().Str("key", key).Logger()
	cacheCtx := context.WithoutCancel(ctx)
	runtime := a.open(cacheCtx, a.generations.Runtime)

	fetchCtx, cancel := context.WithTimeout(ctx, a.navigationTimeout)
	snap, err := a.fetch(fetchCtx, r)
	cancel()
	switch {
	case err != nil:
		log.Warn().Err(err).Msg("Navigation failed, falling back")
	case snap.OK():
		stored := a.mayStore(r, snap) && a.put(cacheCtx, runtime, key, snap)
		return Result{Strategy: StrategyNetworkFirstNavigation, Outcome: OutcomeNetwork, Snapshot: snap, Stored: stored}
	case a.serveErrorPages:
		return Result{Strategy: StrategyNetworkFirstNavigation, Outcome: OutcomeNetwork, Snapshot: snap}
	default:
		log.Warn().Int("status", snap.StatusCode).Msg("Navigation response not ok, falling back")
	}

	if cached, ok := a.match(cacheCtx, runtime, key); ok {
		return Result{Strategy: StrategyNetworkFirstNavigation, Outcome: OutcomeCacheHit, Snapshot: cached}
	}

	switch r.URL.Path {
	case a.guidePath:
		return a.serveGuide(cacheCtx)
	case a.chatPath:
		// chat has no offline value, do not present a broken page
		log.Debug().Str("location", a.guidePath).Msg("Chat unavailable, redirecting to guide")
		return Result{
			Strategy: StrategyNetworkFirstNavigation,
			Outcome:  OutcomeRedirected,
			Snapshot: redirect(a.guidePath),
		}
	}
	return a.synthesizeNotice(r)
}

// serveGuide serves the guide as cached on install (exact path match), or synthesizes it.
func (a *OfflineCache) serveGuide(ctx context.Context) Result {
	if key, err := cachekey.GetKeyForPath(a.guidePath); err == nil {
		for _, g := range []cache.Generation{a.generations.Static, a.generations.Runtime} {
			if cached, ok := a.match(ctx, a.open(ctx, g), key); ok && cached.OK() {
				return Result{Strategy: StrategyNetworkFirstNavigation, Outcome: OutcomeCacheHit, Snapshot: cached}
			}
		}
	}
	body, err := offlinepages.MedicalGuide(a.pageParams())
	if err != nil {
		a.log.Error().Err(err).Msg("Could not render medical guide")
		body = offlinepages.MinimalNotice(a.pageParams())
	}
	return Result{
		Strategy: StrategyNetworkFirstNavigation,
		Outcome:  OutcomeSynthesizedGuide,
		Snapshot: synthesized("text/html; charset=utf-8", http.StatusOK, body),
	}
}

func (a *OfflineCache) synthesizeNotice(r *http.Request) Result {
	body, err := offlinepages.OfflineNotice(a.pageParams())
	if err != nil {
		a.log.Error().Err(err).Str("url", r.URL.String()).Msg("Could not render offline notice")
		body = offlinepages.MinimalNotice(a.pageParams())
	}
	return Result{
		Strategy: StrategyNetworkFirstNavigation,
		Outcome:  OutcomeSynthesizedGeneric,
		Snapshot: synthesized("text/html; charset=utf-8", http.StatusOK, body),
	}
}

func redirect(location string) serializer.Snapshot {
	snap := synthesized("text/html; charset=utf-8", http.StatusFound,
		[]byte(`<a href="`+html.EscapeString(location)+`">Found</a>.`))
	snap.Header.Set("Location", location)
	return snap
}

func (a *OfflineCache) pageParams() offlinepages.Params {
	return offlinepages.Params{
		Version:         a.version,
		Date:            a.now(),
		EmergencyNumber: a.emergencyNumber,
		GuidePath:       a.guidePath,
	}
}
