package offlinecache

import (
	"context"
	"net/http"

	cachekey "github.com/always-cache/offline-cache/pkg/cache-key"
	offlinepages "github.com/always-cache/offline-cache/pkg/offline-pages"
)

// networkFirstAPI serves API calls from the network, falling back to the runtime
// generation and finally to the structured offline error. It always produces a response.
//
// Only the failure to get any response triggers the fallback; HTTP error statuses
// are passed on to the caller but not stored. Neither are private responses.
func (a *OfflineCache) networkFirstAPI(ctx context.Context, r *http.Request) Result {
	key := cachekey.GetKey(r)
	log := a.log.With().Str("key", key).Logger()
	cacheCtx := context.WithoutCancel(ctx)
	store := a.open(cacheCtx, a.generations.Runtime)

	snap, err := a.fetch(ctx, r)
	if err == nil {
		var stored bool
		if a.mayStore(r, snap) {
			stored = a.put(cacheCtx, store, key, snap)
		}
		return Result{Strategy: StrategyNetworkFirstAPI, Outcome: OutcomeNetwork, Snapshot: snap, Stored: stored}
	}
	log.Warn().Err(err).Msg("API request failed, falling back to cache")

	if cached, ok := a.match(cacheCtx, store, key); ok {
		return Result{Strategy: StrategyNetworkFirstAPI, Outcome: OutcomeCacheHit, Snapshot: cached}
	}

	log.Debug().Msg("No cached API response, answering with offline error")
	return Result{
		Strategy: StrategyNetworkFirstAPI,
		Outcome:  OutcomeOfflineError,
		Snapshot: synthesized("application/json", http.StatusServiceUnavailable,
			offlinepages.OfflineAPIError(a.pageParams())),
	}
}
