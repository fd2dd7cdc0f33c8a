package offlinecache

import (
	"context"
	"net/http"

	cachekey "github.com/always-cache/offline-cache/pkg/cache-key"
	offlinepages "github.com/always-cache/offline-cache/pkg/offline-pages"
	serializer "github.com/always-cache/offline-cache/pkg/response-serializer"
)

// cacheFirst serves static assets from the static generation.
// Stored assets are returned without any freshness check: they are addressed by version.
func (a *OfflineCache) cacheFirst(ctx context.Context, r *http.Request) (Result, error) {
	key := cachekey.GetKey(r)
	log := a.log.With().Str("key", key).Logger()
	cacheCtx := context.WithoutCancel(ctx)

	store := a.open(cacheCtx, a.generations.Static)
	if snap, ok := a.match(cacheCtx, store, key); ok {
		log.Trace().Msg("Serving asset from cache")
		return Result{Strategy: StrategyCacheFirst, Outcome: OutcomeCacheHit, Snapshot: snap}, nil
	}

	snap, err := a.fetch(ctx, r)
	if err != nil {
		// images must never break the page layout
		if isImageRequest(r) {
			log.Warn().Err(err).Msg("Image unavailable, serving placeholder")
			return Result{
				Strategy: StrategyCacheFirst,
				Outcome:  OutcomePlaceholder,
				Snapshot: synthesized("image/svg+xml", http.StatusOK, offlinepages.ImagePlaceholder()),
			}, nil
		}
		return Result{Strategy: StrategyCacheFirst, Outcome: OutcomeFailed}, err
	}

	var stored bool
	if a.mayStore(r, snap) {
		stored = a.put(cacheCtx, store, key, snap)
	}
	return Result{Strategy: StrategyCacheFirst, Outcome: OutcomeNetwork, Snapshot: snap, Stored: stored}, nil
}

// synthesized creates a response that is never stored.
func synthesized(contentType string, status int, body []byte) serializer.Snapshot {
	header := http.Header{}
	header.Set("Content-Type", contentType)
	header.Set("Cache-Control", "no-store")
	return serializer.NewSnapshot(status, header, body)
}
