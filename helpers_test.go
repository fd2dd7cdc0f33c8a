package offlinecache

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/always-cache/offline-cache/cache"
	serializer "github.com/always-cache/offline-cache/pkg/response-serializer"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var errConnectionRefused = errors.New("dial tcp 127.0.0.1:80: connect: connection refused")

type fakeResponse struct {
	status int
	header http.Header
	body   string
}

// fakeOrigin is a network that answers from a fixed set of responses
// and records every request it receives.
type fakeOrigin struct {
	mutex     sync.Mutex
	offline   bool
	delay     time.Duration
	responses map[string]fakeResponse
	calls     []string
}

func newFakeOrigin() *fakeOrigin {
	return &fakeOrigin{responses: map[string]fakeResponse{}}
}

func (o *fakeOrigin) handle(uri string, status int, contentType, body string) *fakeOrigin {
	return o.handleWithHeader(uri, status, http.Header{"Content-Type": {contentType}}, body)
}

func (o *fakeOrigin) handleWithHeader(uri string, status int, header http.Header, body string) *fakeOrigin {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.responses[uri] = fakeResponse{status, header, body}
	return o
}

// serveManifest makes every path of the manifest available.
func (o *fakeOrigin) serveManifest(manifest []string) *fakeOrigin {
	for _, path := range manifest {
		o.handle(path, http.StatusOK, "text/plain", "asset "+path)
	}
	return o
}

func (o *fakeOrigin) setOffline(offline bool) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.offline = offline
}

func (o *fakeOrigin) setDelay(delay time.Duration) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.delay = delay
}

func (o *fakeOrigin) resetCalls() {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.calls = nil
}

func (o *fakeOrigin) callCount() int {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	return len(o.calls)
}

func (o *fakeOrigin) Fetch(ctx context.Context, r *http.Request) (serializer.Snapshot, error) {
	o.mutex.Lock()
	uri := r.URL.RequestURI()
	o.calls = append(o.calls, r.Method+" "+uri)
	offline, delay := o.offline, o.delay
	res, found := o.responses[uri]
	o.mutex.Unlock()

	if err := ctx.Err(); err != nil {
		return serializer.Snapshot{}, err
	}
	if offline {
		return serializer.Snapshot{}, errConnectionRefused
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return serializer.Snapshot{}, ctx.Err()
		}
	}
	if !found {
		return serializer.NewSnapshot(http.StatusNotFound, http.Header{"Content-Type": {"text/plain"}}, []byte("not found")), nil
	}
	return serializer.NewSnapshot(res.status, res.header, []byte(res.body)), nil
}

// testRegistry wraps a registry, counting puts and injecting failures.
type testRegistry struct {
	cache.Registry
	openErr   error
	namesErr  error
	deleteErr map[string]error
	puts      atomic.Int64
}

func newTestRegistry() *testRegistry {
	return &testRegistry{Registry: cache.NewMemRegistry(), deleteErr: map[string]error{}}
}

func (r *testRegistry) Open(ctx context.Context, name string) (cache.Store, error) {
	if r.openErr != nil {
		return nil, r.openErr
	}
	store, err := r.Registry.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return countingStore{Store: store, puts: &r.puts}, nil
}

func (r *testRegistry) Names(ctx context.Context) ([]string, error) {
	if r.namesErr != nil {
		return nil, r.namesErr
	}
	return r.Registry.Names(ctx)
}

func (r *testRegistry) Delete(ctx context.Context, name string) (bool, error) {
	if err := r.deleteErr[name]; err != nil {
		return false, err
	}
	return r.Registry.Delete(ctx, name)
}

type countingStore struct {
	cache.Store
	puts *atomic.Int64
}

func (s countingStore) Put(ctx context.Context, key string, value []byte) error {
	s.puts.Add(1)
	return s.Store.Put(ctx, key, value)
}

func newTestCache(t *testing.T, origin Network, registry cache.Registry, configure ...func(*Config)) *OfflineCache {
	t.Helper()
	logger := zerolog.Nop()
	config := Config{
		Registry: registry,
		Network:  origin,
		Logger:   &logger,
		Now:      func() time.Time { return time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC) },
	}
	for _, c := range configure {
		c(&config)
	}
	return New(config)
}

// storedSnapshot returns the snapshot stored under key in the named generation.
func storedSnapshot(t *testing.T, registry cache.Registry, name, key string) (serializer.Snapshot, bool) {
	t.Helper()
	ctx := context.Background()
	store, err := registry.Open(ctx, name)
	require.NoError(t, err)
	b, ok, err := store.Match(ctx, key)
	require.NoError(t, err)
	if !ok {
		return serializer.Snapshot{}, false
	}
	snap, err := serializer.BytesToSnapshot(b)
	require.NoError(t, err)
	return snap, true
}

func storeSnapshot(t *testing.T, registry cache.Registry, name, key string, snap serializer.Snapshot) {
	t.Helper()
	ctx := context.Background()
	store, err := registry.Open(ctx, name)
	require.NoError(t, err)
	b, err := serializer.SnapshotToBytes(snap)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, key, b))
}

func navigation(target string) *http.Request {
	return newRequest(http.MethodGet, target, "Sec-Fetch-Dest", "document", "Sec-Fetch-Mode", "navigate")
}
