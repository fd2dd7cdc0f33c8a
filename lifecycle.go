package offlinecache

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/always-cache/offline-cache/cache"
	cachekey "github.com/always-cache/offline-cache/pkg/cache-key"
	serializer "github.com/always-cache/offline-cache/pkg/response-serializer"

	"golang.org/x/sync/errgroup"
)

// ErrInstallFailed is returned when not a single manifest entry could be cached.
var ErrInstallFailed = errors.New("install failed: no manifest entry could be cached")

// installConcurrency bounds parallel fetches while adding manifest entries one by one.
const installConcurrency = 4

type Phase string

const (
	PhaseNew       Phase = "new"
	PhaseInstalled Phase = "installed"
	PhaseActivated Phase = "activated"
)

// State is the lifecycle state of the offline cache.
type State struct {
	Phase   Phase  `json:"phase"`
	Version string `json:"version"`
	// Set on install: the new generation does not wait for the previous one to finish.
	SkipWaiting bool `json:"skipWaiting"`
	// Set on activation: all open pages are controlled without reloading.
	Claimed      bool    `json:"claimed"`
	LastInstall  *Report `json:"lastInstall,omitempty"`
	LastActivate *Report `json:"lastActivate,omitempty"`
}

// Warning is a non-fatal failure of one lifecycle step.
type Warning struct {
	// The manifest path or store name the step was about.
	Target  string `json:"target"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func newWarning(target string, err error) Warning {
	return Warning{Target: target, Message: err.Error(), Err: err}
}

// Report lists what a lifecycle event did.
type Report struct {
	Event string `json:"event"`
	// Install: cached manifest paths. Activate: deleted store names.
	Done     []string  `json:"done"`
	Warnings []Warning `json:"warnings,omitempty"`
	// The whole manifest was cached in one batch.
	Batch      bool      `json:"batch,omitempty"`
	FinishedAt time.Time `json:"finishedAt"`
}

// State returns a copy of the lifecycle state.
func (a *OfflineCache) State() State {
	a.stateMutex.RLock()
	defer a.stateMutex.RUnlock()
	return a.state
}

// Install pre-caches the manifest into the static generation.
// The manifest is first added as one batch; if any entry fails, every entry is added
// independently and individual failures become warnings.
// It returns an error only if the store cannot be opened or nothing could be cached.
func (a *OfflineCache) Install(ctx context.Context) (Report, error) {
	report := Report{Event: "install"}
	log := a.log.With().Str("event", "install").Str("store", a.generations.Static.Name()).Logger()

	store, err := a.registry.Open(ctx, a.generations.Static.Name())
	if err != nil {
		return report, fmt.Errorf("open static generation %s: %w", a.generations.Static.Name(), err)
	}

	if err := a.addAll(ctx, store, a.manifest); err != nil {
		log.Warn().Err(err).Msg("Batch caching failed, caching manifest entries individually")
		report.Done, report.Warnings = a.addEach(ctx, store, a.manifest)
	} else {
		report.Batch = true
		report.Done = append([]string{}, a.manifest...)
	}
	report.FinishedAt = time.Now()

	for _, w := range report.Warnings {
		log.Warn().Err(w.Err).Str("path", w.Target).Msg("Could not cache manifest entry")
	}
	if len(a.manifest) > 0 && len(report.Done) == 0 {
		return report, ErrInstallFailed
	}

	a.stateMutex.Lock()
	if a.state.Phase == PhaseNew {
		a.state.Phase = PhaseInstalled
	}
	a.state.SkipWaiting = true
	a.state.LastInstall = &report
	a.stateMutex.Unlock()

	log.Info().Int("cached", len(report.Done)).Int("failed", len(report.Warnings)).Msg("Installed, not waiting for previous generation")
	return report, nil
}

// addAll fetches the whole manifest and stores it only if every fetch succeeded.
func (a *OfflineCache) addAll(ctx context.Context, store cache.Store, paths []string) error {
	snaps := make([]serializer.Snapshot, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		g.Go(func() error {
			snap, err := a.fetchManifestEntry(gctx, path)
			if err != nil {
				return err
			}
			snaps[i] = snap
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for i, path := range paths {
		if err := a.putManifestEntry(ctx, store, path, snaps[i]); err != nil {
			return err
		}
	}
	return nil
}

// addEach caches every entry independently. Failures do not affect other entries.
func (a *OfflineCache) addEach(ctx context.Context, store cache.Store, paths []string) ([]string, []Warning) {
	errs := make([]error, len(paths))
	var g errgroup.Group
	g.SetLimit(installConcurrency)
	for i, path := range paths {
		g.Go(func() error {
			snap, err := a.fetchManifestEntry(ctx, path)
			if err == nil {
				err = a.putManifestEntry(ctx, store, path, snap)
			}
			errs[i] = err
			return nil
		})
	}
	g.Wait()

	done := make([]string, 0, len(paths))
	var warnings []Warning
	for i, path := range paths {
		if errs[i] != nil {
			warnings = append(warnings, newWarning(path, errs[i]))
		} else {
			done = append(done, path)
		}
	}
	return done, warnings
}

func (a *OfflineCache) fetchManifestEntry(ctx context.Context, path string) (serializer.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return serializer.Snapshot{}, err
	}
	snap, err := a.fetch(ctx, req)
	if err != nil {
		return snap, err
	}
	if !snap.OK() {
		return snap, fmt.Errorf("fetch %s: status %d", path, snap.StatusCode)
	}
	return snap, nil
}

func (a *OfflineCache) putManifestEntry(ctx context.Context, store cache.Store, path string, snap serializer.Snapshot) error {
	key, err := cachekey.GetKeyForPath(path)
	if err != nil {
		return err
	}
	b, err := serializer.SnapshotToBytes(storable(snap))
	if err != nil {
		return err
	}
	return store.Put(ctx, key, b)
}

// Activate deletes every generation that is not current.
// All deletions are attempted; failures become warnings.
// It returns an error only if the generations cannot be listed.
func (a *OfflineCache) Activate(ctx context.Context) (Report, error) {
	report := Report{Event: "activate"}
	log := a.log.With().Str("event", "activate").Logger()

	names, err := a.registry.Names(ctx)
	if err != nil {
		return report, fmt.Errorf("list generations: %w", err)
	}

	var (
		mutex sync.Mutex
		g     errgroup.Group
	)
	for _, name := range names {
		if a.generations.IsCurrent(name) {
			continue
		}
		g.Go(func() error {
			_, err := a.registry.Delete(ctx, name)
			mutex.Lock()
			defer mutex.Unlock()
			if err != nil {
				report.Warnings = append(report.Warnings, newWarning(name, err))
				log.Error().Err(err).Str("store", name).Msg("Could not delete stale generation")
				return nil
			}
			report.Done = append(report.Done, name)
			log.Debug().Str("store", name).Msg("Deleted stale generation")
			return nil
		})
	}
	g.Wait()
	sort.Strings(report.Done)
	sort.Slice(report.Warnings, func(i, j int) bool {
		return report.Warnings[i].Target < report.Warnings[j].Target
	})
	report.FinishedAt = time.Now()

	a.stateMutex.Lock()
	a.state.Phase = PhaseActivated
	a.state.Claimed = true
	a.state.LastActivate = &report
	a.stateMutex.Unlock()

	log.Info().Int("deleted", len(report.Done)).Int("failed", len(report.Warnings)).Msg("Activated, claiming all clients")
	return report, nil
}
