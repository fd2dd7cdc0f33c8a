package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	offlinecache "github.com/always-cache/offline-cache"
	"github.com/always-cache/offline-cache/cache"
	cachekey "github.com/always-cache/offline-cache/pkg/cache-key"
	"github.com/always-cache/offline-cache/pkg/telemetry"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

// loadConfig reads the configuration and applies the flags on top of it.
func (c *cli) loadConfig() (Config, error) {
	config, err := getConfig(c.configFilename)
	if err != nil {
		return config, err
	}
	if c.origin != "" {
		config.Origin = c.origin
	}
	if c.host != "" {
		config.Host = c.host
	}
	if c.listen != "" {
		config.Listen = c.listen
	}
	if c.storeDriver != "" {
		config.Store.Driver = c.storeDriver
	}
	if c.dbFilename != "" {
		config.Store.SQLite.Filename = c.dbFilename
	}
	return config, config.validate()
}

// open creates the offline cache on the configured storage.
// The origin is only needed for commands that fetch.
func (c *cli) open(ctx context.Context, config Config, needsOrigin bool) (*offlinecache.OfflineCache, cache.Registry, func(), error) {
	cacheConfig := config.cacheConfig()
	originUrl, err := config.originURL()
	switch {
	case err == nil:
		cacheConfig.OriginURL = originUrl
	case needsOrigin || !errors.Is(err, errNoOrigin):
		return nil, nil, nil, err
	}

	registry, closeRegistry, err := config.Store.openRegistry()
	if err != nil {
		return nil, nil, nil, err
	}
	if pinger, ok := registry.(interface{ Ping(context.Context) error }); ok {
		if err := pinger.Ping(ctx); err != nil {
			closeRegistry()
			return nil, nil, nil, fmt.Errorf("connect to %s store: %w", config.Store.Driver, err)
		}
	}
	cacheConfig.Registry = registry
	cacheConfig.Logger = &log.Logger

	closeFn := func() {
		if err := closeRegistry(); err != nil {
			log.Error().Err(err).Msg("Could not close cache storage")
		}
	}
	return offlinecache.New(cacheConfig), registry, closeFn, nil
}

func (c *cli) newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Install, activate and intercept requests to the origin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			config, err := c.loadConfig()
			if err != nil {
				return err
			}
			shutdownTracing, err := telemetry.Setup(ctx, "offline-cache", version, config.OTLPEndpoint)
			if err != nil {
				return fmt.Errorf("set up tracing: %w", err)
			}
			defer shutdownTracing(context.Background())

			a, _, closeStore, err := c.open(ctx, config, true)
			if err != nil {
				return err
			}
			defer closeStore()

			// a failed install keeps the previous generations in place
			if _, err := a.Install(ctx); err != nil {
				log.Error().Err(err).Msg("Install failed, not activating")
			} else if _, err := a.Activate(ctx); err != nil {
				log.Error().Err(err).Msg("Activation failed")
			}

			server := &http.Server{Addr: config.Listen, Handler: a.Routes()}
			errc := make(chan error, 1)
			go func() {
				errc <- server.ListenAndServe()
			}()
			log.Info().Msgf("Intercepting %v for %s (with hostname '%s')", config.Listen, config.Origin, config.Host)

			select {
			case err := <-errc:
				return err
			case <-ctx.Done():
				log.Info().Msg("Shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			}
		},
	}
}

func (c *cli) newInstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Pre-cache the manifest into the current static generation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.runLifecycle(cmd.Context(), offlinecache.InstallEvent{})
		},
	}
}

func (c *cli) newActivateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "activate",
		Short: "Delete every generation that is not current",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.runLifecycle(cmd.Context(), offlinecache.ActivateEvent{})
		},
	}
}

func (c *cli) runLifecycle(ctx context.Context, event offlinecache.Event) error {
	config, err := c.loadConfig()
	if err != nil {
		return err
	}
	_, needsOrigin := event.(offlinecache.InstallEvent)
	a, _, closeStore, err := c.open(ctx, config, needsOrigin)
	if err != nil {
		return err
	}
	defer closeStore()

	reply, err := a.Dispatch(ctx, event)
	if reply.Report != nil {
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(reply.Report); encErr != nil {
			return encErr
		}
	}
	return err
}

func (c *cli) newGenerationsCmd() *cobra.Command {
	var showKeys bool
	cmd := &cobra.Command{
		Use:   "generations",
		Short: "List the cache generations in the storage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			config, err := c.loadConfig()
			if err != nil {
				return err
			}
			a, registry, closeStore, err := c.open(ctx, config, false)
			if err != nil {
				return err
			}
			defer closeStore()

			names, err := registry.Names(ctx)
			if err != nil {
				return err
			}
			for _, name := range names {
				marker := " "
				if a.Generations().IsCurrent(name) {
					marker = "*"
				}
				fmt.Fprintf(c.out, "%s %s\n", marker, name)
				if !showKeys {
					continue
				}
				store, err := registry.Open(ctx, name)
				if err != nil {
					return err
				}
				keys, err := store.Keys(ctx)
				if err != nil {
					return err
				}
				for _, key := range keys {
					fmt.Fprintf(c.out, "    %s\n", cachekey.GetPath(key))
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showKeys, "keys", false, "List the cached request paths of every generation")
	return cmd
}
