package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// this is set by goreleaser
var version string

func init() {
	if version == "" {
		version = "DEV"
	}
}

type cli struct {
	// CLI flags
	configFilename     string
	origin             string
	host               string
	listen             string
	storeDriver        string
	dbFilename         string
	verbosityTraceFlag bool
	logFilename        string

	out     io.Writer
	logFile io.Closer
}

func newRootCmd(out io.Writer) *cobra.Command {
	c := &cli{out: out}
	rootCmd := &cobra.Command{
		Use:           "offline-cache",
		Short:         "Offline resilience layer for the first-aid web app",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setupLogging()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if c.logFile != nil {
				c.logFile.Close()
			}
		},
	}
	rootCmd.SetOut(out)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&c.configFilename, "config", "", "Path to YAML config file")
	flags.StringVar(&c.origin, "origin", "", "Origin URL to proxy to (overrides config)")
	flags.StringVar(&c.host, "host", "", "Hostname of origin, if the origin URL is an IP address")
	flags.StringVar(&c.listen, "listen", "", "Address to listen on (overrides config)")
	flags.StringVar(&c.storeDriver, "store", "", "Cache storage: memory, sqlite or redis (overrides config)")
	flags.StringVar(&c.dbFilename, "db", "", "SQLite cache DB file name (overrides config)")
	flags.BoolVar(&c.verbosityTraceFlag, "vv", false, "Verbosity: trace logging")
	flags.StringVar(&c.logFilename, "log-file", "", "Log file to use (in addition to stdout)")

	rootCmd.AddCommand(c.newServeCmd())
	rootCmd.AddCommand(c.newInstallCmd())
	rootCmd.AddCommand(c.newActivateCmd())
	rootCmd.AddCommand(c.newGenerationsCmd())
	return rootCmd
}

func (c *cli) setupLogging() error {
	// set log level
	logLevel := zerolog.DebugLevel
	if c.verbosityTraceFlag {
		logLevel = zerolog.TraceLevel
	}

	// set up log output to stdout
	// also output to logfile if specified
	logOutputs := make([]io.Writer, 0)
	logOutputs = append(logOutputs, zerolog.ConsoleWriter{Out: os.Stdout})
	if c.logFilename != "" {
		logFileOutput, err := os.OpenFile(c.logFilename, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
		if err != nil {
			return err
		}
		logOutputs = append(logOutputs, logFileOutput)
		c.logFile = logFileOutput
	}
	multiWriter := zerolog.MultiLevelWriter(logOutputs...)
	log.Logger = log.Level(logLevel).Output(multiWriter).
		With().Str("cliVersion", version).Logger()
	return nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("Exiting")
		cancel()
		os.Exit(1)
	}
}
