// Package cmd defines and implements the CLI commands for the xmlstream executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/xmlstream/internal/app"
	"github.com/JakeFAU/xmlstream/internal/config"
	"github.com/JakeFAU/xmlstream/internal/metrics"
	"github.com/JakeFAU/xmlstream/internal/store"
	"github.com/JakeFAU/xmlstream/internal/transform"
	"github.com/JakeFAU/xmlstream/pkg/saxstream"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the application services commands use. Tests may inject their
// own factory.
type App interface {
	Logger() *zap.Logger
	Config() config.Config
	Registry() *prometheus.Registry
	HTTPMetrics() *metrics.HTTP
	Sessions() store.SessionRepository
	ParseReader(ctx context.Context, source string, r io.Reader, h saxstream.Handlers, opts ...saxstream.Option) error
	ParseURI(ctx context.Context, uri string, h saxstream.Handlers, opts ...saxstream.Option) error
	CopyURI(ctx context.Context, src, dst string, opts ...transform.Option) (string, int64, error)
	Close(ctx context.Context) error
}

// AppFactory builds the App once configuration is loaded.
type AppFactory func(ctx context.Context, cfg config.Config) (App, error)

func defaultAppFactory(ctx context.Context, cfg config.Config) (App, error) {
	return app.New(ctx, cfg)
}

// rootFlags are the persistent flags shared by every subcommand.
type rootFlags struct {
	cfgFile   string
	chunkSize int
	encoding  string
	logDev    bool
}

// newRootCmd creates the root command. The App is built in the persistent
// pre-run hook and closed by closeApp, which Execute also calls when a
// subcommand fails.
func newRootCmd(factory AppFactory) (*cobra.Command, func(context.Context) error) {
	flags := &rootFlags{}
	var appInstance App

	closeApp := func(ctx context.Context) error {
		if appInstance == nil {
			return nil
		}
		err := appInstance.Close(ctx)
		appInstance = nil
		return err
	}

	cmd := &cobra.Command{
		Use:   "xmlstream",
		Short: "Incremental, chunk-driven XML event streaming.",
		Long: `xmlstream parses XML documents incrementally, a chunk at a time,
and delivers open tag, text, close tag and end events in document order
without building a tree. Documents may live on local disk, in GCS (gs://)
or be piped through stdin.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			appInstance, err = factory(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return closeApp(context.WithoutCancel(cmd.Context()))
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.cfgFile, "config", "", "config file (yaml, json or toml)")
	pf.IntVar(&flags.chunkSize, "chunk-size", saxstream.DefaultChunkSize, "bytes read per chunk")
	pf.StringVar(&flags.encoding, "encoding", saxstream.DefaultEncoding, "input character encoding (WHATWG label)")
	pf.BoolVar(&flags.logDev, "log-dev", false, "human-readable development logging")

	cmd.AddCommand(
		newEventsCmd(),
		newCopyCmd(),
		newServeCmd(),
		newSessionsCmd(),
	)
	return cmd, closeApp
}

// loadConfig reads the config file and environment, then applies any
// persistent flags the user set explicitly.
func loadConfig(cmd *cobra.Command, flags *rootFlags) (config.Config, error) {
	cfg, err := config.Load(flags.cfgFile)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	pf := cmd.Flags()
	if pf.Changed("chunk-size") {
		cfg.Parse.ChunkSize = flags.chunkSize
	}
	if pf.Changed("encoding") {
		cfg.Parse.Encoding = flags.encoding
	}
	if pf.Changed("log-dev") {
		cfg.Logging.Development = flags.logDev
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root, closeApp := newRootCmd(defaultAppFactory)
	err := root.ExecuteContext(ctx)
	if cerr := closeApp(context.WithoutCancel(ctx)); cerr != nil {
		fmt.Fprintln(os.Stderr, "shutdown:", cerr)
	}
	if err != nil {
		stop()
		os.Exit(1)
	}
}
