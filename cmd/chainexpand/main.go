package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"chainexpand/internal/config"
	"chainexpand/internal/credential"
	"chainexpand/internal/dss"
	"chainexpand/internal/httpx"
	"chainexpand/internal/runner"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type options struct {
	configPath string
	chainRIC   string
	start      string
	end        string
	mode       string
	columns    string
	outDir     string
	timeoutSec int
	verbose    bool
}

func newRootCmd(source credential.Source, stdout io.Writer) *cobra.Command {
	var (
		opts   options
		logger *zap.Logger
	)
	cmd := &cobra.Command{
		Use:   "chainexpand",
		Short: "Expand a chain RIC into its constituents via DataScope Select",
		Long: `Logs in to DataScope Select, resolves the historical constituents of a
chain RIC over a date range, and either writes the identifiers to
<output_path>/<output_prefix><pid>.txt (list mode) or prints an
identifier/status table (table mode).

Credentials come from DSS_USERNAME/DSS_PASSWORD or an interactive prompt.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config := zap.NewProductionConfig()
			if opts.verbose {
				config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			var err error
			logger, err = config.Build()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			if err := run(cmd.Context(), cfg, source, stdout, logger); err != nil {
				logger.Error("run failed", zap.Error(err))
				return err
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", os.Getenv("CONFIG_FILE"), "path to config.json or config.yaml (optional)")
	f.StringVar(&opts.chainRIC, "chain", "", "chain RIC to expand, e.g. 0#.FTSE")
	f.StringVar(&opts.start, "start", "", "range start (RFC 3339 or YYYY-MM-DD)")
	f.StringVar(&opts.end, "end", "", "range end (RFC 3339 or YYYY-MM-DD)")
	f.StringVar(&opts.mode, "mode", "", "output mode: list or table")
	f.StringVar(&opts.columns, "columns", "", "comma-separated table columns")
	f.StringVar(&opts.outDir, "out", "", "directory for the identifier list file")
	f.IntVar(&opts.timeoutSec, "timeout", 0, "request timeout seconds")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging, including raw responses")
	return cmd
}

// loadConfig reads the config file and env, then applies any flags that were set.
func loadConfig(cmd *cobra.Command, opts options) (config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	f := cmd.Flags()
	if f.Changed("chain") { cfg.ChainRIC = opts.chainRIC }
	if f.Changed("start") { cfg.StartDate = opts.start }
	if f.Changed("end") { cfg.EndDate = opts.end }
	if f.Changed("mode") { cfg.Mode = config.Mode(strings.ToLower(opts.mode)) }
	if f.Changed("columns") { cfg.Columns = config.SplitCSV(opts.columns) }
	if f.Changed("out") { cfg.OutputPath = opts.outDir }
	if f.Changed("timeout") && opts.timeoutSec > 0 { cfg.RequestTimeoutSec = opts.timeoutSec }
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func run(ctx context.Context, cfg config.Config, source credential.Source, stdout io.Writer, logger *zap.Logger) error {
	httpClient := httpx.New(cfg.RequestTimeout())
	httpClient.UserAgent = cfg.UserAgent

	client, err := dss.NewClient(
		dss.WithHTTPClient(httpClient),
		dss.WithAuthURL(cfg.AuthEndpoint),
		dss.WithResolveURL(cfg.ResolveEndpoint),
		dss.WithWait(cfg.WaitSeconds),
		dss.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("dss client: %w", err)
	}

	res, err := runner.New(cfg, client, source, runner.WithLogger(logger), runner.WithStdout(stdout)).Run(ctx)
	if err != nil {
		return err
	}
	if res.Truncated {
		logger.Warn("result may be incomplete: the server truncated the chain and pagination is not supported")
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	source := credential.FirstOf(credential.Env{}, credential.NewTerminal())
	if err := newRootCmd(source, os.Stdout).ExecuteContext(ctx); err != nil {
		if !errors.Is(err, runner.ErrNoConstituents) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}
