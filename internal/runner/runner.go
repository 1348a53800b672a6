// Package runner drives one authenticate-then-resolve cycle and hands the
// result to its sink.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"chainexpand/internal/config"
	"chainexpand/internal/credential"
	"chainexpand/internal/dss"
	"chainexpand/internal/output"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNoConstituents is returned when the chain resolved to nothing.
var ErrNoConstituents = errors.New("unable to expand chain")

// Client is the part of the DSS API a run needs.
type Client interface {
	RequestToken(ctx context.Context, creds dss.Credentials) (dss.Token, error)
	ExpandChain(ctx context.Context, token dss.Token, q dss.ChainQuery) (*dss.ChainResult, error)
}

var _ Client = (*dss.Client)(nil)

// Result describes what a run produced.
type Result struct {
	Mode        config.Mode
	Identifiers []string
	Table       *dss.Table
	// OutputFile is the list file written in list mode.
	OutputFile string
	// Truncated is set when the server reported more constituents than it sent.
	Truncated bool
}

type Runner struct {
	cfg    config.Config
	client Client
	source credential.Source
	logger *zap.Logger
	stdout io.Writer
	pid    int
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithStdout sets where table mode renders.
func WithStdout(w io.Writer) Option {
	return func(r *Runner) { r.stdout = w }
}

// WithPID overrides the process id used in the list file name.
func WithPID(pid int) Option {
	return func(r *Runner) { r.pid = pid }
}

func New(cfg config.Config, client Client, source credential.Source, opts ...Option) *Runner {
	r := &Runner{
		cfg:    cfg,
		client: client,
		source: source,
		logger: zap.NewNop(),
		stdout: os.Stdout,
		pid:    os.Getpid(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(zap.String("run_id", uuid.NewString()))
	return r
}

// Run authenticates, resolves the configured chain and writes the result.
// Steps run strictly in order; the first failure ends the run.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	q, err := r.cfg.Query()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}

	r.logger.Info("login to DSS server")
	creds, err := r.source.Credentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading credentials: %w", err)
	}
	token, err := r.client.RequestToken(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("requesting token: %w", err)
	}
	if token == "" {
		return nil, dss.ErrEmptyToken
	}
	r.logger.Info("authenticated", zap.Int("token_length", len(token)))

	res, err := r.client.ExpandChain(ctx, token, q)
	if err != nil {
		return nil, fmt.Errorf("expanding chain %s: %w", q.ChainRIC, err)
	}

	switch r.cfg.Mode {
	case config.ModeTable:
		return r.table(q, res)
	default:
		return r.list(q, res)
	}
}

func (r *Runner) list(q dss.ChainQuery, res *dss.ChainResult) (*Result, error) {
	out := &Result{Mode: config.ModeList, Identifiers: res.Identifiers(), Truncated: res.Truncated()}
	if len(out.Identifiers) == 0 {
		r.logger.Warn("unable to expand chain", zap.String("chain", q.ChainRIC))
		return out, ErrNoConstituents
	}
	r.logger.Info("found constituents", zap.Int("count", len(out.Identifiers)), zap.String("chain", q.ChainRIC))

	path := output.ListFileName(r.cfg.OutputPath, r.cfg.OutputPrefix, r.pid)
	r.logger.Info("writing identifier list", zap.String("path", path))
	if err := output.WriteList(path, out.Identifiers); err != nil {
		return out, err
	}
	out.OutputFile = path
	r.logger.Info("write output completed", zap.String("path", path))
	return out, nil
}

func (r *Runner) table(q dss.ChainQuery, res *dss.ChainResult) (*Result, error) {
	if n := len(res.Sets); n > 1 {
		r.logger.Warn("table mode shows the first identifier set only",
			zap.String("chain", q.ChainRIC), zap.Int("discarded_sets", n-1))
	}
	tbl := res.Table().Select(r.cfg.Columns...)
	out := &Result{Mode: config.ModeTable, Table: tbl, Truncated: res.Truncated()}
	if tbl.Len() == 0 {
		r.logger.Warn("unable to expand chain", zap.String("chain", q.ChainRIC))
		return out, ErrNoConstituents
	}
	r.logger.Info("found constituents", zap.Int("count", tbl.Len()), zap.String("chain", q.ChainRIC))
	if err := output.RenderTable(r.stdout, tbl); err != nil {
		return out, fmt.Errorf("rendering table: %w", err)
	}
	return out, nil
}
