package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"chainexpand/internal/dss"

	"gopkg.in/yaml.v3"
)

// Mode selects how a chain result is materialized.
type Mode string

const (
	// ModeList writes the flat identifier list to a file.
	ModeList Mode = "list"
	// ModeTable renders the first identifier set as a console table.
	ModeTable Mode = "table"
)

// Default values for optional configuration fields.
const (
	DefaultChainRIC          = "0#.FTSE"
	DefaultStartDate         = "2017-06-05T00:00:00.000Z"
	DefaultEndDate           = "2017-06-17T00:00:00.000Z"
	DefaultOutputPath        = "./"
	DefaultOutputPrefix      = "RICList"
	DefaultRequestTimeoutSec = 30
)

// DefaultFiles are tried in order when no config path is given.
var DefaultFiles = []string{"config.json", "config.yaml", "config.yml"}

type Config struct {
	ChainRIC          string   `json:"chain_ric" yaml:"chain_ric"`
	StartDate         string   `json:"start_date" yaml:"start_date"`
	EndDate           string   `json:"end_date" yaml:"end_date"`
	AuthEndpoint      string   `json:"auth_endpoint" yaml:"auth_endpoint"`
	ResolveEndpoint   string   `json:"resolve_endpoint" yaml:"resolve_endpoint"`
	OutputPath        string   `json:"output_path" yaml:"output_path"`
	OutputPrefix      string   `json:"output_prefix" yaml:"output_prefix"`
	Mode              Mode     `json:"mode" yaml:"mode"`
	Columns           []string `json:"columns" yaml:"columns"`
	WaitSeconds       int      `json:"wait_seconds" yaml:"wait_seconds"`
	RequestTimeoutSec int      `json:"request_timeout_sec" yaml:"request_timeout_sec"`
	UserAgent         string   `json:"user_agent" yaml:"user_agent"`
}

func Default() Config {
	return Config{
		ChainRIC:          DefaultChainRIC,
		StartDate:         DefaultStartDate,
		EndDate:           DefaultEndDate,
		AuthEndpoint:      dss.DefaultAuthURL,
		ResolveEndpoint:   dss.DefaultResolveURL,
		OutputPath:        DefaultOutputPath,
		OutputPrefix:      DefaultOutputPrefix,
		Mode:              ModeList,
		Columns:           []string{"Identifier", "Status"},
		WaitSeconds:       dss.DefaultWaitSeconds,
		RequestTimeoutSec: DefaultRequestTimeoutSec,
		UserAgent:         "chainexpand/1.0",
	}
}

// Load reads a JSON or YAML config from path, chosen by extension. If path is
// empty the DefaultFiles are tried; if none exists the defaults are used.
// Environment variables override file values.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		for _, name := range DefaultFiles {
			if _, err := os.Stat(name); err == nil {
				path = name
				break
			}
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := decode(path, b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	applyEnv(&cfg)
	cfg.applyDefaults()
	return cfg, nil
}

func decode(path string, b []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(b, cfg)
	default:
		return json.Unmarshal(b, cfg)
	}
}

func (c *Config) applyDefaults() {
	if c.AuthEndpoint == "" {
		c.AuthEndpoint = dss.DefaultAuthURL
	}
	if c.ResolveEndpoint == "" {
		c.ResolveEndpoint = dss.DefaultResolveURL
	}
	if c.OutputPath == "" {
		c.OutputPath = DefaultOutputPath
	}
	if c.OutputPrefix == "" {
		c.OutputPrefix = DefaultOutputPrefix
	}
	if c.Mode == "" {
		c.Mode = ModeList
	}
	c.Mode = Mode(strings.ToLower(string(c.Mode)))
	if c.RequestTimeoutSec <= 0 {
		c.RequestTimeoutSec = DefaultRequestTimeoutSec
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("CHAIN_RIC"); v != "" { cfg.ChainRIC = v }
	if v := os.Getenv("CHAIN_START"); v != "" { cfg.StartDate = v }
	if v := os.Getenv("CHAIN_END"); v != "" { cfg.EndDate = v }
	if v := os.Getenv("DSS_AUTH_URL"); v != "" { cfg.AuthEndpoint = v }
	if v := os.Getenv("DSS_RESOLVE_URL"); v != "" { cfg.ResolveEndpoint = v }
	if v := os.Getenv("OUTPUT_PATH"); v != "" { cfg.OutputPath = v }
	if v := os.Getenv("OUTPUT_PREFIX"); v != "" { cfg.OutputPrefix = v }
	if v := os.Getenv("CHAIN_MODE"); v != "" { cfg.Mode = Mode(v) }
	if v := os.Getenv("CHAIN_COLUMNS"); v != "" { cfg.Columns = SplitCSV(v) }
	if v := os.Getenv("DSS_WAIT_SEC"); v != "" {
		var x int; fmt.Sscanf(v, "%d", &x); if x >= 0 { cfg.WaitSeconds = x }
	}
	if v := os.Getenv("REQUEST_TIMEOUT_SEC"); v != "" {
		var x int; fmt.Sscanf(v, "%d", &x); if x > 0 { cfg.RequestTimeoutSec = x }
	}
}

// Validate checks that the chain query can be built and the mode is known.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ChainRIC) == "" {
		return errors.New("chain_ric is required")
	}
	if _, err := c.Query(); err != nil {
		return err
	}
	switch c.Mode {
	case ModeList, ModeTable:
	default:
		return fmt.Errorf("mode must be %q or %q, got %q", ModeList, ModeTable, c.Mode)
	}
	if c.WaitSeconds < 0 {
		return errors.New("wait_seconds must be >= 0")
	}
	return nil
}

// Query builds the chain query described by c.
func (c *Config) Query() (dss.ChainQuery, error) {
	start, err := ParseDate(c.StartDate)
	if err != nil {
		return dss.ChainQuery{}, fmt.Errorf("start_date: %w", err)
	}
	end, err := ParseDate(c.EndDate)
	if err != nil {
		return dss.ChainQuery{}, fmt.Errorf("end_date: %w", err)
	}
	q := dss.ChainQuery{ChainRIC: strings.TrimSpace(c.ChainRIC), Start: start, End: end}
	if err := q.Validate(); err != nil {
		return dss.ChainQuery{}, err
	}
	return q, nil
}

// RequestTimeout returns the configured HTTP timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSec) * time.Second
}

// ParseDate accepts an RFC 3339 timestamp or a bare YYYY-MM-DD date (UTC midnight).
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want RFC 3339 or YYYY-MM-DD", s)
	}
	return t, nil
}

func SplitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" { out = append(out, p) }
	}
	return out
}
