// Package config replaces the teacher's loadConfig() stub (core/main.go),
// which returned a hardcoded Config literal with a comment inviting callers
// to edit it by hand. This loads the same shape of settings from an
// optional .env file via github.com/hashicorp/go-envparse, then lets
// command-line flags parsed by github.com/spf13/pflag override anything the
// environment set — precedence order is flags > env file > built-in default.
package config

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-envparse"
	flag "github.com/spf13/pflag"
)

// Config gathers every tunable a rudp-server/rudp-client cmd/ binary
// exposes.
type Config struct {
	Host            string
	Port            int
	LogLevel        string
	ActionTimeoutMs int
	DropTimeoutMs   int
	MaxRTOMs        int
}

// Defaults returns the built-in configuration, mirroring the teacher's
// loadConfig() literal.
func Defaults() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            7777,
		LogLevel:        "info",
		ActionTimeoutMs: 5000,
		DropTimeoutMs:   10000,
		MaxRTOMs:        3000,
	}
}

// Load builds a Config by layering an optional .env file over Defaults(),
// registering pflag overrides on fs, then parsing args against fs — so the
// returned Config already reflects flags > env file > default. A missing
// envPath is not an error; fs must not have been parsed yet.
func Load(envPath string, fs *flag.FlagSet, args []string) (Config, error) {
	cfg := Defaults()

	if envPath != "" {
		if f, err := os.Open(envPath); err == nil {
			defer f.Close()
			env, perr := envparse.Parse(f)
			if perr != nil {
				return cfg, fmt.Errorf("config: parse %s: %w", envPath, perr)
			}
			applyEnv(&cfg, env)
		} else if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("config: open %s: %w", envPath, err)
		}
	}

	registerFlags(fs, &cfg)
	if err := fs.Parse(args); err != nil {
		return cfg, fmt.Errorf("config: parse flags: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config, env map[string]string) {
	if v, ok := env["RUDP_HOST"]; ok {
		cfg.Host = v
	}
	if v, ok := env["RUDP_PORT"]; ok {
		fmt.Sscanf(v, "%d", &cfg.Port)
	}
	if v, ok := env["RUDP_LOG_LEVEL"]; ok {
		cfg.LogLevel = v
	}
	if v, ok := env["RUDP_ACTION_TIMEOUT_MS"]; ok {
		fmt.Sscanf(v, "%d", &cfg.ActionTimeoutMs)
	}
	if v, ok := env["RUDP_DROP_TIMEOUT_MS"]; ok {
		fmt.Sscanf(v, "%d", &cfg.DropTimeoutMs)
	}
	if v, ok := env["RUDP_MAX_RTO_MS"]; ok {
		fmt.Sscanf(v, "%d", &cfg.MaxRTOMs)
	}
}

// registerFlags declares flags on fs bound directly to cfg's fields, so
// fs.Parse overrides cfg in place with whatever the command line supplied.
func registerFlags(fs *flag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.Host, "host", cfg.Host, "address to bind")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "UDP port to bind")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "trace|debug|info|warn|error")
	fs.IntVar(&cfg.ActionTimeoutMs, "action-timeout-ms", cfg.ActionTimeoutMs, "idle-before-keepalive interval")
	fs.IntVar(&cfg.DropTimeoutMs, "drop-timeout-ms", cfg.DropTimeoutMs, "absolute liveness deadline")
	fs.IntVar(&cfg.MaxRTOMs, "max-rto-ms", cfg.MaxRTOMs, "retransmission timeout cap")
}
