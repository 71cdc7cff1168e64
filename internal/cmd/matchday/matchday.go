// Package matchday parses match day command flags and composes the service entrypoint.
package matchday

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"strings"
	"time"

	entrypoint "github.com/louisbranch/matchday/internal/platform/cmd"
	platformgrpc "github.com/louisbranch/matchday/internal/platform/grpc"
	server "github.com/louisbranch/matchday/internal/services/matchday/app"
)

// Config holds match day command configuration.
type Config struct {
	HTTPAddr       string        `env:"MATCHDAY_HTTP_ADDR"             envDefault:":8080"`
	GRPCAddr       string        `env:"MATCHDAY_GRPC_ADDR"             envDefault:":8081"`
	DBPath         string        `env:"MATCHDAY_DB_PATH"               envDefault:"data/matchday.db"`
	TeamSize       int           `env:"MATCHDAY_MAX_PLAYERS_PER_TEAM"  envDefault:"5"`
	Threshold      int           `env:"MATCHDAY_WIN_STREAK_THRESHOLD"  envDefault:"3"`
	DrawSeed       int64         `env:"MATCHDAY_DRAW_SEED"             envDefault:"0"`
	Heartbeat      time.Duration `env:"MATCHDAY_HEARTBEAT_INTERVAL"    envDefault:"15s"`
	StatsTTL       time.Duration `env:"MATCHDAY_STATS_CACHE_TTL"       envDefault:"60s"`
	AllowedOrigins []string      `env:"MATCHDAY_CORS_ORIGINS"          envSeparator:","`

	// Probe checks a running server's health endpoint instead of serving.
	Probe        bool
	ProbeTimeout time.Duration `env:"MATCHDAY_PROBE_TIMEOUT"         envDefault:"2s"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP API listen address")
	fs.StringVar(&cfg.GRPCAddr, "grpc-addr", cfg.GRPCAddr, "gRPC health listen address")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "SQLite database path")
	fs.IntVar(&cfg.TeamSize, "team-size", cfg.TeamSize, "maximum players per team")
	fs.IntVar(&cfg.Threshold, "win-streak", cfg.Threshold, "consecutive wins that force a rotation")
	fs.Int64Var(&cfg.DrawSeed, "draw-seed", cfg.DrawSeed, "fixed draw seed, 0 for random")
	fs.DurationVar(&cfg.Heartbeat, "heartbeat", cfg.Heartbeat, "live viewer heartbeat interval")
	fs.DurationVar(&cfg.StatsTTL, "stats-ttl", cfg.StatsTTL, "aggregate stats cache TTL")
	fs.Func("cors-origins", "comma-separated CORS origins, empty allows any", func(value string) error {
		cfg.AllowedOrigins = splitList(value)
		return nil
	})
	fs.BoolVar(&cfg.Probe, "probe", false, "check the gRPC health endpoint and exit")
	fs.DurationVar(&cfg.ProbeTimeout, "probe-timeout", cfg.ProbeTimeout, "how long -probe waits for SERVING")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if cfg.TeamSize < 3 {
		return Config{}, fmt.Errorf("team size must be at least 3, got %d", cfg.TeamSize)
	}
	if cfg.Threshold < 1 {
		return Config{}, fmt.Errorf("win streak threshold must be positive, got %d", cfg.Threshold)
	}
	return cfg, nil
}

// Run builds the match day app and serves until ctx ends.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceMatchday, func(ctx context.Context) error {
		if err := server.Run(ctx, server.Config{
			HTTPAddr:       cfg.HTTPAddr,
			GRPCAddr:       cfg.GRPCAddr,
			DBPath:         cfg.DBPath,
			TeamSize:       cfg.TeamSize,
			Threshold:      cfg.Threshold,
			DrawSeed:       cfg.DrawSeed,
			Heartbeat:      cfg.Heartbeat,
			StatsTTL:       cfg.StatsTTL,
			AllowedOrigins: cfg.AllowedOrigins,
		}); err != nil {
			return fmt.Errorf("serve matchday: %w", err)
		}
		return nil
	})
}

// RunProbe reports whether the server configured by cfg is serving.
func RunProbe(ctx context.Context, cfg Config) error {
	target := probeTarget(cfg.GRPCAddr)
	if err := platformgrpc.Probe(ctx, target, server.HealthService, cfg.ProbeTimeout, log.Printf); err != nil {
		return fmt.Errorf("probe %s: %w", target, err)
	}
	log.Printf("matchday: probe ok addr=%q", target)
	return nil
}

// probeTarget turns a listen address such as ":8081" into a dialable one.
func probeTarget(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
