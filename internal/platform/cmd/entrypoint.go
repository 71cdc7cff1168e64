// Package cmd holds the shared plumbing between a command's flags and its
// run loop.
package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/louisbranch/matchday/internal/platform/config"
	"github.com/louisbranch/matchday/internal/platform/otel"
)

// ServiceMatchday names the match day process in telemetry and logs.
const ServiceMatchday = "matchday"

const telemetryShutdownTimeout = 5 * time.Second

// ParseConfig loads environment defaults into cfg. Flags registered
// afterwards use those values as their defaults, so flags win over env.
func ParseConfig[T any](cfg *T) error {
	if cfg == nil {
		return errors.New("config target is required")
	}
	return config.ParseEnv(cfg)
}

// ParseArgs parses command-line flags.
func ParseArgs(fs *flag.FlagSet, args []string) error {
	if fs == nil {
		return errors.New("flag parser is required")
	}
	if args == nil {
		args = []string{}
	}
	return fs.Parse(args)
}

// RunWithTelemetry sets up tracing for service, runs run and flushes spans
// once run returns.
func RunWithTelemetry(ctx context.Context, service string, run func(context.Context) error) error {
	service = strings.TrimSpace(service)
	if service == "" {
		return errors.New("service name is required")
	}
	if run == nil {
		return errors.New("run function is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	shutdown, err := otel.Setup(ctx, service)
	if err != nil {
		return fmt.Errorf("%s telemetry: %w", service, err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			log.Printf("%s: otel shutdown: %v", service, err)
		}
	}()

	started := time.Now()
	log.Printf("%s: starting", service)
	err = run(ctx)
	log.Printf("%s: stopped after=%s", service, time.Since(started).Round(time.Millisecond))
	return err
}
