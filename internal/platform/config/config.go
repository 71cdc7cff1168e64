// Package config loads process settings from the environment and reports
// fatal startup errors.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
)

var (
	stderr io.Writer = os.Stderr
	exit             = os.Exit
)

// ParseEnv fills target from its env struct tags. When several variables
// are malformed every one of them is reported, one per clause.
func ParseEnv(target any) error {
	err := env.Parse(target)
	if err == nil {
		return nil
	}
	var aggregate env.AggregateError
	if errors.As(err, &aggregate) && len(aggregate.Errors) > 1 {
		parts := make([]string, 0, len(aggregate.Errors))
		for _, item := range aggregate.Errors {
			parts = append(parts, item.Error())
		}
		return fmt.Errorf("parse env: %s", strings.Join(parts, "; "))
	}
	return fmt.Errorf("parse env: %w", err)
}

// Exitf writes a formatted message to stderr and exits with code 1.
func Exitf(format string, args ...any) {
	fmt.Fprintf(stderr, format+"\n", args...)
	exit(1)
}
