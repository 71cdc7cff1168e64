// Package grpc holds the client side of the match day gRPC health endpoint.
package grpc

import (
	"context"
	"fmt"
	"time"

	"github.com/louisbranch/matchday/internal/platform/timeouts"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// ProbeStage says where a probe gave up.
type ProbeStage string

const (
	// ProbeStageConnect means the client could not be built for the target.
	ProbeStageConnect ProbeStage = "connect"
	// ProbeStageHealth means the endpoint never reported SERVING.
	ProbeStageHealth ProbeStage = "health"
)

// ProbeError wraps a probe failure with its stage.
type ProbeError struct {
	Stage ProbeStage
	Err   error
}

func (e *ProbeError) Error() string {
	if e == nil {
		return "gRPC probe error"
	}
	return fmt.Sprintf("gRPC %s error: %v", e.Stage, e.Err)
}

func (e *ProbeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ClientOptions returns the dial options for local health clients, traced
// through otelgrpc when a tracer provider is registered.
func ClientOptions() []gogrpc.DialOption {
	return []gogrpc.DialOption{
		gogrpc.WithTransportCredentials(insecure.NewCredentials()),
		gogrpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	}
}

// Connect opens a client for addr and waits until service reports SERVING
// or timeout elapses. A zero timeout uses timeouts.GRPCDial.
func Connect(ctx context.Context, addr, service string, timeout time.Duration, logf func(string, ...any)) (*gogrpc.ClientConn, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout <= 0 {
		timeout = timeouts.GRPCDial
	}
	conn, err := gogrpc.NewClient(addr, ClientOptions()...)
	if err != nil {
		return nil, &ProbeError{Stage: ProbeStageConnect, Err: err}
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := WaitServing(waitCtx, conn, service, logf); err != nil {
		_ = conn.Close()
		return nil, &ProbeError{Stage: ProbeStageHealth, Err: err}
	}
	return conn, nil
}

// Probe reports whether service at addr becomes SERVING within timeout.
func Probe(ctx context.Context, addr, service string, timeout time.Duration, logf func(string, ...any)) error {
	conn, err := Connect(ctx, addr, service, timeout, logf)
	if err != nil {
		return err
	}
	return conn.Close()
}

// WaitServing polls the health service with capped backoff until it reports
// SERVING or ctx ends.
func WaitServing(ctx context.Context, conn *gogrpc.ClientConn, service string, logf func(string, ...any)) error {
	if conn == nil {
		return fmt.Errorf("gRPC connection is not configured")
	}
	client := grpc_health_v1.NewHealthClient(conn)
	backoff := 100 * time.Millisecond
	for {
		callCtx, cancel := context.WithTimeout(ctx, timeouts.HealthCheck)
		resp, err := client.Check(callCtx, &grpc_health_v1.HealthCheckRequest{Service: service})
		cancel()
		if err == nil && resp.GetStatus() == grpc_health_v1.HealthCheckResponse_SERVING {
			return nil
		}
		if logf != nil {
			if err != nil {
				logf("health: waiting service=%q err=%v", service, err)
			} else {
				logf("health: waiting service=%q status=%s", service, resp.GetStatus())
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for health: %w", ctx.Err())
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, time.Second)
	}
}
