package server

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	platformgrpc "github.com/louisbranch/matchday/internal/platform/grpc"
	"github.com/louisbranch/matchday/internal/platform/timeouts"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

func TestOpenStoreInvalidDir(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, []byte("data"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := openStore(filepath.Join(file, "matchday.db")); err == nil {
		t.Fatal("expected error for invalid storage dir")
	}
}

func TestNewRejectsInvalidTeamSize(t *testing.T) {
	_, err := New(Config{
		HTTPAddr: "127.0.0.1:0",
		GRPCAddr: "127.0.0.1:0",
		DBPath:   filepath.Join(t.TempDir(), "matchday.db"),
		TeamSize: 2,
	})
	if err == nil {
		t.Fatal("expected team size error")
	}
}

func TestServeHealthAndShutdown(t *testing.T) {
	server, err := New(Config{
		HTTPAddr: "127.0.0.1:0",
		GRPCAddr: "127.0.0.1:0",
		DBPath:   filepath.Join(t.TempDir(), "nested", "matchday.db"),
		DrawSeed: 42,
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- server.Serve(ctx)
	}()

	dialCtx, dialCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer dialCancel()
	conn, err := platformgrpc.Connect(dialCtx, server.GRPCAddr(), HealthService, timeouts.GRPCDial, nil)
	if err != nil {
		cancel()
		t.Fatalf("dial health: %v", err)
	}
	defer conn.Close()

	resp, err := grpc_health_v1.NewHealthClient(conn).Check(dialCtx, &grpc_health_v1.HealthCheckRequest{Service: HealthService})
	if err != nil {
		cancel()
		t.Fatalf("health check: %v", err)
	}
	if resp.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
		cancel()
		t.Fatalf("status = %s, want SERVING", resp.GetStatus())
	}

	httpResp, err := http.Get("http://" + server.HTTPAddr() + "/up")
	if err != nil {
		cancel()
		t.Fatalf("get /up: %v", err)
	}
	_ = httpResp.Body.Close()
	if httpResp.StatusCode != http.StatusOK {
		cancel()
		t.Fatalf("/up status = %d, want 200", httpResp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for shutdown")
	}
}
