package grpc

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/passport/internal/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

type fakeDB struct{ down atomic.Bool }

func (f *fakeDB) PingContext(context.Context) error {
	if f.down.Load() {
		return errors.New("connection refused")
	}
	return nil
}

// startHealth serves s over an in-memory listener and returns a health client.
func startHealth(t *testing.T, s *GRPCServer) healthpb.HealthClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Serve returned error on graceful stop: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Error("server did not stop within timeout after context cancel")
		}
	})
	return healthpb.NewHealthClient(conn)
}

func check(t *testing.T, c healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := c.Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		t.Fatalf("Check(%q): %v", service, err)
	}
	return resp.GetStatus()
}

func TestHealth_ServingWhenDatabaseUp(t *testing.T) {
	s := NewGRPCServer("", logging.Nop(), &fakeDB{})
	c := startHealth(t, s)

	if got := check(t, c, ""); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("overall status = %v", got)
	}
	if got := check(t, c, ServiceName); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("%s status = %v", ServiceName, got)
	}

	_, err := c.Check(context.Background(), &healthpb.HealthCheckRequest{Service: "unknown.Service"})
	if status.Code(err) != codes.NotFound {
		t.Fatalf("expected NotFound for unknown service, got %v", err)
	}
}

func TestHealth_FollowsDatabase(t *testing.T) {
	db := &fakeDB{}
	db.down.Store(true)
	s := NewGRPCServer("", logging.Nop(), db)
	s.interval = 20 * time.Millisecond
	c := startHealth(t, s)

	if got := check(t, c, ""); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("status with database down = %v", got)
	}

	db.down.Store(false)
	deadline := time.Now().Add(2 * time.Second)
	for check(t, c, "") != healthpb.HealthCheckResponse_SERVING {
		if time.Now().After(deadline) {
			t.Fatal("status did not recover after database came back")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRun_ReturnsErrorOnBadAddress(t *testing.T) {
	t.Parallel()

	srv := NewGRPCServer("127.0.0.1:99999", logging.Nop(), nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := srv.Run(ctx); err == nil {
		t.Fatal("expected error for invalid address")
	}
}

func TestLoggingInterceptor_PassesThrough(t *testing.T) {
	s := NewGRPCServer("", logging.Nop(), nil)
	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}

	wantErr := status.Error(codes.Unavailable, "down")
	resp, err := s.loggingInterceptor(context.Background(), nil, info, func(context.Context, any) (any, error) {
		return "ok", wantErr
	})
	if resp != "ok" || !errors.Is(err, wantErr) {
		t.Fatalf("interceptor changed the result: %v, %v", resp, err)
	}
}
