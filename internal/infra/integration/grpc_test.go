package integration

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/vietddude/faultline/internal/classify"
)

func TestUnaryClientInterceptor(t *testing.T) {
	rec := &recorder{}
	interceptor := UnaryClientInterceptor(classify.New("vertex", nil), rec)

	failing := func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		return status.Error(codes.Unavailable, "backend down")
	}
	err := interceptor(context.Background(), "/svc/Generate", nil, nil, nil, failing)

	ne, ok := classify.As(err)
	if !ok {
		t.Fatalf("expected NormalizedError, got %T", err)
	}
	if !ne.IsServer() || !ne.IsRetryable() || ne.StatusCode() != 503 {
		t.Errorf("got %s/%v status=%d", ne.Category(), ne.IsRetryable(), ne.StatusCode())
	}
	if status.Code(ne.Cause().(error)) != codes.Unavailable {
		t.Error("gRPC status should be kept as the cause")
	}
	if len(rec.got) != 1 {
		t.Errorf("reported %d errors, want 1", len(rec.got))
	}

	ok2 := func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		return nil
	}
	if err := interceptor(context.Background(), "/svc/Generate", nil, nil, nil, ok2); err != nil {
		t.Errorf("success should pass through, got %v", err)
	}
	if len(rec.got) != 1 {
		t.Error("success should not be reported")
	}
}

func TestDialGRPC(t *testing.T) {
	tests := []string{"localhost:50051", "http://localhost:50051", "https://api.example.com", "api.example.com:443"}
	for _, target := range tests {
		conn, err := DialGRPC(target, classify.New("acme", nil), nil)
		if err != nil {
			t.Errorf("DialGRPC(%q): %v", target, err)
			continue
		}
		_ = conn.Close()
	}
}

func TestHealthCheck(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	hs := health.NewServer()
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	go func() { _ = srv.Serve(lis) }()
	defer srv.Stop()

	rec := &recorder{}
	conn, err := DialGRPC(lis.Addr().String(), classify.New("vertex", nil), rec)
	if err != nil {
		t.Fatalf("DialGRPC: %v", err)
	}
	defer func() { _ = conn.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	check := HealthCheck(conn)
	if err := check(ctx); err != nil {
		t.Fatalf("serving server reported unhealthy: %v", err)
	}

	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	if err := check(ctx); err == nil {
		t.Error("NOT_SERVING should fail the check")
	}

	hs.Shutdown()
	srv.Stop()
	err = check(ctx)
	if _, ok := classify.As(err); !ok {
		t.Errorf("transport failure should come back classified, got %T %v", err, err)
	}
	if len(rec.got) == 0 {
		t.Error("failed call should be reported")
	}
}
