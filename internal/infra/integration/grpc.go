package integration

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/vietddude/faultline/internal/classify"
	"github.com/vietddude/faultline/internal/metrics"
	"github.com/vietddude/faultline/internal/reporting"
)

// UnaryClientInterceptor classifies every failed unary call. The error
// handed back to the caller is the *classify.NormalizedError; the gRPC
// status stays reachable through Unwrap.
func UnaryClientInterceptor(classifier *classify.Classifier, reporter reporting.Reporter) grpc.UnaryClientInterceptor {
	if reporter == nil {
		reporter = reporting.Nop{}
	}
	service := classifier.Service()

	return func(
		ctx context.Context,
		method string,
		req, reply any,
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		start := time.Now()
		err := invoker(ctx, method, req, reply, cc, opts...)
		metrics.IntegrationLatency.WithLabelValues(service, "grpc").Observe(time.Since(start).Seconds())

		if err != nil {
			ne := classifier.Classify(err)
			metrics.IntegrationCallsTotal.WithLabelValues(service, "grpc", ne.Category().String()).Inc()
			reporter.Report(ctx, ne)
			return ne
		}
		metrics.IntegrationCallsTotal.WithLabelValues(service, "grpc", "success").Inc()
		return nil
	}
}

// DialGRPC creates a client connection with the classifying interceptor
// installed. Targets with an https:// scheme or port 443 use TLS.
func DialGRPC(
	target string,
	classifier *classify.Classifier,
	reporter reporting.Reporter,
	extra ...grpc.DialOption,
) (*grpc.ClientConn, error) {
	var opts []grpc.DialOption

	if strings.HasPrefix(target, "https://") || strings.HasSuffix(target, ":443") {
		creds := credentials.NewTLS(&tls.Config{})
		opts = append(opts, grpc.WithTransportCredentials(creds))
		target = strings.TrimPrefix(target, "https://")
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
		target = strings.TrimPrefix(target, "http://")
	}
	opts = append(opts, grpc.WithChainUnaryInterceptor(UnaryClientInterceptor(classifier, reporter)))
	opts = append(opts, extra...)

	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create grpc client for %s: %w", target, err)
	}
	return conn, nil
}

// HealthCheck asks the standard gRPC health service whether the server is
// serving. Failures come back classified.
func HealthCheck(conn *grpc.ClientConn) func(ctx context.Context) error {
	client := healthpb.NewHealthClient(conn)
	return func(ctx context.Context) error {
		resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{})
		if err != nil {
			return err
		}
		if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
			return fmt.Errorf("grpc status %s", resp.GetStatus())
		}
		return nil
	}
}
