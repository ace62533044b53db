package statussvc

import (
	"context"
	"net"
	"testing"

	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

func dialHealthClient(t *testing.T, s *Server) (healthpb.HealthClient, func()) {
	t.Helper()
	lis := bufconn.Listen(1024 * 1024)

	go func() {
		s.grpcServer.Serve(lis)
	}()

	conn, err := grpc.DialContext(context.Background(), "bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithInsecure(),
		grpc.WithBlock(),
	)
	if err != nil {
		t.Fatalf("grpc.DialContext: %v", err)
	}

	return healthpb.NewHealthClient(conn), func() {
		conn.Close()
		s.Stop()
	}
}

func TestNewServerStartsNotServing(t *testing.T) {
	s := New()
	client, closeFn := dialHealthClient(t, s)
	defer closeFn()

	resp, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: serviceName})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if resp.Status != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("status = %v, want NOT_SERVING", resp.Status)
	}
}

func TestSetServingFlipsStatus(t *testing.T) {
	s := New()
	client, closeFn := dialHealthClient(t, s)
	defer closeFn()

	s.SetServing(true)
	resp, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: serviceName})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if resp.Status != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("status = %v, want SERVING", resp.Status)
	}

	s.SetServing(false)
	resp, err = client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: serviceName})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if resp.Status != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("status = %v, want NOT_SERVING", resp.Status)
	}
}
