package grpcapi

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teresa-solution/tenant-provisioning-service/internal/apperr"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type stubChecker struct{}

func (stubChecker) CheckSubdomain(ctx context.Context, subdomain string) (bool, error) {
	switch subdomain {
	case "taken":
		return false, nil
	case "Bad!":
		return false, apperr.Invalid("Subdomain must contain only lowercase letters, numbers, and hyphens")
	case "boom":
		return false, errors.New("connection reset by peer")
	}
	return true, nil
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(ctx context.Context) error { return p.err }

func startServer(t *testing.T) (*Server, *grpc.ClientConn) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := NewServer(stubChecker{}, zerolog.Nop())
	go func() { _ = srv.GRPC.Serve(lis) }()
	t.Cleanup(srv.GracefulStop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return srv, conn
}

func checkSubdomain(ctx context.Context, conn *grpc.ClientConn, subdomain string) (*wrapperspb.BoolValue, error) {
	out := new(wrapperspb.BoolValue)
	err := conn.Invoke(ctx, "/"+ServiceName+"/CheckSubdomain", wrapperspb.String(subdomain), out)
	return out, err
}

func TestCheckSubdomain(t *testing.T) {
	_, conn := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := checkSubdomain(ctx, conn, "fresh")
	require.NoError(t, err)
	assert.True(t, res.GetValue())

	res, err = checkSubdomain(ctx, conn, "taken")
	require.NoError(t, err)
	assert.False(t, res.GetValue())

	_, err = checkSubdomain(ctx, conn, "Bad!")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = checkSubdomain(ctx, conn, "boom")
	assert.Equal(t, codes.Internal, status.Code(err))
	assert.NotContains(t, status.Convert(err).Message(), "connection reset")
}

func TestHealthMonitoring(t *testing.T) {
	srv, conn := startServer(t)
	client := healthpb.NewHealthClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	srv.SetServing(false)
	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.GetStatus())

	mctx, mcancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		srv.MonitorHealth(mctx, time.Hour, map[string]Pinger{"directory": stubPinger{}})
		close(done)
	}()

	assert.Eventually(t, func() bool {
		resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{})
		return err == nil && resp.GetStatus() == healthpb.HealthCheckResponse_SERVING
	}, 3*time.Second, 20*time.Millisecond)

	mcancel()
	<-done
}
