// Package grpcapi exposes the tenant directory and health over gRPC.
package grpcapi

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/teresa-solution/tenant-provisioning-service/internal/apperr"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified name of the directory service
const ServiceName = "tenants.v1.TenantDirectory"

// SubdomainChecker answers availability queries
type SubdomainChecker interface {
	CheckSubdomain(ctx context.Context, subdomain string) (bool, error)
}

// Pinger reports reachability of a dependency
type Pinger interface {
	Ping(ctx context.Context) error
}

// TenantDirectoryServer is the server API of TenantDirectory
type TenantDirectoryServer interface {
	CheckSubdomain(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.BoolValue, error)
}

// DirectoryServer implements TenantDirectoryServer
type DirectoryServer struct {
	checker SubdomainChecker
	logger  zerolog.Logger
}

// CheckSubdomain reports whether a subdomain is free for a new tenant
func (s *DirectoryServer) CheckSubdomain(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	available, err := s.checker.CheckSubdomain(ctx, req.GetValue())
	if err != nil {
		return nil, toStatus(s.logger, err)
	}
	return wrapperspb.Bool(available), nil
}

func toStatus(logger zerolog.Logger, err error) error {
	e, ok := apperr.As(err)
	if !ok {
		logger.Error().Err(err).Msg("grpc request failed")
		return status.Error(codes.Internal, "internal error")
	}
	switch e.Code {
	case apperr.CodeInvalidInput:
		return status.Error(codes.InvalidArgument, e.Message)
	case apperr.CodeNotFound:
		return status.Error(codes.NotFound, e.Message)
	case apperr.CodeDuplicateTenant:
		return status.Error(codes.AlreadyExists, e.Message)
	default:
		logger.Error().Err(err).Msg("grpc request failed")
		return status.Error(codes.Internal, e.Message)
	}
}

func checkSubdomainHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TenantDirectoryServer).CheckSubdomain(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/CheckSubdomain"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TenantDirectoryServer).CheckSubdomain(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

var directoryServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TenantDirectoryServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CheckSubdomain", Handler: checkSubdomainHandler},
	},
	Streams: []grpc.StreamDesc{},
}

// Server bundles the gRPC server with its health service
type Server struct {
	GRPC   *grpc.Server
	health *health.Server
	logger zerolog.Logger
}

// NewServer registers the directory, health and reflection services
func NewServer(checker SubdomainChecker, logger zerolog.Logger) *Server {
	logger = logger.With().Str("component", "grpc").Logger()
	s := &Server{
		GRPC:   grpc.NewServer(grpc.UnaryInterceptor(loggingInterceptor(logger))),
		health: health.NewServer(),
		logger: logger,
	}
	s.GRPC.RegisterService(&directoryServiceDesc, &DirectoryServer{checker: checker, logger: logger})
	healthpb.RegisterHealthServer(s.GRPC, s.health)
	reflection.Register(s.GRPC)
	return s
}

// SetServing updates the overall and per-service health status
func (s *Server) SetServing(serving bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}

// MonitorHealth pings checks every interval and reflects the result in the
// health service until ctx is done.
func (s *Server) MonitorHealth(ctx context.Context, interval time.Duration, checks map[string]Pinger) {
	pingAll := func() {
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		serving := true
		for name, p := range checks {
			if err := p.Ping(pctx); err != nil {
				s.logger.Warn().Err(err).Str("check", name).Msg("dependency unhealthy")
				serving = false
			}
		}
		s.SetServing(serving)
	}

	pingAll()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingAll()
		}
	}
}

// GracefulStop marks the server as not serving and drains it
func (s *Server) GracefulStop() {
	s.health.Shutdown()
	s.GRPC.GracefulStop()
}

func loggingInterceptor(logger zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Debug().
			Str("method", info.FullMethod).
			Str("code", status.Code(err).String()).
			Dur("latency", time.Since(start)).
			Msg("rpc")
		return resp, err
	}
}
