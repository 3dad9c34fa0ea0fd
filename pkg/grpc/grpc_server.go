package grpc

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"liyu1981.xyz/hive-telemetry-service/pkg/common"
	"liyu1981.xyz/hive-telemetry-service/pkg/iot"
)

type TelemetryGrpcServer struct {
	Iot              *iot.IOT
	RateLimiterStore *iot.RateLimiterStore
	RequestTimeout   time.Duration
}

func (s *TelemetryGrpcServer) GetLimiter(credential string) *rate.Limiter {
	if s.RateLimiterStore == nil {
		return nil
	} else {
		return s.RateLimiterStore.GetLimiter(credential)
	}
}

func (s *TelemetryGrpcServer) CheckCredentialLimiter(credential string) bool {
	limiter := s.GetLimiter(credential)
	if limiter == nil {
		return true
	}
	return limiter.Allow()
}

// NewServer builds a grpc.Server with the telemetry service and its interceptors registered.
func (s *TelemetryGrpcServer) NewServer(opts ...grpc.ServerOption) *grpc.Server {
	interceptors := grpc.ChainUnaryInterceptor(
		s.CreateTimeoutInterceptor(),
		s.CreateRateLimitInterceptor([]string{SubmitReadingMethod}),
	)
	server := grpc.NewServer(append([]grpc.ServerOption{interceptors}, opts...)...)
	RegisterTelemetryServer(server, s)
	return server
}

// ListenAndServe blocks until ctx is cancelled, then stops gracefully.
func (s *TelemetryGrpcServer) ListenAndServe(ctx context.Context, addr string) error {
	logger := common.GetLoggerWith(common.LoggerNameGrpcServer, zap.String("addr", addr))

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	server := s.NewServer()

	go func() {
		<-ctx.Done()
		logger.Info("Stopping grpc server")
		server.GracefulStop()
	}()

	logger.Info("Serving grpc")
	return server.Serve(lis)
}
