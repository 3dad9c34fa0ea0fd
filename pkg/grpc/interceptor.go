package grpc

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"liyu1981.xyz/hive-telemetry-service/pkg/common"
)

// credentialOf reads the credential under any accepted spelling, canonical first.
func credentialOf(req any) string {
	s, ok := req.(*structpb.Struct)
	if !ok || s == nil {
		return ""
	}
	for _, key := range []string{"credential", "key", "api_key"} {
		if v, ok := s.GetFields()[key]; ok {
			if c := strings.TrimSpace(v.GetStringValue()); c != "" {
				return c
			}
		}
	}
	return ""
}

func (s *TelemetryGrpcServer) CreateRateLimitInterceptor(targetMethods []string) grpc.UnaryServerInterceptor {
	targetMethodMap := common.Reducer(targetMethods,
		func(m map[string]bool, method string) map[string]bool {
			m[method] = true
			return m
		},
		map[string]bool{},
	)

	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		if _, ok := targetMethodMap[info.FullMethod]; ok {
			if credential := credentialOf(req); credential != "" {
				if !s.CheckCredentialLimiter(credential) {
					return nil, status.Errorf(codes.ResourceExhausted, "rate limit exceeded")
				}
			}
		}

		return handler(ctx, req)
	}
}

func (s *TelemetryGrpcServer) CreateTimeoutInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		if s.RequestTimeout <= 0 {
			return handler(ctx, req)
		}
		ctx, cancel := context.WithTimeout(ctx, s.RequestTimeout)
		defer cancel()
		return handler(ctx, req)
	}
}
