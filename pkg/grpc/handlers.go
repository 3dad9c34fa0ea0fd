package grpc

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/structpb"
	"liyu1981.xyz/hive-telemetry-service/pkg/common"
	"liyu1981.xyz/hive-telemetry-service/pkg/iot"
	"liyu1981.xyz/hive-telemetry-service/pkg/models"
)

func policyFields(p models.ThresholdPolicy) map[string]any {
	return map[string]any{
		"disconnect_voltage": p.DisconnectVoltage,
		"reconnect_voltage":  p.ReconnectVoltage,
		"enabled":            p.Enabled,
		"version":            float64(p.Version),
		"updated_at":         p.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// Failures are reported in the body, like the HTTP error envelope, so nodes read one shape.
func failureResponse(err error) (*structpb.Struct, error) {
	appErr := common.AsError(err)
	fields := map[string]any{
		"success": false,
		"kind":    string(appErr.Kind),
		"message": appErr.Message,
	}
	if appErr.Field != "" {
		fields["field"] = appErr.Field
	}
	if appErr.Kind == common.KindInternal || appErr.Kind == common.KindTransient {
		common.GetLoggerWith(common.LoggerNameGrpcServer).Error("Request failed", zap.Error(err))
	}
	return structpb.NewStruct(fields)
}

func policyResponse(p models.ThresholdPolicy) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"success": true,
		"kind":    "",
		"message": "OK",
		"policy":  policyFields(p),
	})
}

func (s *TelemetryGrpcServer) SubmitReading(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	credential, payload, err := iot.DecodeSubmission(req.AsMap())
	if err != nil {
		return failureResponse(s.Iot.Ingestion.RejectMalformed(ctx, credential, err))
	}
	if credential == "" {
		return failureResponse(iot.ErrCredentialRequired())
	}

	policy, err := s.Iot.Ingestion.Submit(ctx, credential, payload)
	if err != nil {
		return failureResponse(err)
	}
	return policyResponse(*policy)
}

func (s *TelemetryGrpcServer) GetPolicy(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	policy, err := s.Iot.Policy.Get(ctx)
	if err != nil {
		return failureResponse(err)
	}
	return policyResponse(policy)
}
