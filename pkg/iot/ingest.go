package iot

import (
	"context"
	"time"

	"go.uber.org/zap"
	"liyu1981.xyz/hive-telemetry-service/pkg/common"
	"liyu1981.xyz/hive-telemetry-service/pkg/metrics"
	"liyu1981.xyz/hive-telemetry-service/pkg/models"
)

// MaxClockSkew bounds how far into the future a backfilled recorded_at may point.
const MaxClockSkew = time.Minute

// Payload is the canonical inbound reading, after legacy aliases were folded at the boundary.
type Payload struct {
	ReadingFields
	RecordedAt *time.Time `json:"recorded_at,omitempty"`
}

func errUnauthorized() *common.Error {
	return common.NewError(common.KindUnauthorized, "credential not recognised")
}

func (i *IOT) validatePayload(payload Payload) error {
	if payload.Temperature == nil {
		return common.NewError(common.KindInvalidPayload, "temperature is required").WithField("temperature")
	}
	if payload.RecordedAt != nil && payload.RecordedAt.After(i.now().Add(MaxClockSkew)) {
		return common.Errorf(common.KindInvalidPayload, "recorded_at %s is in the future", payload.RecordedAt.UTC().Format(time.RFC3339)).
			WithField("recorded_at")
	}
	if _, err := payload.ReadingFields.Sanitize(); err != nil {
		return err
	}
	return nil
}

// submit authenticates, validates, persists and answers with the live policy. Duplicate
// submissions create duplicate readings; devices send no idempotency key.
func (i *IOT) submit(ctx context.Context, credential string, payload Payload) (policy *models.ThresholdPolicy, err error) {
	logger := common.GetCoreLogger(common.LoggerCategoryIOTIngest)

	defer func() {
		metrics.ObserveIngest(string(common.KindOf(err)))
	}()

	device, err := i.Registry.ResolveByCredential(ctx, credential)
	if err != nil {
		if common.IsKind(err, common.KindNotFound) {
			logger.Info("Rejected reading with unknown credential")
			return nil, errUnauthorized()
		}
		return nil, err
	}

	if err := i.validatePayload(payload); err != nil {
		logger.Info("Rejected reading", zap.String("device_id", device.ID), zap.Error(err))
		return nil, err
	}

	reading, err := i.Readings.Append(ctx, device.ID, payload.ReadingFields, payload.RecordedAt)
	if err != nil {
		return nil, err
	}

	logger.Info("Accepted reading", zap.String("device_id", device.ID), zap.Uint("reading_id", reading.ID))

	for _, sink := range i.sinks {
		sink.Publish(ctx, *device, *reading)
	}

	current, err := i.Policy.Get(ctx)
	if err != nil {
		return nil, err
	}
	return &current, nil
}

type IIngestionImpl struct {
	iot *IOT
}

func (ii *IIngestionImpl) Submit(ctx context.Context, credential string, payload Payload) (*models.ThresholdPolicy, error) {
	return ii.iot.submit(ctx, credential, payload)
}

func (ii *IIngestionImpl) RejectMalformed(ctx context.Context, credential string, decodeErr error) error {
	return ii.iot.rejectMalformed(ctx, credential, decodeErr)
}

func (i *IOT) GetIIngestion() IIngestion {
	return &IIngestionImpl{iot: i}
}
