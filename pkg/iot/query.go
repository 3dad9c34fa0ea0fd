package iot

import (
	"context"
	"time"

	"go.uber.org/zap"
	"liyu1981.xyz/hive-telemetry-service/pkg/common"
	"liyu1981.xyz/hive-telemetry-service/pkg/models"
)

// Range is one of the dashboard windows.
type Range string

const (
	Range24h Range = "24h"
	Range7d  Range = "7d"
	Range30d Range = "30d"
)

var rangeDurations = map[Range]time.Duration{
	Range24h: 24 * time.Hour,
	Range7d:  7 * 24 * time.Hour,
	Range30d: 30 * 24 * time.Hour,
}

// ParseRange defaults to 24h when raw is empty.
func ParseRange(raw string) (Range, error) {
	if raw == "" {
		return Range24h, nil
	}
	r := Range(raw)
	if _, ok := rangeDurations[r]; !ok {
		return "", common.Errorf(common.KindInvalidPayload, "range %q must be one of 24h, 7d, 30d", raw).WithField("range")
	}
	return r, nil
}

func (r Range) Since(now time.Time) time.Time {
	d, ok := rangeDurations[r]
	if !ok {
		d = rangeDurations[Range24h]
	}
	return now.Add(-d)
}

type DeviceStatus struct {
	Device models.Device   `json:"device"`
	Latest *models.Reading `json:"latest"`
	Online bool            `json:"online"`
}

type DeviceDetail struct {
	Device        models.Device    `json:"device"`
	Range         Range            `json:"range"`
	Since         time.Time        `json:"since"`
	Online        bool             `json:"online"`
	Latest        *models.Reading  `json:"latest"`
	TotalReadings int              `json:"total_readings"`
	Readings      []models.Reading `json:"readings"`
	Aggregates    *Aggregates      `json:"aggregates"`
}

type ExportRow struct {
	DeviceName string `json:"device_name"`
	models.Reading
}

// IsOnline infers liveness from recency; a device with no readings is offline.
func IsOnline(latest *models.Reading, now time.Time, threshold time.Duration) bool {
	if latest == nil {
		return false
	}
	return now.Sub(latest.RecordedAt) < threshold
}

func (i *IOT) listDevicesWithStatus(ctx context.Context) ([]DeviceStatus, error) {
	devices, err := i.Registry.List(ctx, false)
	if err != nil {
		return nil, err
	}

	now := i.now()
	statuses := make([]DeviceStatus, 0, len(devices))
	for _, device := range devices {
		latest, err := i.Readings.Latest(ctx, device.ID)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, DeviceStatus{
			Device: device,
			Latest: latest,
			Online: IsOnline(latest, now, i.Opts.OnlineThreshold),
		})
	}
	return statuses, nil
}

func (i *IOT) detailFor(ctx context.Context, deviceID string, r Range) (*DeviceDetail, error) {
	device, err := i.Registry.Get(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	now := i.now()
	since := r.Since(now)

	readings, err := i.Readings.Window(ctx, deviceID, since, nil)
	if err != nil {
		return nil, err
	}
	aggregates, err := i.Readings.Aggregate(ctx, deviceID, since)
	if err != nil {
		return nil, err
	}
	latest, err := i.Readings.Latest(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	sampled := Downsample(readings, i.Opts.MaxChartPoints)
	if sampled == nil {
		sampled = []models.Reading{}
	}

	common.GetCoreLogger(common.LoggerCategoryIOTQuery).Debug("Built device detail",
		zap.String("device_id", deviceID),
		zap.String("range", string(r)),
		zap.Int("total", len(readings)),
		zap.Int("sampled", len(sampled)),
	)

	return &DeviceDetail{
		Device:        *device,
		Range:         r,
		Since:         since,
		Online:        IsOnline(latest, now, i.Opts.OnlineThreshold),
		Latest:        latest,
		TotalReadings: len(readings),
		Readings:      sampled,
		Aggregates:    aggregates,
	}, nil
}

func (i *IOT) summary(ctx context.Context, r Range) (*Aggregates, error) {
	return i.Readings.Aggregate(ctx, "", r.Since(i.now()))
}

// export includes readings of deactivated devices; history stays intact.
func (i *IOT) export(ctx context.Context, r Range) ([]ExportRow, error) {
	devices, err := i.Registry.List(ctx, true)
	if err != nil {
		return nil, err
	}

	since := r.Since(i.now())
	rows := []ExportRow{}
	for _, device := range devices {
		readings, err := i.Readings.Window(ctx, device.ID, since, nil)
		if err != nil {
			return nil, err
		}
		for _, reading := range readings {
			rows = append(rows, ExportRow{DeviceName: device.Name, Reading: reading})
		}
	}
	return rows, nil
}

type IQueryImpl struct {
	iot *IOT
}

func (iq *IQueryImpl) ListDevicesWithStatus(ctx context.Context) ([]DeviceStatus, error) {
	return iq.iot.listDevicesWithStatus(ctx)
}

func (iq *IQueryImpl) DetailFor(ctx context.Context, deviceID string, r Range) (*DeviceDetail, error) {
	return iq.iot.detailFor(ctx, deviceID, r)
}

func (iq *IQueryImpl) Summary(ctx context.Context, r Range) (*Aggregates, error) {
	return iq.iot.summary(ctx, r)
}

func (iq *IQueryImpl) Export(ctx context.Context, r Range) ([]ExportRow, error) {
	return iq.iot.export(ctx, r)
}

func (i *IOT) GetIQuery() IQuery {
	return &IQueryImpl{iot: i}
}
