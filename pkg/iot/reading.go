package iot

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
	"liyu1981.xyz/hive-telemetry-service/pkg/common"
	"liyu1981.xyz/hive-telemetry-service/pkg/models"
)

const (
	MinTemperature = -40.0
	MaxTemperature = 85.0
	MinHumidity    = 0.0
	MaxHumidity    = 100.0
	MaxWeightKg    = 200.0
	MinVoltage     = 0.0
	MaxVoltage     = 5.5

	// linear battery model for a single lithium cell
	BatteryEmptyVoltage = 3.0
	BatteryFullVoltage  = 4.2
)

// ReadingFields are the optional sensor values of one observation.
type ReadingFields struct {
	Temperature          *float64 `json:"temperature,omitempty"`
	SecondaryTemperature *float64 `json:"secondary_temperature,omitempty"`
	Humidity             *float64 `json:"humidity,omitempty"`
	Weight               *float64 `json:"weight,omitempty"`
	BatteryVoltage       *float64 `json:"battery_voltage,omitempty"`
	BatteryPercent       *float64 `json:"battery_percent,omitempty"`
	RelayConnected       *bool    `json:"relay_connected,omitempty"`
}

// BatteryPercentFromVoltage interpolates between empty and full and clamps to [0, 100].
func BatteryPercentFromVoltage(v float64) float64 {
	pct := (v - BatteryEmptyVoltage) / (BatteryFullVoltage - BatteryEmptyVoltage) * 100
	return common.Clamp(pct, 0, 100)
}

func outOfRange(field string, v, lo, hi float64) error {
	return common.Errorf(common.KindOutOfRange, "%.2f outside plausible range [%.2f, %.2f]", v, lo, hi).
		WithField(field).
		WithDetails(map[string]float64{"value": v, "min": lo, "max": hi})
}

func rejectOutside(field string, v *float64, lo, hi float64) error {
	if v == nil {
		return nil
	}
	if !common.IsFinite(*v) {
		return common.NewError(common.KindOutOfRange, "value is not a finite number").WithField(field)
	}
	if *v < lo || *v > hi {
		return outOfRange(field, *v, lo, hi)
	}
	return nil
}

// Sanitize applies the plausibility policy: impossible raw values are rejected, noise
// shaped ones (negative weight, percent overshoot) are clamped. The input is not modified.
func (f ReadingFields) Sanitize() (ReadingFields, error) {
	out := f

	if err := rejectOutside("temperature", f.Temperature, MinTemperature, MaxTemperature); err != nil {
		return out, err
	}
	if err := rejectOutside("secondary_temperature", f.SecondaryTemperature, MinTemperature, MaxTemperature); err != nil {
		return out, err
	}
	if err := rejectOutside("humidity", f.Humidity, MinHumidity, MaxHumidity); err != nil {
		return out, err
	}
	if f.Weight != nil {
		if err := rejectOutside("weight", f.Weight, -MaxWeightKg, MaxWeightKg); err != nil {
			return out, err
		}
		out.Weight = common.Ptr(common.Clamp(*f.Weight, 0, MaxWeightKg))
	}
	if err := rejectOutside("battery_voltage", f.BatteryVoltage, MinVoltage, MaxVoltage); err != nil {
		return out, err
	}
	if f.BatteryPercent != nil {
		if !common.IsFinite(*f.BatteryPercent) {
			return out, common.NewError(common.KindOutOfRange, "value is not a finite number").WithField("battery_percent")
		}
		out.BatteryPercent = common.Ptr(common.Clamp(*f.BatteryPercent, 0, 100))
	} else if f.BatteryVoltage != nil {
		out.BatteryPercent = common.Ptr(BatteryPercentFromVoltage(*f.BatteryVoltage))
	}

	return out, nil
}

func (i *IOT) appendReading(ctx context.Context, deviceID string, fields ReadingFields, at *time.Time) (*models.Reading, error) {
	logger := common.GetCoreLogger(common.LoggerCategoryIOTReading)

	clean, err := fields.Sanitize()
	if err != nil {
		return nil, err
	}

	if _, err := i.getDevice(ctx, deviceID); err != nil {
		return nil, err
	}

	recordedAt := i.now()
	if at != nil && !at.IsZero() {
		recordedAt = at.UTC()
	}

	reading := models.Reading{
		DeviceID:             deviceID,
		RecordedAt:           recordedAt,
		Temperature:          clean.Temperature,
		SecondaryTemperature: clean.SecondaryTemperature,
		Humidity:             clean.Humidity,
		Weight:               clean.Weight,
		BatteryVoltage:       clean.BatteryVoltage,
		BatteryPercent:       clean.BatteryPercent,
		RelayConnected:       clean.RelayConnected,
	}

	if err := i.Db.Conn.WithContext(ctx).Create(&reading).Error; err != nil {
		logger.Error("Failed to append reading", zap.String("device_id", deviceID), zap.Error(err))
		return nil, common.WrapTransient(err, "append reading")
	}

	logger.Debug("Appended reading", zap.Reflect("reading", reading))
	return &reading, nil
}

func (i *IOT) latestReading(ctx context.Context, deviceID string) (*models.Reading, error) {
	var readings []models.Reading
	err := i.Db.Conn.WithContext(ctx).
		Where("device_id = ?", deviceID).
		Order("recorded_at desc, id desc").
		Limit(1).
		Find(&readings).Error
	if err != nil {
		return nil, common.WrapTransient(err, "load latest reading")
	}
	if len(readings) == 0 {
		return nil, nil
	}
	return &readings[0], nil
}

// windowReadings is oldest first; equal timestamps keep insertion order through the id.
func (i *IOT) windowReadings(ctx context.Context, deviceID string, since time.Time, until *time.Time) ([]models.Reading, error) {
	q := i.Db.Conn.WithContext(ctx).
		Where("device_id = ? AND recorded_at >= ?", deviceID, since.UTC())
	if until != nil {
		q = q.Where("recorded_at <= ?", until.UTC())
	}

	var readings []models.Reading
	if err := q.Order("recorded_at asc, id asc").Find(&readings).Error; err != nil {
		return nil, common.WrapTransient(err, "load reading window")
	}
	return readings, nil
}

type FieldStats struct {
	Count int64    `json:"count"`
	Avg   *float64 `json:"avg"`
	Min   *float64 `json:"min"`
	Max   *float64 `json:"max"`
}

type Aggregates struct {
	Since  time.Time             `json:"since"`
	Count  int64                 `json:"count"`
	Fields map[string]FieldStats `json:"fields"`
}

var aggregateColumns = []string{
	"temperature",
	"secondary_temperature",
	"humidity",
	"weight",
	"battery_voltage",
	"battery_percent",
}

func aggregateSelect() string {
	sel := "COUNT(*) AS total"
	for _, col := range aggregateColumns {
		sel += fmt.Sprintf(", COUNT(%[1]s) AS %[1]s_count, AVG(%[1]s) AS %[1]s_avg, MIN(%[1]s) AS %[1]s_min, MAX(%[1]s) AS %[1]s_max", col)
	}
	return sel
}

type columnStats struct {
	count         sql.NullInt64
	avg, min, max sql.NullFloat64
}

func nullFloat(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	return &n.Float64
}

// aggregateReadings lets SQL skip NULLs per column, so a device without a weight sensor never
// drags the weight average towards zero. An empty deviceID aggregates the whole fleet.
func (i *IOT) aggregateReadings(ctx context.Context, deviceID string, since time.Time) (*Aggregates, error) {
	q := i.Db.Conn.WithContext(ctx).
		Model(&models.Reading{}).
		Select(aggregateSelect()).
		Where("recorded_at >= ?", since.UTC())
	if deviceID != "" {
		q = q.Where("device_id = ?", deviceID)
	}

	var total sql.NullInt64
	stats := make([]columnStats, len(aggregateColumns))
	dest := []any{&total}
	for k := range stats {
		dest = append(dest, &stats[k].count, &stats[k].avg, &stats[k].min, &stats[k].max)
	}
	if err := q.Row().Scan(dest...); err != nil {
		return nil, common.WrapTransient(err, "aggregate readings")
	}

	agg := &Aggregates{Since: since.UTC(), Count: total.Int64, Fields: make(map[string]FieldStats, len(aggregateColumns))}
	for k, col := range aggregateColumns {
		agg.Fields[col] = FieldStats{
			Count: stats[k].count.Int64,
			Avg:   nullFloat(stats[k].avg),
			Min:   nullFloat(stats[k].min),
			Max:   nullFloat(stats[k].max),
		}
	}
	return agg, nil
}

// Downsample keeps every stride-th reading with stride = ceil(total/maxPoints) so a chart
// covers the whole range instead of its first maxPoints readings.
func Downsample[T any](items []T, maxPoints int) []T {
	total := len(items)
	if maxPoints <= 0 || total <= maxPoints {
		return items
	}
	stride := (total + maxPoints - 1) / maxPoints
	out := make([]T, 0, (total+stride-1)/stride)
	for idx := 0; idx < total; idx += stride {
		out = append(out, items[idx])
	}
	return out
}

type IReadingsImpl struct {
	iot *IOT
}

func (ir *IReadingsImpl) Append(ctx context.Context, deviceID string, fields ReadingFields, at *time.Time) (*models.Reading, error) {
	return ir.iot.appendReading(ctx, deviceID, fields, at)
}

func (ir *IReadingsImpl) Latest(ctx context.Context, deviceID string) (*models.Reading, error) {
	return ir.iot.latestReading(ctx, deviceID)
}

func (ir *IReadingsImpl) Window(ctx context.Context, deviceID string, since time.Time, until *time.Time) ([]models.Reading, error) {
	return ir.iot.windowReadings(ctx, deviceID, since, until)
}

func (ir *IReadingsImpl) Aggregate(ctx context.Context, deviceID string, since time.Time) (*Aggregates, error) {
	return ir.iot.aggregateReadings(ctx, deviceID, since)
}

func (i *IOT) GetIReadings() IReadings {
	return &IReadingsImpl{iot: i}
}
