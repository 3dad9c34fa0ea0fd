package iot

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liyu1981.xyz/hive-telemetry-service/pkg/common"
	"liyu1981.xyz/hive-telemetry-service/pkg/models"
	_ "liyu1981.xyz/hive-telemetry-service/pkg/testing"
)

func TestBatteryPercentFromVoltage(t *testing.T) {
	cases := map[float64]float64{
		2.5: 0,
		3.0: 0,
		3.6: 50,
		4.2: 100,
		4.5: 100,
	}
	for v, want := range cases {
		assert.InDelta(t, want, BatteryPercentFromVoltage(v), 1e-9, "voltage %.2f", v)
	}
}

func TestSanitize(t *testing.T) {
	cases := []struct {
		name    string
		in      ReadingFields
		kind    common.ErrorKind
		field   string
		weight  *float64
		percent *float64
	}{
		{name: "plain", in: ReadingFields{Temperature: common.Ptr(21.5)}},
		{name: "coldest accepted", in: ReadingFields{Temperature: common.Ptr(-40.0)}},
		{name: "hottest accepted", in: ReadingFields{Temperature: common.Ptr(85.0), SecondaryTemperature: common.Ptr(-40.0)}},
		{name: "humidity bounds", in: ReadingFields{Temperature: common.Ptr(20.0), Humidity: common.Ptr(100.0)}},
		{name: "voltage ceiling", in: ReadingFields{BatteryVoltage: common.Ptr(5.5)}},
		{name: "just over hottest", in: ReadingFields{Temperature: common.Ptr(85.01)}, kind: common.KindOutOfRange, field: "temperature"},
		{name: "too hot", in: ReadingFields{Temperature: common.Ptr(120.0)}, kind: common.KindOutOfRange, field: "temperature"},
		{name: "too cold", in: ReadingFields{Temperature: common.Ptr(-41.0)}, kind: common.KindOutOfRange, field: "temperature"},
		{name: "secondary too hot", in: ReadingFields{SecondaryTemperature: common.Ptr(90.0)}, kind: common.KindOutOfRange, field: "secondary_temperature"},
		{name: "humidity over", in: ReadingFields{Humidity: common.Ptr(101.0)}, kind: common.KindOutOfRange, field: "humidity"},
		{name: "nan", in: ReadingFields{Temperature: common.Ptr(math.NaN())}, kind: common.KindOutOfRange, field: "temperature"},
		{name: "inf voltage", in: ReadingFields{BatteryVoltage: common.Ptr(math.Inf(1))}, kind: common.KindOutOfRange, field: "battery_voltage"},
		{name: "voltage over", in: ReadingFields{BatteryVoltage: common.Ptr(6.0)}, kind: common.KindOutOfRange, field: "battery_voltage"},
		{name: "heavy", in: ReadingFields{Weight: common.Ptr(250.0)}, kind: common.KindOutOfRange, field: "weight"},
		{name: "slightly negative weight", in: ReadingFields{Weight: common.Ptr(-0.4)}, weight: common.Ptr(0.0)},
		{name: "percent overshoot", in: ReadingFields{BatteryPercent: common.Ptr(102.0)}, percent: common.Ptr(100.0)},
		{name: "percent derived", in: ReadingFields{BatteryVoltage: common.Ptr(3.9)}, percent: common.Ptr(75.0)},
		{name: "reported percent wins", in: ReadingFields{BatteryVoltage: common.Ptr(3.9), BatteryPercent: common.Ptr(40.0)}, percent: common.Ptr(40.0)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := tc.in.Sanitize()
			if tc.kind != "" {
				require.Error(t, err)
				assert.Equal(t, tc.kind, common.KindOf(err))
				assert.Equal(t, tc.field, common.AsError(err).Field)
				return
			}
			require.NoError(t, err)
			if tc.weight != nil {
				require.NotNil(t, out.Weight)
				assert.InDelta(t, *tc.weight, *out.Weight, 1e-9)
			}
			if tc.percent != nil {
				require.NotNil(t, out.BatteryPercent)
				assert.InDelta(t, *tc.percent, *out.BatteryPercent, 1e-9)
			}
		})
	}
}

func TestSanitize_DoesNotMutateInput(t *testing.T) {
	in := ReadingFields{Weight: common.Ptr(-1.0)}
	_, err := in.Sanitize()
	require.NoError(t, err)
	assert.Equal(t, -1.0, *in.Weight)
}

func TestAppendReading_UnknownDevice(t *testing.T) {
	common.SetTestLoggerNop()
	iotObj := NewTestIOTWithMemorySqlite(t, Options{})

	_, err := iotObj.Readings.Append(context.Background(), "missing", ReadingFields{Temperature: common.Ptr(20.0)}, nil)
	require.Error(t, err)
	assert.Equal(t, common.KindNotFound, common.KindOf(err))
}

func TestLatestAndWindow(t *testing.T) {
	common.SetTestLoggerNop()
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := NewTestClock(base)
	iotObj := NewTestIOTWithMemorySqlite(t, Options{Now: clock.Now})
	ctx := context.Background()

	device, err := iotObj.Registry.Create(ctx, "window")
	require.NoError(t, err)

	latest, err := iotObj.Readings.Latest(ctx, device.ID)
	require.NoError(t, err)
	assert.Nil(t, latest, "no readings yet")

	// insert out of order through recorded_at backfill
	for _, offset := range []time.Duration{-3 * time.Hour, -1 * time.Hour, -2 * time.Hour, -30 * time.Hour} {
		at := base.Add(offset)
		_, err := iotObj.Readings.Append(ctx, device.ID, ReadingFields{Temperature: common.Ptr(float64(-offset.Hours()))}, &at)
		require.NoError(t, err)
	}

	latest, err = iotObj.Readings.Latest(ctx, device.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.True(t, latest.RecordedAt.Equal(base.Add(-time.Hour)))

	window, err := iotObj.Readings.Window(ctx, device.ID, base.Add(-24*time.Hour), nil)
	require.NoError(t, err)
	require.Len(t, window, 3)
	for idx := 1; idx < len(window); idx++ {
		assert.False(t, window[idx].RecordedAt.Before(window[idx-1].RecordedAt), "window is oldest first")
	}

	until := base.Add(-90 * time.Minute)
	bounded, err := iotObj.Readings.Window(ctx, device.ID, base.Add(-24*time.Hour), &until)
	require.NoError(t, err)
	assert.Len(t, bounded, 2)
}

func TestLatest_TiesBrokenByInsertionOrder(t *testing.T) {
	common.SetTestLoggerNop()
	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	iotObj := NewTestIOTWithMemorySqlite(t, Options{Now: NewTestClock(at).Now})
	ctx := context.Background()

	device, err := iotObj.Registry.Create(ctx, "ties")
	require.NoError(t, err)

	_, err = iotObj.Readings.Append(ctx, device.ID, ReadingFields{Temperature: common.Ptr(10.0)}, &at)
	require.NoError(t, err)
	second, err := iotObj.Readings.Append(ctx, device.ID, ReadingFields{Temperature: common.Ptr(11.0)}, &at)
	require.NoError(t, err)

	latest, err := iotObj.Readings.Latest(ctx, device.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)
}

func TestWindow_TiesOrderedByID(t *testing.T) {
	common.SetTestLoggerNop()
	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	iotObj := NewTestIOTWithMemorySqlite(t, Options{Now: NewTestClock(at).Now})
	ctx := context.Background()

	device, err := iotObj.Registry.Create(ctx, "window ties")
	require.NoError(t, err)

	earlier := at.Add(-time.Minute)
	var ids []uint
	for k, recordedAt := range []time.Time{at, earlier, at, at} {
		reading, err := iotObj.Readings.Append(ctx, device.ID, ReadingFields{Temperature: common.Ptr(float64(k))}, &recordedAt)
		require.NoError(t, err)
		ids = append(ids, reading.ID)
	}

	window, err := iotObj.Readings.Window(ctx, device.ID, at.Add(-time.Hour), nil)
	require.NoError(t, err)
	require.Len(t, window, 4)

	got := make([]uint, 0, len(window))
	for _, r := range window {
		got = append(got, r.ID)
	}
	assert.Equal(t, []uint{ids[1], ids[0], ids[2], ids[3]}, got)
}

func TestSubmit_AcceptsTemperatureBounds(t *testing.T) {
	common.SetTestLoggerNop()
	iotObj := NewTestIOTWithMemorySqlite(t, Options{})
	ctx := context.Background()

	device, err := iotObj.Registry.Create(ctx, "bounds")
	require.NoError(t, err)

	for _, temp := range []float64{MinTemperature, MaxTemperature} {
		_, err := iotObj.Ingestion.Submit(ctx, device.Credential, Payload{
			ReadingFields: ReadingFields{Temperature: common.Ptr(temp)},
		})
		require.NoError(t, err, "temperature %.1f", temp)
	}

	for _, temp := range []float64{MinTemperature - 0.1, MaxTemperature + 0.1} {
		_, err := iotObj.Ingestion.Submit(ctx, device.Credential, Payload{
			ReadingFields: ReadingFields{Temperature: common.Ptr(temp)},
		})
		assert.Equal(t, common.KindOutOfRange, common.KindOf(err), "temperature %.1f", temp)
	}

	var stored int64
	require.NoError(t, iotObj.Db.Conn.Model(&models.Reading{}).Count(&stored).Error)
	assert.EqualValues(t, 2, stored)
}

func TestAggregate_SkipsNulls(t *testing.T) {
	common.SetTestLoggerNop()
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	iotObj := NewTestIOTWithMemorySqlite(t, Options{Now: NewTestClock(base).Now})
	ctx := context.Background()

	device, err := iotObj.Registry.Create(ctx, "agg")
	require.NoError(t, err)

	inputs := []ReadingFields{
		{Temperature: common.Ptr(20.0), Weight: common.Ptr(40.0)},
		{Temperature: common.Ptr(30.0)},
		{Temperature: common.Ptr(25.0), Weight: common.Ptr(42.0)},
	}
	for _, in := range inputs {
		_, err := iotObj.Readings.Append(ctx, device.ID, in, nil)
		require.NoError(t, err)
	}

	agg, err := iotObj.Readings.Aggregate(ctx, device.ID, base.Add(-time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 3, agg.Count)

	temp := agg.Fields["temperature"]
	assert.EqualValues(t, 3, temp.Count)
	require.NotNil(t, temp.Avg)
	assert.InDelta(t, 25.0, *temp.Avg, 1e-9)
	assert.InDelta(t, 20.0, *temp.Min, 1e-9)
	assert.InDelta(t, 30.0, *temp.Max, 1e-9)

	weight := agg.Fields["weight"]
	assert.EqualValues(t, 2, weight.Count)
	require.NotNil(t, weight.Avg)
	assert.InDelta(t, 41.0, *weight.Avg, 1e-9, "missing weights must not count as zero")

	humidity := agg.Fields["humidity"]
	assert.EqualValues(t, 0, humidity.Count)
	assert.Nil(t, humidity.Avg)
}

func TestAggregate_FleetWide(t *testing.T) {
	common.SetTestLoggerNop()
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	iotObj := NewTestIOTWithMemorySqlite(t, Options{Now: NewTestClock(base).Now})
	ctx := context.Background()

	for _, name := range []string{"a", "b"} {
		device, err := iotObj.Registry.Create(ctx, name)
		require.NoError(t, err)
		_, err = iotObj.Readings.Append(ctx, device.ID, ReadingFields{Temperature: common.Ptr(10.0)}, nil)
		require.NoError(t, err)
	}

	agg, err := iotObj.Readings.Aggregate(ctx, "", base.Add(-time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 2, agg.Count)
}

func TestDownsample(t *testing.T) {
	items := make([]int, 1001)
	for idx := range items {
		items[idx] = idx
	}

	out := Downsample(items, 500)
	assert.LessOrEqual(t, len(out), 500)
	assert.Equal(t, 0, out[0])
	// stride is ceil(1001/500) = 3
	assert.Equal(t, 3, out[1])
	assert.Greater(t, out[len(out)-1], 990, "samples span the whole range")

	small := []int{1, 2, 3}
	assert.Equal(t, small, Downsample(small, 500))
	assert.Empty(t, Downsample([]models.Reading{}, 10))
}
