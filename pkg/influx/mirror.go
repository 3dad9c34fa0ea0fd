// Package influx mirrors accepted readings into an InfluxDB bucket for long range
// dashboards. sqlite stays the system of record; mirror failures are logged and dropped.
package influx

import (
	"context"
	"sync"
	"sync/atomic"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"go.uber.org/zap"
	"liyu1981.xyz/hive-telemetry-service/pkg/common"
	"liyu1981.xyz/hive-telemetry-service/pkg/models"
)

const (
	Measurement = "hive_reading"

	// DefaultQueueSize bounds the points held in memory while the client is busy flushing.
	DefaultQueueSize = 1000
)

// Mirror hands points to the influx write API from a single goroutine. The client's own
// WritePoint blocks once its buffer fills, so Publish only ever enqueues and drops on a
// full queue.
type Mirror struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI

	queue     chan *write.Point
	done      chan struct{}
	drained   sync.WaitGroup
	dropped   atomic.Int64
	closeOnce sync.Once
}

func NewMirror(url, token, org, bucket string) *Mirror {
	client := influxdb2.NewClientWithOptions(url, token, influxdb2.DefaultOptions().SetBatchSize(100).SetFlushInterval(1000))
	writeAPI := client.WriteAPI(org, bucket)

	m := newMirror(writeAPI.WritePoint, DefaultQueueSize)
	m.client = client
	m.writeAPI = writeAPI

	errs := writeAPI.Errors()
	go func() {
		logger := common.GetLoggerWith(common.LoggerNameInfluxMirror)
		for err := range errs {
			logger.Warn("Failed to mirror readings", zap.Error(err))
		}
	}()

	common.GetLoggerWith(common.LoggerNameInfluxMirror).Info("InfluxDB mirror enabled",
		zap.String("url", url), zap.String("org", org), zap.String("bucket", bucket),
		zap.Int("queue_size", DefaultQueueSize))
	return m
}

func newMirror(writePoint func(*write.Point), queueSize int) *Mirror {
	m := &Mirror{
		queue: make(chan *write.Point, queueSize),
		done:  make(chan struct{}),
	}
	m.drained.Add(1)
	go m.drain(writePoint)
	return m
}

func (m *Mirror) drain(writePoint func(*write.Point)) {
	defer m.drained.Done()
	for {
		select {
		case p := <-m.queue:
			writePoint(p)
		case <-m.done:
			for {
				select {
				case p := <-m.queue:
					writePoint(p)
				default:
					return
				}
			}
		}
	}
}

func (m *Mirror) drop() {
	n := m.dropped.Add(1)
	if n == 1 || n%100 == 0 {
		common.GetLoggerWith(common.LoggerNameInfluxMirror).Warn("Mirror queue full, dropping points",
			zap.Int64("dropped_total", n))
	}
}

// Dropped counts points discarded because the queue was full or the mirror closed.
func (m *Mirror) Dropped() int64 {
	return m.dropped.Load()
}

// ToPoint returns nil when the reading has no numeric or relay field.
func ToPoint(device models.Device, reading models.Reading) *write.Point {
	fields := map[string]any{}
	put := func(name string, v *float64) {
		if v != nil {
			fields[name] = *v
		}
	}
	put("temperature", reading.Temperature)
	put("secondary_temperature", reading.SecondaryTemperature)
	put("humidity", reading.Humidity)
	put("weight", reading.Weight)
	put("battery_voltage", reading.BatteryVoltage)
	put("battery_percent", reading.BatteryPercent)
	if reading.RelayConnected != nil {
		fields["relay_connected"] = *reading.RelayConnected
	}
	if len(fields) == 0 {
		return nil
	}

	return influxdb2.NewPoint(
		Measurement,
		map[string]string{"device_id": device.ID, "device_name": device.Name},
		fields,
		reading.RecordedAt,
	)
}

// Publish enqueues the point without blocking; the client batches and retries on its own
// schedule.
func (m *Mirror) Publish(_ context.Context, device models.Device, reading models.Reading) {
	p := ToPoint(device, reading)
	if p == nil {
		return
	}
	select {
	case <-m.done:
		m.drop()
		return
	default:
	}
	select {
	case m.queue <- p:
	default:
		m.drop()
	}
}

func (m *Mirror) Flush() {
	if m.writeAPI != nil {
		m.writeAPI.Flush()
	}
}

// Close hands every queued point to the client, flushes and releases it.
func (m *Mirror) Close() {
	m.closeOnce.Do(func() {
		close(m.done)
		m.drained.Wait()
		if m.writeAPI != nil {
			m.writeAPI.Flush()
		}
		if m.client != nil {
			m.client.Close()
		}
	})
}
