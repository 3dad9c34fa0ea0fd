package iot

import (
	"context"
	"time"

	"liyu1981.xyz/hive-telemetry-service/pkg/db"
	"liyu1981.xyz/hive-telemetry-service/pkg/models"
)

//go:generate mockgen -source=iot.go -destination=mocks/mock_iot.go -package=mocks

type IRegistry interface {
	Create(ctx context.Context, name string) (*models.Device, error)
	Get(ctx context.Context, id string) (*models.Device, error)
	List(ctx context.Context, includeInactive bool) ([]models.Device, error)
	ResolveByCredential(ctx context.Context, credential string) (*models.Device, error)
	RegenerateCredential(ctx context.Context, id string) (string, error)
	Rename(ctx context.Context, id string, name string) (*models.Device, error)
	Deactivate(ctx context.Context, id string) error
}

type IPolicy interface {
	Get(ctx context.Context) (models.ThresholdPolicy, error)
	Update(ctx context.Context, patch PolicyPatch) (models.ThresholdPolicy, error)
}

type IReadings interface {
	Append(ctx context.Context, deviceID string, fields ReadingFields, at *time.Time) (*models.Reading, error)
	Latest(ctx context.Context, deviceID string) (*models.Reading, error)
	Window(ctx context.Context, deviceID string, since time.Time, until *time.Time) ([]models.Reading, error)
	Aggregate(ctx context.Context, deviceID string, since time.Time) (*Aggregates, error)
}

type IIngestion interface {
	Submit(ctx context.Context, credential string, payload Payload) (*models.ThresholdPolicy, error)
	// RejectMalformed answers a body that failed to decode: unauthorized unless the
	// credential resolves, otherwise decodeErr.
	RejectMalformed(ctx context.Context, credential string, decodeErr error) error
}

type IQuery interface {
	ListDevicesWithStatus(ctx context.Context) ([]DeviceStatus, error)
	DetailFor(ctx context.Context, deviceID string, r Range) (*DeviceDetail, error)
	Summary(ctx context.Context, r Range) (*Aggregates, error)
	Export(ctx context.Context, r Range) ([]ExportRow, error)
}

// ReadingSink receives every reading after it has been persisted.
type ReadingSink interface {
	Publish(ctx context.Context, device models.Device, reading models.Reading)
}

type Options struct {
	OnlineThreshold time.Duration
	PolicyCacheTTL  time.Duration
	MaxChartPoints  int
	Now             func() time.Time
}

const (
	DefaultOnlineThreshold = 600 * time.Second
	DefaultPolicyCacheTTL  = 5 * time.Second
	DefaultMaxChartPoints  = 500
)

func DefaultOptions() Options {
	return Options{
		OnlineThreshold: DefaultOnlineThreshold,
		PolicyCacheTTL:  DefaultPolicyCacheTTL,
		MaxChartPoints:  DefaultMaxChartPoints,
		Now:             time.Now,
	}
}

type IOT struct {
	Db        db.DB
	Opts      Options
	Registry  IRegistry
	Policy    IPolicy
	Readings  IReadings
	Ingestion IIngestion
	Query     IQuery

	sinks       []ReadingSink
	policyCache policyCache
}

type ServiceOpts struct {
	Registry  IRegistry
	Policy    IPolicy
	Readings  IReadings
	Ingestion IIngestion
	Query     IQuery
}

// New wires the default service implementations over one database.
func New(database *db.DB, opts Options) *IOT {
	defaults := DefaultOptions()
	if opts.OnlineThreshold <= 0 {
		opts.OnlineThreshold = defaults.OnlineThreshold
	}
	if opts.PolicyCacheTTL < 0 {
		opts.PolicyCacheTTL = 0
	}
	if opts.MaxChartPoints <= 0 {
		opts.MaxChartPoints = defaults.MaxChartPoints
	}
	if opts.Now == nil {
		opts.Now = defaults.Now
	}

	i := &IOT{Db: *database, Opts: opts}
	i.WithServices(ServiceOpts{
		Registry:  i.GetIRegistry(),
		Policy:    i.GetIPolicy(),
		Readings:  i.GetIReadings(),
		Ingestion: i.GetIIngestion(),
		Query:     i.GetIQuery(),
	})
	return i
}

func (i *IOT) WithServices(opts ServiceOpts) *IOT {
	if opts.Registry != nil {
		i.Registry = opts.Registry
	}
	if opts.Policy != nil {
		i.Policy = opts.Policy
	}
	if opts.Readings != nil {
		i.Readings = opts.Readings
	}
	if opts.Ingestion != nil {
		i.Ingestion = opts.Ingestion
	}
	if opts.Query != nil {
		i.Query = opts.Query
	}
	return i
}

// AddSink must be called before the service starts accepting readings.
func (i *IOT) AddSink(sink ReadingSink) *IOT {
	i.sinks = append(i.sinks, sink)
	return i
}

func (i *IOT) now() time.Time {
	if i.Opts.Now == nil {
		return time.Now().UTC()
	}
	return i.Opts.Now().UTC()
}
