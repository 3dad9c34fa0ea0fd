package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/time/rate"
	"liyu1981.xyz/hive-telemetry-service/pkg/common"
	"liyu1981.xyz/hive-telemetry-service/pkg/iot"
)

const (
	DefaultHttpHostPort   = ":1080"
	DefaultDBPath         = "hive.db"
	DefaultRate           = 1.0
	DefaultBurst          = 5
	DefaultRequestTimeout = 10 * time.Second
	DefaultJwtTTL         = 12 * time.Hour
)

type Config struct {
	DBType string
	DBPath string

	HttpHostPort string
	GrpcHostPort string

	DefaultRate  rate.Limit
	DefaultBurst int

	OnlineThreshold time.Duration
	RequestTimeout  time.Duration
	PolicyCacheTTL  time.Duration
	MaxChartPoints  int
	CorsOrigins     []string

	JwtSecret        string
	JwtTTL           time.Duration
	OperatorUsername string
	OperatorPassword string

	MqttBroker   string
	MqttUsername string
	MqttPassword string

	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string
}

// IOTOptions maps the core tunables onto iot.Options.
func (c *Config) IOTOptions() iot.Options {
	return iot.Options{
		OnlineThreshold: c.OnlineThreshold,
		PolicyCacheTTL:  c.PolicyCacheTTL,
		MaxChartPoints:  c.MaxChartPoints,
	}
}

func (c *Config) InfluxEnabled() bool {
	return c.InfluxURL != "" && c.InfluxBucket != ""
}

// LoadDotEnv reads .env; a missing file is only fatal in production.
func LoadDotEnv() error {
	err := godotenv.Load()
	if err != nil && !common.IsProduction() && os.IsNotExist(err) {
		return nil
	}
	return err
}

// Load reads the process environment.
func Load() (*Config, error) {
	return LoadFrom(os.LookupEnv)
}

// LoadFrom reads configuration through lookup; every error names the offending key.
func LoadFrom(lookup func(string) (string, bool)) (*Config, error) {
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}

	cfg := &Config{
		DBType:           get(common.EnvKeyIOTDBType),
		DBPath:           get(common.EnvKeyIOTDbPath),
		HttpHostPort:     get(common.EnvKeyIOTHttpHostPort),
		GrpcHostPort:     get(common.EnvKeyIOTGrpcHostPort),
		JwtSecret:        get(common.EnvKeyIOTJwtSecret),
		OperatorUsername: get(common.EnvKeyIOTOperatorUsername),
		OperatorPassword: get(common.EnvKeyIOTOperatorPassword),
		MqttBroker:       get(common.EnvKeyIOTMqttBroker),
		MqttUsername:     get(common.EnvKeyIOTMqttUsername),
		MqttPassword:     get(common.EnvKeyIOTMqttPassword),
		InfluxURL:        get(common.EnvKeyIOTInfluxURL),
		InfluxToken:      get(common.EnvKeyIOTInfluxToken),
		InfluxOrg:        get(common.EnvKeyIOTInfluxOrg),
		InfluxBucket:     get(common.EnvKeyIOTInfluxBucket),
	}

	if cfg.DBType == "" {
		cfg.DBType = "file"
	}
	if cfg.DBPath == "" {
		cfg.DBPath = DefaultDBPath
	}
	if cfg.DBType != "file" && cfg.DBType != "memory" {
		return nil, fmt.Errorf("invalid %s %q, should be file or memory", common.EnvKeyIOTDBType, cfg.DBType)
	}
	if cfg.HttpHostPort == "" {
		cfg.HttpHostPort = DefaultHttpHostPort
	}

	var err error
	var r float64
	if r, err = parseFloat(get, common.EnvKeyIOTDefaultRate, DefaultRate); err != nil {
		return nil, err
	}
	if r <= 0 {
		return nil, fmt.Errorf("invalid %s, should be a positive float64 value", common.EnvKeyIOTDefaultRate)
	}
	cfg.DefaultRate = rate.Limit(r)

	if cfg.DefaultBurst, err = parseInt(get, common.EnvKeyIOTDefaultBurst, DefaultBurst); err != nil {
		return nil, err
	}
	if cfg.MaxChartPoints, err = parseInt(get, common.EnvKeyIOTMaxChartPoints, iot.DefaultMaxChartPoints); err != nil {
		return nil, err
	}
	if cfg.OnlineThreshold, err = parseDuration(get, common.EnvKeyIOTOnlineThreshold, iot.DefaultOnlineThreshold); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout, err = parseDuration(get, common.EnvKeyIOTRequestTimeout, DefaultRequestTimeout); err != nil {
		return nil, err
	}
	if cfg.PolicyCacheTTL, err = parseDuration(get, common.EnvKeyIOTPolicyCacheTTL, iot.DefaultPolicyCacheTTL); err != nil {
		return nil, err
	}
	if cfg.JwtTTL, err = parseDuration(get, common.EnvKeyIOTJwtTTL, DefaultJwtTTL); err != nil {
		return nil, err
	}

	if origins := get(common.EnvKeyIOTCorsOrigins); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CorsOrigins = append(cfg.CorsOrigins, o)
			}
		}
	}

	if (cfg.OperatorUsername == "") != (cfg.OperatorPassword == "") {
		return nil, fmt.Errorf("%s and %s must be set together", common.EnvKeyIOTOperatorUsername, common.EnvKeyIOTOperatorPassword)
	}
	if cfg.JwtSecret == "" && common.IsProduction() {
		return nil, fmt.Errorf("%s must be set in production", common.EnvKeyIOTJwtSecret)
	}

	return cfg, nil
}

func parseFloat(get func(string) string, key string, fallback float64) (float64, error) {
	raw := get(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q, should be a float64 value", key, raw)
	}
	return v, nil
}

func parseInt(get func(string) string, key string, fallback int) (int, error) {
	raw := get(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid %s %q, should be a positive int value", key, raw)
	}
	return v, nil
}

// parseDuration accepts Go durations ("90s", "12h") or a bare number of seconds.
func parseDuration(get func(string) string, key string, fallback time.Duration) (time.Duration, error) {
	raw := get(key)
	if raw == "" {
		return fallback, nil
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		if secs < 0 {
			return 0, fmt.Errorf("invalid %s %q, should not be negative", key, raw)
		}
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s %q, should be a duration like 600s", key, raw)
	}
	return d, nil
}
