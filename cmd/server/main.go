package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"liyu1981.xyz/hive-telemetry-service/pkg/auth"
	"liyu1981.xyz/hive-telemetry-service/pkg/common"
	"liyu1981.xyz/hive-telemetry-service/pkg/config"
	"liyu1981.xyz/hive-telemetry-service/pkg/db"
	iotGrpc "liyu1981.xyz/hive-telemetry-service/pkg/grpc"
	iotHttp "liyu1981.xyz/hive-telemetry-service/pkg/http"
	"liyu1981.xyz/hive-telemetry-service/pkg/influx"
	"liyu1981.xyz/hive-telemetry-service/pkg/iot"
	"liyu1981.xyz/hive-telemetry-service/pkg/live"
	"liyu1981.xyz/hive-telemetry-service/pkg/mqtt"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Fatal("Error loading .env file: ", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	dialector, err := db.UseDialector(cfg.DBType, cfg.DBPath)
	if err != nil {
		log.Fatal(err)
	}
	dbInstance := db.GetInstance(dialector)

	logger := common.GetLogger()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	iotCore := iot.New(dbInstance, cfg.IOTOptions())
	if err := iotCore.Bootstrap(ctx); err != nil {
		log.Fatal("Failed to seed threshold policy: ", err)
	}

	authService := auth.NewService(dbInstance, cfg.JwtSecret, cfg.JwtTTL)
	if cfg.OperatorUsername != "" {
		if err := authService.EnsureOperator(ctx, cfg.OperatorUsername, cfg.OperatorPassword); err != nil {
			log.Fatal("Failed to provision operator: ", err)
		}
	}

	hub := live.NewHub(cfg.CorsOrigins)
	defer hub.Close()
	iotCore.AddSink(hub)

	if cfg.InfluxEnabled() {
		mirror := influx.NewMirror(cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket)
		defer mirror.Close()
		iotCore.AddSink(mirror)
		logger.Info("Mirroring readings to influxdb", zap.String("url", cfg.InfluxURL), zap.String("bucket", cfg.InfluxBucket))
	}

	logger.Info("Limiter defaults",
		zap.Float64("default_rate", float64(cfg.DefaultRate)),
		zap.Int("default_burst", cfg.DefaultBurst))

	if cfg.GrpcHostPort != "" {
		grpcServer := &iotGrpc.TelemetryGrpcServer{
			Iot:              iotCore,
			RateLimiterStore: iot.NewRateLimiterStore(cfg.DefaultRate, cfg.DefaultBurst),
			RequestTimeout:   cfg.RequestTimeout,
		}
		go func() {
			if err := grpcServer.ListenAndServe(ctx, cfg.GrpcHostPort); err != nil {
				log.Fatalf("grpc server failed to serve: %v", err)
			}
		}()
	}

	if cfg.MqttBroker != "" {
		bridge := mqtt.NewBridge(iotCore, iot.NewRateLimiterStore(cfg.DefaultRate, cfg.DefaultBurst), nil)
		if err := bridge.Start(ctx, mqtt.Options{
			Broker:   cfg.MqttBroker,
			ClientID: "hive-telemetry-" + uuid.NewString()[:8],
			Username: cfg.MqttUsername,
			Password: cfg.MqttPassword,
		}); err != nil {
			log.Fatalf("mqtt bridge failed to connect: %v", err)
		}
		defer bridge.Stop()
		logger.Info("MQTT bridge subscribed", zap.String("broker", cfg.MqttBroker), zap.String("topic", mqtt.ReadingsTopic))
	}

	rs := &iotHttp.RestfulServer{
		Server:           gin.Default(),
		Iot:              iotCore,
		RateLimiterStore: iot.NewRateLimiterStore(cfg.DefaultRate, cfg.DefaultBurst),
		Auth:             authService,
		Live:             hub,
		RequestTimeout:   cfg.RequestTimeout,
		CorsOrigins:      cfg.CorsOrigins,
	}
	rs.Setup()

	httpServer := &http.Server{Addr: cfg.HttpHostPort, Handler: rs.Server}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("Shutting down HTTP server")
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("Starting HTTP server on: " + cfg.HttpHostPort)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("http server failed to serve: %v", err)
	}
}
