package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	iotGrpc "liyu1981.xyz/hive-telemetry-service/pkg/grpc"
	"liyu1981.xyz/hive-telemetry-service/pkg/iot"
	"liyu1981.xyz/hive-telemetry-service/pkg/models"
	"liyu1981.xyz/hive-telemetry-service/pkg/relay"
)

var (
	maxDevices   int    = 200
	rounds       int    = 10
	httpHostPort string = "127.0.0.1:1080"
	grpcHostPort string = ""
	username     string = ""
	password     string = ""
)

var rnd *rand.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
var rndMu sync.Mutex

type stats struct {
	accepted    atomic.Int64
	rejected    atomic.Int64
	failed      atomic.Int64
	transitions atomic.Int64
}

func main() {
	cmd := &cobra.Command{
		Use:   "fleet",
		Short: "Simulate a fleet of hive nodes posting readings and following the relay policy",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}
	cmd.Flags().IntVarP(&maxDevices, "devices", "n", maxDevices, "number of simulated devices")
	cmd.Flags().IntVarP(&rounds, "rounds", "r", rounds, "readings per device")
	cmd.Flags().StringVar(&httpHostPort, "http", httpHostPort, "HTTP host:port of the service")
	cmd.Flags().StringVar(&grpcHostPort, "grpc", grpcHostPort, "gRPC host:port; when set half the readings go over gRPC")
	cmd.Flags().StringVarP(&username, "username", "u", os.Getenv("IOT_OPERATOR_USERNAME"), "operator username")
	cmd.Flags().StringVarP(&password, "password", "p", os.Getenv("IOT_OPERATOR_PASSWORD"), "operator password")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	resp, err := http.Get(fmt.Sprintf("http://%s/healthz", httpHostPort))
	if err != nil {
		return fmt.Errorf("failed to connect to HTTP server: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP server not available")
	}
	fmt.Printf("http server verified\n")

	var grpcClient *iotGrpc.TelemetryClient
	if grpcHostPort != "" {
		conn, err := grpc.NewClient(grpcHostPort, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return fmt.Errorf("failed to connect to gRPC server: %w", err)
		}
		defer conn.Close()
		grpcClient = iotGrpc.NewTelemetryClient(conn)
		fmt.Printf("gRPC client connected\n")
	}

	token, err := login()
	if err != nil {
		return err
	}

	startTime := time.Now()
	credentials := make([]string, maxDevices)
	for i := range maxDevices {
		if credentials[i], err = createDevice(token, fmt.Sprintf("sim hive %04d", i)); err != nil {
			return err
		}
		fmt.Printf("\rregistered device %v", i)
	}
	usedTime := time.Since(startTime)
	fmt.Printf("\rregistered %v devices: used time=%v seconds\n", maxDevices, usedTime.Seconds())

	var s stats
	startTime = time.Now()
	wg := sync.WaitGroup{}
	for i := range maxDevices {
		wg.Add(1)
		go func() {
			defer wg.Done()
			simulateDevice(ctx, credentials[i], grpcClient, &s)
		}()
	}
	wg.Wait()
	usedTime = time.Since(startTime)

	total := s.accepted.Load() + s.rejected.Load() + s.failed.Load()
	fmt.Printf(
		"\nsubmitted %v readings: accepted=%v rejected=%v failed=%v relay transitions=%v used time=%v seconds, throughput=%v readings/second\n",
		total, s.accepted.Load(), s.rejected.Load(), s.failed.Load(), s.transitions.Load(),
		usedTime.Seconds(), float64(total)/usedTime.Seconds(),
	)
	return nil
}

func rndFloat64(min, max float64, decimal int) float64 {
	rndMu.Lock()
	val := min + rnd.Float64()*(max-min)
	rndMu.Unlock()
	multiplier := math.Pow10(decimal)
	return math.Round(val*multiplier) / multiplier
}

func flipCoin() bool {
	rndMu.Lock()
	defer rndMu.Unlock()
	return rnd.Int31n(100000)%2 == 0
}

func postJSON(path, token string, body any) (*http.Response, error) {
	raw, _ := json.Marshal(body)
	req, err := http.NewRequest(http.MethodPost, fmt.Sprintf("http://%s%s", httpHostPort, path), bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return http.DefaultClient.Do(req)
}

func login() (string, error) {
	resp, err := postJSON("/auth/login", "", map[string]string{"username": username, "password": password})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login failed with status %d", resp.StatusCode)
	}
	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	return body.Token, nil
}

func createDevice(token, name string) (string, error) {
	resp, err := postJSON("/devices", token, map[string]string{"name": name})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("create device failed with status %d", resp.StatusCode)
	}
	var body struct {
		Credential string `json:"credential"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	return body.Credential, nil
}

// simulateDevice discharges a battery slowly with noise and recharges it in the second half,
// driving the relay through the policy the service echoes back.
func simulateDevice(ctx context.Context, credential string, grpcClient *iotGrpc.TelemetryClient, s *stats) {
	controller := relay.NewController(iot.DefaultPolicy())
	voltage := rndFloat64(3.3, 3.9, 2)

	for round := range rounds {
		if round < rounds/2 {
			voltage -= rndFloat64(0.0, 0.12, 2)
		} else {
			voltage += rndFloat64(0.0, 0.12, 2)
		}
		voltage = math.Max(2.6, math.Min(4.2, voltage))

		if t := controller.Observe(voltage); t != nil {
			s.transitions.Add(1)
		}
		fields := map[string]any{
			"credential":      credential,
			"temperature":     rndFloat64(20.0, 38.0, 2),
			"humidity":        rndFloat64(40.0, 80.0, 1),
			"weight":          rndFloat64(10.0, 60.0, 2),
			"battery_voltage": voltage,
			"relay_connected": controller.State() == relay.Connected,
		}

		var policy *models.ThresholdPolicy
		var err error
		if grpcClient != nil && flipCoin() {
			policy, err = submitGrpc(ctx, grpcClient, fields)
		} else {
			policy, err = submitHttp(fields)
		}
		switch {
		case err != nil:
			s.failed.Add(1)
		case policy == nil:
			s.rejected.Add(1)
		default:
			s.accepted.Add(1)
			if t := controller.SetPolicy(*policy); t != nil {
				s.transitions.Add(1)
			}
		}

		time.Sleep(time.Duration(rndFloat64(100, 500, 0)) * time.Millisecond)
	}
}

type policyBody struct {
	DisconnectVoltage float64 `json:"disconnect_voltage"`
	ReconnectVoltage  float64 `json:"reconnect_voltage"`
	Enabled           bool    `json:"enabled"`
	Version           uint64  `json:"version"`
}

func (p policyBody) toPolicy() *models.ThresholdPolicy {
	return &models.ThresholdPolicy{
		DisconnectVoltage: p.DisconnectVoltage,
		ReconnectVoltage:  p.ReconnectVoltage,
		Enabled:           p.Enabled,
		Version:           p.Version,
	}
}

func submitHttp(fields map[string]any) (*models.ThresholdPolicy, error) {
	resp, err := postJSON("/readings", "", fields)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, nil
	}
	var body policyBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	return body.toPolicy(), nil
}

func submitGrpc(ctx context.Context, client *iotGrpc.TelemetryClient, fields map[string]any) (*models.ThresholdPolicy, error) {
	resp, err := client.SubmitReading(ctx, fields)
	if err != nil {
		return nil, err
	}
	body := resp.AsMap()
	if ok, _ := body["success"].(bool); !ok {
		return nil, nil
	}
	raw, err := json.Marshal(body["policy"])
	if err != nil {
		return nil, err
	}
	var p policyBody
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return p.toPolicy(), nil
}
