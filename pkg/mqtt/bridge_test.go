package mqtt

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"liyu1981.xyz/hive-telemetry-service/pkg/common"
	"liyu1981.xyz/hive-telemetry-service/pkg/db"
	"liyu1981.xyz/hive-telemetry-service/pkg/iot"
	"liyu1981.xyz/hive-telemetry-service/pkg/models"
	_ "liyu1981.xyz/hive-telemetry-service/pkg/testing"
)

type published struct {
	topic   string
	payload []byte
}

type recordingPublisher struct {
	mu       sync.Mutex
	messages []published
}

func (p *recordingPublisher) Publish(topic string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, published{topic: topic, payload: payload})
	return nil
}

func (p *recordingPublisher) last(t *testing.T) (string, Reply) {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	require.NotEmpty(t, p.messages)
	msg := p.messages[len(p.messages)-1]
	var reply Reply
	require.NoError(t, json.Unmarshal(msg.payload, &reply))
	return msg.topic, reply
}

func setupBridge(t *testing.T, limiter *iot.RateLimiterStore) (*Bridge, *recordingPublisher, models.Device) {
	t.Helper()
	common.SetTestLoggerNop()

	database, err := db.Open(db.UseMemorySqliteDialectorNamed("mqtt_" + strings.ReplaceAll(uuid.NewString(), "-", "")))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := database.Conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	iotObj := iot.New(database, iot.Options{})
	require.NoError(t, iotObj.Bootstrap(context.Background()))

	device, err := iotObj.Registry.Create(context.Background(), "yard hive")
	require.NoError(t, err)

	publisher := &recordingPublisher{}
	return NewBridge(iotObj, limiter, publisher), publisher, *device
}

func TestReplyTopic(t *testing.T) {
	topic, ok := ReplyTopic("hives/yard-1/readings")
	assert.True(t, ok)
	assert.Equal(t, "hives/yard-1/policy", topic)

	for _, bad := range []string{"hives//readings", "hives/yard-1/policy", "other/yard-1/readings", "hives/a/b/readings"} {
		_, ok := ReplyTopic(bad)
		assert.False(t, ok, bad)
	}
}

func TestHandleMessage_AcceptsLegacyAliases(t *testing.T) {
	bridge, publisher, device := setupBridge(t, nil)
	ctx := context.Background()

	body, _ := json.Marshal(map[string]any{
		"key":       device.Credential,
		"temp":      33.2,
		"voltage":   3.8,
		"lvd_state": true,
	})
	require.NoError(t, bridge.HandleMessage(ctx, "hives/yard/readings", body))

	topic, reply := publisher.last(t)
	assert.Equal(t, "hives/yard/policy", topic)
	assert.True(t, reply.Success)
	assert.Nil(t, reply.Error)
	require.NotNil(t, reply.Policy)
	assert.Equal(t, iot.DefaultDisconnectVoltage, reply.Policy.DisconnectVoltage)

	latest, err := bridge.Iot.Readings.Latest(ctx, device.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	require.NotNil(t, latest.Temperature)
	assert.InDelta(t, 33.2, *latest.Temperature, 1e-9)
	require.NotNil(t, latest.RelayConnected)
	assert.True(t, *latest.RelayConnected)
}

func TestHandleMessage_Rejections(t *testing.T) {
	bridge, publisher, device := setupBridge(t, nil)

	cases := []struct {
		name string
		body string
		kind common.ErrorKind
	}{
		{"not json", `{{`, common.KindInvalidPayload},
		{"no credential", `{"temperature": 20}`, common.KindUnauthorized},
		{"unknown credential", `{"credential": "nope", "temperature": 20}`, common.KindUnauthorized},
		{"unknown credential with malformed field", `{"credential": "not_a_real_key", "temperature": "abc"}`, common.KindUnauthorized},
		{"no temperature", `{"credential": "` + device.Credential + `", "humidity": 40}`, common.KindInvalidPayload},
		{"bad type", `{"credential": "` + device.Credential + `", "temperature": "warm"}`, common.KindInvalidPayload},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.NoError(t, bridge.HandleMessage(context.Background(), "hives/yard/readings", []byte(tc.body)))
			_, reply := publisher.last(t)
			assert.False(t, reply.Success)
			require.NotNil(t, reply.Error)
			assert.Equal(t, tc.kind, reply.Error.Kind)
			assert.Nil(t, reply.Policy)
		})
	}
}

func TestHandleMessage_RateLimitedPerCredential(t *testing.T) {
	bridge, publisher, device := setupBridge(t, iot.NewRateLimiterStore(rate.Limit(0.001), 1))
	body := []byte(`{"credential": "` + device.Credential + `", "temperature": 21.5}`)

	require.NoError(t, bridge.HandleMessage(context.Background(), "hives/yard/readings", body))
	_, reply := publisher.last(t)
	assert.True(t, reply.Success)

	require.NoError(t, bridge.HandleMessage(context.Background(), "hives/yard/readings", body))
	_, reply = publisher.last(t)
	assert.False(t, reply.Success)
	assert.Equal(t, common.KindRateLimited, reply.Error.Kind)
}

func TestHandleMessage_IgnoresForeignTopic(t *testing.T) {
	bridge, publisher, device := setupBridge(t, nil)
	body := []byte(`{"credential": "` + device.Credential + `", "temperature": 21.5}`)

	require.NoError(t, bridge.HandleMessage(context.Background(), "barn/readings", body))
	assert.Empty(t, publisher.messages)
}
