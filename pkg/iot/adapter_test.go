package iot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liyu1981.xyz/hive-telemetry-service/pkg/common"
)

func TestDecodeSubmission_CanonicalWinsOverAlias(t *testing.T) {
	credential, payload, err := DecodeSubmission(map[string]any{
		"credential":  " abc ",
		"key":         "ignored",
		"temperature": 30.0,
		"temp":        99.0,
		"temp2":       28.5,
		"voltage":     3.7,
		"percent":     61.0,
		"lvd_state":   false,
		"recorded_at": "2026-01-02T03:04:05Z",
	})
	require.NoError(t, err)
	assert.Equal(t, "abc", credential)
	require.NotNil(t, payload.Temperature)
	assert.Equal(t, 30.0, *payload.Temperature)
	require.NotNil(t, payload.SecondaryTemperature)
	assert.Equal(t, 28.5, *payload.SecondaryTemperature)
	require.NotNil(t, payload.BatteryVoltage)
	assert.Equal(t, 3.7, *payload.BatteryVoltage)
	require.NotNil(t, payload.BatteryPercent)
	assert.Equal(t, 61.0, *payload.BatteryPercent)
	require.NotNil(t, payload.RelayConnected)
	assert.False(t, *payload.RelayConnected)
	require.NotNil(t, payload.RecordedAt)
	assert.True(t, payload.RecordedAt.Equal(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)))
	assert.Nil(t, payload.Humidity)
}

func TestDecodeSubmission_AliasFallbacks(t *testing.T) {
	credential, payload, err := DecodeSubmission(map[string]any{
		"api_key":  "k1",
		"mcp_temp": 12.0,
	})
	require.NoError(t, err)
	assert.Equal(t, "k1", credential)
	require.NotNil(t, payload.Temperature)
	assert.Equal(t, 12.0, *payload.Temperature)
}

func TestDecodeSubmission_MalformedFieldNamed(t *testing.T) {
	_, _, err := DecodeSubmission(map[string]any{
		"credential":  "k1",
		"temperature": "warm",
	})
	require.Error(t, err)
	assert.True(t, common.IsKind(err, common.KindInvalidPayload))
	assert.NotEmpty(t, common.AsError(err).Field)
}
