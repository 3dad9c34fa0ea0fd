package iot

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"liyu1981.xyz/hive-telemetry-service/pkg/common"
	"liyu1981.xyz/hive-telemetry-service/pkg/models"
	_ "liyu1981.xyz/hive-telemetry-service/pkg/testing"
)

func TestGetPolicy_Defaults(t *testing.T) {
	common.SetTestLoggerNop()
	iotObj := NewTestIOTWithMemorySqlite(t, Options{})

	p, err := iotObj.Policy.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DefaultDisconnectVoltage, p.DisconnectVoltage)
	assert.Equal(t, DefaultReconnectVoltage, p.ReconnectVoltage)
	assert.True(t, p.Enabled)
}

func TestUpdatePolicy_Partial(t *testing.T) {
	common.SetTestLoggerNop()
	iotObj := NewTestIOTWithMemorySqlite(t, Options{})
	ctx := context.Background()

	p, err := iotObj.Policy.Update(ctx, PolicyPatch{ReconnectVoltage: common.Ptr(3.8)})
	require.NoError(t, err)
	assert.Equal(t, DefaultDisconnectVoltage, p.DisconnectVoltage)
	assert.Equal(t, 3.8, p.ReconnectVoltage)
	assert.EqualValues(t, 1, p.Version)

	p, err = iotObj.Policy.Update(ctx, PolicyPatch{Enabled: common.Ptr(false)})
	require.NoError(t, err)
	assert.False(t, p.Enabled)
	assert.Equal(t, 3.8, p.ReconnectVoltage)
	assert.EqualValues(t, 2, p.Version)

	var stored models.ThresholdPolicy
	require.NoError(t, iotObj.Db.Conn.First(&stored, "id = ?", models.ThresholdPolicySingletonID).Error)
	assert.Equal(t, p.Version, stored.Version)
	assert.False(t, stored.Enabled)
}

func TestUpdatePolicy_EmptyPatchIsNoop(t *testing.T) {
	common.SetTestLoggerNop()
	iotObj := NewTestIOTWithMemorySqlite(t, Options{})

	p, err := iotObj.Policy.Update(context.Background(), PolicyPatch{})
	require.NoError(t, err)
	assert.EqualValues(t, 0, p.Version)
}

func TestUpdatePolicy_RejectsInvertedBand(t *testing.T) {
	common.SetTestLoggerNop()
	iotObj := NewTestIOTWithMemorySqlite(t, Options{})
	ctx := context.Background()

	// a patch that is valid alone but breaks the band against the stored value
	_, err := iotObj.Policy.Update(ctx, PolicyPatch{DisconnectVoltage: common.Ptr(3.7)})
	require.Error(t, err)
	assert.Equal(t, common.KindPolicyInvariantViolation, common.KindOf(err))

	_, err = iotObj.Policy.Update(ctx, PolicyPatch{DisconnectVoltage: common.Ptr(3.6)})
	assert.Equal(t, common.KindPolicyInvariantViolation, common.KindOf(err), "equal voltages leave no dead band")

	p, err := iotObj.Policy.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultDisconnectVoltage, p.DisconnectVoltage, "rejected update is not stored")
}

func TestUpdatePolicy_RejectsImplausibleVoltage(t *testing.T) {
	common.SetTestLoggerNop()
	iotObj := NewTestIOTWithMemorySqlite(t, Options{})
	ctx := context.Background()

	cases := []struct {
		name  string
		patch PolicyPatch
		field string
	}{
		{"disconnect too low", PolicyPatch{DisconnectVoltage: common.Ptr(1.0)}, "disconnect_voltage"},
		{"reconnect too high", PolicyPatch{ReconnectVoltage: common.Ptr(9.0)}, "reconnect_voltage"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := iotObj.Policy.Update(ctx, tc.patch)
			require.Error(t, err)
			assert.Equal(t, common.KindPolicyInvariantViolation, common.KindOf(err))
			assert.Equal(t, tc.field, common.AsError(err).Field)
		})
	}
}

func TestUpdatePolicy_ConcurrentPatchesKeepBand(t *testing.T) {
	common.SetTestLoggerNop()
	iotObj := NewTestIOTWithMemorySqlite(t, Options{})
	ctx := context.Background()

	_, err := iotObj.Policy.Update(ctx, PolicyPatch{
		DisconnectVoltage: common.Ptr(3.2),
		ReconnectVoltage:  common.Ptr(3.5),
	})
	require.NoError(t, err)

	// each patch is valid against the starting policy, both together are not
	patches := []PolicyPatch{
		{DisconnectVoltage: common.Ptr(3.4)},
		{ReconnectVoltage: common.Ptr(3.3)},
	}

	var wg sync.WaitGroup
	errs := make([]error, len(patches))
	for idx, patch := range patches {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[idx] = iotObj.Policy.Update(ctx, patch)
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.Equal(t, common.KindPolicyInvariantViolation, common.KindOf(err))
		}
	}
	assert.Equal(t, 1, succeeded)

	final, err := iotObj.Policy.Get(ctx)
	require.NoError(t, err)
	assert.Less(t, final.DisconnectVoltage, final.ReconnectVoltage)
}

func TestGetPolicy_CacheRespectsTTL(t *testing.T) {
	common.SetTestLoggerNop()
	clock := NewTestClock(time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC))
	iotObj := NewTestIOTWithMemorySqlite(t, Options{PolicyCacheTTL: 5 * time.Second, Now: clock.Now})
	ctx := context.Background()

	// change the row behind the cache's back
	require.NoError(t, iotObj.Db.Conn.Model(&models.ThresholdPolicy{}).
		Where("id = ?", models.ThresholdPolicySingletonID).
		Update("reconnect_voltage", 3.9).Error)

	p, err := iotObj.Policy.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultReconnectVoltage, p.ReconnectVoltage, "served from cache")

	clock.Advance(6 * time.Second)
	p, err = iotObj.Policy.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3.9, p.ReconnectVoltage, "reloaded after ttl")
}

func TestGetPolicy_ServesStaleOnStorageFailure(t *testing.T) {
	common.SetTestLoggerNop()
	clock := NewTestClock(time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC))
	iotObj := NewTestIOTWithMemorySqlite(t, Options{PolicyCacheTTL: time.Second, Now: clock.Now})
	ctx := context.Background()

	sqlDB, err := iotObj.Db.Conn.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	clock.Advance(time.Minute)
	p, err := iotObj.Policy.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultDisconnectVoltage, p.DisconnectVoltage)
}

func TestGetPolicy_TransientWhenNothingCached(t *testing.T) {
	common.SetTestLoggerNop()
	iotObj := NewTestIOTWithMemorySqlite(t, Options{})
	iotObj.policyCache.value = nil

	sqlDB, err := iotObj.Db.Conn.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	_, err = iotObj.Policy.Get(context.Background())
	require.Error(t, err)
	assert.Equal(t, common.KindTransient, common.KindOf(err))
	assert.True(t, common.AsError(err).Retryable())
}

func TestUpdatePolicy_WithLog(t *testing.T) {
	var buf = &bytes.Buffer{}
	common.SetTestCaptureLogger(buf, zapcore.InfoLevel)

	iotObj := NewTestIOTWithMemorySqlite(t, Options{})
	_, err := iotObj.Policy.Update(context.Background(), PolicyPatch{ReconnectVoltage: common.Ptr(3.75)})
	require.NoError(t, err)

	logs := ParseLogs(buf)
	entry := FindLog(logs, "Updated threshold policy")
	require.NotNil(t, entry, "expected update log entry")
	assert.Equal(t, common.LoggerCategoryIOTPolicy, entry[common.LoggerFieldIOTCategory])
	assert.Equal(t, "iot_core", entry["logger"])
}
