package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"liyu1981.xyz/hive-telemetry-service/pkg/common"
	"liyu1981.xyz/hive-telemetry-service/pkg/config"
	"liyu1981.xyz/hive-telemetry-service/pkg/db"
	_ "liyu1981.xyz/hive-telemetry-service/pkg/testing"
)

func newTestApp(t *testing.T) *app {
	t.Helper()
	common.SetTestLoggerNop()

	name := "hivectl_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	database, err := db.Open(db.UseMemorySqliteDialectorNamed(name))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := database.Conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	a := newApp()
	a.cfg = &config.Config{
		DBType:       "memory",
		DefaultRate:  rate.Limit(1),
		DefaultBurst: 5,
		JwtSecret:    "cli-secret",
		JwtTTL:       time.Hour,
	}
	a.open = func() (*db.DB, error) { return database, nil }
	return a
}

func run(t *testing.T, a *app, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand(a)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func hasRow(out string, fields ...string) bool {
	for _, line := range strings.Split(out, "\n") {
		if strings.Join(strings.Fields(line), " ") == strings.Join(fields, " ") {
			return true
		}
	}
	return false
}

func TestDeviceLifecycle(t *testing.T) {
	a := newTestApp(t)

	out, err := run(t, a, "device", "create", "north yard")
	require.NoError(t, err)
	assert.Contains(t, out, "name: north yard")
	assert.Contains(t, out, "credential: ")

	devices, err := a.iot.Registry.List(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	id := devices[0].ID
	oldCredential := devices[0].Credential

	out, err = run(t, a, "device", "rename", id, "south yard")
	require.NoError(t, err)
	assert.Contains(t, out, `"south yard"`)

	out, err = run(t, a, "device", "rotate-key", id)
	require.NoError(t, err)
	assert.NotContains(t, out, oldCredential)

	out, err = run(t, a, "device", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "south yard")
	assert.Contains(t, out, "LAST READING")

	_, err = run(t, a, "device", "deactivate", id)
	require.NoError(t, err)

	out, err = run(t, a, "device", "list")
	require.NoError(t, err)
	assert.NotContains(t, out, "south yard")

	out, err = run(t, a, "device", "list", "--all")
	require.NoError(t, err)
	assert.Contains(t, out, "south yard")
}

func TestDeviceRename_UnknownDevice(t *testing.T) {
	a := newTestApp(t)
	_, err := run(t, a, "device", "rename", "missing", "x")
	require.Error(t, err)
	assert.True(t, common.IsKind(err, common.KindNotFound))
}

func TestPolicySetAndGet(t *testing.T) {
	a := newTestApp(t)

	out, err := run(t, a, "policy", "set", "--disconnect", "3.1", "--reconnect", "3.7")
	require.NoError(t, err)
	assert.Contains(t, out, "disconnect_voltage: 3.10")
	assert.Contains(t, out, "version: 1")

	_, err = run(t, a, "policy", "set", "--disconnect", "3.9")
	require.Error(t, err)
	assert.True(t, common.IsKind(err, common.KindPolicyInvariantViolation))

	out, err = run(t, a, "policy", "get")
	require.NoError(t, err)
	assert.Contains(t, out, "reconnect_voltage: 3.70")
	assert.Contains(t, out, "enabled: true")

	_, err = run(t, a, "policy", "set")
	require.Error(t, err, "an empty patch is refused by the CLI")
}

func TestOperatorCreate(t *testing.T) {
	a := newTestApp(t)

	out, err := run(t, a, "operator", "create", "keeper", "--password", "correct horse")
	require.NoError(t, err)
	assert.Contains(t, out, "created operator keeper")

	_, err = run(t, a, "operator", "create", "keeper", "--password", "another one")
	require.Error(t, err)

	_, err = run(t, a, "operator", "create", "short", "--password", "abc")
	require.Error(t, err)
}

func TestRelaySimulate_Offline(t *testing.T) {
	a := newApp()
	a.open = func() (*db.DB, error) {
		t.Fatal("offline simulation must not open the database")
		return nil, nil
	}

	out, err := run(t, a, "relay", "simulate", "--offline",
		"--disconnect", "3.0", "--reconnect", "3.4",
		"--voltages", "3.5,2.9,3.2,3.3,3.5,3.2")
	require.NoError(t, err)
	assert.True(t, hasRow(out, "1", "2.90", "CONNECTED", "DISCONNECTED"), out)
	assert.True(t, hasRow(out, "4", "3.50", "DISCONNECTED", "CONNECTED"), out)
	assert.False(t, hasRow(out, "2", "3.20", "DISCONNECTED", "CONNECTED"), "dead band holds")
	assert.Contains(t, out, "final: CONNECTED")
}

func TestRelaySimulate_UsesStoredPolicy(t *testing.T) {
	a := newTestApp(t)

	_, err := run(t, a, "policy", "set", "--enabled=false")
	require.NoError(t, err)

	out, err := run(t, a, "relay", "simulate", "--voltages", "2.5,2.4")
	require.NoError(t, err)
	assert.Contains(t, out, "enabled=false")
	assert.Contains(t, out, "final: CONNECTED")
}

func TestRelaySimulate_RequiresVoltages(t *testing.T) {
	_, err := run(t, newApp(), "relay", "simulate", "--offline")
	require.Error(t, err)
}
