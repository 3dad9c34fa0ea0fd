package iot

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"liyu1981.xyz/hive-telemetry-service/pkg/db"
)

// TestClock is a settable clock for Options.Now.
type TestClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewTestClock(start time.Time) *TestClock {
	return &TestClock{now: start.UTC()}
}

func (c *TestClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *TestClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// NewTestIOTWithMemorySqlite opens a private in-memory database and seeds the policy row.
// Mocked services can be swapped in afterwards with WithServices.
func NewTestIOTWithMemorySqlite(t *testing.T, opts Options) *IOT {
	t.Helper()

	name := "iot_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	database, err := db.Open(db.UseMemorySqliteDialectorNamed(name))
	require.NoError(t, err)

	t.Cleanup(func() {
		if sqlDB, err := database.Conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	iotObj := New(database, opts)
	require.NoError(t, iotObj.Bootstrap(context.Background()))
	return iotObj
}

func ParseLogs(r io.Reader) []any {
	scanner := bufio.NewScanner(r)
	var logs []any

	for scanner.Scan() {
		line := scanner.Text()
		var j any
		if err := json.Unmarshal([]byte(line), &j); err == nil {
			logs = append(logs, j)
		}
	}
	return logs
}

// FindLog returns the first captured entry whose msg equals msg.
func FindLog(logs []any, msg string) map[string]any {
	for _, l := range logs {
		if obj, ok := l.(map[string]any); ok && obj["msg"] == msg {
			return obj
		}
	}
	return nil
}
