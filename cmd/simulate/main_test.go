package main

import (
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDataPoolGeneratesValidInsuredIDs(t *testing.T) {
	dp := newDataPool(gofakeit.New(42), 50)

	require.Len(t, dp.InsuredIDs, 50)
	seen := map[string]bool{}
	for _, id := range dp.InsuredIDs {
		assert.Regexp(t, `^\d{5}$`, id)
		assert.False(t, seen[id], "duplicate %s", id)
		seen[id] = true
	}
}

func TestOperationMetricsStats(t *testing.T) {
	var om OperationMetrics
	for i := 1; i <= 20; i++ {
		om.Record(time.Duration(i)*time.Millisecond, i%2 == 0, i%5 == 0)
	}

	assert.Equal(t, int64(20), om.Total)
	assert.Equal(t, int64(10), om.Success)
	assert.Equal(t, int64(2), om.Rejected)
	assert.Equal(t, int64(8), om.Error)

	avg, min, max, p50, p95 := om.Stats()
	assert.Equal(t, 10500*time.Microsecond, avg)
	assert.Equal(t, time.Millisecond, min)
	assert.Equal(t, 20*time.Millisecond, max)
	assert.Equal(t, 11*time.Millisecond, p50)
	assert.Equal(t, 20*time.Millisecond, p95)
}

func TestLoadConfigNormalizesRatios(t *testing.T) {
	t.Setenv("SIM_CREATE_RATIO", "2")
	t.Setenv("SIM_LIST_RATIO", "1")
	t.Setenv("SIM_TRACE_RATIO", "1")

	cfg := loadConfig()
	assert.InDelta(t, 0.5, cfg.CreateRatio, 1e-9)
	assert.InDelta(t, 0.25, cfg.ListRatio, 1e-9)
	assert.NoError(t, validateConfig(cfg))
}
