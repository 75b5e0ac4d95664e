package main

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperationMetricsStats(t *testing.T) {
	var om OperationMetrics
	for i := 1; i <= 10; i++ {
		om.Record(time.Duration(i)*time.Millisecond, i%2 == 0, i == 3)
	}

	assert.EqualValues(t, 10, om.Total)
	assert.EqualValues(t, 5, om.Success)
	assert.EqualValues(t, 1, om.Conflict)
	assert.EqualValues(t, 4, om.Error)

	avg, lo, hi, p50, p95 := om.Stats()
	assert.Equal(t, 5500*time.Microsecond, avg)
	assert.Equal(t, time.Millisecond, lo)
	assert.Equal(t, 10*time.Millisecond, hi)
	assert.Equal(t, 6*time.Millisecond, p50)
	assert.Equal(t, 10*time.Millisecond, p95)
}

func TestValidateConfig(t *testing.T) {
	ok := SimConfig{Workers: 1, Duration: time.Second, PatientLimit: 1, Hotspot: 1}
	require.NoError(t, validateConfig(ok))

	bad := ok
	bad.Hotspot = 0
	assert.Error(t, validateConfig(bad))
}

func TestInMemorySimulationHasNoDoubleBookings(t *testing.T) {
	if testing.Short() {
		t.Skip("runs the full stack for a second")
	}

	baseURL, shutdown, err := startInMemory(4)
	require.NoError(t, err)
	defer shutdown()

	sim := &Simulator{
		config: SimConfig{
			APIBaseURL:   baseURL,
			Duration:     time.Second,
			Workers:      8,
			BookingRatio: 0.8,
			CancelRatio:  0.1,
			ReadRatio:    0.1,
			PatientLimit: 4,
			Hotspot:      1,
		},
		client: &http.Client{Timeout: 5 * time.Second},
	}

	ctx := context.Background()
	sim.pool, err = sim.loadDataPool(ctx)
	require.NoError(t, err)
	assert.Len(t, sim.pool.Patients, 4)
	assert.Len(t, sim.pool.Offers, memorySpecialists)

	sim.Run()

	assert.Positive(t, atomic.LoadInt64(&sim.metrics.Booking.Success))
	require.NoError(t, sim.verify(ctx))
}
