package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveHTTP("/turnos", "POST", 201, 15*time.Millisecond)
	m.ObserveBooking("created")
	m.ObserveBooking("created")
	m.ObserveSlotQuery("slots", nil)
	m.ObserveSlotQuery("slots", errors.New("down"))
	m.ObserveTransition("aceptar", nil)
	m.ObserveOfferedSlots(6)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.bookings.WithLabelValues("created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.slotQueries.WithLabelValues("slots", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("/turnos", "POST", "201")))
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.ObserveHTTP("/", "GET", 200, time.Millisecond)
	m.ObserveBooking("created")
	m.ObserveSlotQuery("dates", nil)
	m.ObserveTransition("cancelar", nil)
	m.ObserveOfferedSlots(0)
}
