package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorCounters(t *testing.T) {
	c := NewCollectorWithRegistry("test", prometheus.NewRegistry())

	c.RecordSourceAbsent("orders", "no_rows")
	c.RecordSourceAbsent("orders", "no_rows")
	c.RecordOutliers("transeu", 3)
	c.RecordOutliers("transeu", 0)
	c.RecordRouteMatch("high")
	c.RecordRoadDistance("haversine_fallback")
	c.RecordAPIRequest("/api/pricing", "POST", "200")

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"source absent", testutil.ToFloat64(c.SourceAbsentTotal.WithLabelValues("orders", "no_rows")), 2},
		{"outliers", testutil.ToFloat64(c.OutliersExcludedTotal.WithLabelValues("transeu")), 3},
		{"route match", testutil.ToFloat64(c.RouteMatchTotal.WithLabelValues("high")), 1},
		{"road distance", testutil.ToFloat64(c.RoadDistanceTotal.WithLabelValues("haversine_fallback")), 1},
		{"api requests", testutil.ToFloat64(c.APIRequestsTotal.WithLabelValues("/api/pricing", "POST", "200")), 1},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestCollectorGauges(t *testing.T) {
	c := NewCollectorWithRegistry("test", prometheus.NewRegistry())

	c.UpdateDBConnectionPool(2, 3, 5)
	c.UpdateRefData("postal_regions", 120)

	if got := testutil.ToFloat64(c.DBConnectionPool.WithLabelValues("total")); got != 5 {
		t.Errorf("pool total = %v, want %v", got, 5)
	}
	if got := testutil.ToFloat64(c.RefDataEntries.WithLabelValues("postal_regions")); got != 120 {
		t.Errorf("refdata entries = %v, want %v", got, 120)
	}
}

func TestSeparateRegistriesDoNotCollide(t *testing.T) {
	NewCollectorWithRegistry("test", prometheus.NewRegistry())
	NewCollectorWithRegistry("test", prometheus.NewRegistry())
}

func TestTimer(t *testing.T) {
	c := NewCollectorWithRegistry("test", prometheus.NewRegistry())
	timer := c.NewTimer(c.AggregationDuration.WithLabelValues("orders"))
	time.Sleep(time.Millisecond)
	if d := timer.ObserveDuration(); d <= 0 {
		t.Errorf("ObserveDuration() = %v, want > 0", d)
	}
	if got := testutil.CollectAndCount(c.AggregationDuration); got != 1 {
		t.Errorf("histogram series = %v, want %v", got, 1)
	}
}
