package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(t.Context(), &rm))

	out := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func TestHTTPMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(t.Context()) })

	router := gin.New()
	router.Use(HTTPMetrics(provider.Meter("http.server"), nil))
	router.GET("/api/v1/vouchers/:id", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for _, path := range []string{"/api/v1/vouchers/a", "/api/v1/vouchers/b", "/nowhere"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	}

	data := collectMetrics(t, reader)

	total, ok := data["http_server_request_total"].(metricdata.Sum[int64])
	require.True(t, ok)
	counts := map[string]int64{}
	for _, dp := range total.DataPoints {
		route, _ := dp.Attributes.Value(attribute.Key("http.route"))
		counts[route.AsString()] += dp.Value
	}
	assert.Equal(t, int64(2), counts["/api/v1/vouchers/:id"])
	assert.Equal(t, int64(1), counts["unmatched"])

	hist, ok := data["http_server_request_duration_seconds"].(metricdata.Histogram[float64])
	require.True(t, ok)
	assert.NotEmpty(t, hist.DataPoints)

	active, ok := data["http_server_active_requests"].(metricdata.Sum[int64])
	require.True(t, ok)
	for _, dp := range active.DataPoints {
		assert.Equal(t, int64(0), dp.Value)
	}
}

func TestHTTPMetrics_NilMeter(t *testing.T) {
	router := gin.New()
	router.Use(HTTPMetrics(nil, nil))
	router.GET("/test", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
