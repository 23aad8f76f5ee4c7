package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/ira-go/internal/domain/entities"
	"github.com/0xcro3dile/ira-go/internal/domain/ports"
)

var _ ports.Metrics = (*Prometheus)(nil)

func TestPrometheus_Counters(t *testing.T) {
	m := New()

	m.ObserveRoute(entities.RouteResearch)
	m.ObserveRoute(entities.RouteResearch)
	m.ObserveRoute(entities.RouteDocument)
	m.ObserveToolCall("web_search", false)
	m.ObserveToolCall("fetch_page", true)
	m.ObserveInvocation(entities.RouteResearch, "ok", 2*time.Second)
	m.ObserveInvocation("", "configuration", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.routes.WithLabelValues("research")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.routes.WithLabelValues("document")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.toolCalls.WithLabelValues("fetch_page", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.invocations.WithLabelValues("none", "configuration")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.latency))
}

func TestPrometheus_Handler(t *testing.T) {
	m := New()
	m.ObserveRoute(entities.RouteDocument)
	m.ObserveHTTP("POST", "/api/chat", 200)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), `ira_routes_total{route="document"} 1`)
	assert.Contains(t, string(body), `ira_http_requests_total{code="200",method="POST",pattern="/api/chat"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
