package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics(t *testing.T) {
	m := NewMetrics()
	require.NotNil(t, m)

	m.ChatRequestsTotal.WithLabelValues("ok").Inc()
	m.ToolExecutionsTotal.WithLabelValues("domestic_stock", "ok").Inc()
	m.ChatStreamsActive.Inc()
	m.SettingsUpdatesTotal.WithLabelValues("rejected").Inc()
}

func TestHandler(t *testing.T) {
	m := NewMetrics()
	m.ChatRequestsTotal.WithLabelValues("ok").Inc()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	m.Handler().ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "chat_requests_total"))
}
