package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func scrape(t *testing.T, gatherer prometheus.Gatherer) (int, string) {
	t.Helper()
	w := httptest.NewRecorder()
	Handler(gatherer).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestHandler_ServesRecordedMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordAuthOutcome("login", "success")
	c.RecordFavoriteToggle(true)

	status, body := scrape(t, reg)
	if status != http.StatusOK {
		t.Errorf("status = %d, want %d", status, http.StatusOK)
	}
	for _, want := range []string{
		`makersgallery_auth_outcome_total{operation="login",result="success"} 1`,
		"makersgallery_favorite_toggles_total",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("response should contain %q\n%s", want, body)
		}
	}
}

// failingCollector は収集時に常にエラーを返す。
type failingCollector struct {
	desc *prometheus.Desc
}

func (c failingCollector) Describe(ch chan<- *prometheus.Desc) { ch <- c.desc }
func (c failingCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.NewInvalidMetric(c.desc, io.ErrUnexpectedEOF)
}

func TestHandler_ContinuesOnCollectError(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordHTTPStatus(http.StatusOK)
	reg.MustRegister(failingCollector{
		desc: prometheus.NewDesc("makersgallery_broken", "always fails", nil, nil),
	})

	status, body := scrape(t, reg)
	if status != http.StatusOK {
		t.Errorf("status = %d, want %d", status, http.StatusOK)
	}
	if !strings.Contains(body, "makersgallery_http_status_total") {
		t.Errorf("healthy metrics should still be served\n%s", body)
	}
}
