package metrics_test

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"momentkey/internal/metrics"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *metrics.Metrics
	m.SessionFinished("established")
	m.ObserveStep("agree", time.Now())
	m.SharesCollected(2)
	m.Artifact("encrypt", nil)
	m.Commitment(errors.New("x"))
}

func TestHandlerExposesCounters(t *testing.T) {
	m := metrics.New()
	m.SessionFinished("established")
	m.Commitment(nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{
		`momentkey_sessions_total{outcome="established"} 1`,
		`momentkey_ledger_commitments_total{result="ok"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %q in:\n%s", want, body)
		}
	}
}
