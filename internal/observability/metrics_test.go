package observability

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordTransition(t *testing.T) {
	before := testutil.ToFloat64(DefaultMetrics.Convergences.WithLabelValues("refire"))
	RecordTransition("converged", "converged", true, true)
	RecordTransition("seen", "seen", false, false)

	after := testutil.ToFloat64(DefaultMetrics.Convergences.WithLabelValues("refire"))
	if after-before != 1 {
		t.Errorf("expected one refire, got %v", after-before)
	}
}

func TestRecordNotification(t *testing.T) {
	sent := testutil.ToFloat64(DefaultMetrics.NotificationsSent.WithLabelValues("test"))
	failed := testutil.ToFloat64(DefaultMetrics.NotificationsFailed.WithLabelValues("test"))

	RecordNotification("test", nil)
	RecordNotification("test", errors.New("down"))

	if got := testutil.ToFloat64(DefaultMetrics.NotificationsSent.WithLabelValues("test")) - sent; got != 1 {
		t.Errorf("expected 1 sent, got %v", got)
	}
	if got := testutil.ToFloat64(DefaultMetrics.NotificationsFailed.WithLabelValues("test")) - failed; got != 1 {
		t.Errorf("expected 1 failed, got %v", got)
	}
}

func TestHandler(t *testing.T) {
	RecordPromotion("lineage-1", "promoted")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if !strings.Contains(rec.Body.String(), "lineage_tracker_lineage_promotions_total") {
		t.Error("expected promotions metric in output")
	}
}
