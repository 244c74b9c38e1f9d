package metrics

import (
	"bytes"
	"database/sql"
	"log"
	"strings"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRecordAfterInit(t *testing.T) {
	// no-ops before registration
	ObserveTick(1, 0, time.Millisecond)
	AddMarksCleared("recovered", 1)

	Init(nil, nil)

	ObserveTick(3, 1, time.Millisecond)
	ObserveTick(0, 2, time.Millisecond)
	if got := testutil.ToFloat64(tickTotal.WithLabelValues(resultPartial)); got != 1 {
		t.Fatalf("expected 1 partial tick, got %v", got)
	}
	if got := testutil.ToFloat64(tickTotal.WithLabelValues(resultError)); got != 1 {
		t.Fatalf("expected 1 failed tick, got %v", got)
	}
	if got := testutil.ToFloat64(samplesWritten.WithLabelValues(resultError)); got != 3 {
		t.Fatalf("expected 3 failed samples, got %v", got)
	}

	ObserveRotation("", time.Millisecond)
	if got := testutil.ToFloat64(rotationTotal.WithLabelValues(resultSuccess)); got != 1 {
		t.Fatalf("expected 1 rotation, got %v", got)
	}

	AddNotificationsSent("building", 2)
	AddNotificationsSent("building", 0)
	if got := testutil.ToFloat64(notificationsSent.WithLabelValues("building")); got != 2 {
		t.Fatalf("expected 2 building notifications, got %v", got)
	}

	SetSubjectLevels("device", map[string]int{"critical": 4})
	if got := testutil.ToFloat64(subjectLevels.WithLabelValues("device", "critical")); got != 4 {
		t.Fatalf("expected 4 critical devices, got %v", got)
	}
}

func TestStoredCountGaugeReadsZeroOnQueryError(t *testing.T) {
	db, err := sql.Open("pgx", "postgres://monitor@127.0.0.1:1/monitor")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	db.Close()

	var buf bytes.Buffer
	gauge := storedCountGauge(db, log.New(&buf, "", 0), "activity_records", "Stored activity buffers",
		"SELECT COUNT(*) FROM activity_records")
	if got := testutil.ToFloat64(gauge); got != 0 {
		t.Fatalf("expected 0 on closed db, got %v", got)
	}
	if !strings.Contains(buf.String(), "metrics query failed: activity_records") {
		t.Fatalf("expected query failure to be logged, got %q", buf.String())
	}
}
