package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tbourn/go-queue-backend/internal/domain"
)

func TestSetQueueDepth_ZeroesMissingStatuses(t *testing.T) {
	SetQueueDepth("m-depth", map[domain.Status]int64{domain.StatusPending: 3, domain.StatusInService: 1})

	if got := testutil.ToFloat64(queueEntries.WithLabelValues("m-depth", "pending")); got != 3 {
		t.Fatalf("pending = %v, want 3", got)
	}
	if got := testutil.ToFloat64(queueEntries.WithLabelValues("m-depth", "in_service")); got != 1 {
		t.Fatalf("in_service = %v, want 1", got)
	}

	SetQueueDepth("m-depth", map[domain.Status]int64{domain.StatusCompleted: 4})
	if got := testutil.ToFloat64(queueEntries.WithLabelValues("m-depth", "pending")); got != 0 {
		t.Fatalf("pending after refresh = %v, want 0", got)
	}
}

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(queueSweepExpired)
	AddSweepExpired(2)
	AddSweepExpired(0)
	if got := testutil.ToFloat64(queueSweepExpired) - before; got != 2 {
		t.Fatalf("sweep delta = %v, want 2", got)
	}

	RecordTransition("reserve", "ok")
	RecordTransition("reserve", "ok")
	if got := testutil.ToFloat64(queueTransitions.WithLabelValues("reserve", "ok")); got < 2 {
		t.Fatalf("transitions = %v, want >= 2", got)
	}

	NotifyDropped("entryUpdated")
	if got := testutil.ToFloat64(queueNotifyDropped.WithLabelValues("entryUpdated")); got < 1 {
		t.Fatalf("dropped = %v", got)
	}

	SetAverageServiceMs("m-avg", 540000)
	if got := testutil.ToFloat64(queueAverage.WithLabelValues("m-avg")); got != 540000 {
		t.Fatalf("average = %v", got)
	}
}
