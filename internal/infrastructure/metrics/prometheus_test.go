package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordEventIncrementsKind(t *testing.T) {
	before := testutil.ToFloat64(eventsTotal.WithLabelValues("trade"))
	RecordEvent("trade")
	RecordEvent("trade")
	if got := testutil.ToFloat64(eventsTotal.WithLabelValues("trade")) - before; got != 2 {
		t.Errorf("expected 2 trade events, got %v", got)
	}
}

func TestGauges(t *testing.T) {
	SetLedgerSize(42)
	if got := testutil.ToFloat64(ledgerSize); got != 42 {
		t.Errorf("expected ledger size 42, got %v", got)
	}
	SetCurrentStep(7)
	if got := testutil.ToFloat64(currentStep); got != 7 {
		t.Errorf("expected current step 7, got %v", got)
	}
}

func TestRecordHTTPRequestLabelsCode(t *testing.T) {
	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/trending", "200"))
	RecordHTTPRequest("/trending", 200, time.Millisecond)
	if got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/trending", "200")) - before; got != 1 {
		t.Errorf("expected 1 request, got %v", got)
	}
}
