package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordDetection(t *testing.T) {
	before := testutil.ToFloat64(DetectionRequestsTotal.WithLabelValues("success"))
	RecordDetection("success", 3, 2*time.Second)
	after := testutil.ToFloat64(DetectionRequestsTotal.WithLabelValues("success"))
	if after != before+1 {
		t.Errorf("success counter = %v, want %v", after, before+1)
	}
}

func TestRecordVisionCall(t *testing.T) {
	before := testutil.ToFloat64(VisionErrorsTotal.WithLabelValues("openai", "UPSTREAM_ERROR"))

	RecordVisionCall("openai", time.Second, "")
	if got := testutil.ToFloat64(VisionErrorsTotal.WithLabelValues("openai", "UPSTREAM_ERROR")); got != before {
		t.Errorf("successful call counted as error: %v", got)
	}

	RecordVisionCall("openai", time.Second, "UPSTREAM_ERROR")
	if got := testutil.ToFloat64(VisionErrorsTotal.WithLabelValues("openai", "UPSTREAM_ERROR")); got != before+1 {
		t.Errorf("error counter = %v, want %v", got, before+1)
	}
}

func TestRecordChunkQuery(t *testing.T) {
	before := testutil.ToFloat64(CatalogChunkFailuresTotal)
	RecordChunkQuery(time.Millisecond, nil)
	RecordChunkQuery(time.Millisecond, errors.New("boom"))
	if got := testutil.ToFloat64(CatalogChunkFailuresTotal); got != before+1 {
		t.Errorf("chunk failures = %v, want %v", got, before+1)
	}
}

func TestRecordCacheLookup(t *testing.T) {
	hits := testutil.ToFloat64(CacheHitsTotal.WithLabelValues("gemini"))
	misses := testutil.ToFloat64(CacheMissesTotal.WithLabelValues("gemini"))

	RecordCacheLookup("gemini", true)
	RecordCacheLookup("gemini", false)
	RecordCacheLookup("gemini", false)

	if got := testutil.ToFloat64(CacheHitsTotal.WithLabelValues("gemini")); got != hits+1 {
		t.Errorf("hits = %v, want %v", got, hits+1)
	}
	if got := testutil.ToFloat64(CacheMissesTotal.WithLabelValues("gemini")); got != misses+2 {
		t.Errorf("misses = %v, want %v", got, misses+2)
	}
}

func TestSetBreakerState(t *testing.T) {
	SetBreakerState("openai", 2)
	if got := testutil.ToFloat64(BreakerState.WithLabelValues("openai")); got != 2 {
		t.Errorf("breaker state = %v, want 2", got)
	}
}
