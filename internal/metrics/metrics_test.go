package metrics

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/KaramelBytes/datalens-cli/internal/chart"
	"github.com/KaramelBytes/datalens-cli/internal/ingest"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	m := New()
	m.Ingested(ingest.FormatCSV)
	m.Ingested(ingest.FormatCSV)
	m.Ingested(ingest.FormatXLSX)
	m.IngestFailed(&ingest.EncodingError{Name: "x", Offset: 3})
	m.IngestFailed(fmt.Errorf("wrapped: %w", &ingest.EmptyInputError{Name: "x"}))
	m.IngestFailed(errors.New("disk"))

	if got := testutil.ToFloat64(m.ingestTotal.WithLabelValues("csv")); got != 2 {
		t.Fatalf("csv ingests = %v", got)
	}
	for kind, want := range map[string]float64{"encoding": 1, "empty": 1, "other": 1, "format": 0} {
		if got := testutil.ToFloat64(m.ingestErrors.WithLabelValues(kind)); got != want {
			t.Errorf("errors{%s} = %v, want %v", kind, got, want)
		}
	}

	m.ChartRequested(chart.Scatter, nil)
	m.ChartRequested(chart.Scatter, &chart.IncompatibleColumnError{Kind: chart.Scatter, Column: "b"})
	m.ChartRequested(chart.Bar, chart.ErrUnknownAggregation)
	if got := testutil.ToFloat64(m.chartRequests.WithLabelValues("scatter", "incompatible")); got != 1 {
		t.Fatalf("incompatible = %v", got)
	}
	if got := testutil.CollectAndCount(m.chartRequests); got != 3 {
		t.Fatalf("chart series = %d", got)
	}

	m.ObserveProfile(time.Now().Add(-10 * time.Millisecond))
	if got := testutil.CollectAndCount(m.profileSeconds); got != 1 {
		t.Fatalf("histogram series = %d", got)
	}
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.Ingested(ingest.FormatText)
	path := filepath.Join(t.TempDir(), "datalens.prom")
	if err := m.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), `datalens_ingest_total{format="text"} 1`) {
		t.Fatalf("textfile:\n%s", b)
	}
}
