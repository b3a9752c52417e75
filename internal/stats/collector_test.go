package stats

import (
	"strings"
	"testing"
	"time"
)

func TestSummarize(t *testing.T) {
	s := summarize([]RuntimeStatPoint{
		{HeapAlloc: 10, CPUPercent: 50, NumGoroutine: 3, NumGC: 1},
		{HeapAlloc: 30, CPUPercent: 100, NumGoroutine: 2, NumGC: 4},
	}, time.Second)

	if s.PeakHeapAlloc != 30 || s.PeakGoroutines != 3 || s.TotalGCCycles != 4 {
		t.Fatalf("unexpected peaks: %+v", s)
	}
	if s.AvgCPUPercent != 75 {
		t.Fatalf("avg cpu = %v, want 75", s.AvgCPUPercent)
	}
	if s.SampleCount != 2 || s.SampleIntervalMs != 1000 {
		t.Fatalf("unexpected sample info: %+v", s)
	}

	if empty := summarize(nil, time.Second); empty.SampleCount != 0 || empty.AvgCPUPercent != 0 {
		t.Fatalf("unexpected empty summary: %+v", empty)
	}
}

func TestWriteReport(t *testing.T) {
	stats := RuntimeStats{
		Counters: map[string]int64{"classified": 1234567, "skipped": 3},
		Samples:  []RuntimeStatPoint{{HeapAlloc: 3 << 20}},
		Summary:  StatsSummary{PeakHeapAlloc: 3 << 20},
	}

	var sb strings.Builder
	if err := stats.WriteReport(&sb); err != nil {
		t.Fatal(err)
	}
	out := sb.String()
	for _, want := range []string{"1,234,567", "3.0 MiB", "skipped:"} {
		if !strings.Contains(out, want) {
			t.Fatalf("report misses %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "classified:") > strings.Index(out, "skipped:") {
		t.Fatalf("counters are not sorted:\n%s", out)
	}
}

func TestCollector(t *testing.T) {
	c, err := NewCollector(10 * time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	c.Start()
	c.Count("resolved", 2)
	c.Count("resolved", 3)
	time.Sleep(30 * time.Millisecond)
	stats := c.Stop()

	if stats.Counters["resolved"] != 5 {
		t.Fatalf("resolved = %d, want 5", stats.Counters["resolved"])
	}
	if stats.Summary.SampleCount < 2 {
		t.Fatalf("expected at least two samples, got %d", stats.Summary.SampleCount)
	}
}
