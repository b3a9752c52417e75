package stats

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/process"
)

// RuntimeStats holds all collected runtime statistics
type RuntimeStats struct {
	StartTime    time.Time          `json:"start_time"`
	EndTime      time.Time          `json:"end_time"`
	TotalElapsed time.Duration      `json:"total_elapsed_ns"`
	ElapsedHuman string             `json:"total_elapsed"`
	Samples      []RuntimeStatPoint `json:"samples"`
	Summary      StatsSummary       `json:"summary"`
	// Counters reported by the job being measured, e.g. features classified.
	Counters map[string]int64 `json:"counters,omitempty"`
}

// RuntimeStatPoint represents a single sample of runtime stats
type RuntimeStatPoint struct {
	Timestamp       time.Time `json:"timestamp"`
	ElapsedSeconds  float64   `json:"elapsed_seconds"`
	HeapAlloc       uint64    `json:"heap_alloc"`
	HeapSys         uint64    `json:"heap_sys"`
	Sys             uint64    `json:"sys"`
	NumGC           uint32    `json:"num_gc"`
	ProcessRSSBytes uint64    `json:"process_rss_bytes"`
	CPUPercent      float64   `json:"cpu_percent"`
	SystemCPU       []float64 `json:"system_cpu_percent"`
	NumGoroutine    int       `json:"num_goroutine"`
}

type StatsSummary struct {
	PeakHeapAlloc    uint64  `json:"peak_heap_alloc"`
	PeakSys          uint64  `json:"peak_sys"`
	PeakProcessRSS   uint64  `json:"peak_process_rss"`
	PeakCPUPercent   float64 `json:"peak_cpu_percent"`
	AvgCPUPercent    float64 `json:"avg_cpu_percent"`
	PeakGoroutines   int     `json:"peak_goroutines"`
	TotalGCCycles    uint32  `json:"total_gc_cycles"`
	SampleCount      int     `json:"sample_count"`
	SampleIntervalMs int64   `json:"sample_interval_ms"`
}

// Collector samples process statistics while a long running job works.
type Collector struct {
	mu        sync.Mutex
	stats     RuntimeStats
	startTime time.Time
	stopChan  chan struct{}
	doneChan  chan struct{}
	interval  time.Duration
	proc      *process.Process
}

func NewCollector(interval time.Duration) (*Collector, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("failed to get process info: %w", err)
	}

	return &Collector{
		stats: RuntimeStats{
			Samples:  make([]RuntimeStatPoint, 0, 1000),
			Counters: map[string]int64{},
		},
		interval: interval,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
		proc:     proc,
	}, nil
}

func (c *Collector) Start() {
	c.startTime = time.Now()
	c.stats.StartTime = c.startTime

	go c.collect()
}

// Count adds n to a named job counter.
func (c *Collector) Count(name string, n int64) {
	c.mu.Lock()
	c.stats.Counters[name] += n
	c.mu.Unlock()
}

func (c *Collector) collect() {
	defer close(c.doneChan)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.sample()

	for {
		select {
		case <-c.stopChan:
			c.sample()
			return
		case <-ticker.C:
			c.sample()
		}
	}
}

func (c *Collector) sample() {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	point := RuntimeStatPoint{
		Timestamp:      time.Now(),
		ElapsedSeconds: time.Since(c.startTime).Seconds(),
		HeapAlloc:      memStats.HeapAlloc,
		HeapSys:        memStats.HeapSys,
		Sys:            memStats.Sys,
		NumGC:          memStats.NumGC,
		NumGoroutine:   runtime.NumGoroutine(),
	}

	if memInfo, err := c.proc.MemoryInfo(); err == nil && memInfo != nil {
		point.ProcessRSSBytes = memInfo.RSS
	}
	if cpuPercent, err := c.proc.CPUPercent(); err == nil {
		point.CPUPercent = cpuPercent
	}
	if systemCPU, err := cpu.Percent(0, true); err == nil {
		point.SystemCPU = systemCPU
	}

	c.mu.Lock()
	c.stats.Samples = append(c.stats.Samples, point)
	c.mu.Unlock()
}

// Stop stops collecting and returns the final stats
func (c *Collector) Stop() RuntimeStats {
	close(c.stopChan)
	<-c.doneChan

	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.EndTime = time.Now()
	c.stats.TotalElapsed = c.stats.EndTime.Sub(c.stats.StartTime)
	c.stats.ElapsedHuman = c.stats.TotalElapsed.String()
	c.stats.Summary = summarize(c.stats.Samples, c.interval)

	return c.stats
}

func summarize(samples []RuntimeStatPoint, interval time.Duration) StatsSummary {
	s := StatsSummary{
		SampleCount:      len(samples),
		SampleIntervalMs: interval.Milliseconds(),
	}
	if len(samples) == 0 {
		return s
	}

	var totalCPU float64
	for _, p := range samples {
		s.PeakHeapAlloc = max(s.PeakHeapAlloc, p.HeapAlloc)
		s.PeakSys = max(s.PeakSys, p.Sys)
		s.PeakProcessRSS = max(s.PeakProcessRSS, p.ProcessRSSBytes)
		s.PeakCPUPercent = max(s.PeakCPUPercent, p.CPUPercent)
		s.PeakGoroutines = max(s.PeakGoroutines, p.NumGoroutine)
		s.TotalGCCycles = max(s.TotalGCCycles, p.NumGC)
		totalCPU += p.CPUPercent
	}
	s.AvgCPUPercent = totalCPU / float64(len(samples))
	return s
}

const rule = "--------------------------------------------------------------------------------\n"

// WriteReport renders a human readable report.
func (stats *RuntimeStats) WriteReport(w io.Writer) error {
	var sb strings.Builder

	sb.WriteString("RUN\n" + rule)
	fmt.Fprintf(&sb, "  Start Time:      %s\n", stats.StartTime.Format(time.RFC3339))
	fmt.Fprintf(&sb, "  End Time:        %s\n", stats.EndTime.Format(time.RFC3339))
	fmt.Fprintf(&sb, "  Total Duration:  %s\n\n", stats.ElapsedHuman)

	if len(stats.Counters) > 0 {
		sb.WriteString("COUNTERS\n" + rule)
		names := make([]string, 0, len(stats.Counters))
		for name := range stats.Counters {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			fmt.Fprintf(&sb, "  %-20s %s\n", name+":", humanize.Comma(stats.Counters[name]))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("SUMMARY\n" + rule)
	fmt.Fprintf(&sb, "  Samples:           %d every %d ms\n", stats.Summary.SampleCount, stats.Summary.SampleIntervalMs)
	fmt.Fprintf(&sb, "  Peak Heap:         %s\n", humanize.IBytes(stats.Summary.PeakHeapAlloc))
	fmt.Fprintf(&sb, "  Peak System:       %s\n", humanize.IBytes(stats.Summary.PeakSys))
	fmt.Fprintf(&sb, "  Peak RSS:          %s\n", humanize.IBytes(stats.Summary.PeakProcessRSS))
	fmt.Fprintf(&sb, "  Peak CPU:          %.2f%%\n", stats.Summary.PeakCPUPercent)
	fmt.Fprintf(&sb, "  Average CPU:       %.2f%%\n", stats.Summary.AvgCPUPercent)
	fmt.Fprintf(&sb, "  Peak Goroutines:   %d\n", stats.Summary.PeakGoroutines)
	fmt.Fprintf(&sb, "  GC Cycles:         %d\n\n", stats.Summary.TotalGCCycles)

	const maxSamples = 100
	samples := stats.Samples
	if len(samples) > maxSamples {
		samples = make([]RuntimeStatPoint, 0, maxSamples)
		step := float64(len(stats.Samples)-1) / float64(maxSamples-1)
		for i := range maxSamples {
			samples = append(samples, stats.Samples[int(float64(i)*step)])
		}
	}

	sb.WriteString("SAMPLES\n" + rule)
	fmt.Fprintf(&sb, "%-12s %-14s %-14s %-10s %-10s\n", "Elapsed(s)", "Heap", "RSS", "CPU %", "Goroutines")
	for _, p := range samples {
		fmt.Fprintf(&sb, "%-12.1f %-14s %-14s %-10.1f %-10d\n",
			p.ElapsedSeconds,
			humanize.IBytes(p.HeapAlloc),
			humanize.IBytes(p.ProcessRSSBytes),
			p.CPUPercent,
			p.NumGoroutine)
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

func (stats *RuntimeStats) SaveToFile(filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create stats file: %w", err)
	}
	defer f.Close()
	if err := stats.WriteReport(f); err != nil {
		return fmt.Errorf("failed to write stats file: %w", err)
	}
	return f.Close()
}
