package o11y

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultReportInterval is used by StartReporting for a non-positive interval.
const DefaultReportInterval = 30 * time.Second

// HistogramSummary condenses the values recorded by a histogram.
type HistogramSummary struct {
	Count int64   `json:"count"`
	Sum   float64 `json:"sum"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// Snapshot is the state of every instrument of a Standalone provider.
// Series are keyed by instrument name followed by the sorted labels, e.g.
// "obsws_requests_total{request_type=GetVersion}".
type Snapshot struct {
	Timestamp  time.Time                   `json:"timestamp"`
	Counters   map[string]int64            `json:"counters"`
	Histograms map[string]HistogramSummary `json:"histograms"`
	Gauges     map[string]float64          `json:"gauges"`
}

// Standalone is an in-memory MetricsProvider for processes without an
// OpenTelemetry pipeline. Snapshots are taken on demand or reported
// periodically.
type Standalone struct {
	counters   sync.Map // name -> *standaloneCounter
	histograms sync.Map // name -> *standaloneHistogram
	gauges     sync.Map // name -> *standaloneGauge

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started int32
}

var _ MetricsProvider = (*Standalone)(nil)

func NewStandalone() *Standalone {
	return &Standalone{}
}

// StartReporting calls report with a snapshot every interval, and once more
// when Stop is called.
func (s *Standalone) StartReporting(interval time.Duration, report func(Snapshot)) {
	if !atomic.CompareAndSwapInt32(&s.started, 0, 1) {
		return
	}
	if interval <= 0 {
		interval = DefaultReportInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				report(s.Snapshot())
			case <-ctx.Done():
				report(s.Snapshot())
				return
			}
		}
	}()
}

// Stop ends reporting after delivering a final snapshot.
func (s *Standalone) Stop() {
	if !atomic.CompareAndSwapInt32(&s.started, 1, 2) {
		return
	}
	s.cancel()
	s.wg.Wait()
}

// Snapshot returns the current value of every series.
func (s *Standalone) Snapshot() Snapshot {
	snap := Snapshot{
		Timestamp:  time.Now(),
		Counters:   make(map[string]int64),
		Histograms: make(map[string]HistogramSummary),
		Gauges:     make(map[string]float64),
	}

	s.counters.Range(func(_, value any) bool {
		value.(*standaloneCounter).collect(snap.Counters)
		return true
	})
	s.histograms.Range(func(_, value any) bool {
		value.(*standaloneHistogram).collect(snap.Histograms)
		return true
	})
	s.gauges.Range(func(_, value any) bool {
		value.(*standaloneGauge).collect(snap.Gauges)
		return true
	})

	return snap
}

func (s *Standalone) Counter(name string) Counter {
	actual, _ := s.counters.LoadOrStore(name, &standaloneCounter{name: name})
	return actual.(*standaloneCounter)
}

func (s *Standalone) Histogram(name string) Histogram {
	actual, _ := s.histograms.LoadOrStore(name, &standaloneHistogram{name: name})
	return actual.(*standaloneHistogram)
}

func (s *Standalone) Gauge(name string) Gauge {
	actual, _ := s.gauges.LoadOrStore(name, &standaloneGauge{name: name})
	return actual.(*standaloneGauge)
}

// seriesKey renders name{k=v,...} with labels sorted by key.
func seriesKey(name string, labels []Label) string {
	if len(labels) == 0 {
		return name
	}

	sorted := append([]Label(nil), labels...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })

	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('{')
	for i, l := range sorted {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(l.Key)
		b.WriteByte('=')
		b.WriteString(l.Value)
	}
	b.WriteByte('}')
	return b.String()
}

type standaloneCounter struct {
	name   string
	mu     sync.Mutex
	series map[string]int64
}

func (c *standaloneCounter) Add(_ context.Context, value int64, labels ...Label) {
	key := seriesKey(c.name, labels)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.series == nil {
		c.series = make(map[string]int64)
	}
	c.series[key] += value
}

func (c *standaloneCounter) collect(into map[string]int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, value := range c.series {
		into[key] = value
	}
}

type standaloneHistogram struct {
	name   string
	mu     sync.Mutex
	series map[string]*HistogramSummary
}

func (h *standaloneHistogram) Record(_ context.Context, value float64, labels ...Label) {
	key := seriesKey(h.name, labels)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.series == nil {
		h.series = make(map[string]*HistogramSummary)
	}

	summary, ok := h.series[key]
	if !ok {
		summary = &HistogramSummary{Min: math.Inf(1), Max: math.Inf(-1)}
		h.series[key] = summary
	}
	summary.Count++
	summary.Sum += value
	summary.Min = math.Min(summary.Min, value)
	summary.Max = math.Max(summary.Max, value)
}

func (h *standaloneHistogram) collect(into map[string]HistogramSummary) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for key, summary := range h.series {
		into[key] = *summary
	}
}

type standaloneGauge struct {
	name   string
	mu     sync.Mutex
	series map[string]float64
}

func (g *standaloneGauge) Set(_ context.Context, value float64, labels ...Label) {
	key := seriesKey(g.name, labels)
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.series == nil {
		g.series = make(map[string]float64)
	}
	g.series[key] = value
}

func (g *standaloneGauge) collect(into map[string]float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for key, value := range g.series {
		into[key] = value
	}
}
