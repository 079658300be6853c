package services

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"llmdash/internal/models"

	"gorm.io/gorm"
)

// Granularity is the bucket width used when grouping event timestamps.
type Granularity string

const (
	GranularityMinute Granularity = "minute"
	GranularityHour   Granularity = "hour"
	GranularityDay    Granularity = "day"
)

// Window is the concrete query range derived from a time-range selector.
type Window struct {
	Start    time.Time
	Lookback time.Duration
	Bucket   Granularity
}

// Analytics domains served by the aggregator.
const (
	DomainLLM      = "llm"
	DomainDatabase = "database"
	DomainSystem   = "system"
)

// ResolveWindow maps a coarse selector to a lookback and bucket width,
// evaluated against now. Unrecognized selectors fall back to the 1h
// mapping instead of erroring; dashboard clients send free-form strings
// and expect a usable window back.
func ResolveWindow(selector string, now time.Time) Window {
	var lookback time.Duration
	var bucket Granularity

	switch selector {
	case "15m":
		lookback, bucket = 15*time.Minute, GranularityMinute
	case "1h":
		lookback, bucket = time.Hour, GranularityMinute
	case "6h":
		lookback, bucket = 6*time.Hour, GranularityHour
	case "24h":
		lookback, bucket = 24*time.Hour, GranularityHour
	case "7d":
		lookback, bucket = 7*24*time.Hour, GranularityDay
	default:
		lookback, bucket = time.Hour, GranularityMinute
	}

	return Window{
		Start:    now.Add(-lookback),
		Lookback: lookback,
		Bucket:   bucket,
	}
}

// truncate rounds a timestamp down to the start of its bucket, in UTC.
func truncate(t time.Time, g Granularity) time.Time {
	t = t.UTC()
	switch g {
	case GranularityMinute:
		return t.Truncate(time.Minute)
	case GranularityHour:
		return t.Truncate(time.Hour)
	default:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
}

// bucketLabel formats a bucket start for the chart axis.
func bucketLabel(t time.Time, g Granularity) string {
	switch g {
	case GranularityMinute:
		return t.Format("2006-01-02 15:04")
	case GranularityHour:
		return t.Format("2006-01-02 15:00")
	default:
		return t.Format("2006-01-02")
	}
}

// Bucket is one aggregated point in a time series. Measures that do not
// apply to a domain stay at their zero value. Buckets with no events are
// not synthesized; the series is sparse.
type Bucket struct {
	Bucket        string  `json:"bucket"`
	Count         int64   `json:"count"`
	AvgDurationMs float64 `json:"avg_duration_ms,omitempty"`
	TotalTokens   int64   `json:"total_tokens,omitempty"`
	TotalRows     int64   `json:"total_rows,omitempty"`
	AvgCPU        float64 `json:"avg_cpu_percent,omitempty"`
	AvgMemory     float64 `json:"avg_memory_percent,omitempty"`

	start time.Time
}

// Summary compares the current window against the immediately preceding
// window of equal length.
type Summary struct {
	Domain        string  `json:"domain"`
	TimeRange     string  `json:"time_range"`
	Count         int64   `json:"count"`
	PreviousCount int64   `json:"previous_count"`
	PercentChange float64 `json:"percent_change"`
}

type AnalyticsService struct {
	db *gorm.DB
}

func NewAnalyticsService(db *gorm.DB) *AnalyticsService {
	return &AnalyticsService{db: db}
}

// PercentChange returns the period-over-period change in percent. A zero
// previous period yields 0, not a division error or null; the dashboard
// renders the value directly.
func PercentChange(current, previous float64) float64 {
	if previous == 0 {
		return 0
	}
	return (current - previous) / previous * 100
}

// Aggregate produces the bucketed series for a domain. When the store is
// unreachable it degrades to a synthetic series and reports synthetic=true;
// callers must surface that flag, never pass synthetic data off as real.
// Unknown domains return an error.
func (s *AnalyticsService) Aggregate(domain, selector string) ([]Bucket, bool, error) {
	window := ResolveWindow(selector, time.Now())

	var buckets []Bucket
	var err error

	switch domain {
	case DomainLLM:
		buckets, err = s.aggregateLLM(window)
	case DomainDatabase:
		buckets, err = s.aggregateDatabase(window)
	case DomainSystem:
		buckets, err = s.aggregateSystem(window)
	default:
		return nil, false, fmt.Errorf("unknown analytics domain: %s", domain)
	}

	if err != nil {
		return syntheticSeries(window), true, nil
	}
	return buckets, false, nil
}

// Summarize computes the current-window event count against the preceding
// window of equal length. Store failure degrades to a synthetic summary.
func (s *AnalyticsService) Summarize(domain, selector string) (*Summary, bool, error) {
	switch domain {
	case DomainLLM, DomainDatabase, DomainSystem:
	default:
		return nil, false, fmt.Errorf("unknown analytics domain: %s", domain)
	}

	now := time.Now()
	window := ResolveWindow(selector, now)
	previousStart := window.Start.Add(-window.Lookback)

	current, err := s.countBetween(domain, window.Start, now)
	if err != nil {
		return syntheticSummary(domain, selector), true, nil
	}
	previous, err := s.countBetween(domain, previousStart, window.Start)
	if err != nil {
		return syntheticSummary(domain, selector), true, nil
	}

	return &Summary{
		Domain:        domain,
		TimeRange:     selector,
		Count:         current,
		PreviousCount: previous,
		PercentChange: PercentChange(float64(current), float64(previous)),
	}, false, nil
}

func (s *AnalyticsService) countBetween(domain string, from, to time.Time) (int64, error) {
	var model interface{}
	switch domain {
	case DomainLLM:
		model = &models.LLMRequest{}
	case DomainDatabase:
		model = &models.DatabaseQuery{}
	case DomainSystem:
		model = &models.SystemMetric{}
	default:
		return 0, fmt.Errorf("unknown analytics domain: %s", domain)
	}

	var count int64
	err := s.db.Model(model).Where("created_at >= ? AND created_at < ?", from, to).Count(&count).Error
	return count, err
}

// Bucketing happens in Go over the fetched window rather than in SQL so
// the same code path serves both the sqlite and mysql drivers.

func (s *AnalyticsService) aggregateLLM(window Window) ([]Bucket, error) {
	var rows []models.LLMRequest
	if err := s.db.Where("created_at >= ?", window.Start).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}

	grouped := map[time.Time]*Bucket{}
	durations := map[time.Time]int64{}
	for _, row := range rows {
		key := truncate(row.CreatedAt, window.Bucket)
		b, ok := grouped[key]
		if !ok {
			b = &Bucket{Bucket: bucketLabel(key, window.Bucket), start: key}
			grouped[key] = b
		}
		b.Count++
		b.TotalTokens += int64(row.PromptTokens + row.CompletionTokens)
		durations[key] += int64(row.DurationMs)
	}
	for key, b := range grouped {
		b.AvgDurationMs = float64(durations[key]) / float64(b.Count)
	}

	return sortBuckets(grouped), nil
}

func (s *AnalyticsService) aggregateDatabase(window Window) ([]Bucket, error) {
	var rows []models.DatabaseQuery
	if err := s.db.Where("created_at >= ?", window.Start).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}

	grouped := map[time.Time]*Bucket{}
	durations := map[time.Time]int64{}
	for _, row := range rows {
		key := truncate(row.CreatedAt, window.Bucket)
		b, ok := grouped[key]
		if !ok {
			b = &Bucket{Bucket: bucketLabel(key, window.Bucket), start: key}
			grouped[key] = b
		}
		b.Count++
		b.TotalRows += int64(row.RowsAffected)
		durations[key] += int64(row.DurationMs)
	}
	for key, b := range grouped {
		b.AvgDurationMs = float64(durations[key]) / float64(b.Count)
	}

	return sortBuckets(grouped), nil
}

func (s *AnalyticsService) aggregateSystem(window Window) ([]Bucket, error) {
	var rows []models.SystemMetric
	if err := s.db.Where("created_at >= ?", window.Start).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}

	grouped := map[time.Time]*Bucket{}
	cpu := map[time.Time]float64{}
	mem := map[time.Time]float64{}
	for _, row := range rows {
		key := truncate(row.CreatedAt, window.Bucket)
		b, ok := grouped[key]
		if !ok {
			b = &Bucket{Bucket: bucketLabel(key, window.Bucket), start: key}
			grouped[key] = b
		}
		b.Count++
		cpu[key] += row.CPUPercent
		mem[key] += row.MemoryPercent
	}
	for key, b := range grouped {
		b.AvgCPU = cpu[key] / float64(b.Count)
		b.AvgMemory = mem[key] / float64(b.Count)
	}

	return sortBuckets(grouped), nil
}

func sortBuckets(grouped map[time.Time]*Bucket) []Bucket {
	buckets := make([]Bucket, 0, len(grouped))
	for _, b := range grouped {
		buckets = append(buckets, *b)
	}
	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].start.Before(buckets[j].start)
	})
	return buckets
}

// syntheticSeries fabricates a dense, plausible-looking series covering
// the window. It only ever reaches a client alongside synthetic=true.
func syntheticSeries(window Window) []Bucket {
	var step time.Duration
	switch window.Bucket {
	case GranularityMinute:
		step = time.Minute
	case GranularityHour:
		step = time.Hour
	default:
		step = 24 * time.Hour
	}

	start := truncate(window.Start, window.Bucket)
	end := truncate(time.Now(), window.Bucket)

	var buckets []Bucket
	for t := start; !t.After(end); t = t.Add(step) {
		buckets = append(buckets, Bucket{
			Bucket:        bucketLabel(t, window.Bucket),
			Count:         int64(5 + rand.Intn(45)),
			AvgDurationMs: 50 + rand.Float64()*450,
			start:         t,
		})
	}
	return buckets
}

func syntheticSummary(domain, selector string) *Summary {
	current := int64(100 + rand.Intn(400))
	previous := int64(100 + rand.Intn(400))
	return &Summary{
		Domain:        domain,
		TimeRange:     selector,
		Count:         current,
		PreviousCount: previous,
		PercentChange: PercentChange(float64(current), float64(previous)),
	}
}
