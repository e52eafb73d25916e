package metrics

import (
	"sync"
	"time"
)

type Metrics struct {
	mu sync.RWMutex

	// Counters
	TopicsFetched          int64
	HistoryFiltered        int64
	TopicsSelected         int64
	SelectorFallbacks      int64
	SummaryFallbacks       int64
	RepairSteps            map[string]int64
	SuccessfulTranslations int64
	FailedTranslations     int64
	CachedTranslations     int64
	DeliveriesSent         int64
	DeliveriesFailed       int64
	RunsCompleted          int64

	// Timings
	LastProcessingTime    time.Duration
	AverageProcessingTime time.Duration
	TotalProcessingTime   time.Duration
	ProcessingCount       int64

	// Status
	LastRunID     string
	LastRunTime   time.Time
	LastErrorTime time.Time
	LastError     string
	IsHealthy     bool
}

var Global = New()

func New() *Metrics {
	return &Metrics{IsHealthy: true, RepairSteps: map[string]int64{}}
}

func (m *Metrics) AddTopicsFetched(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TopicsFetched += int64(n)
}

func (m *Metrics) AddHistoryFiltered(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.HistoryFiltered += int64(n)
}

func (m *Metrics) AddTopicsSelected(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TopicsSelected += int64(n)
}

func (m *Metrics) IncrementSelectorFallbacks() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SelectorFallbacks++
}

// RecordRepairStep counts the repair-chain step that produced a bundle.
func (m *Metrics) RecordRepairStep(step string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RepairSteps[step]++
	if step == "fallback" {
		m.SummaryFallbacks++
	}
}

func (m *Metrics) IncrementSuccessfulTranslations() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SuccessfulTranslations++
}

func (m *Metrics) IncrementFailedTranslations() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FailedTranslations++
}

func (m *Metrics) IncrementCachedTranslations() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CachedTranslations++
}

func (m *Metrics) RecordDelivery(ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ok {
		m.DeliveriesSent++
	} else {
		m.DeliveriesFailed++
	}
}

func (m *Metrics) RecordProcessingTime(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LastProcessingTime = duration
	m.TotalProcessingTime += duration
	m.ProcessingCount++

	if m.ProcessingCount > 0 {
		m.AverageProcessingTime = m.TotalProcessingTime / time.Duration(m.ProcessingCount)
	}
}

func (m *Metrics) SetLastRun(runID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastRunID = runID
	m.LastRunTime = time.Now()
	m.RunsCompleted++
	m.IsHealthy = true
}

func (m *Metrics) SetError(err string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastError = err
	m.LastErrorTime = time.Now()
	m.IsHealthy = false
}

func (m *Metrics) Healthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.IsHealthy
}

func (m *Metrics) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	steps := make(map[string]int64, len(m.RepairSteps))
	for k, v := range m.RepairSteps {
		steps[k] = v
	}

	return map[string]interface{}{
		"topics_fetched":             m.TopicsFetched,
		"history_filtered":           m.HistoryFiltered,
		"topics_selected":            m.TopicsSelected,
		"selector_fallbacks":         m.SelectorFallbacks,
		"summary_fallbacks":          m.SummaryFallbacks,
		"repair_steps":               steps,
		"successful_translations":    m.SuccessfulTranslations,
		"failed_translations":        m.FailedTranslations,
		"cached_translations":        m.CachedTranslations,
		"deliveries_sent":            m.DeliveriesSent,
		"deliveries_failed":          m.DeliveriesFailed,
		"runs_completed":             m.RunsCompleted,
		"last_processing_time_ms":    m.LastProcessingTime.Milliseconds(),
		"average_processing_time_ms": m.AverageProcessingTime.Milliseconds(),
		"last_run_id":                m.LastRunID,
		"last_run_time":              m.LastRunTime.Format(time.RFC3339),
		"last_error_time":            m.LastErrorTime.Format(time.RFC3339),
		"last_error":                 m.LastError,
		"is_healthy":                 m.IsHealthy,
	}
}
