package stats

import (
	"context"
	"time"

	"github.com/oshokin/agrisecure/internal/domain/security"
	"github.com/oshokin/agrisecure/internal/service/alarms"
)

// DefaultWindowDays is used when a non-positive window is requested.
const DefaultWindowDays = 30

// AlarmLister is the read side of the alarm manager.
type AlarmLister interface {
	// List returns the alarms matching the filter.
	List(ctx context.Context, filter alarms.Filter) []*security.Alarm
}

// Summary is the aggregate view over a time window.
type Summary struct {
	// WindowDays is the effective window length.
	WindowDays int `json:"window_days"`
	// From is the start of the window.
	From time.Time `json:"from"`
	// Total is the number of alarms triggered inside the window.
	Total int `json:"total"`
	// ByStatus counts alarms per status.
	ByStatus map[security.AlarmStatus]int `json:"by_status"`
	// ByPriority counts alarms per priority.
	ByPriority map[security.Priority]int `json:"by_priority"`
	// ByClassification counts alarms per classification.
	ByClassification map[security.Classification]int `json:"by_classification"`
	// Open counts active and acknowledged alarms.
	Open int `json:"open"`
	// FalsePositiveRate is false_positive / (resolved + false_positive), in [0, 1].
	FalsePositiveRate float64 `json:"false_positive_rate"`
	// AverageResponse is the mean trigger-to-acknowledge delay; nil when
	// nothing was acknowledged.
	AverageResponse *time.Duration `json:"average_response,omitempty"`
}

// Aggregator computes summaries on demand.
type Aggregator struct {
	// alarms is the data source.
	alarms AlarmLister
	// defaultWindowDays applies to non-positive requests.
	defaultWindowDays int
	// now returns the current time.
	now func() time.Time
}

// NewAggregator creates an aggregator. A non-positive defaultWindowDays falls
// back to DefaultWindowDays; a nil clock uses time.Now.
func NewAggregator(source AlarmLister, defaultWindowDays int, now func() time.Time) *Aggregator {
	if defaultWindowDays <= 0 {
		defaultWindowDays = DefaultWindowDays
	}

	if now == nil {
		now = time.Now
	}

	return &Aggregator{
		alarms:            source,
		defaultWindowDays: defaultWindowDays,
		now:               now,
	}
}

// Summarize aggregates alarms triggered within the last windowDays. Alarms
// stamped in the future are left out until their time comes.
func (a *Aggregator) Summarize(ctx context.Context, windowDays int) (*Summary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if windowDays <= 0 {
		windowDays = a.defaultWindowDays
	}

	until := a.now()
	from := until.AddDate(0, 0, -windowDays)

	// Filter.To is exclusive; alarms stamped exactly now are inside the window.
	list := a.alarms.List(ctx, alarms.Filter{From: from, To: until.Add(time.Nanosecond)})

	return Fold(list, windowDays, from), nil
}

// Fold builds a summary from an already filtered alarm slice.
func Fold(list []*security.Alarm, windowDays int, from time.Time) *Summary {
	summary := &Summary{
		WindowDays:       windowDays,
		From:             from,
		Total:            len(list),
		ByStatus:         make(map[security.AlarmStatus]int, len(security.AlarmStatuses())),
		ByPriority:       make(map[security.Priority]int, len(security.Priorities())),
		ByClassification: make(map[security.Classification]int, len(security.Classifications())),
	}

	for _, status := range security.AlarmStatuses() {
		summary.ByStatus[status] = 0
	}

	for _, priority := range security.Priorities() {
		summary.ByPriority[priority] = 0
	}

	var (
		responseTotal time.Duration
		responseCount int64
	)

	for _, alarm := range list {
		summary.ByStatus[alarm.Status]++
		summary.ByPriority[alarm.Priority]++
		summary.ByClassification[alarm.Classification]++

		if alarm.Status.IsOpen() {
			summary.Open++
		}

		if rt, ok := alarm.ResponseTime(); ok && rt >= 0 {
			responseTotal += rt
			responseCount++
		}
	}

	falsePositives := summary.ByStatus[security.AlarmStatusFalsePositive]
	if closed := summary.ByStatus[security.AlarmStatusResolved] + falsePositives; closed > 0 {
		summary.FalsePositiveRate = float64(falsePositives) / float64(closed)
	}

	if responseCount > 0 {
		avg := responseTotal / time.Duration(responseCount)
		summary.AverageResponse = &avg
	}

	return summary
}
