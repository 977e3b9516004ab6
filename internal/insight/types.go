// Package insight defines the domain types shared between the processing
// engine and its consumers: analytical tasks, domain records, produced
// insights and the filters used to query and subscribe to them.
package insight

import (
	"context"
	"time"
)

// TaskKind identifies the analytical computation a task requests.
type TaskKind string

const (
	TaskPatternAnalysis     TaskKind = "pattern-analysis"
	TaskTrendDetection      TaskKind = "trend-detection"
	TaskCorrelationAnalysis TaskKind = "correlation-analysis"
	TaskAnomalyDetection    TaskKind = "anomaly-detection"
	TaskPrediction          TaskKind = "prediction"
	TaskSummaryGeneration   TaskKind = "summary-generation"
)

// Priority orders tasks in the queue. High runs before medium, medium
// before low.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Weight returns the dispatch order of a priority; lower runs first.
// Unknown values sort after low.
func (p Priority) Weight() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 2
	default:
		return 3
	}
}

// Timeframe is the lookback window a task analyzes.
type Timeframe string

const (
	TimeframeWeek    Timeframe = "week"
	TimeframeMonth   Timeframe = "month"
	TimeframeQuarter Timeframe = "quarter"
	TimeframeYear    Timeframe = "year"
)

// Days returns the approximate day count of a timeframe. Zero for an
// unset or unknown timeframe.
func (t Timeframe) Days() int {
	switch t {
	case TimeframeWeek:
		return 7
	case TimeframeMonth:
		return 30
	case TimeframeQuarter:
		return 90
	case TimeframeYear:
		return 365
	default:
		return 0
	}
}

// Record is a single domain record embedded into a task payload. The
// engine treats records as opaque immutable input; only the computation
// function interprets them.
type Record struct {
	ID        string
	Timestamp time.Time
	Values    map[string]float64
	Tags      map[string]string
}

// Task is a unit of analytical work. Immutable once created.
type Task struct {
	ID          string
	Kind        TaskKind
	Records     []Record
	Timeframe   Timeframe
	Context     map[string]any
	Priority    Priority
	SubmittedAt time.Time
}

// InsightKind classifies a produced insight.
type InsightKind string

const (
	KindPattern        InsightKind = "pattern"
	KindTrend          InsightKind = "trend"
	KindCorrelation    InsightKind = "correlation"
	KindAnomaly        InsightKind = "anomaly"
	KindPrediction     InsightKind = "prediction"
	KindRecommendation InsightKind = "recommendation"
)

// Severity grades how urgent an insight is for the consumer.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Metadata describes how an insight was produced.
type Metadata struct {
	BasedOnRecords int
	TimeframeDays  int
	Algorithm      string
	Version        string
}

// Insight is a structured analytical result. Immutable once produced;
// identity is ID, and a later insight with the same ID replaces the
// earlier one in the store.
type Insight struct {
	ID          string
	Kind        InsightKind
	Title       string
	Description string
	Confidence  float64 // 0..100
	Severity    Severity
	Data        map[string]any
	GeneratedAt time.Time
	ValidUntil  *time.Time
	Metadata    Metadata
}

// ComputeFunc is the pluggable insight computation function. It is
// invoked once per dispatched task by whichever worker received the
// task, and must be safe for concurrent invocation.
type ComputeFunc func(ctx context.Context, task Task) ([]Insight, error)

// ProcessingStats is a point-in-time snapshot of engine accounting.
type ProcessingStats struct {
	TotalTasks              int
	CompletedTasks          int
	FailedTasks             int
	AverageProcessingTimeMs float64
	LastProcessedAt         *time.Time
	QueueSize               int
}
