// Package analysis provides the built-in insight computation function.
// Every analyzer is a pure function over the task's records; the engine
// only depends on the insight.ComputeFunc signature, so these can be
// swapped for domain-specific implementations.
package analysis

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/vigilix/insightd/internal/insight"
)

const algorithmVersion = "1.0.0"

var titleCaser = cases.Title(language.English)

// Compute dispatches a task to the analyzer for its kind.
func Compute(ctx context.Context, task insight.Task) ([]insight.Insight, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(task.Records) == 0 {
		return nil, fmt.Errorf("task %s has no records to analyze", task.ID)
	}

	switch task.Kind {
	case insight.TaskPatternAnalysis:
		return analyzePatterns(task), nil
	case insight.TaskTrendDetection:
		return detectTrends(task), nil
	case insight.TaskCorrelationAnalysis:
		return analyzeCorrelations(task), nil
	case insight.TaskAnomalyDetection:
		return detectAnomalies(task), nil
	case insight.TaskPrediction:
		return predict(task), nil
	case insight.TaskSummaryGeneration:
		return summarize(task), nil
	default:
		return nil, fmt.Errorf("unknown task kind: %s", task.Kind)
	}
}

// analyzePatterns reports the recurring level of each metric.
func analyzePatterns(task insight.Task) []insight.Insight {
	var insights []insight.Insight
	for _, metric := range metricNames(task.Records) {
		series := metricSeries(task.Records, metric)
		if len(series) < 3 {
			continue
		}

		m := mean(series)
		confidence := sampleConfidence(len(series))
		insights = append(insights, newInsight(task, insight.KindPattern, metric,
			fmt.Sprintf("%s Pattern", metricTitle(metric)),
			fmt.Sprintf("%s averages %.2f across %d records", metric, m, len(series)),
			confidence,
			severityFor(confidence),
			map[string]any{"metric": metric, "mean": m, "samples": len(series)},
			"pattern-mean"))
	}
	return insights
}

// detectTrends fits a least-squares line per metric and reports its
// direction.
func detectTrends(task insight.Task) []insight.Insight {
	var insights []insight.Insight
	for _, metric := range metricNames(task.Records) {
		series := metricSeries(task.Records, metric)
		if len(series) < 4 {
			continue
		}

		slope, r2 := linearFit(series)
		direction := "stable"
		if slope > 0.01 {
			direction = "rising"
		} else if slope < -0.01 {
			direction = "falling"
		}

		confidence := clampConfidence(r2 * 100)
		insights = append(insights, newInsight(task, insight.KindTrend, metric,
			fmt.Sprintf("%s Trend: %s", metricTitle(metric), titleCaser.String(direction)),
			fmt.Sprintf("%s is %s (slope %.4f per record over %d records)", metric, direction, slope, len(series)),
			confidence,
			severityFor(confidence),
			map[string]any{"metric": metric, "slope": slope, "r2": r2, "direction": direction},
			"trend-least-squares"))
	}
	return insights
}

// analyzeCorrelations reports metric pairs with a strong Pearson
// correlation.
func analyzeCorrelations(task insight.Task) []insight.Insight {
	var insights []insight.Insight
	metrics := metricNames(task.Records)

	for i := 0; i < len(metrics); i++ {
		for j := i + 1; j < len(metrics); j++ {
			a := metricSeries(task.Records, metrics[i])
			b := metricSeries(task.Records, metrics[j])
			n := len(a)
			if len(b) < n {
				n = len(b)
			}
			if n < 4 {
				continue
			}

			r := pearson(a[:n], b[:n])
			if math.Abs(r) < 0.6 {
				continue
			}

			relation := "positively"
			if r < 0 {
				relation = "negatively"
			}
			confidence := clampConfidence(math.Abs(r) * 100)
			insights = append(insights, newInsight(task, insight.KindCorrelation, metrics[i]+"-"+metrics[j],
				fmt.Sprintf("%s And %s Move Together", metricTitle(metrics[i]), metricTitle(metrics[j])),
				fmt.Sprintf("%s and %s are %s correlated (r=%.2f over %d records)", metrics[i], metrics[j], relation, r, n),
				confidence,
				severityFor(confidence),
				map[string]any{"metrics": []string{metrics[i], metrics[j]}, "r": r, "samples": n},
				"correlation-pearson"))
		}
	}
	return insights
}

// detectAnomalies flags values more than two standard deviations from
// the metric mean.
func detectAnomalies(task insight.Task) []insight.Insight {
	var insights []insight.Insight
	for _, metric := range metricNames(task.Records) {
		series := metricSeries(task.Records, metric)
		if len(series) < 5 {
			continue
		}

		m := mean(series)
		sd := stddev(series, m)
		if sd == 0 {
			continue
		}

		worst := 0.0
		count := 0
		for _, v := range series {
			z := math.Abs(v-m) / sd
			if z > 2 {
				count++
				if z > worst {
					worst = z
				}
			}
		}
		if count == 0 {
			continue
		}

		confidence := clampConfidence(60 + worst*10)
		severity := insight.SeverityMedium
		if worst > 3 {
			severity = insight.SeverityCritical
		} else if worst > 2.5 {
			severity = insight.SeverityHigh
		}

		insights = append(insights, newInsight(task, insight.KindAnomaly, metric,
			fmt.Sprintf("%s Anomaly", metricTitle(metric)),
			fmt.Sprintf("%d of %d %s values deviate more than 2 standard deviations (max z=%.2f)", count, len(series), metric, worst),
			confidence,
			severity,
			map[string]any{"metric": metric, "anomalies": count, "max_z": worst},
			"anomaly-zscore"))
	}
	return insights
}

// predict extrapolates each metric one step ahead along its fitted
// trend line.
func predict(task insight.Task) []insight.Insight {
	var insights []insight.Insight
	for _, metric := range metricNames(task.Records) {
		series := metricSeries(task.Records, metric)
		if len(series) < 4 {
			continue
		}

		slope, r2 := linearFit(series)
		next := series[len(series)-1] + slope
		confidence := clampConfidence(r2 * 90)

		validUntil := time.Now().Add(time.Duration(task.Timeframe.Days()) * 24 * time.Hour)
		ins := newInsight(task, insight.KindPrediction, metric,
			fmt.Sprintf("%s Forecast", metricTitle(metric)),
			fmt.Sprintf("%s is expected around %.2f next period", metric, next),
			confidence,
			severityFor(confidence),
			map[string]any{"metric": metric, "predicted": next, "slope": slope},
			"prediction-linear")
		ins.ValidUntil = &validUntil
		insights = append(insights, ins)
	}
	return insights
}

// summarize produces a single recommendation-style overview insight.
func summarize(task insight.Task) []insight.Insight {
	metrics := metricNames(task.Records)
	parts := make([]string, 0, len(metrics))
	for _, metric := range metrics {
		series := metricSeries(task.Records, metric)
		parts = append(parts, fmt.Sprintf("%s avg %.2f", metric, mean(series)))
	}

	ins := newInsight(task, insight.KindRecommendation, "summary",
		"Period Summary",
		fmt.Sprintf("%d records across %d metrics: %s", len(task.Records), len(metrics), strings.Join(parts, ", ")),
		sampleConfidence(len(task.Records)),
		insight.SeverityLow,
		map[string]any{"records": len(task.Records), "metrics": metrics},
		"summary-aggregate")
	return []insight.Insight{ins}
}

// newInsight fills the fields every analyzer shares. The id is
// deterministic per kind and subject so a recomputation overwrites the
// previous result in the store.
func newInsight(task insight.Task, kind insight.InsightKind, subject, title, description string, confidence float64, severity insight.Severity, data map[string]any, algorithm string) insight.Insight {
	return insight.Insight{
		ID:          fmt.Sprintf("%s:%s", kind, subject),
		Kind:        kind,
		Title:       title,
		Description: description,
		Confidence:  confidence,
		Severity:    severity,
		Data:        data,
		GeneratedAt: time.Now(),
		Metadata: insight.Metadata{
			BasedOnRecords: len(task.Records),
			TimeframeDays:  task.Timeframe.Days(),
			Algorithm:      algorithm,
			Version:        algorithmVersion,
		},
	}
}

func metricTitle(metric string) string {
	return titleCaser.String(strings.ReplaceAll(metric, "_", " "))
}

func severityFor(confidence float64) insight.Severity {
	switch {
	case confidence >= 90:
		return insight.SeverityHigh
	case confidence >= 70:
		return insight.SeverityMedium
	default:
		return insight.SeverityLow
	}
}

// sampleConfidence grows with sample size and saturates at 95.
func sampleConfidence(n int) float64 {
	return clampConfidence(40 + 5*float64(n))
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 95 {
		return 95
	}
	return c
}

// metricNames returns the sorted union of metric keys across records.
func metricNames(records []insight.Record) []string {
	seen := make(map[string]struct{})
	for _, rec := range records {
		for name := range rec.Values {
			seen[name] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// metricSeries returns the metric's values in record timestamp order.
func metricSeries(records []insight.Record, metric string) []float64 {
	sorted := make([]insight.Record, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	var series []float64
	for _, rec := range sorted {
		if v, ok := rec.Values[metric]; ok {
			series = append(series, v)
		}
	}
	return series
}

func mean(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range series {
		sum += v
	}
	return sum / float64(len(series))
}

func stddev(series []float64, m float64) float64 {
	if len(series) < 2 {
		return 0
	}
	sum := 0.0
	for _, v := range series {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(series)-1))
}

// linearFit returns the least-squares slope over index order and the
// coefficient of determination.
func linearFit(series []float64) (slope, r2 float64) {
	n := float64(len(series))
	if n < 2 {
		return 0, 0
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, y := range series {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, 0
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / n

	meanY := sumY / n
	var ssTot, ssRes float64
	for i, y := range series {
		fit := intercept + slope*float64(i)
		ssTot += (y - meanY) * (y - meanY)
		ssRes += (y - fit) * (y - fit)
	}
	if ssTot == 0 {
		return slope, 0
	}
	return slope, 1 - ssRes/ssTot
}

func pearson(a, b []float64) float64 {
	n := float64(len(a))
	if n < 2 {
		return 0
	}

	ma := mean(a)
	mb := mean(b)
	var cov, va, vb float64
	for i := range a {
		da := a[i] - ma
		db := b[i] - mb
		cov += da * db
		va += da * da
		vb += db * db
	}
	if va == 0 || vb == 0 {
		return 0
	}
	return cov / math.Sqrt(va*vb)
}
