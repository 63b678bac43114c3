package tamper

// Metric identifies one of the five fixed tampering metrics.
type Metric string

const (
	MetricQuality   Metric = "quality"
	MetricStructure Metric = "structure"
	MetricNoise     Metric = "noise"
	MetricSymmetry  Metric = "symmetry"
	MetricFinder    Metric = "finder_pattern"
)

// metricOrder is the fixed execution and reporting order. Sequential runs
// execute in this order; parallel runs still report results in it.
var metricOrder = [...]Metric{
	MetricQuality,
	MetricStructure,
	MetricNoise,
	MetricSymmetry,
	MetricFinder,
}

// MetricCount is the number of metrics every complete report carries.
const MetricCount = len(metricOrder)

// MetricResult is the outcome of one metric analyzer. Score is an anomaly
// measure in [0,1]: 0 means no anomaly, 1 maximal anomaly. Evidence holds
// human-readable findings in the order they were made. Cost is a
// deterministic work hint (roughly pixels examined), so that two runs over
// identical input produce identical results.
type MetricResult struct {
	Metric   Metric   `json:"metric"`
	Score    float64  `json:"score"`
	Evidence []string `json:"evidence,omitempty"`
	Cost     int64    `json:"cost"`
}

// Evidence notes with contractual meaning. Fusion and callers key off
// these exact strings.
const (
	NoteNoFinderPattern      = "no finder pattern detected"
	NoteExcessiveSkew        = "excessive skew"
	NoteInconclusiveSymmetry = "inconclusive symmetry: insufficient module mass"
	NoteMetricTimeout        = "metric timed out; maximal-anomaly fallback applied"
	NoteUniformImage         = "uniform image with no discernible content"
)

// Severity is the discretized risk category derived from the fused score.
type Severity string

const (
	SeverityLow      Severity = "Low"
	SeverityMedium   Severity = "Medium"
	SeverityHigh     Severity = "High"
	SeverityCritical Severity = "Critical"
)

// SeverityFor maps a fused score to its band. Band boundaries are exact:
// Low [0,0.25), Medium [0.25,0.5), High [0.5,0.75), Critical [0.75,1].
func SeverityFor(score float64) Severity {
	switch {
	case score < 0.25:
		return SeverityLow
	case score < 0.5:
		return SeverityMedium
	case score < 0.75:
		return SeverityHigh
	default:
		return SeverityCritical
	}
}

// Report is the terminal artifact of one analysis. Results always holds
// exactly one entry per metric, in metric order. It deliberately carries no
// timestamps or identifiers: identical input bytes yield identical Reports.
type Report struct {
	Results        []MetricResult `json:"results"`
	RiskScore      float64        `json:"risk_score"`
	Severity       Severity       `json:"severity"`
	Payload        string         `json:"payload,omitempty"`
	PayloadPresent bool           `json:"payload_present"`
}

// Result returns the report entry for the given metric, or nil.
func (r *Report) Result(m Metric) *MetricResult {
	for i := range r.Results {
		if r.Results[i].Metric == m {
			return &r.Results[i]
		}
	}
	return nil
}

// ProgressEvent is emitted after each metric completes. Step is the metric's
// 1-based position in the fixed metric order. In sequential mode fractions
// rise strictly 0.2, 0.4, 0.6, 0.8, 1.0; in parallel mode events may arrive
// out of metric order, but steps stay unique and the 1.0 event fires last.
type ProgressEvent struct {
	Step     int           `json:"step"`
	Name     Metric        `json:"name"`
	Fraction float64       `json:"fraction"`
	Result   *MetricResult `json:"result,omitempty"`
}

// ProgressFunc receives progress events. The engine recovers from callback
// panics and logs them; a faulty sink can never abort an analysis.
type ProgressFunc func(ProgressEvent)
