package govtypes

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Status is the aggregate validation outcome.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusWarning Status = "warning"
	StatusFailed  Status = "failed"
)

// Strategy is the orchestrator engine-selection mode.
type Strategy string

const (
	StrategyFast      Strategy = "FAST"
	StrategyBalanced  Strategy = "BALANCED"
	StrategyThorough  Strategy = "THOROUGH"
	StrategyAdaptive  Strategy = "ADAPTIVE"
)

// RiskLevel is the analyzer's coarse risk classification.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// ReportMetadata captures how a ValidationReport was produced, for
// audit and for the orchestrator's adaptive-downgrade bookkeeping.
type ReportMetadata struct {
	StrategyRequested  Strategy      `json:"strategy_requested"`
	StrategyExecuted   Strategy      `json:"strategy_executed"`
	DegradedFrom       Strategy      `json:"degraded_from,omitempty"`
	RiskLevel          RiskLevel     `json:"risk_level"`
	ComplexityScore    float64       `json:"complexity_score"`
	EnginesUsed        []Engine      `json:"engines_used"`
	PoliciesEvaluated  []string      `json:"policies_evaluated"`
	SemanticPolicies   []string      `json:"semantic_policies,omitempty"`
	WallClock          time.Duration `json:"wallclock_duration"`
	Reasoning          string        `json:"reasoning"`
	DeadlineExceeded   bool          `json:"deadline_exceeded,omitempty"`
	BackpressureRejected bool        `json:"backpressure_rejected,omitempty"`
}

// ValidationReport aggregates findings from one validation run.
type ValidationReport struct {
	ReportID string          `json:"report_id"`
	Status   Status          `json:"status"`
	Passed   int             `json:"passed"`
	Warnings int             `json:"warnings"`
	Failures int             `json:"failures"`
	Findings []Finding       `json:"findings"`
	Metadata ReportMetadata  `json:"metadata"`
}

// reportNamespace scopes the deterministic report-id derivation, in the
// manner of the policy decision point's uuid.NewSHA1(NameSpaceOID, ...)
// decision-id derivation: two runs over identical findings and metadata
// get the same report id, so a report is reproducible from its content
// rather than stamped with process-local randomness.
var reportNamespace = uuid.NameSpaceOID

func reportID(findings []Finding, meta ReportMetadata) string {
	payload, err := json.Marshal(struct {
		Findings []Finding
		Metadata ReportMetadata
	}{findings, meta})
	if err != nil {
		return uuid.New().String()
	}
	return uuid.NewSHA1(reportNamespace, payload).String()
}

// NewReport builds a ValidationReport from a finding set, computing
// status and counts per §3.4's status rule.
func NewReport(findings []Finding, meta ReportMetadata) ValidationReport {
	SortFindings(findings)

	report := ValidationReport{
		Findings: findings,
		Metadata: meta,
	}

	hasCritical := false
	hasWarning := false
	for _, f := range findings {
		switch f.Severity {
		case SeverityCritical:
			report.Failures++
			hasCritical = true
		case SeverityWarning:
			report.Warnings++
			hasWarning = true
		default:
			report.Passed++
		}
	}

	switch {
	case hasCritical:
		report.Status = StatusFailed
	case hasWarning:
		report.Status = StatusWarning
	default:
		report.Status = StatusPassed
	}

	report.ReportID = reportID(findings, meta)

	return report
}

// SortFindings orders findings stably by (severity, policy id, field path),
// per §4.2's ordering requirement.
func SortFindings(findings []Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if a.Severity.Rank() != b.Severity.Rank() {
			return a.Severity.Rank() < b.Severity.Rank()
		}
		if a.PolicyID != b.PolicyID {
			return a.PolicyID < b.PolicyID
		}
		aPath, bPath := "", ""
		if len(a.FieldPaths) > 0 {
			aPath = a.FieldPaths[0]
		}
		if len(b.FieldPaths) > 0 {
			bPath = b.FieldPaths[0]
		}
		return aPath < bPath
	})
}
