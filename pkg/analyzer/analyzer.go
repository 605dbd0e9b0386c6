// Package analyzer computes a pure, deterministic risk assessment over
// a contract's content, in the manner of the third-party risk
// assessor's score-then-classify pipeline: a weighted numeric score
// clamped into bands, then mapped onto a small risk-level enumeration.
package analyzer

import (
	"fmt"

	"github.com/dataguild/contractguard/pkg/contracts"
	"github.com/dataguild/contractguard/pkg/govtypes"
)

// Analysis is the pure, deterministic output of analyzing a contract.
type Analysis struct {
	FieldCount         int
	HasPII             bool
	Classification     contracts.Classification
	ComplianceTagCount int
	ComplexityScore    float64
	RiskLevel          govtypes.RiskLevel
	Concerns           []string
}

var classificationWeight = map[contracts.Classification]float64{
	contracts.ClassificationPublic:       0,
	contracts.ClassificationInternal:     5,
	contracts.ClassificationConfidential: 10,
	contracts.ClassificationRestricted:   15,
}

// Analyze computes field_count, has_pii, classification,
// compliance_tag_count, complexity_score, risk_level, and concerns for
// a contract. The function is pure: it reads only its argument.
func Analyze(c *contracts.Contract) Analysis {
	fieldCount := len(c.Schema)
	piiCount := 0
	for _, f := range c.Schema {
		if f.PII {
			piiCount++
		}
	}
	complianceTagCount := len(c.Governance.ComplianceTags)
	qualityRuleCount := countQualityRules(c)

	score := min(30, 1.5*float64(fieldCount)) +
		min(20, 5*float64(piiCount)) +
		min(20, 10*float64(complianceTagCount)) +
		min(15, 3*float64(qualityRuleCount)) +
		classificationWeight[c.Governance.Classification]
	score = clamp(score, 0, 100)

	a := Analysis{
		FieldCount:         fieldCount,
		HasPII:             piiCount > 0,
		Classification:     c.Governance.Classification,
		ComplianceTagCount: complianceTagCount,
		ComplexityScore:    score,
	}
	a.RiskLevel = classifyRisk(a)
	a.Concerns = concerns(a, c)
	return a
}

func countQualityRules(c *contracts.Contract) int {
	n := 0
	if c.Quality.CompletenessThreshold > 0 {
		n++
	}
	if c.Quality.AccuracyThreshold > 0 {
		n++
	}
	if c.Quality.AvailabilityTarget != nil {
		n++
	}
	if len(c.Quality.UniquenessKeys) > 0 {
		n++
	}
	if c.Quality.FreshnessHorizon != "" {
		n++
	}
	if c.Quality.QualityTier != "" {
		n++
	}
	return n
}

func classifyRisk(a Analysis) govtypes.RiskLevel {
	switch {
	case a.Classification == contracts.ClassificationRestricted || a.ComplianceTagCount >= 3:
		return govtypes.RiskCritical
	case (a.Classification == contracts.ClassificationConfidential && (a.HasPII || a.ComplianceTagCount >= 1)) ||
		a.ComplianceTagCount >= 2 ||
		a.ComplexityScore >= 70:
		return govtypes.RiskHigh
	case a.HasPII || a.ComplianceTagCount >= 1 || a.Classification == contracts.ClassificationConfidential ||
		a.FieldCount > 15 || a.ComplexityScore >= 40:
		return govtypes.RiskMedium
	default:
		return govtypes.RiskLow
	}
}

func concerns(a Analysis, c *contracts.Contract) []string {
	var out []string
	if a.HasPII {
		out = append(out, "contract carries PII fields")
	}
	if a.ComplianceTagCount >= 2 {
		out = append(out, fmt.Sprintf("%d compliance tags attached", a.ComplianceTagCount))
	}
	if a.Classification == contracts.ClassificationRestricted {
		out = append(out, "restricted classification")
	} else if a.Classification == contracts.ClassificationConfidential {
		out = append(out, "confidential classification")
	}
	if a.FieldCount > 15 {
		out = append(out, "wide schema")
	}
	if a.ComplexityScore >= 70 {
		out = append(out, "high complexity score")
	}
	if c.Governance.RetentionDays == nil && a.Classification.AtLeast(contracts.ClassificationConfidential) {
		out = append(out, "no retention horizon declared")
	}
	return out
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
