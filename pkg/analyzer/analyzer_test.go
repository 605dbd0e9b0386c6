package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dataguild/contractguard/pkg/contracts"
	"github.com/dataguild/contractguard/pkg/govtypes"
)

func TestAnalyze_RestrictedIsAlwaysCritical(t *testing.T) {
	c := &contracts.Contract{
		Governance: contracts.Governance{Classification: contracts.ClassificationRestricted},
	}
	a := Analyze(c)
	assert.Equal(t, govtypes.RiskCritical, a.RiskLevel)
}

func TestAnalyze_ThreeComplianceTagsIsCritical(t *testing.T) {
	c := &contracts.Contract{
		Governance: contracts.Governance{
			Classification: contracts.ClassificationPublic,
			ComplianceTags: []string{"gdpr", "ccpa", "hipaa"},
		},
	}
	a := Analyze(c)
	assert.Equal(t, govtypes.RiskCritical, a.RiskLevel)
}

func TestAnalyze_ConfidentialWithPIIIsHigh(t *testing.T) {
	c := &contracts.Contract{
		Schema:     []contracts.Field{{Name: "ssn", Type: contracts.TypeString, PII: true}},
		Governance: contracts.Governance{Classification: contracts.ClassificationConfidential},
	}
	a := Analyze(c)
	assert.Equal(t, govtypes.RiskHigh, a.RiskLevel)
	assert.True(t, a.HasPII)
}

func TestAnalyze_PublicNoSignalsIsLow(t *testing.T) {
	c := &contracts.Contract{
		Schema:     []contracts.Field{{Name: "day", Type: contracts.TypeTimestamp}},
		Governance: contracts.Governance{Classification: contracts.ClassificationPublic},
	}
	a := Analyze(c)
	assert.Equal(t, govtypes.RiskLow, a.RiskLevel)
}

func TestAnalyze_ComplexityScoreBounded(t *testing.T) {
	fields := make([]contracts.Field, 100)
	for i := range fields {
		fields[i] = contracts.Field{Name: "f", Type: contracts.TypeString, PII: true}
	}
	c := &contracts.Contract{
		Schema: fields,
		Governance: contracts.Governance{
			Classification: contracts.ClassificationRestricted,
			ComplianceTags: []string{"a", "b", "c", "d", "e"},
		},
		Quality: contracts.Quality{CompletenessThreshold: 0.99, AccuracyThreshold: 0.99},
	}
	a := Analyze(c)
	assert.LessOrEqual(t, a.ComplexityScore, 100.0)
	assert.GreaterOrEqual(t, a.ComplexityScore, 0.0)
}

func TestAnalyze_RiskLevelAlwaysOneOfFour(t *testing.T) {
	valid := map[govtypes.RiskLevel]bool{govtypes.RiskCritical: true, govtypes.RiskHigh: true, govtypes.RiskMedium: true, govtypes.RiskLow: true}
	a := Analyze(&contracts.Contract{})
	assert.True(t, valid[a.RiskLevel])
}
