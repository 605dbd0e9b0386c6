// Package catalog loads the declarative policy corpus from a directory
// of JSON files and publishes it atomically to concurrent readers, in
// the manner of policyloader's directory-backed bundle loader.
package catalog

import "github.com/dataguild/contractguard/pkg/govtypes"

// Category is the policy grouping used for file layout and subset
// selection (e.g. the BALANCED strategy's semantic subset).
type Category string

const (
	CategorySensitiveData    Category = "sensitive_data"
	CategoryDataQuality      Category = "data_quality"
	CategorySchemaGovernance Category = "schema_governance"
	CategorySemantic         Category = "semantic"
)

// Kind distinguishes rule policies (machine-executable predicate) from
// semantic policies (prompt template + expected judgment schema).
type Kind string

const (
	KindRule     Kind = "rule"
	KindSemantic Kind = "semantic"
)

// Policy is one descriptor from the catalog.
type Policy struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Category    Category         `json:"category"`
	Severity    govtypes.Severity `json:"severity"`
	Description string           `json:"description"`
	Rule        string           `json:"rule"` // predicate reference (rule) or prompt template (semantic)
	Remediation string           `json:"remediation"`
	Kind        Kind             `json:"kind"`
}

var allowedSeverities = map[govtypes.Severity]bool{
	govtypes.SeverityCritical: true,
	govtypes.SeverityWarning:  true,
	govtypes.SeverityInfo:     true,
}

// validate checks the load-time rules from §4.1/§6.1: severity must be
// one of the allowed values, and non-info policies must carry remediation.
func (p Policy) validate() error {
	if p.ID == "" {
		return govtypes.NewError(govtypes.KindPolicyCatalogError, "", "", "policy missing id", nil)
	}
	if !allowedSeverities[p.Severity] {
		return govtypes.NewError(govtypes.KindPolicyCatalogError, "", "", "policy "+p.ID+" has unknown severity "+string(p.Severity), nil)
	}
	if p.Severity != govtypes.SeverityInfo && p.Remediation == "" {
		return govtypes.NewError(govtypes.KindPolicyCatalogError, "", "", "policy "+p.ID+" missing remediation", nil)
	}
	return nil
}
