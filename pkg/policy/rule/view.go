// Package rule implements the deterministic rule evaluator: CEL
// predicates compiled from the policy catalog and run against a fixed
// vocabulary of accessors over a contract, in the manner of the
// governance package's CEL-based policy engine.
package rule

import (
	"strings"

	"github.com/dataguild/contractguard/pkg/contracts"
	"github.com/dataguild/contractguard/pkg/versioning"
)

// contractView is the fixed vocabulary of contract-level accessors
// exposed to CEL rule expressions. Every key here is a stable, named
// accessor — no reflection over the Contract struct is exposed to
// policy authors.
func contractView(c *contracts.Contract, prev *contracts.Contract, assertedVersion string) map[string]interface{} {
	piiFields := c.PIIFields()
	requiredFields := c.RequiredFields()

	hasTimestamp := false
	for _, f := range c.Schema {
		if f.Type == contracts.TypeTimestamp {
			hasTimestamp = true
			break
		}
	}

	retentionDays := int64(-1)
	if c.Governance.RetentionDays != nil {
		retentionDays = int64(*c.Governance.RetentionDays)
	}

	return map[string]interface{}{
		"field_count":                 int64(len(c.Schema)),
		"pii_field_count":             int64(len(piiFields)),
		"pii_field_names":             piiFields,
		"required_field_names":        requiredFields,
		"classification":              string(c.Governance.Classification),
		"compliance_tag_count":        int64(len(c.Governance.ComplianceTags)),
		"encryption_required":         c.Governance.EncryptionRequired,
		"retention_days":              retentionDays,
		"approved_use_case_count":     int64(len(c.Governance.ApprovedUseCases)),
		"data_residency":              c.Governance.DataResidency,
		"completeness_threshold":      c.Quality.CompletenessThreshold,
		"accuracy_threshold":          c.Quality.AccuracyThreshold,
		"freshness_horizon_set":       c.Quality.FreshnessHorizon != "",
		"has_timestamp_field":         hasTimestamp,
		"owner_name":                  c.Ownership.OwnerName,
		"owner_contact":               c.Ownership.OwnerContact,
		"quality_tier":                c.Quality.QualityTier,
		"versioning_strategy_note":    c.Governance.VersioningStrategyNote,
		"breaking_without_major_bump": versioning.BreakingWithoutMajorBump(prev, c, assertedVersion),
	}
}

// fieldView is the fixed vocabulary of per-field accessors, including
// booleans that correlate the field against contract-level declarations
// (e.g. whether it is covered by a uniqueness-key declaration) so that
// field-scoped predicates never need to reach back into the contract.
func fieldView(c *contracts.Contract, f contracts.Field) map[string]interface{} {
	coveredByUniquenessKey := false
	for _, k := range c.Quality.UniquenessKeys {
		if k == f.Name {
			coveredByUniquenessKey = true
			break
		}
	}

	maxLength := int64(-1)
	if f.MaxLength != nil {
		maxLength = int64(*f.MaxLength)
	}

	return map[string]interface{}{
		"name":                       f.Name,
		"type":                       string(f.Type),
		"nullable":                   f.Nullable,
		"description":                f.Description,
		"max_length":                 maxLength,
		"pii":                        f.PII,
		"enum_declared":              f.EnumDeclared,
		"enum_count":                 int64(len(f.Enum)),
		"unique":                     f.Unique,
		"looks_like_primary_key":     f.Unique || strings.HasSuffix(f.Name, "_id"),
		"covered_by_uniqueness_keys": coveredByUniquenessKey,
	}
}
