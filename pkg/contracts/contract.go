// Package contracts holds the Contract data model, its fingerprint,
// the builder that assembles a candidate contract from raw input, and
// the dual human/machine serializer.
package contracts

import "sort"

// FieldType is the set of scalar and structured types a schema field may take.
type FieldType string

const (
	TypeString    FieldType = "string"
	TypeInt       FieldType = "int"
	TypeFloat     FieldType = "float"
	TypeBool      FieldType = "bool"
	TypeTimestamp FieldType = "timestamp"
	TypeJSON      FieldType = "json"
)

// Classification is the governance sensitivity tier, ordered low to high.
type Classification string

const (
	ClassificationPublic       Classification = "public"
	ClassificationInternal     Classification = "internal"
	ClassificationConfidential Classification = "confidential"
	ClassificationRestricted   Classification = "restricted"
)

var classificationRank = map[Classification]int{
	ClassificationPublic:       0,
	ClassificationInternal:     1,
	ClassificationConfidential: 2,
	ClassificationRestricted:   3,
}

// Rank orders classifications for "≥ confidential" style comparisons.
func (c Classification) Rank() int { return classificationRank[c] }

// AtLeast reports whether c is at least as sensitive as other.
func (c Classification) AtLeast(other Classification) bool {
	return c.Rank() >= other.Rank()
}

// Field describes one schema column.
type Field struct {
	Name        string    `json:"name"`
	Type        FieldType `json:"type"`
	Nullable    bool      `json:"nullable"`
	Description string    `json:"description,omitempty"`
	MaxLength   *int      `json:"max_length,omitempty"`
	PII         bool      `json:"pii,omitempty"`
	EnumDeclared bool     `json:"enum_declared,omitempty"`
	Enum        []string  `json:"enum,omitempty"`
	Unique      bool      `json:"unique,omitempty"`
}

// Ownership identifies the accountable party for a dataset.
type Ownership struct {
	OwnerName    string   `json:"owner_name"`
	OwnerContact string   `json:"owner_contact"`
	Domain       string   `json:"domain,omitempty"`
	Stewards     []string `json:"stewards,omitempty"`
}

// Governance captures classification, retention, and compliance posture.
type Governance struct {
	Classification        Classification `json:"classification"`
	RetentionDays          *int           `json:"retention_days,omitempty"`
	ComplianceTags         []string       `json:"compliance_tags,omitempty"`
	EncryptionRequired     bool           `json:"encryption_required"`
	ApprovedUseCases       []string       `json:"approved_use_cases,omitempty"`
	DataResidency          string         `json:"data_residency,omitempty"`
	BreakingChangePolicy   string         `json:"breaking_change_policy,omitempty"`
	VersioningStrategyNote string         `json:"versioning_strategy_note,omitempty"`
}

// Quality carries the SLA thresholds a dataset commits to.
type Quality struct {
	CompletenessThreshold float64  `json:"completeness_threshold"`
	AccuracyThreshold     float64  `json:"accuracy_threshold"`
	FreshnessHorizon      string   `json:"freshness_horizon,omitempty"` // duration string, e.g. "24h"
	AvailabilityTarget    *float64 `json:"availability_target,omitempty"`
	QualityTier           string   `json:"quality_tier,omitempty"`
	UniquenessKeys        []string `json:"uniqueness_keys,omitempty"` // field names covered by a uniqueness declaration
}

// Subscription is a consumer's approved access to a subset of the schema.
type Subscription struct {
	ConsumerID       string   `json:"consumer_id"`
	ApprovedFields   []string `json:"approved_fields"`
	LatencyBound     string   `json:"latency_bound,omitempty"`
	AvailabilityMin  *float64 `json:"availability_min,omitempty"`
	StalenessBound   string   `json:"staleness_bound,omitempty"`
	AccessWindow     string   `json:"access_window,omitempty"`
}

// Identity is the dataset's stable name plus its assigned version and fingerprint.
type Identity struct {
	Dataset     string `json:"dataset"`
	Version     string `json:"version"` // MAJOR.MINOR.PATCH, empty until versioning.Assign
	Fingerprint string `json:"fingerprint,omitempty"`
}

// Contract is the full structured description of a dataset.
type Contract struct {
	Identity      Identity       `json:"identity"`
	Ownership     Ownership      `json:"ownership"`
	Schema        []Field        `json:"schema"`
	Governance    Governance     `json:"governance"`
	Quality       Quality        `json:"quality"`
	Subscriptions []Subscription `json:"subscriptions,omitempty"`
}

// FieldByName returns the field with the given name and whether it was found.
func (c *Contract) FieldByName(name string) (Field, bool) {
	for _, f := range c.Schema {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// RequiredFields returns the names of all non-nullable fields.
func (c *Contract) RequiredFields() []string {
	var out []string
	for _, f := range c.Schema {
		if !f.Nullable {
			out = append(out, f.Name)
		}
	}
	return out
}

// PIIFields returns the names of all fields marked pii=true.
func (c *Contract) PIIFields() []string {
	var out []string
	for _, f := range c.Schema {
		if f.PII {
			out = append(out, f.Name)
		}
	}
	return out
}

// HasPII reports whether any field is marked pii=true.
func (c *Contract) HasPII() bool { return len(c.PIIFields()) > 0 }

// sortedSchema returns a copy of the schema ordered by field name, for
// fingerprinting; the original Schema slice
// keeps presentation order untouched.
func sortedSchema(fields []Field) []Field {
	out := make([]Field, len(fields))
	copy(out, fields)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
