package contracts

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gowebpki/jcs"
)

// SerializeStruct emits the machine-readable form: the contract's JSON
// representation run through RFC 8785 canonicalization (sorted keys, no
// insignificant whitespace). It is a straight function of the contract
// value, so identical contracts always serialize to identical bytes.
func SerializeStruct(c *Contract) ([]byte, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("contracts: marshal for canonicalization: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("contracts: jcs transform: %w", err)
	}
	return append(canonical, '\n'), nil
}

// ParseStruct parses the machine-readable form back into a Contract.
// Canonical JSON is valid JSON, so this is a plain unmarshal.
func ParseStruct(data []byte) (*Contract, error) {
	var c Contract
	if err := json.Unmarshal(bytes.TrimSpace(data), &c); err != nil {
		return nil, fmt.Errorf("contracts: unmarshal struct form: %w", err)
	}
	return &c, nil
}

// SerializeHuman emits the human-readable form: a fixed four-line header
// followed by the five blocks in the order dataset, schema, governance,
// quality, subscriptions (§4.6/§6.2). generatedAt is carried through so
// a parse-then-reserialize round trip reproduces the original bytes.
func SerializeHuman(c *Contract, generatedAt time.Time) []byte {
	var b strings.Builder

	fmt.Fprintf(&b, "# Data Contract\n")
	fmt.Fprintf(&b, "# Dataset: %s\n", c.Identity.Dataset)
	fmt.Fprintf(&b, "# Version: %s\n", c.Identity.Version)
	fmt.Fprintf(&b, "# Generated: %s\n", generatedAt.UTC().Format(time.RFC3339))
	b.WriteString("\n")

	b.WriteString("dataset:\n")
	writeScalar(&b, 1, "name", c.Identity.Dataset)
	writeScalar(&b, 1, "fingerprint", c.Identity.Fingerprint)
	writeScalar(&b, 1, "owner_name", c.Ownership.OwnerName)
	writeScalar(&b, 1, "owner_contact", c.Ownership.OwnerContact)
	writeScalar(&b, 1, "domain", c.Ownership.Domain)
	writeList(&b, 1, "stewards", c.Ownership.Stewards)
	b.WriteString("\n")

	b.WriteString("schema:\n")
	if len(c.Schema) == 0 {
		b.WriteString("  []\n")
	}
	for _, f := range c.Schema {
		fmt.Fprintf(&b, "  - name: %s\n", f.Name)
		writeScalar(&b, 2, "type", string(f.Type))
		writeScalar(&b, 2, "nullable", strconv.FormatBool(f.Nullable))
		writeScalar(&b, 2, "description", f.Description)
		writeOptInt(&b, 2, "max_length", f.MaxLength)
		writeScalar(&b, 2, "pii", strconv.FormatBool(f.PII))
		writeScalar(&b, 2, "enum_declared", strconv.FormatBool(f.EnumDeclared))
		writeList(&b, 2, "enum", f.Enum)
		writeScalar(&b, 2, "unique", strconv.FormatBool(f.Unique))
	}
	b.WriteString("\n")

	b.WriteString("governance:\n")
	writeScalar(&b, 1, "classification", string(c.Governance.Classification))
	writeOptInt(&b, 1, "retention_days", c.Governance.RetentionDays)
	writeList(&b, 1, "compliance_tags", c.Governance.ComplianceTags)
	writeScalar(&b, 1, "encryption_required", strconv.FormatBool(c.Governance.EncryptionRequired))
	writeList(&b, 1, "approved_use_cases", c.Governance.ApprovedUseCases)
	writeScalar(&b, 1, "data_residency", c.Governance.DataResidency)
	writeScalar(&b, 1, "breaking_change_policy", c.Governance.BreakingChangePolicy)
	writeScalar(&b, 1, "versioning_strategy_note", c.Governance.VersioningStrategyNote)
	b.WriteString("\n")

	b.WriteString("quality:\n")
	writeScalar(&b, 1, "completeness_threshold", formatFloat(c.Quality.CompletenessThreshold))
	writeScalar(&b, 1, "accuracy_threshold", formatFloat(c.Quality.AccuracyThreshold))
	writeScalar(&b, 1, "freshness_horizon", c.Quality.FreshnessHorizon)
	writeOptFloat(&b, 1, "availability_target", c.Quality.AvailabilityTarget)
	writeScalar(&b, 1, "quality_tier", c.Quality.QualityTier)
	writeList(&b, 1, "uniqueness_keys", c.Quality.UniquenessKeys)
	b.WriteString("\n")

	b.WriteString("subscriptions:\n")
	if len(c.Subscriptions) == 0 {
		b.WriteString("  []\n")
	}
	for _, s := range c.Subscriptions {
		fmt.Fprintf(&b, "  - consumer_id: %s\n", s.ConsumerID)
		writeList(&b, 2, "approved_fields", s.ApprovedFields)
		writeScalar(&b, 2, "latency_bound", s.LatencyBound)
		writeOptFloat(&b, 2, "availability_min", s.AvailabilityMin)
		writeScalar(&b, 2, "staleness_bound", s.StalenessBound)
		writeScalar(&b, 2, "access_window", s.AccessWindow)
	}

	return []byte(b.String())
}

func indent(level int) string { return strings.Repeat("  ", level) }

func writeScalar(b *strings.Builder, level int, key, value string) {
	fmt.Fprintf(b, "%s%s: %s\n", indent(level), key, value)
}

func writeList(b *strings.Builder, level int, key string, values []string) {
	fmt.Fprintf(b, "%s%s: [%s]\n", indent(level), key, strings.Join(values, ", "))
}

func writeOptInt(b *strings.Builder, level int, key string, v *int) {
	if v == nil {
		writeScalar(b, level, key, "")
		return
	}
	writeScalar(b, level, key, strconv.Itoa(*v))
}

func writeOptFloat(b *strings.Builder, level int, key string, v *float64) {
	if v == nil {
		writeScalar(b, level, key, "")
		return
	}
	writeScalar(b, level, key, formatFloat(*v))
}

func formatFloat(f float64) string { return strconv.FormatFloat(f, 'g', -1, 64) }

// ParseHuman parses the human-readable form produced by SerializeHuman,
// recovering the contract and the header's Generated timestamp so a
// caller can re-serialize byte-identically.
func ParseHuman(data []byte) (*Contract, time.Time, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var generatedAt time.Time
	c := &Contract{}

	var section string
	var field *Field
	var sub *Subscription

	flushField := func() {
		if field != nil {
			c.Schema = append(c.Schema, *field)
			field = nil
		}
	}
	flushSub := func() {
		if sub != nil {
			c.Subscriptions = append(c.Subscriptions, *sub)
			sub = nil
		}
	}

	for scanner.Scan() {
		line := scanner.Text()

		if strings.HasPrefix(line, "# Generated: ") {
			ts, err := time.Parse(time.RFC3339, strings.TrimPrefix(line, "# Generated: "))
			if err != nil {
				return nil, time.Time{}, fmt.Errorf("contracts: parse generated timestamp: %w", err)
			}
			generatedAt = ts
			continue
		}
		if strings.HasPrefix(line, "# Version: ") {
			c.Identity.Version = strings.TrimPrefix(line, "# Version: ")
			continue
		}
		if strings.HasPrefix(line, "#") || strings.TrimSpace(line) == "" {
			continue
		}

		switch {
		case line == "dataset:":
			flushField()
			flushSub()
			section = "dataset"
			continue
		case line == "schema:":
			flushField()
			flushSub()
			section = "schema"
			continue
		case line == "governance:":
			flushField()
			flushSub()
			section = "governance"
			continue
		case line == "quality:":
			flushField()
			flushSub()
			section = "quality"
			continue
		case line == "subscriptions:":
			flushField()
			flushSub()
			section = "subscriptions"
			continue
		}

		trimmed := strings.TrimLeft(line, " ")
		if trimmed == "[]" {
			continue
		}

		switch section {
		case "dataset":
			key, val := splitKV(trimmed)
			switch key {
			case "name":
				c.Identity.Dataset = val
			case "fingerprint":
				c.Identity.Fingerprint = val
			case "owner_name":
				c.Ownership.OwnerName = val
			case "owner_contact":
				c.Ownership.OwnerContact = val
			case "domain":
				c.Ownership.Domain = val
			case "stewards":
				c.Ownership.Stewards = parseList(val)
			}
		case "schema":
			if strings.HasPrefix(trimmed, "- name: ") {
				flushField()
				field = &Field{Name: strings.TrimPrefix(trimmed, "- name: ")}
				continue
			}
			if field == nil {
				continue
			}
			key, val := splitKV(trimmed)
			switch key {
			case "type":
				field.Type = FieldType(val)
			case "nullable":
				field.Nullable = val == "true"
			case "description":
				field.Description = val
			case "max_length":
				field.MaxLength = parseOptInt(val)
			case "pii":
				field.PII = val == "true"
			case "enum_declared":
				field.EnumDeclared = val == "true"
			case "enum":
				field.Enum = parseList(val)
			case "unique":
				field.Unique = val == "true"
			}
		case "governance":
			key, val := splitKV(trimmed)
			switch key {
			case "classification":
				c.Governance.Classification = Classification(val)
			case "retention_days":
				c.Governance.RetentionDays = parseOptInt(val)
			case "compliance_tags":
				c.Governance.ComplianceTags = parseList(val)
			case "encryption_required":
				c.Governance.EncryptionRequired = val == "true"
			case "approved_use_cases":
				c.Governance.ApprovedUseCases = parseList(val)
			case "data_residency":
				c.Governance.DataResidency = val
			case "breaking_change_policy":
				c.Governance.BreakingChangePolicy = val
			case "versioning_strategy_note":
				c.Governance.VersioningStrategyNote = val
			}
		case "quality":
			key, val := splitKV(trimmed)
			switch key {
			case "completeness_threshold":
				c.Quality.CompletenessThreshold, _ = strconv.ParseFloat(val, 64)
			case "accuracy_threshold":
				c.Quality.AccuracyThreshold, _ = strconv.ParseFloat(val, 64)
			case "freshness_horizon":
				c.Quality.FreshnessHorizon = val
			case "availability_target":
				c.Quality.AvailabilityTarget = parseOptFloat(val)
			case "quality_tier":
				c.Quality.QualityTier = val
			case "uniqueness_keys":
				c.Quality.UniquenessKeys = parseList(val)
			}
		case "subscriptions":
			if strings.HasPrefix(trimmed, "- consumer_id: ") {
				flushSub()
				sub = &Subscription{ConsumerID: strings.TrimPrefix(trimmed, "- consumer_id: ")}
				continue
			}
			if sub == nil {
				continue
			}
			key, val := splitKV(trimmed)
			switch key {
			case "approved_fields":
				sub.ApprovedFields = parseList(val)
			case "latency_bound":
				sub.LatencyBound = val
			case "availability_min":
				sub.AvailabilityMin = parseOptFloat(val)
			case "staleness_bound":
				sub.StalenessBound = val
			case "access_window":
				sub.AccessWindow = val
			}
		}
	}
	flushField()
	flushSub()

	if err := scanner.Err(); err != nil {
		return nil, time.Time{}, fmt.Errorf("contracts: scan human form: %w", err)
	}

	return c, generatedAt, nil
}

func splitKV(line string) (string, string) {
	idx := strings.Index(line, ": ")
	if idx < 0 {
		return strings.TrimSuffix(line, ":"), ""
	}
	return line[:idx], line[idx+2:]
}

func parseList(val string) []string {
	val = strings.TrimPrefix(val, "[")
	val = strings.TrimSuffix(val, "]")
	val = strings.TrimSpace(val)
	if val == "" {
		return nil
	}
	parts := strings.Split(val, ", ")
	return parts
}

func parseOptInt(val string) *int {
	if val == "" {
		return nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return nil
	}
	return &n
}

func parseOptFloat(val string) *float64 {
	if val == "" {
		return nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return nil
	}
	return &f
}
