package contracts

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleContract() *Contract {
	return &Contract{
		Identity: Identity{Dataset: "public_kpis", Version: "1.0.0", Fingerprint: "abc123"},
		Ownership: Ownership{
			OwnerName:    "analytics",
			OwnerContact: "analytics@example.com",
			Domain:       "growth",
			Stewards:     []string{"alice", "bob"},
		},
		Schema: []Field{
			{Name: "day", Type: TypeTimestamp, Nullable: false, Description: "report date"},
			{Name: "signups", Type: TypeInt, Nullable: false, Description: "daily signups"},
			{Name: "region", Type: TypeString, Nullable: true, MaxLength: intPtr(8), Description: "ISO code"},
		},
		Governance: Governance{
			Classification:     ClassificationPublic,
			ComplianceTags:     nil,
			EncryptionRequired: false,
			VersioningStrategyNote: "semver, MINOR for additive fields",
		},
		Quality: Quality{CompletenessThreshold: 0.9, AccuracyThreshold: 0.8},
		Subscriptions: []Subscription{
			{ConsumerID: "bi-team", ApprovedFields: []string{"day", "signups"}, LatencyBound: "1h"},
		},
	}
}

func TestSerializeHuman_RoundTripIdempotent(t *testing.T) {
	c := sampleContract()
	ts := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)

	first := SerializeHuman(c, ts)
	parsed, parsedTS, err := ParseHuman(first)
	require.NoError(t, err)
	require.Equal(t, ts, parsedTS)

	second := SerializeHuman(parsed, parsedTS)
	assert.Equal(t, string(first), string(second))
}

func TestParseHuman_RecoversFields(t *testing.T) {
	c := sampleContract()
	ts := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)

	data := SerializeHuman(c, ts)
	parsed, _, err := ParseHuman(data)
	require.NoError(t, err)

	assert.Equal(t, c.Identity.Dataset, parsed.Identity.Dataset)
	assert.Equal(t, c.Identity.Version, parsed.Identity.Version)
	require.Len(t, parsed.Schema, 3)
	assert.Equal(t, "region", parsed.Schema[2].Name)
	assert.Equal(t, 8, *parsed.Schema[2].MaxLength)
	require.Len(t, parsed.Subscriptions, 1)
	assert.Equal(t, "bi-team", parsed.Subscriptions[0].ConsumerID)
}

func TestSerializeStruct_RoundTripIdempotent(t *testing.T) {
	c := sampleContract()

	first, err := SerializeStruct(c)
	require.NoError(t, err)

	parsed, err := ParseStruct(first)
	require.NoError(t, err)

	second, err := SerializeStruct(parsed)
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
}

func TestSerializeStruct_SortedKeys(t *testing.T) {
	c := sampleContract()
	out, err := SerializeStruct(c)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"identity"`)
	assert.Contains(t, string(out), `"schema"`)
	assert.Less(t, strings.Index(string(out), `"governance"`), strings.Index(string(out), `"identity"`))
}
