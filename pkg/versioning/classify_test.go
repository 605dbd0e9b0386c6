package versioning

import (
	"testing"

	"github.com/dataguild/contractguard/pkg/contracts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseContract() *contracts.Contract {
	return &contracts.Contract{
		Identity: contracts.Identity{Dataset: "public_kpis", Version: "1.0.0"},
		Schema: []contracts.Field{
			{Name: "day", Type: contracts.TypeTimestamp, Nullable: false},
			{Name: "signups", Type: contracts.TypeInt, Nullable: false},
		},
		Governance: contracts.Governance{Classification: contracts.ClassificationPublic},
	}
}

// S3 — additive change bumps MINOR.
func TestAssign_AdditiveField_BumpsMinor(t *testing.T) {
	prev := baseContract()
	next := baseContract()
	maxLen := 8
	next.Schema = append(next.Schema, contracts.Field{
		Name: "region", Type: contracts.TypeString, Nullable: true, MaxLength: &maxLen, Description: "ISO code",
	})

	got := Assign(prev, next)
	assert.Equal(t, Version{Major: 1, Minor: 1, Patch: 0}, got)
	assert.Equal(t, ChangeAdditive, ClassifyChange(prev, next))
}

// S4 — removing a field is breaking; asserting a non-MAJOR bump must be caught.
func TestBreakingWithoutMajorBump_DetectsFieldRemoval(t *testing.T) {
	prev := baseContract()
	maxLen := 8
	prev.Identity.Version = "1.1.0"
	prev.Schema = append(prev.Schema, contracts.Field{
		Name: "region", Type: contracts.TypeString, Nullable: true, MaxLength: &maxLen,
	})

	next := baseContract() // region removed

	assert.Equal(t, ChangeBreaking, ClassifyChange(prev, next))
	assert.True(t, BreakingWithoutMajorBump(prev, next, "1.1.1"))
	assert.False(t, BreakingWithoutMajorBump(prev, next, "2.0.0"))
}

func TestAssign_FirstVersion(t *testing.T) {
	next := baseContract()
	got := Assign(nil, next)
	assert.Equal(t, Version{Major: 1, Minor: 0, Patch: 0}, got)
}

func TestClassifyChange_TypeChangeIsBreaking(t *testing.T) {
	prev := baseContract()
	next := baseContract()
	next.Schema[1].Type = contracts.TypeString

	require.Equal(t, ChangeBreaking, ClassifyChange(prev, next))
}

func TestClassifyChange_ClassificationEscalationIsBreaking(t *testing.T) {
	prev := baseContract()
	next := baseContract()
	next.Governance.Classification = contracts.ClassificationConfidential
	retention := 30
	next.Governance.RetentionDays = &retention

	require.Equal(t, ChangeBreaking, ClassifyChange(prev, next))
}

// SG006 — widening an existing uniqueness key to cover an additional
// field is breaking: a row unique on the narrower key can now collide.
func TestClassifyChange_UniquenessKeyWidenedIsBreaking(t *testing.T) {
	prev := baseContract()
	prev.Quality.UniquenessKeys = []string{"day"}

	next := baseContract()
	next.Quality.UniquenessKeys = []string{"day", "signups"}

	require.Equal(t, ChangeBreaking, ClassifyChange(prev, next))
}

// A uniqueness key declared for the first time, over fields with no
// prior declaration, is not a widening and stays additive.
func TestClassifyChange_FirstUniquenessKeyDeclarationIsNotBreaking(t *testing.T) {
	prev := baseContract()

	next := baseContract()
	next.Quality.UniquenessKeys = []string{"day", "signups"}

	require.NotEqual(t, ChangeBreaking, ClassifyChange(prev, next))
}
