package coordinator

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dataguild/contractguard/pkg/contracts"
	"github.com/dataguild/contractguard/pkg/govtypes"
	"github.com/dataguild/contractguard/pkg/history"
	"github.com/dataguild/contractguard/pkg/orchestrator"
	"github.com/dataguild/contractguard/pkg/policy/catalog"
	"github.com/dataguild/contractguard/pkg/policy/rule"
)

func testCatalogDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sensitive_data.json"), []byte(`[
		{"id":"SD001","category":"sensitive_data","severity":"critical","rule":"pii_field_count > 0 && !encryption_required","remediation":"encrypt","kind":"rule"}
	]`), 0o644))
	return dir
}

func validRaw(dataset string) contracts.RawContract {
	return contracts.RawContract{
		Dataset: dataset,
		Ownership: contracts.Ownership{OwnerName: "team-data", OwnerContact: "data@example.com"},
		Schema: []contracts.Field{
			{Name: "id", Type: contracts.TypeInt, Nullable: false},
			{Name: "signup_day", Type: contracts.TypeTimestamp, Nullable: false},
		},
		Governance: contracts.Governance{Classification: contracts.ClassificationPublic},
	}
}

func newCoordinator(t *testing.T) *Coordinator {
	t.Helper()
	cat, err := catalog.New(testCatalogDir(t))
	require.NoError(t, err)
	ev, err := rule.NewEvaluator()
	require.NoError(t, err)
	orc := orchestrator.New(cat, ev, nil)
	hist, err := history.Open(t.TempDir())
	require.NoError(t, err)
	return New(orc, hist, "tester")
}

func TestCreateOrUpdateContract_FirstVersionCommits(t *testing.T) {
	c := newCoordinator(t)

	res, err := c.CreateOrUpdateContract(context.Background(), Request{
		Raw:      validRaw("signups"),
		Strategy: govtypes.StrategyFast,
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeCommitted, res.Outcome)
	require.Equal(t, "1.0.0", res.Version)
	require.NotEmpty(t, res.CommitID)
}

func TestCreateOrUpdateContract_SecondAdditiveVersionBumpsMinor(t *testing.T) {
	c := newCoordinator(t)

	_, err := c.CreateOrUpdateContract(context.Background(), Request{Raw: validRaw("signups"), Strategy: govtypes.StrategyFast})
	require.NoError(t, err)

	raw := validRaw("signups")
	raw.Schema = append(raw.Schema, contracts.Field{Name: "region", Type: contracts.TypeString, Nullable: true})

	res, err := c.CreateOrUpdateContract(context.Background(), Request{Raw: raw, Strategy: govtypes.StrategyFast})
	require.NoError(t, err)
	require.Equal(t, OutcomeCommitted, res.Outcome)
	require.Equal(t, "1.1.0", res.Version)
}

func TestCreateOrUpdateContract_FailedValidationDoesNotCommit(t *testing.T) {
	c := newCoordinator(t)

	raw := validRaw("customers")
	raw.Schema = append(raw.Schema, contracts.Field{Name: "email", Type: contracts.TypeString, PII: true})
	// encryption_required left false -> SD001 fires critical -> status failed

	res, err := c.CreateOrUpdateContract(context.Background(), Request{Raw: raw, Strategy: govtypes.StrategyFast})
	require.NoError(t, err)
	require.Equal(t, OutcomeNotCommitted, res.Outcome)
	require.Equal(t, govtypes.StatusFailed, res.Report.Status)

	latest, err := c.history.LatestVersion("customers")
	require.NoError(t, err)
	require.Empty(t, latest)
}

// §7 requires HistoryConflict to retry with backoff rather than fail
// outright; two concurrent writers on the same dataset both land,
// retrying past each other's conflicting commit instead of one of them
// erroring out immediately.
func TestCreateOrUpdateContract_ConcurrentWritersBothCommitViaRetry(t *testing.T) {
	c := newCoordinator(t)

	_, err := c.CreateOrUpdateContract(context.Background(), Request{Raw: validRaw("accounts"), Strategy: govtypes.StrategyFast})
	require.NoError(t, err)

	rawA := validRaw("accounts")
	rawA.Schema = append(rawA.Schema, contracts.Field{Name: "region", Type: contracts.TypeString, Nullable: true})

	rawB := validRaw("accounts")
	rawB.Schema = append(rawB.Schema, contracts.Field{Name: "tier", Type: contracts.TypeString, Nullable: true})

	var wg sync.WaitGroup
	results := make([]Result, 2)
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		results[0], errs[0] = c.CreateOrUpdateContract(context.Background(), Request{Raw: rawA, Strategy: govtypes.StrategyFast})
	}()
	go func() {
		defer wg.Done()
		results[1], errs[1] = c.CreateOrUpdateContract(context.Background(), Request{Raw: rawB, Strategy: govtypes.StrategyFast})
	}()
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	require.Equal(t, OutcomeCommitted, results[0].Outcome)
	require.Equal(t, OutcomeCommitted, results[1].Outcome)
	require.NotEqual(t, results[0].Version, results[1].Version)

	latest, err := c.history.LatestVersion("accounts")
	require.NoError(t, err)
	require.Contains(t, []string{results[0].Version, results[1].Version}, latest)
}

func TestCreateOrUpdateContract_DryRunDoesNotCommit(t *testing.T) {
	c := newCoordinator(t)

	res, err := c.CreateOrUpdateContract(context.Background(), Request{
		Raw: validRaw("events"), Strategy: govtypes.StrategyFast, DryRun: true,
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeNotCommitted, res.Outcome)
	require.Equal(t, "1.0.0", res.Version)

	latest, err := c.history.LatestVersion("events")
	require.NoError(t, err)
	require.Empty(t, latest)
}
