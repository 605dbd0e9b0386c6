package history

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataguild/contractguard/pkg/govtypes"
)

func TestPut_ContentAddressed_IdenticalContentSameID(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	id1, err := s.Put([]byte("hello"))
	require.NoError(t, err)
	id2, err := s.Put([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, id1, id2)
}

func TestCommit_LandsBothRefsAtomically(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	meta, err := s.Commit(CommitRequest{
		Message: "initial",
		Author:  "tester",
		Refs: map[string][]byte{
			"customers_v1.0.0":         []byte("human form"),
			"customers_v1.0.0.struct":  []byte(`{"json":"form"}`),
		},
	})
	require.NoError(t, err)

	head, err := s.Head()
	require.NoError(t, err)
	assert.Equal(t, meta.ID, head)

	blob, err := s.RefRead("customers_v1.0.0")
	require.NoError(t, err)
	assert.Equal(t, "human form", string(blob))

	blob, err = s.RefRead("customers_v1.0.0.struct")
	require.NoError(t, err)
	assert.Equal(t, `{"json":"form"}`, string(blob))
}

func TestCommitContractVersion_RejectsStaleParent(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	_, err = s.CommitContractVersion(CommitContractRequest{
		Dataset: "customers", Version: "1.0.0", ExpectedParent: "",
		Human: []byte("v1"), Machine: []byte("{}"), Author: "a", Message: "m",
	})
	require.NoError(t, err)

	_, err = s.CommitContractVersion(CommitContractRequest{
		Dataset: "customers", Version: "1.1.0", ExpectedParent: "", // stale: actual latest is 1.0.0
		Human: []byte("v2"), Machine: []byte("{}"), Author: "a", Message: "m",
	})
	require.Error(t, err)
	assert.True(t, govtypes.IsKind(err, govtypes.KindHistoryConflict))
}

func TestLatestVersion_TracksHighestCommitted(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	_, err = s.CommitContractVersion(CommitContractRequest{
		Dataset: "orders", Version: "1.0.0", ExpectedParent: "",
		Human: []byte("v1"), Machine: []byte("{}"), Author: "a", Message: "m",
	})
	require.NoError(t, err)
	_, err = s.CommitContractVersion(CommitContractRequest{
		Dataset: "orders", Version: "1.1.0", ExpectedParent: "1.0.0",
		Human: []byte("v2"), Machine: []byte("{}"), Author: "a", Message: "m",
	})
	require.NoError(t, err)

	latest, err := s.LatestVersion("orders")
	require.NoError(t, err)
	assert.Equal(t, "1.1.0", latest)
}

func TestDiff_ReturnsUnifiedDiffAcrossCommits(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	m1, err := s.CommitContractVersion(CommitContractRequest{
		Dataset: "orders", Version: "1.0.0", ExpectedParent: "",
		Human: []byte("line one\nline two\n"), Machine: []byte("{}"), Author: "a", Message: "m",
	})
	require.NoError(t, err)
	m2, err := s.Commit(CommitRequest{Author: "a", Message: "m", Refs: map[string][]byte{
		"orders_v1.0.0": []byte("line one\nline three\n"),
	}})
	require.NoError(t, err)

	diff, err := s.Diff(m1.ID, m2.ID, "orders_v1.0.0")
	require.NoError(t, err)
	assert.Contains(t, diff, "-line two")
}

func TestCommitContractVersionWithRetry_RecoversFromConflict(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	_, err = s.CommitContractVersion(CommitContractRequest{
		Dataset: "orders", Version: "1.0.0", ExpectedParent: "",
		Human: []byte("v1"), Machine: []byte("{}"), Author: "a", Message: "m",
	})
	require.NoError(t, err)

	policy := BackoffPolicy{BaseMs: 1, MaxMs: 5, MaxJitterMs: 1, MaxAttempts: 3}
	attempts := 0
	meta, err := s.CommitContractVersionWithRetry(context.Background(), "orders", "a", policy, func(expectedParent string) (CommitContractRequest, error) {
		attempts++
		if attempts == 1 {
			// A competing writer lands 1.1.0 first, so this attempt's
			// ExpectedParent of 1.0.0 is stale by the time it commits.
			_, err := s.CommitContractVersion(CommitContractRequest{
				Dataset: "orders", Version: "1.1.0", ExpectedParent: expectedParent,
				Human: []byte("v2b"), Machine: []byte("{}"), Author: "b", Message: "m",
			})
			require.NoError(t, err)
		}
		version := "1.2.0"
		if expectedParent == "1.0.0" {
			version = "1.1.0"
		}
		return CommitContractRequest{
			Version: version,
			Human:   []byte("v2"),
			Machine: []byte("{}"),
			Message: "m",
		}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.NotEmpty(t, meta.ID)
}

func TestOpen_WritesFormatFile(t *testing.T) {
	dir := t.TempDir()
	_, err := Open(dir)
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "format"))
	require.NoError(t, err)

	_, err = Open(dir) // reopen is idempotent
	require.NoError(t, err)
}

func TestLog_RespectsLimitAndOrdering(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := s.Commit(CommitRequest{Author: "a", Message: "m", Refs: map[string][]byte{
			"k": []byte(time.Now().Format(time.RFC3339Nano) + string(rune('a'+i))),
		}})
		require.NoError(t, err)
	}

	entries, err := s.Log(2, time.Time{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, entries[1].ID, entries[0].Parent)
}
