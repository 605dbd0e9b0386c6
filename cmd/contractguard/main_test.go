package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func setupEnv(t *testing.T) {
	t.Helper()
	policiesDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(policiesDir, "sensitive_data.json"), []byte(`[
		{"id":"SD001","category":"sensitive_data","severity":"critical","rule":"pii_field_count > 0 && !encryption_required","remediation":"encrypt","kind":"rule"}
	]`), 0o644))

	t.Setenv("POLICIES_DIR", policiesDir)
	t.Setenv("HISTORY_DIR", t.TempDir())
	t.Setenv("CONTRACTGUARD_CONFIG", "")
	t.Setenv("DEFAULT_STRATEGY", "FAST")
}

func writeRawContract(t *testing.T, dataset string) string {
	t.Helper()
	raw := map[string]any{
		"dataset": dataset,
		"ownership": map[string]any{
			"owner_name":    "team-data",
			"owner_contact": "data@example.com",
		},
		"schema": []map[string]any{
			{"name": "id", "type": "int", "nullable": false},
		},
		"governance": map[string]any{
			"classification":      "public",
			"encryption_required": false,
		},
	}
	data, err := json.Marshal(raw)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "contract.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestRun_Validate_PassesCleanContract(t *testing.T) {
	setupEnv(t)
	path := writeRawContract(t, "events")

	var out, errOut bytes.Buffer
	code := Run([]string{"contractguard", "validate", "--in", path}, &out, &errOut)
	require.Equal(t, 0, code, errOut.String())
	require.Contains(t, out.String(), "status:    passed")
}

func TestRun_Commit_ThenHistoryLogShowsCommit(t *testing.T) {
	setupEnv(t)
	path := writeRawContract(t, "signups")

	var out, errOut bytes.Buffer
	code := Run([]string{"contractguard", "commit", "--in", path}, &out, &errOut)
	require.Equal(t, 0, code, errOut.String())
	require.Contains(t, out.String(), "outcome:   committed")

	var logOut, logErr bytes.Buffer
	code = Run([]string{"contractguard", "history", "log"}, &logOut, &logErr)
	require.Equal(t, 0, code, logErr.String())
	require.NotEmpty(t, logOut.String())
}

func TestRun_Validate_MissingInFlag(t *testing.T) {
	setupEnv(t)
	var out, errOut bytes.Buffer
	code := Run([]string{"contractguard", "validate"}, &out, &errOut)
	require.Equal(t, 2, code)
	require.Contains(t, errOut.String(), "--in is required")
}

func TestRun_Reload_Succeeds(t *testing.T) {
	setupEnv(t)
	var out, errOut bytes.Buffer
	code := Run([]string{"contractguard", "reload"}, &out, &errOut)
	require.Equal(t, 0, code, errOut.String())
	require.Contains(t, out.String(), "catalog reloaded")
}

func TestRun_UnknownCommand(t *testing.T) {
	var out, errOut bytes.Buffer
	code := Run([]string{"contractguard", "bogus"}, &out, &errOut)
	require.Equal(t, 2, code)
	require.Contains(t, errOut.String(), "Unknown command")
}
