package history

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dataguild/contractguard/pkg/govtypes"
	"github.com/dataguild/contractguard/pkg/versioning"
)

// RefNames returns the human-readable and machine-readable blob ref
// names for one dataset version, per the §6.3 naming convention.
func RefNames(dataset, version string) (human, machine string) {
	human = dataset + "_v" + version
	return human, human + ".struct"
}

// LatestVersion returns the highest committed version for dataset, or
// "" if none has been committed yet.
func (s *Store) LatestVersion(dataset string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latestVersionLocked(dataset)
}

func (s *Store) latestVersionLocked(dataset string) (string, error) {
	all, err := s.readLog()
	if err != nil {
		return "", err
	}

	prefix := dataset + "_v"
	var best *versioning.Version
	var bestRaw string
	for _, entry := range all {
		for name := range entry.Refs {
			if !strings.HasPrefix(name, prefix) || strings.HasSuffix(name, ".struct") {
				continue
			}
			raw := strings.TrimPrefix(name, prefix)
			v, err := versioning.Parse(raw)
			if err != nil {
				continue
			}
			if best == nil || v.Compare(*best) > 0 {
				best = v
				bestRaw = raw
			}
		}
	}
	if best == nil {
		return "", nil
	}
	return bestRaw, nil
}

// CommitContractRequest is the input to CommitContractVersion.
type CommitContractRequest struct {
	Dataset         string
	Version         string
	ExpectedParent  string // "" means "dataset has no prior committed version"
	Human           []byte
	Machine         []byte
	Author          string
	Message         string
}

// CommitContractVersion lands both serialization forms of one contract
// version atomically under the dataset naming convention, failing with
// HistoryConflict if another writer has advanced the dataset's latest
// version since the caller computed ExpectedParent.
func (s *Store) CommitContractVersion(req CommitContractRequest) (CommitMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	latest, err := s.latestVersionLocked(req.Dataset)
	if err != nil {
		return CommitMeta{}, err
	}
	if latest != req.ExpectedParent {
		return CommitMeta{}, govtypes.NewError(govtypes.KindHistoryConflict, req.Dataset, req.Version,
			fmt.Sprintf("expected parent version %q, dataset is now at %q", req.ExpectedParent, latest), nil)
	}

	human, machine := RefNames(req.Dataset, req.Version)
	return s.commitLocked(CommitRequest{
		Author:  req.Author,
		Message: req.Message,
		Refs: map[string][]byte{
			human:   req.Human,
			machine: req.Machine,
		},
	})
}

// CommitContractVersionWithRetry retries CommitContractVersion on
// HistoryConflict per the deterministic backoff policy, recomputing
// ExpectedParent via refresh before each attempt. refresh must return
// the (possibly updated) version + dual-form bytes to commit against the
// dataset's current latest version; it is called once per attempt so a
// retry recomputes the version assignment against the now-current
// predecessor rather than replaying a stale decision.
func (s *Store) CommitContractVersionWithRetry(ctx context.Context, dataset, author string, policy BackoffPolicy, refresh func(expectedParent string) (CommitContractRequest, error)) (CommitMeta, error) {
	var lastErr error
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		latest, err := s.LatestVersion(dataset)
		if err != nil {
			return CommitMeta{}, err
		}

		req, err := refresh(latest)
		if err != nil {
			return CommitMeta{}, err
		}
		req.Dataset = dataset
		req.Author = author
		req.ExpectedParent = latest

		meta, err := s.CommitContractVersion(req)
		if err == nil {
			return meta, nil
		}
		if !govtypes.IsKind(err, govtypes.KindHistoryConflict) {
			return CommitMeta{}, err
		}
		lastErr = err

		delay := computeBackoff(dataset, attempt, policy)
		select {
		case <-ctx.Done():
			return CommitMeta{}, govtypes.NewError(govtypes.KindDeadlineExceeded, dataset, "", "history conflict retry cancelled", ctx.Err())
		case <-time.After(delay):
		}
	}
	return CommitMeta{}, govtypes.NewError(govtypes.KindHistoryConflict, dataset, "", "exhausted retries: "+lastErr.Error(), lastErr)
}
