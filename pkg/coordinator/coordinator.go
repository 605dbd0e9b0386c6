// Package coordinator composes the builder, orchestrator, versioner and
// history store into the single public validate-and-commit operation,
// per the compliance enforcement engine's request-response wiring
// pattern generalized into a build-validate-version-commit pipeline.
package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/dataguild/contractguard/pkg/contracts"
	"github.com/dataguild/contractguard/pkg/govtypes"
	"github.com/dataguild/contractguard/pkg/history"
	"github.com/dataguild/contractguard/pkg/orchestrator"
	"github.com/dataguild/contractguard/pkg/versioning"
)

// Outcome is the terminal result of CreateOrUpdateContract.
type Outcome string

const (
	OutcomeCommitted   Outcome = "committed"
	OutcomeNotCommitted Outcome = "not_committed"
)

// Result is the coordinator's public return value.
type Result struct {
	Contract *contracts.Contract
	Report   govtypes.ValidationReport
	Outcome  Outcome
	CommitID string
	Version  string
}

// Coordinator composes the build/validate/version/commit pipeline.
type Coordinator struct {
	builder      *contracts.Builder
	orchestrator *orchestrator.Orchestrator
	history      *history.Store
	author       string
}

// New constructs a Coordinator over the given collaborators.
func New(orc *orchestrator.Orchestrator, hist *history.Store, author string) *Coordinator {
	return &Coordinator{builder: contracts.NewBuilder(), orchestrator: orc, history: hist, author: author}
}

// Request is the input to CreateOrUpdateContract.
type Request struct {
	Raw      contracts.RawContract
	Strategy govtypes.Strategy
	Deadline time.Time
	// DryRun validates and versions the candidate contract without
	// committing it to history.
	DryRun bool
}

// CreateOrUpdateContract builds a candidate contract, validates it,
// assigns its version against the dataset's history, and commits both
// serialization forms atomically, per §4.8. A failed validation, or a
// DryRun request, never writes to history.
func (c *Coordinator) CreateOrUpdateContract(ctx context.Context, req Request) (Result, error) {
	contract, err := c.builder.Build(req.Raw)
	if err != nil {
		return Result{}, err
	}

	predecessor, err := c.loadPredecessor(contract.Identity.Dataset)
	if err != nil {
		return Result{}, err
	}

	report := c.orchestrator.Validate(ctx, orchestrator.Request{
		Contract: contract,
		Predecessor: predecessor,
		Strategy: req.Strategy,
		Deadline: req.Deadline,
	})

	if report.Status == govtypes.StatusFailed {
		return Result{Contract: contract, Report: report, Outcome: OutcomeNotCommitted}, nil
	}

	assigned := versioning.Assign(predecessor, contract)
	contract.Identity.Version = assigned.String()

	if req.DryRun {
		return Result{Contract: contract, Report: report, Outcome: OutcomeNotCommitted, Version: contract.Identity.Version}, nil
	}

	// CommitContractVersionWithRetry retries on HistoryConflict per §7's
	// backoff policy, recomputing the version assignment and serialized
	// bytes against the dataset's current latest version on every
	// attempt, so a concurrent writer landing a commit between our read
	// and our write doesn't fail this call outright.
	meta, err := c.history.CommitContractVersionWithRetry(ctx, contract.Identity.Dataset, c.author, history.DefaultBackoffPolicy(),
		func(latestParent string) (history.CommitContractRequest, error) {
			currentPredecessor, err := c.loadPredecessorAt(contract.Identity.Dataset, latestParent)
			if err != nil {
				return history.CommitContractRequest{}, err
			}

			assigned := versioning.Assign(currentPredecessor, contract)
			contract.Identity.Version = assigned.String()

			human := contracts.SerializeHuman(contract, time.Now().UTC())
			machine, err := contracts.SerializeStruct(contract)
			if err != nil {
				return history.CommitContractRequest{}, err
			}

			changeKind := "initial"
			if currentPredecessor != nil {
				changeKind = string(versioning.ClassifyChange(currentPredecessor, contract))
			}
			message := fmt.Sprintf("%s: %s -> %s (%s)", contract.Identity.Dataset, latestParent, contract.Identity.Version, changeKind)

			return history.CommitContractRequest{
				Version: contract.Identity.Version,
				Human:   human,
				Machine: machine,
				Message: message,
			}, nil
		})
	if err != nil {
		return Result{}, err
	}

	return Result{
		Contract: contract,
		Report:   report,
		Outcome:  OutcomeCommitted,
		CommitID: meta.ID,
		Version:  contract.Identity.Version,
	}, nil
}

func (c *Coordinator) loadPredecessor(dataset string) (*contracts.Contract, error) {
	latest, err := c.history.LatestVersion(dataset)
	if err != nil {
		return nil, err
	}
	return c.loadPredecessorAt(dataset, latest)
}

// loadPredecessorAt loads the committed contract at version (the
// dataset's latest as of some point in time), or nil if version is "".
// Used both for the coordinator's initial read and, by
// CommitContractVersionWithRetry's refresh callback, to re-resolve the
// predecessor against a dataset that has moved since that initial read.
func (c *Coordinator) loadPredecessorAt(dataset, version string) (*contracts.Contract, error) {
	if version == "" {
		return nil, nil
	}

	_, machine := history.RefNames(dataset, version)
	data, err := c.history.RefRead(machine)
	if err != nil {
		return nil, err
	}
	return contracts.ParseStruct(data)
}
