// Package orchestrator selects and runs the validation strategy for a
// contract, merging rule and semantic findings into one report, in the
// manner of the compliance enforcement engine's request-timeout-then-
// aggregate pipeline.
package orchestrator

import (
	"context"
	"time"

	"github.com/dataguild/contractguard/pkg/analyzer"
	"github.com/dataguild/contractguard/pkg/contracts"
	"github.com/dataguild/contractguard/pkg/govtypes"
	"github.com/dataguild/contractguard/pkg/policy/catalog"
	"github.com/dataguild/contractguard/pkg/policy/rule"
)

// SemanticRunner is the subset of the semantic evaluator's surface the
// orchestrator depends on, so tests can substitute a fake.
type SemanticRunner interface {
	Available(ctx context.Context) bool
	Run(ctx context.Context, contract *contracts.Contract, policies []catalog.Policy) []govtypes.Finding
}

// Orchestrator runs validation strategies over a contract against the
// current policy catalog.
type Orchestrator struct {
	catalog      *catalog.Catalog
	rules        *rule.Evaluator
	semantic     SemanticRunner
	backpressure Backpressure
	telemetry    Telemetry
}

// New constructs an Orchestrator. semanticRunner may be nil, in which
// case every strategy behaves as if the semantic engine is unavailable.
func New(cat *catalog.Catalog, rules *rule.Evaluator, semanticRunner SemanticRunner) *Orchestrator {
	return &Orchestrator{catalog: cat, rules: rules, semantic: semanticRunner}
}

// WithBackpressure attaches a process- or cluster-wide in-flight cap on
// semantic evaluations (§5). Nil (the default) leaves Validate calls
// unbounded at this layer.
func (o *Orchestrator) WithBackpressure(b Backpressure) *Orchestrator {
	o.backpressure = b
	return o
}

// Request is the orchestrator's input for one validation run.
type Request struct {
	Contract        *contracts.Contract
	Predecessor     *contracts.Contract
	AssertedVersion string
	Strategy        govtypes.Strategy
	Deadline        time.Time // zero means no deadline
}

// Validate runs the requested strategy (resolving ADAPTIVE to a concrete
// strategy) and returns a merged, deduplicated report.
func (o *Orchestrator) Validate(ctx context.Context, req Request) govtypes.ValidationReport {
	start := time.Now()

	ctx, span := o.telemetry.startSpan(ctx, string(req.Strategy))

	if !req.Deadline.IsZero() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, req.Deadline)
		defer cancel()
	}

	a := analyzer.Analyze(req.Contract)

	meta := govtypes.ReportMetadata{
		StrategyRequested: req.Strategy,
		RiskLevel:         a.RiskLevel,
		ComplexityScore:   a.ComplexityScore,
	}

	executed, reasoning, degradedFrom := resolveStrategy(req.Strategy, a, o.semanticAvailable(ctx))
	meta.StrategyExecuted = executed
	meta.Reasoning = reasoning
	if degradedFrom != "" {
		meta.DegradedFrom = degradedFrom
	}

	rulePolicies := o.catalog.ListKind(catalog.KindRule)
	ruleFindings := o.rules.Evaluate(req.Contract, rulePolicies, rule.EvalInput{
		Predecessor:     req.Predecessor,
		AssertedVersion: req.AssertedVersion,
	})
	meta.EnginesUsed = append(meta.EnginesUsed, govtypes.EngineRule)
	for _, p := range rulePolicies {
		meta.PoliciesEvaluated = append(meta.PoliciesEvaluated, p.ID)
	}

	findings := append([]govtypes.Finding{}, ruleFindings...)

	semPolicies := o.semanticPoliciesFor(executed, a)
	if len(semPolicies) > 0 && o.semantic != nil {
		select {
		case <-ctx.Done():
			meta.DeadlineExceeded = true
		default:
			if acquireErr := o.acquireBackpressure(ctx); acquireErr != nil {
				meta.BackpressureRejected = true
			} else {
				semFindings := o.semantic.Run(ctx, req.Contract, semPolicies)
				o.releaseBackpressure()
				findings = append(findings, semFindings...)
				meta.EnginesUsed = append(meta.EnginesUsed, govtypes.EngineSemantic)
				for _, p := range semPolicies {
					meta.SemanticPolicies = append(meta.SemanticPolicies, p.ID)
				}
			}
		}
	}

	findings = merge(findings)
	meta.WallClock = time.Since(start)

	select {
	case <-ctx.Done():
		meta.DeadlineExceeded = true
	default:
	}

	report := govtypes.NewReport(findings, meta)
	if meta.DeadlineExceeded && report.Status != govtypes.StatusFailed {
		report.Status = govtypes.StatusWarning
	}

	o.telemetry.recordOutcome(ctx, span, string(executed), string(report.Status), meta.WallClock.Seconds())

	return report
}

func (o *Orchestrator) semanticAvailable(ctx context.Context) bool {
	return o.semantic != nil && o.semantic.Available(ctx)
}

// acquireBackpressure reserves an in-flight slot if a Backpressure is
// configured; with none attached, semantic evaluations are unbounded at
// this layer (the semantic evaluator's own fan-out still applies).
func (o *Orchestrator) acquireBackpressure(ctx context.Context) error {
	if o.backpressure == nil {
		return nil
	}
	return o.backpressure.Acquire(ctx)
}

func (o *Orchestrator) releaseBackpressure() {
	if o.backpressure == nil {
		return
	}
	o.backpressure.Release()
}

// resolveStrategy turns a (possibly ADAPTIVE) requested strategy into a
// concrete strategy to execute, per the decision table.
func resolveStrategy(requested govtypes.Strategy, a analyzer.Analysis, semanticAvailable bool) (executed govtypes.Strategy, reasoning string, degradedFrom govtypes.Strategy) {
	chosen := requested
	if requested == govtypes.StrategyAdaptive {
		switch {
		case a.RiskLevel == govtypes.RiskCritical || a.RiskLevel == govtypes.RiskHigh:
			chosen = govtypes.StrategyThorough
			reasoning = "adaptive: risk " + string(a.RiskLevel) + " requires thorough evaluation"
		case a.RiskLevel == govtypes.RiskLow && a.ComplexityScore < 30:
			chosen = govtypes.StrategyFast
			reasoning = "adaptive: low risk and low complexity, fast path sufficient"
		default:
			chosen = govtypes.StrategyBalanced
			reasoning = "adaptive: default balanced evaluation"
		}
	} else {
		reasoning = "strategy explicitly requested"
	}

	if chosen != govtypes.StrategyFast && !semanticAvailable {
		degradedFrom = chosen
		chosen = govtypes.StrategyFast
		reasoning = reasoning + "; semantic engine unavailable, degraded to fast"
	}

	return chosen, reasoning, degradedFrom
}

// semanticPoliciesFor returns the semantic policies a resolved strategy
// should run, per the BALANCED subset rule and THOROUGH's "all" rule.
func (o *Orchestrator) semanticPoliciesFor(executed govtypes.Strategy, a analyzer.Analysis) []catalog.Policy {
	all := o.catalog.ListKind(catalog.KindSemantic)

	switch executed {
	case govtypes.StrategyThorough:
		return all
	case govtypes.StrategyBalanced:
		var subset []catalog.Policy
		for _, p := range all {
			switch p.ID {
			case "SEM001":
				if a.HasPII {
					subset = append(subset, p)
				}
			case "SEM004":
				if a.ComplianceTagCount > 0 {
					subset = append(subset, p)
				}
			case "SEM002":
				if a.ComplexityScore >= 50 {
					subset = append(subset, p)
				}
			case "SEM003":
				if a.HasPII || a.Classification == contracts.ClassificationConfidential || a.Classification == contracts.ClassificationRestricted {
					subset = append(subset, p)
				}
			}
		}
		return subset
	default:
		return nil
	}
}

// merge deduplicates findings sharing the same policy id and field
// path, keeping the higher severity and, on a tie, the higher confidence.
func merge(findings []govtypes.Finding) []govtypes.Finding {
	best := map[string]govtypes.Finding{}
	var order []string

	for _, f := range findings {
		key := f.DedupeKey()
		existing, ok := best[key]
		if !ok {
			best[key] = f
			order = append(order, key)
			continue
		}
		if f.Severity.Rank() < existing.Severity.Rank() {
			best[key] = f
		} else if f.Severity.Rank() == existing.Severity.Rank() && f.Confidence > existing.Confidence {
			best[key] = f
		}
	}

	merged := make([]govtypes.Finding, 0, len(order))
	for _, key := range order {
		merged = append(merged, best[key])
	}
	govtypes.SortFindings(merged)
	return merged
}
