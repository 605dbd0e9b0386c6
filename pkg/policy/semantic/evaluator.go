// Package semantic implements the language-model-backed policy
// evaluator: bounded parallel fan-out over the catalog's semantic
// policies, in the manner of the regulatory-watch swarm's
// channel-bounded polling, but built on golang.org/x/sync/semaphore for
// the weighted-acquire idiom.
package semantic

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/dataguild/contractguard/pkg/contracts"
	"github.com/dataguild/contractguard/pkg/govtypes"
	"github.com/dataguild/contractguard/pkg/llm"
	"github.com/dataguild/contractguard/pkg/policy/catalog"
)

const (
	defaultFanOut       = 4
	defaultRequestTimeout = 30 * time.Second
	defaultProbeInterval = 30 * time.Second
)

// Evaluator delegates semantic-policy reasoning to an external
// language-model backend, bounded fan-out across the policies requested
// for one contract.
type Evaluator struct {
	client  llm.Client
	fanOut  int64
	timeout time.Duration

	probeInterval time.Duration
	mu            sync.Mutex
	lastProbe     time.Time
	available     bool
}

// Option configures an Evaluator at construction.
type Option func(*Evaluator)

// WithFanOut overrides the default bounded parallelism (4).
func WithFanOut(n int) Option { return func(e *Evaluator) { e.fanOut = int64(n) } }

// WithTimeout overrides the default per-request timeout (30s).
func WithTimeout(d time.Duration) Option { return func(e *Evaluator) { e.timeout = d } }

// WithProbeInterval overrides the default availability-probe cadence (30s).
func WithProbeInterval(d time.Duration) Option { return func(e *Evaluator) { e.probeInterval = d } }

// NewEvaluator constructs a semantic evaluator over client. The backend
// is probed once immediately so the first Run call has a fresh
// availability reading.
func NewEvaluator(ctx context.Context, client llm.Client, opts ...Option) *Evaluator {
	e := &Evaluator{
		client:        client,
		fanOut:        defaultFanOut,
		timeout:       defaultRequestTimeout,
		probeInterval: defaultProbeInterval,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.refreshAvailability(ctx)
	return e
}

func (e *Evaluator) refreshAvailability(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	err := e.client.Ping(pingCtx)

	e.mu.Lock()
	e.available = err == nil
	e.lastProbe = time.Now()
	e.mu.Unlock()
}

// Available reports whether the backend answered the most recent probe,
// re-probing if the probe cadence has elapsed.
func (e *Evaluator) Available(ctx context.Context) bool {
	e.mu.Lock()
	stale := time.Since(e.lastProbe) >= e.probeInterval
	e.mu.Unlock()

	if stale {
		e.refreshAvailability(ctx)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.available
}

// Run evaluates every policy in policies against contract, in parallel
// up to the configured fan-out. When the backend is unavailable it
// returns a single "engines unavailable" finding without invoking the
// backend at all (§4.3's availability gate).
func (e *Evaluator) Run(ctx context.Context, contract *contracts.Contract, policies []catalog.Policy) []govtypes.Finding {
	if len(policies) == 0 {
		return nil
	}

	if !e.Available(ctx) {
		return []govtypes.Finding{{
			PolicyID: govtypes.FindingIDEnginesUnavailable,
			Severity: govtypes.SeverityInfo,
			Message:  "semantic engine unavailable; evaluation skipped for all requested semantic policies",
			Engine:   govtypes.EngineSemantic,
		}}
	}

	sem := semaphore.NewWeighted(e.fanOut)
	var mu sync.Mutex
	var findings []govtypes.Finding
	var wg sync.WaitGroup

	for _, p := range policies {
		if err := sem.Acquire(ctx, 1); err != nil {
			// context cancelled/deadline exceeded before we could even
			// start this policy's call; nothing to report for it.
			continue
		}

		wg.Add(1)
		go func(p catalog.Policy) {
			defer wg.Done()
			defer sem.Release(1)

			fs := e.runOne(ctx, contract, p)

			mu.Lock()
			findings = append(findings, fs...)
			mu.Unlock()
		}(p)
	}

	wg.Wait()

	govtypes.SortFindings(findings)
	return findings
}

func (e *Evaluator) runOne(ctx context.Context, contract *contracts.Contract, p catalog.Policy) []govtypes.Finding {
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	prompt := buildPrompt(p, contract)

	judgment, err := e.client.Judge(callCtx, llm.Request{
		ModelID:     "default",
		Prompt:      prompt,
		MaxTokens:   512,
		Temperature: 0,
	})
	if err != nil {
		return []govtypes.Finding{{
			PolicyID: govtypes.FindingIDSemanticUnavailable,
			Severity: govtypes.SeverityInfo,
			Message:  fmt.Sprintf("semantic policy %s unavailable: %v", p.ID, err),
			Engine:   govtypes.EngineSemantic,
		}}
	}

	if judgment.Verdict == llm.VerdictUnknown {
		return nil
	}
	if judgment.Verdict == llm.VerdictOK {
		return nil
	}

	return []govtypes.Finding{{
		PolicyID:   p.ID,
		Severity:   p.Severity,
		FieldPaths: judgment.FieldPaths,
		Message:    judgment.Message,
		Remediation: p.Remediation,
		Engine:     govtypes.EngineSemantic,
		Confidence: judgment.Confidence,
	}}
}

func buildPrompt(p catalog.Policy, c *contracts.Contract) string {
	var fields []string
	for _, f := range c.Schema {
		fields = append(fields, fmt.Sprintf("%s:%s", f.Name, f.Type))
	}

	replacer := strings.NewReplacer(
		"{{.SchemaSummary}}", strings.Join(fields, ", "),
		"{{.ContractSummary}}", fmt.Sprintf("dataset=%s classification=%s", c.Identity.Dataset, c.Governance.Classification),
		"{{.Classification}}", string(c.Governance.Classification),
		"{{.ComplianceTags}}", strings.Join(c.Governance.ComplianceTags, ", "),
		"{{.Completeness}}", fmt.Sprintf("%.2f", c.Quality.CompletenessThreshold),
		"{{.Accuracy}}", fmt.Sprintf("%.2f", c.Quality.AccuracyThreshold),
		"{{.ApprovedUseCases}}", strings.Join(c.Governance.ApprovedUseCases, ", "),
	)
	return replacer.Replace(p.Rule)
}
