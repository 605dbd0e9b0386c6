package rule

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/decls"
	"github.com/google/cel-go/common/types"

	"github.com/dataguild/contractguard/pkg/contracts"
	"github.com/dataguild/contractguard/pkg/govtypes"
	"github.com/dataguild/contractguard/pkg/policy/catalog"
)

// Scope selects which accessor vocabulary a policy's CEL expression runs
// against: once per contract, or once per schema field.
type Scope string

const (
	ScopeContract Scope = "contract"
	ScopeField    Scope = "field"
)

// scopeByPolicy is the fixed assignment of the 17 canonical rule
// policies to their evaluation scope. DQ003 and SG001/SG002/SG004/SG005
// are field-scoped; everything else is contract-scoped.
var scopeByPolicy = map[string]Scope{
	"DQ003": ScopeField,
	"SG001": ScopeField,
	"SG002": ScopeField,
	"SG004": ScopeField,
	"SG005": ScopeField,
}

func scopeFor(policyID string) Scope {
	if s, ok := scopeByPolicy[policyID]; ok {
		return s
	}
	return ScopeContract
}

// Evaluator compiles and caches CEL programs for the catalog's rule
// policies and evaluates them against a contract.
type Evaluator struct {
	contractEnv *cel.Env
	fieldEnv    *cel.Env

	mu       sync.Mutex
	programs map[string]cel.Program // policy id -> compiled predicate
}

// NewEvaluator constructs a rule evaluator with the fixed CEL
// environments for contract-scope and field-scope predicates.
func NewEvaluator() (*Evaluator, error) {
	contractEnv, err := cel.NewEnv(cel.VariableDecls(
		decls.NewVariable("field_count", types.IntType),
		decls.NewVariable("pii_field_count", types.IntType),
		decls.NewVariable("pii_field_names", types.NewListType(types.StringType)),
		decls.NewVariable("required_field_names", types.NewListType(types.StringType)),
		decls.NewVariable("classification", types.StringType),
		decls.NewVariable("compliance_tag_count", types.IntType),
		decls.NewVariable("encryption_required", types.BoolType),
		decls.NewVariable("retention_days", types.IntType),
		decls.NewVariable("approved_use_case_count", types.IntType),
		decls.NewVariable("data_residency", types.StringType),
		decls.NewVariable("completeness_threshold", types.DoubleType),
		decls.NewVariable("accuracy_threshold", types.DoubleType),
		decls.NewVariable("freshness_horizon_set", types.BoolType),
		decls.NewVariable("has_timestamp_field", types.BoolType),
		decls.NewVariable("owner_name", types.StringType),
		decls.NewVariable("owner_contact", types.StringType),
		decls.NewVariable("quality_tier", types.StringType),
		decls.NewVariable("versioning_strategy_note", types.StringType),
		decls.NewVariable("breaking_without_major_bump", types.BoolType),
	))
	if err != nil {
		return nil, fmt.Errorf("rule: build contract cel env: %w", err)
	}

	fieldEnv, err := cel.NewEnv(cel.VariableDecls(
		decls.NewVariable("name", types.StringType),
		decls.NewVariable("type", types.StringType),
		decls.NewVariable("nullable", types.BoolType),
		decls.NewVariable("description", types.StringType),
		decls.NewVariable("max_length", types.IntType),
		decls.NewVariable("pii", types.BoolType),
		decls.NewVariable("enum_declared", types.BoolType),
		decls.NewVariable("enum_count", types.IntType),
		decls.NewVariable("unique", types.BoolType),
		decls.NewVariable("looks_like_primary_key", types.BoolType),
		decls.NewVariable("covered_by_uniqueness_keys", types.BoolType),
	))
	if err != nil {
		return nil, fmt.Errorf("rule: build field cel env: %w", err)
	}

	return &Evaluator{
		contractEnv: contractEnv,
		fieldEnv:    fieldEnv,
		programs:    make(map[string]cel.Program),
	}, nil
}

func (e *Evaluator) program(policy catalog.Policy) (cel.Program, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if prg, ok := e.programs[policy.ID]; ok {
		return prg, nil
	}

	env := e.contractEnv
	if scopeFor(policy.ID) == ScopeField {
		env = e.fieldEnv
	}

	ast, issues := env.Compile(policy.Rule)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("rule: compile %s: %w", policy.ID, issues.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("rule: build program %s: %w", policy.ID, err)
	}

	e.programs[policy.ID] = prg
	return prg, nil
}

// EvalInput carries the optional predecessor and caller-asserted version
// used by SG006; both may be zero-valued on the common create path.
type EvalInput struct {
	Predecessor     *contracts.Contract
	AssertedVersion string
}

// Evaluate applies every rule policy in policies against c, returning
// ordered findings. A predicate that fails to evaluate never propagates
// to the caller: it is recorded instead as an info-severity finding under
// the fixed govtypes.FindingIDEngineError id, naming the failing policy in
// its message (§4.2).
func (e *Evaluator) Evaluate(c *contracts.Contract, policies []catalog.Policy, input EvalInput) []govtypes.Finding {
	cView := contractView(c, input.Predecessor, input.AssertedVersion)

	var findings []govtypes.Finding
	for _, p := range policies {
		prg, err := e.program(p)
		if err != nil {
			findings = append(findings, engineErrorFinding(p, err))
			continue
		}

		if scopeFor(p.ID) == ScopeField {
			findings = append(findings, e.evalFieldScoped(c, p, prg)...)
			continue
		}

		out, _, err := prg.Eval(cView)
		if err != nil {
			findings = append(findings, engineErrorFinding(p, err))
			continue
		}
		violated, ok := out.Value().(bool)
		if !ok {
			findings = append(findings, engineErrorFinding(p, fmt.Errorf("predicate did not return bool")))
			continue
		}
		if violated {
			findings = append(findings, govtypes.Finding{
				PolicyID: p.ID,
				Severity: p.Severity,
				Message:  p.Description,
				Remediation: p.Remediation,
				Engine:   govtypes.EngineRule,
				Confidence: 1.0,
			})
		}
	}

	govtypes.SortFindings(findings)
	return findings
}

func (e *Evaluator) evalFieldScoped(c *contracts.Contract, p catalog.Policy, prg cel.Program) []govtypes.Finding {
	var findings []govtypes.Finding
	for _, f := range c.Schema {
		out, _, err := prg.Eval(fieldView(c, f))
		if err != nil {
			findings = append(findings, engineErrorFinding(p, err))
			continue
		}
		violated, ok := out.Value().(bool)
		if !ok {
			findings = append(findings, engineErrorFinding(p, fmt.Errorf("predicate did not return bool")))
			continue
		}
		if violated {
			findings = append(findings, govtypes.Finding{
				PolicyID:    p.ID,
				Severity:    p.Severity,
				FieldPaths:  []string{f.Name},
				Message:     p.Description,
				Remediation: p.Remediation,
				Engine:      govtypes.EngineRule,
				Confidence:  1.0,
			})
		}
	}
	return findings
}

func engineErrorFinding(p catalog.Policy, err error) govtypes.Finding {
	return govtypes.Finding{
		PolicyID:    govtypes.FindingIDEngineError,
		Severity:    govtypes.SeverityInfo,
		Message:     fmt.Sprintf("policy %s predicate failed: %v", p.ID, err),
		Engine:      govtypes.EngineRule,
		EngineError: true,
	}
}
