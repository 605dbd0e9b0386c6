// Package llm is the language-model backend client used by the semantic
// evaluator, adapted from a chat-completion client into the narrower
// request/response protocol of §6.4: one prompt in, one structured
// judgment out, per call.
package llm

import "context"

// Request is the structured payload submitted to the backend for one
// semantic policy evaluation.
type Request struct {
	ModelID     string  `json:"model_id"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

// Verdict is the semantic evaluator's judgment enumeration.
type Verdict string

const (
	VerdictOK        Verdict = "ok"
	VerdictViolation Verdict = "violation"
	VerdictUnknown   Verdict = "unknown"
)

// Judgment is the structured response the backend must return, frozen
// per the resolution of the open prompt/response schema question: a
// strict, known shape the evaluator can validate rather than trust.
type Judgment struct {
	Verdict    Verdict  `json:"verdict"`
	FieldPaths []string `json:"field_paths,omitempty"`
	Message    string   `json:"message"`
	Confidence float64  `json:"confidence"`
}

// Client is the transport-agnostic interface the semantic evaluator
// depends on.
type Client interface {
	Judge(ctx context.Context, req Request) (*Judgment, error)
	// Ping reports whether the backend currently answers requests; used
	// by the semantic evaluator's availability gate.
	Ping(ctx context.Context) error
}
