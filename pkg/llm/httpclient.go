package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const judgmentSchemaDoc = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["verdict", "message", "confidence"],
	"properties": {
		"verdict": {"enum": ["ok", "violation", "unknown"]},
		"field_paths": {"type": "array", "items": {"type": "string"}},
		"message": {"type": "string"},
		"confidence": {"type": "number", "minimum": 0, "maximum": 1}
	}
}`

var judgmentSchema = mustCompileJudgmentSchema()

func mustCompileJudgmentSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("judgment.json", bytes.NewReader([]byte(judgmentSchemaDoc))); err != nil {
		panic(fmt.Sprintf("llm: compile judgment schema: %v", err))
	}
	return compiler.MustCompile("judgment.json")
}

// HTTPClient submits judgment requests to an HTTP language-model
// backend and enforces the structured judgment schema on every
// response: free-form text is never trusted (§9 design note).
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPClient constructs a backend client pointed at baseURL, with the
// given per-call timeout as the HTTP client's default.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Judge submits req and validates the response against the frozen
// judgment schema before returning it.
func (c *HTTPClient) Judge(ctx context.Context, req Request) (*Judgment, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("llm: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/judge", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("llm: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("llm: backend call: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("llm: backend returned status %d", resp.StatusCode)
	}

	var raw interface{}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("llm: decode response: %w", err)
	}

	if err := judgmentSchema.Validate(raw); err != nil {
		return nil, fmt.Errorf("llm: response failed judgment schema: %w", err)
	}

	reencoded, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("llm: re-encode validated response: %w", err)
	}

	var judgment Judgment
	if err := json.Unmarshal(reencoded, &judgment); err != nil {
		return nil, fmt.Errorf("llm: unmarshal judgment: %w", err)
	}

	return &judgment, nil
}

// Ping performs a lightweight liveness probe against the backend.
func (c *HTTPClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("llm: build ping request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("llm: ping failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("llm: ping returned status %d", resp.StatusCode)
	}
	return nil
}
