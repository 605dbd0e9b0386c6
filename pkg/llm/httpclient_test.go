package llm

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClient_Judge_ValidResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"verdict":    "violation",
			"message":    "field looks like pii",
			"confidence": 0.8,
		})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, 5*time.Second)
	j, err := c.Judge(t.Context(), Request{ModelID: "m", Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, VerdictViolation, j.Verdict)
	assert.Equal(t, 0.8, j.Confidence)
}

func TestHTTPClient_Judge_RejectsMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"verdict": "maybe-violation"})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, 5*time.Second)
	_, err := c.Judge(t.Context(), Request{ModelID: "m", Prompt: "p"})
	require.Error(t, err)
}

func TestHTTPClient_Ping_Unreachable(t *testing.T) {
	c := NewHTTPClient("http://127.0.0.1:0", 100*time.Millisecond)
	err := c.Ping(t.Context())
	require.Error(t, err)
}
