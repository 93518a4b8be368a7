package google

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"maestro/internal/provider"
	"maestro/internal/tools"
)

func TestSendNoToolCallsReturnsFinalText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"hello there"}]}}]}`))
	}))
	t.Cleanup(srv.Close)

	a, err := newTestAdapter(srv)
	require.NoError(t, err)
	reg := tools.NewRegistry()

	result, err := a.Send(context.Background(), []provider.Message{{Role: "user", Content: "hi"}}, "be helpful", reg)
	require.NoError(t, err)
	require.Equal(t, "hello there", result.FinalText)
}

// newTestAdapter builds an Adapter whose genai client talks to srv instead
// of the real Gemini endpoint, mirroring the teacher's google client_test.go
// BaseURL-override pattern.
func newTestAdapter(srv *httptest.Server) (*Adapter, error) {
	return New(context.Background(), "k", "test-model", srv.URL, srv.Client())
}
