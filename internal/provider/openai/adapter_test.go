package openai

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
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "test-model",
			"choices": [{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"hello there"}}]
		}`))
	}))
	t.Cleanup(srv.Close)

	a := New("k", "test-model", srv.URL, srv.Client())
	reg := tools.NewRegistry()

	result, err := a.Send(context.Background(), []provider.Message{{Role: "user", Content: "hi"}}, "be helpful", reg)
	require.NoError(t, err)
	require.Equal(t, "hello there", result.FinalText)
}

func TestSendRunsToolCallBeforeFinalReply(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		calls++
		w.Header().Set("Content-Type", "application/json")
		if calls == 1 {
			_, _ = w.Write([]byte(`{
				"id": "chatcmpl-1", "object": "chat.completion", "model": "test-model",
				"choices": [{"index":0,"finish_reason":"tool_calls","message":{
					"role":"assistant","content":"",
					"tool_calls":[{"id":"call-1","type":"function","function":{"name":"echo","arguments":"{\"text\":\"hi\"}"}}]
				}}]
			}`))
			return
		}
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-2", "object": "chat.completion", "model": "test-model",
			"choices": [{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"done"}}]
		}`))
	}))
	t.Cleanup(srv.Close)

	a := New("k", "test-model", srv.URL, srv.Client())
	reg := tools.NewRegistry()
	reg.Register(tools.Tool{
		Schema: tools.Schema{Name: "echo", Params: []tools.Param{{Name: "text", Type: "string", Required: true}}},
		Handler: func(ctx context.Context, args map[string]any) (tools.Result, error) {
			return tools.TextResult{Text: "echoed " + args["text"].(string)}, nil
		},
	})

	result, err := a.Send(context.Background(), []provider.Message{{Role: "user", Content: "say hi"}}, "", reg)
	require.NoError(t, err)
	require.Equal(t, 2, calls)
	require.Equal(t, "done", result.FinalText)
	require.Contains(t, result.History[len(result.History)-1].Content, "echoed hi")
}
