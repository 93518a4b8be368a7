package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"
	"github.com/stretchr/testify/require"

	"maestro/internal/provider"
	"maestro/internal/tools"
)

func minimalUsage() sdk.Usage {
	return sdk.Usage{InputTokens: 1, OutputTokens: 1}
}

func TestSendNoToolCallsReturnsFinalText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		resp := sdk.Message{
			ID:    "msg_1",
			Type:  constant.Message("message"),
			Role:  constant.Assistant("assistant"),
			Model: sdk.ModelClaude3_7SonnetLatest,
			Content: []sdk.ContentBlockUnion{
				{Type: "text", Text: "hello there"},
			},
			Usage: minimalUsage(),
		}
		b, _ := json.Marshal(resp)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(b)
	}))
	t.Cleanup(srv.Close)

	a := New("k", "test-model", srv.URL, srv.Client())
	reg := tools.NewRegistry()

	result, err := a.Send(context.Background(), []provider.Message{{Role: "user", Content: "hi"}}, "be helpful", reg)
	require.NoError(t, err)
	require.Equal(t, "hello there", result.FinalText)
	require.Len(t, result.History, 2)
	require.Equal(t, "hello there", result.History[1].Content)
}

func TestSendRunsToolCallBeforeFinalReply(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		calls++
		w.Header().Set("Content-Type", "application/json")
		var resp sdk.Message
		if calls == 1 {
			resp = sdk.Message{
				Type: constant.Message("message"),
				Role: constant.Assistant("assistant"),
				Content: []sdk.ContentBlockUnion{
					{Type: "tool_use", ID: "call-1", Name: "echo", Input: json.RawMessage(`{"text":"hi"}`)},
				},
				Usage: minimalUsage(),
			}
		} else {
			resp = sdk.Message{
				Type:    constant.Message("message"),
				Role:    constant.Assistant("assistant"),
				Content: []sdk.ContentBlockUnion{{Type: "text", Text: "done"}},
				Usage:   minimalUsage(),
			}
		}
		b, _ := json.Marshal(resp)
		_, _ = w.Write(b)
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
