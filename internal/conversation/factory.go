package conversation

import (
	"context"
	"fmt"
	"net/http"

	"maestro/internal/config"
	"maestro/internal/provider"
	"maestro/internal/provider/anthropic"
	"maestro/internal/provider/google"
	"maestro/internal/provider/openai"
)

// Keys bundles the provider API credentials buildAdapter needs, kept
// separate from config.Config so tests can construct adapters against a
// fake key without a full config file.
type Keys struct {
	Anthropic string
	OpenAI    string
	Google    string
}

// buildAdapter constructs the concrete provider.Adapter for one
// ProviderConfig, a switch-on-kind constructor grounded on the teacher's
// internal/llm/providers/factory.go Build function.
func buildAdapter(ctx context.Context, pc config.ProviderConfig, keys Keys, httpClient *http.Client) (provider.Adapter, error) {
	switch pc.Kind {
	case "anthropic":
		return anthropic.New(keys.Anthropic, pc.Model, "", httpClient), nil
	case "openai":
		return openai.New(keys.OpenAI, pc.Model, "", httpClient), nil
	case "google":
		return google.New(ctx, keys.Google, pc.Model, "", httpClient)
	default:
		return nil, fmt.Errorf("unsupported provider kind: %s", pc.Kind)
	}
}
