package backends

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/kevensen/conductor-chat/internal/logging"
)

// Ollama is the backend value whose endpoint can be asked for installed models
const Ollama = "ollama"

// DefaultOllamaURL is used for discovery when neither a custom nor a default URL is set
const DefaultOllamaURL = "http://localhost:11434"

// DiscoverOllamaModels lists the models installed on an Ollama server. The result is
// only a hint for the model picker; picking one switches the settings to a custom model.
func DiscoverOllamaModels(ctx context.Context, baseURL string) ([]string, error) {
	logger := logging.WithComponent("model-discovery")

	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultOllamaURL
	}
	// Ollama endpoints are often given with an OpenAI-style /v1 suffix
	baseURL = strings.TrimSuffix(strings.TrimSuffix(baseURL, "/"), "/v1")

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama URL %s: %w", baseURL, err)
	}

	client := api.NewClient(u, &http.Client{Timeout: 10 * time.Second})

	logger.Debug("Listing Ollama models", "url", baseURL)
	resp, err := client.List(ctx)
	if err != nil {
		logger.Warn("Failed to list Ollama models", "url", baseURL, "error", err)
		return nil, fmt.Errorf("failed to list models from %s: %w", baseURL, err)
	}

	names := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		name := m.Name
		if name == "" {
			name = m.Model
		}
		if name != "" {
			names = append(names, name)
		}
	}

	logger.Info("Discovered Ollama models", "url", baseURL, "count", len(names))
	return names, nil
}
