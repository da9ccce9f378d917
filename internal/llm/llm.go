package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/TobiSchelling/rivalwatch/internal/config"
)

// Provider is the interface for LLM providers.
type Provider interface {
	Generate(ctx context.Context, system, prompt string, maxTokens int) (string, error)
	IsConfigured() bool
	Name() string
}

// OllamaProvider is a local Ollama LLM provider.
type OllamaProvider struct {
	Model   string
	BaseURL string
	client  *http.Client
}

// NewOllamaProvider creates a new Ollama provider.
func NewOllamaProvider(model, baseURL string) *OllamaProvider {
	return &OllamaProvider{
		Model:   model,
		BaseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

func (o *OllamaProvider) Name() string { return "ollama/" + o.Model }

// IsConfigured checks if Ollama is running and the model is available.
func (o *OllamaProvider) IsConfigured() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", o.BaseURL+"/api/tags", nil)
	if err != nil {
		return false
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	var result struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false
	}

	modelBase := strings.SplitN(o.Model, ":", 2)[0]
	for _, m := range result.Models {
		if strings.Contains(m.Name, modelBase) {
			return true
		}
	}
	log.Warnf("Ollama model %q not found", o.Model)
	return false
}

// Generate sends a prompt to Ollama and returns the response. Output is
// requested in JSON format at temperature 0.
func (o *OllamaProvider) Generate(ctx context.Context, system, prompt string, maxTokens int) (string, error) {
	messages := []map[string]string{}
	if system != "" {
		messages = append(messages, map[string]string{"role": "system", "content": system})
	}
	messages = append(messages, map[string]string{"role": "user", "content": prompt})

	body := map[string]any{
		"model":    o.Model,
		"messages": messages,
		"stream":   false,
		"format":   "json",
		"options": map[string]any{
			"num_predict": maxTokens,
			"temperature": 0.0,
		},
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", o.BaseURL+"/api/chat", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama API error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ollama API returned %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	return result.Message.Content, nil
}

// CreateProvider creates an LLM provider based on configuration. The
// preferred provider is tried first, then the others in a fixed order.
func CreateProvider(cfg config.LLM) (Provider, error) {
	candidates := map[string]func() Provider{
		"ollama": func() Provider { return NewOllamaProvider(cfg.Model, cfg.OllamaURL) },
		"openai": func() Provider {
			return NewOpenAIProvider(cfg.OpenAIModel, os.Getenv(cfg.OpenAIAPIKeyEnv))
		},
		"anthropic": func() Provider {
			return NewAnthropicProvider(cfg.AnthropicModel, os.Getenv(cfg.AnthropicAPIKeyEnv))
		},
	}

	preferred := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if _, ok := candidates[preferred]; !ok {
		return nil, &config.Error{Key: "llm.provider", Msg: fmt.Sprintf("unknown provider %q (valid: ollama, openai, anthropic)", cfg.Provider)}
	}

	order := []string{preferred}
	for _, name := range []string{"ollama", "openai", "anthropic"} {
		if name != preferred {
			order = append(order, name)
		}
	}

	for i, name := range order {
		p := candidates[name]()
		if !p.IsConfigured() {
			if i == 0 {
				log.Warnf("%s not available, trying fallbacks...", name)
			}
			continue
		}
		log.Infof("Using LLM provider: %s", p.Name())
		if cfg.RequestsPerMinute > 0 {
			return NewLimited(p, time.Minute/time.Duration(cfg.RequestsPerMinute)), nil
		}
		return p, nil
	}

	return nil, &config.Error{
		Key: "llm",
		Msg: fmt.Sprintf("no LLM provider available; start Ollama or set %s / %s", cfg.OpenAIAPIKeyEnv, cfg.AnthropicAPIKeyEnv),
	}
}
