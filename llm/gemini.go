package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiProvider implements Provider on top of the Gemini SDK
type GeminiProvider struct {
	client *genai.Client
	config Config
}

// NewGeminiProvider creates a new Gemini provider
func NewGeminiProvider(ctx context.Context, config Config) (*GeminiProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required for the gemini audit provider")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(config.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Gemini client: %w", err)
	}

	return &GeminiProvider{
		client: client,
		config: config,
	}, nil
}

// Name returns the provider name
func (p *GeminiProvider) Name() string {
	return "gemini"
}

// Close releases the underlying client
func (p *GeminiProvider) Close() error {
	return p.client.Close()
}

// Audit sends one audit query through the Gemini API
func (p *GeminiProvider) Audit(ctx context.Context, req AuditRequest) (*AuditResponse, error) {
	modelName := p.config.Model
	if modelName == "" {
		modelName = "gemini-2.0-flash"
	}

	timeout := time.Duration(p.config.Timeout) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	ctxWithTimeout, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	model := p.client.GenerativeModel(modelName)
	model.SetTemperature(0.1)

	resp, err := model.GenerateContent(ctxWithTimeout, genai.Text(BuildAuditPrompt(req)))
	if err != nil {
		return nil, fmt.Errorf("audit API error: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("audit API returned no candidates")
	}

	var text strings.Builder
	var inlineURLs []string
	for _, candidate := range resp.Candidates {
		if candidate.Content != nil {
			for _, part := range candidate.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
		if candidate.CitationMetadata != nil {
			for _, src := range candidate.CitationMetadata.CitationSources {
				if src.URI != nil && *src.URI != "" {
					inlineURLs = append(inlineURLs, *src.URI)
				}
			}
		}
	}

	if text.Len() == 0 {
		return nil, fmt.Errorf("audit API returned empty content")
	}

	return &AuditResponse{
		Raw:        strings.TrimSpace(text.String()),
		InlineURLs: inlineURLs,
	}, nil
}
