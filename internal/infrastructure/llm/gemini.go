package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"NewsLedger/internal/config"
	"NewsLedger/internal/domain"
	"NewsLedger/internal/ports"
)

// GeminiClient implements ports.Analyzer against the generateContent REST
// API in JSON mode. The instruction template is assembled once at
// construction and never mutated afterwards.
type GeminiClient struct {
	endpoint       string
	model          string
	apiKey         string
	promptTemplate string
	httpClient     *http.Client
	logger         *slog.Logger
}

var _ ports.Analyzer = (*GeminiClient)(nil)

const textPlaceholder = "{TEXT_TO_ANALYZE}"

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	ResponseMIMEType string         `json:"responseMimeType"`
	ResponseSchema   map[string]any `json:"responseSchema"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// analysisSchema constrains the model to exactly the five ledger fields.
func analysisSchema() map[string]any {
	field := func(desc string) map[string]any {
		return map[string]any{"type": "string", "description": desc}
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"company":             field("primary company the article is about, co-developers in parentheses"),
			"category":            field("one of: company, model, technology, market, other"),
			"sentiment":           field("positive, neutral or negative"),
			"secondary_mention":   field("how the watched secondary entity is mentioned, if at all"),
			"secondary_sentiment": field("sentiment from the secondary entity's perspective, if applicable"),
		},
	}
}

// NewGeminiClient builds a client from configuration plus the assembled
// prompt template.
func NewGeminiClient(cfg config.GeminiConfig, promptTemplate string, logger *slog.Logger) *GeminiClient {
	return &GeminiClient{
		endpoint:       strings.TrimSuffix(cfg.Endpoint, "/"),
		model:          cfg.Model,
		apiKey:         cfg.APIKey,
		promptTemplate: promptTemplate,
		httpClient:     &http.Client{Timeout: 60 * time.Second},
		logger:         logger,
	}
}

// Analyze submits the article text and decodes the structured result.
// A 429 from the provider surfaces as domain.ErrQuotaExhausted; an
// incomplete or unparsable structure is recovered by defaulting fields.
func (c *GeminiClient) Analyze(ctx context.Context, text string) (domain.Analysis, error) {
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return domain.Analysis{}, fmt.Errorf("gemini client misconfigured")
	}

	prompt := strings.Replace(c.promptTemplate, textPlaceholder, text, 1)
	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   analysisSchema(),
		},
	})
	if err != nil {
		return domain.Analysis{}, fmt.Errorf("marshal gemini payload: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.endpoint, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return domain.Analysis{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Analysis{}, fmt.Errorf("call gemini: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return domain.Analysis{}, fmt.Errorf("gemini %s: %w", resp.Status, domain.ErrQuotaExhausted)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return domain.Analysis{}, fmt.Errorf("gemini error %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}

	var decoded generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return domain.Analysis{}, fmt.Errorf("decode gemini response: %w", err)
	}
	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return domain.Analysis{}, fmt.Errorf("gemini response carries no candidates")
	}

	return c.parseAnalysis(decoded.Candidates[0].Content.Parts[0].Text), nil
}

// parseAnalysis maps the model's JSON onto the five fields, defaulting
// anything missing. Malformed payloads degrade to an all-default analysis
// rather than an error: the call itself succeeded.
func (c *GeminiClient) parseAnalysis(raw string) domain.Analysis {
	var fields map[string]string
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &fields); err != nil {
		c.warn("gemini returned unparsable structure", "error", err)
		fields = nil
	}

	pick := func(key string) string {
		if v := strings.TrimSpace(fields[key]); v != "" {
			return v
		}
		return domain.AnalysisNA
	}

	return domain.Analysis{
		Company:            pick("company"),
		Category:           pick("category"),
		Sentiment:          pick("sentiment"),
		SecondaryMention:   pick("secondary_mention"),
		SecondarySentiment: pick("secondary_sentiment"),
	}
}

func (c *GeminiClient) warn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}
