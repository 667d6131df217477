package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsLedger/internal/config"
	"NewsLedger/internal/domain"
)

func newTestClient(endpoint string) *GeminiClient {
	return NewGeminiClient(config.GeminiConfig{
		Endpoint: endpoint,
		Model:    "gemini-2.5-flash",
		APIKey:   "test-key",
	}, "Classify the following.\n\nArticle body:\n{TEXT_TO_ANALYZE}", nil)
}

func candidateResponse(payload string) string {
	resp := map[string]any{
		"candidates": []map[string]any{{
			"content": map[string]any{
				"parts": []map[string]any{{"text": payload}},
			},
		}},
	}
	out, _ := json.Marshal(resp)
	return string(out)
}

func TestAnalyzeParsesStructuredResult(t *testing.T) {
	t.Parallel()

	var gotPath, gotKey string
	var gotReq generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.Write([]byte(candidateResponse(`{"company":"Acme","category":"company","sentiment":"positive","secondary_mention":"none","secondary_sentiment":"N/A"}`)))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	got, err := c.Analyze(context.Background(), "article text here")
	require.NoError(t, err)

	assert.Equal(t, domain.Analysis{
		Company:            "Acme",
		Category:           "company",
		Sentiment:          "positive",
		SecondaryMention:   "none",
		SecondarySentiment: "N/A",
	}, got)

	assert.Equal(t, "/models/gemini-2.5-flash:generateContent", gotPath)
	assert.Equal(t, "test-key", gotKey)
	require.Len(t, gotReq.Contents, 1)
	require.Len(t, gotReq.Contents[0].Parts, 1)
	assert.Contains(t, gotReq.Contents[0].Parts[0].Text, "article text here")
	assert.NotContains(t, gotReq.Contents[0].Parts[0].Text, textPlaceholder)
	assert.Equal(t, "application/json", gotReq.GenerationConfig.ResponseMIMEType)
}

func TestAnalyzeDefaultsMissingFields(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(candidateResponse(`{"company":"Acme"}`)))
	}))
	defer srv.Close()

	got, err := newTestClient(srv.URL).Analyze(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, "Acme", got.Company)
	assert.Equal(t, domain.AnalysisNA, got.Category)
	assert.Equal(t, domain.AnalysisNA, got.Sentiment)
	assert.Equal(t, domain.AnalysisNA, got.SecondaryMention)
	assert.Equal(t, domain.AnalysisNA, got.SecondarySentiment)
}

func TestAnalyzeRecoversFromUnparsableStructure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(candidateResponse("not json at all")))
	}))
	defer srv.Close()

	got, err := newTestClient(srv.URL).Analyze(context.Background(), "text")
	require.NoError(t, err, "a malformed model payload degrades, never errors")
	assert.Equal(t, domain.AnalysisNA, got.Company)
}

func TestAnalyzeMapsRateLimitToQuotaExhausted(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Analyze(context.Background(), "text")
	require.ErrorIs(t, err, domain.ErrQuotaExhausted)
}

func TestAnalyzeGenericServerErrorIsNotQuota(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend exploded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Analyze(context.Background(), "text")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrQuotaExhausted)
}

func TestAnalyzeRejectsEmptyCandidateList(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Analyze(context.Background(), "text")
	require.Error(t, err)
}

func TestAnalyzeRefusesWithoutAPIKey(t *testing.T) {
	t.Parallel()

	c := NewGeminiClient(config.GeminiConfig{Endpoint: "https://example.com", Model: "m"}, "{TEXT_TO_ANALYZE}", nil)
	_, err := c.Analyze(context.Background(), "text")
	require.Error(t, err)
}
