package correction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/starford/memman/internal/models"
)

// Extractor is the optional extraction oracle. Implementations return an
// error on any failure; the pipeline degrades to pattern-only results.
type Extractor interface {
	Extract(ctx context.Context, transcript, model string) ([]Candidate, error)
}

// DefaultWindow is the transcript size above which only the head and tail
// are sent to the oracle.
const DefaultWindow = 50_000

// Window keeps the first and last limit/2 characters of text when it is
// longer than limit, so both setup and recent context survive. Both cuts
// fall on rune boundaries.
func Window(text string, limit int) string {
	if limit <= 0 || len(text) <= limit {
		return text
	}
	half := limit / 2
	head := half
	for head > 0 && !utf8.RuneStart(text[head]) {
		head--
	}
	tail := len(text) - half
	for tail < len(text) && !utf8.RuneStart(text[tail]) {
		tail++
	}
	return text[:head] + "\n\n[...]\n\n" + text[tail:]
}

const (
	anthropicBaseURL    = "https://api.anthropic.com/v1/messages"
	anthropicVersion    = "2023-06-01"
	anthropicMaxRetries = 3
	anthropicInitDelay  = time.Second
)

const extractPrompt = `You extract corrections from a coding assistant session transcript.
A correction is a statement that something previously believed, written, or done was wrong,
together with what is right. Return ONLY a JSON array, no prose. Each element:
{"incorrect": "...", "correct": "...", "category": "...", "paths": ["..."], "confidence": 0.0}
"incorrect" may be empty when the statement only adds a rule. "category" is one of:
correction, preference, coding_standard, architecture, workflow, testing, security,
dependency, command, debugging, general. Return [] when there are none.`

// AnthropicExtractor calls the Anthropic Messages API.
type AnthropicExtractor struct {
	apiKey     string
	baseURL    string
	client     *http.Client
	maxRetries int
	initDelay  time.Duration
}

// NewAnthropicExtractor builds an extractor. An empty baseURL uses the
// public endpoint.
func NewAnthropicExtractor(apiKey, baseURL string, timeout time.Duration) *AnthropicExtractor {
	if baseURL == "" {
		baseURL = anthropicBaseURL
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &AnthropicExtractor{
		apiKey:     apiKey,
		baseURL:    baseURL,
		client:     &http.Client{Timeout: timeout},
		maxRetries: anthropicMaxRetries,
		initDelay:  anthropicInitDelay,
	}
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

type extracted struct {
	Incorrect  string   `json:"incorrect"`
	Correct    string   `json:"correct"`
	Category   string   `json:"category"`
	Paths      []string `json:"paths"`
	Confidence float64  `json:"confidence"`
}

// Extract sends the transcript and parses the returned JSON array.
func (a *AnthropicExtractor) Extract(ctx context.Context, transcript, model string) ([]Candidate, error) {
	if a.apiKey == "" {
		return nil, fmt.Errorf("correction: oracle api key not set")
	}
	body, err := json.Marshal(anthropicRequest{
		Model:     model,
		MaxTokens: 2048,
		System:    extractPrompt,
		Messages:  []anthropicMessage{{Role: "user", Content: transcript}},
	})
	if err != nil {
		return nil, fmt.Errorf("correction: marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < a.maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(math.Pow(2, float64(attempt-1))) * a.initDelay
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("correction: create request: %w", err)
		}
		req.Header.Set("x-api-key", a.apiKey)
		req.Header.Set("anthropic-version", anthropicVersion)
		req.Header.Set("Content-Type", "application/json")

		resp, err := a.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("correction: oracle request: %w", err)
			continue
		}
		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("correction: read response: %w", err)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("correction: oracle status %d: %s", resp.StatusCode, respBody)
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				continue
			}
			return nil, lastErr
		}

		var apiResp anthropicResponse
		if err := json.Unmarshal(respBody, &apiResp); err != nil {
			return nil, fmt.Errorf("correction: decode response: %w", err)
		}
		var text strings.Builder
		for _, c := range apiResp.Content {
			if c.Type == "text" {
				text.WriteString(c.Text)
			}
		}
		return parseExtracted(text.String())
	}
	return nil, fmt.Errorf("correction: oracle retries exhausted: %w", lastErr)
}

// parseExtracted decodes the oracle's JSON array, tolerating a markdown
// code fence around it.
func parseExtracted(text string) ([]Candidate, error) {
	cleaned := strings.TrimSpace(text)
	if strings.HasPrefix(cleaned, "```") {
		if idx := strings.Index(cleaned, "\n"); idx >= 0 {
			cleaned = cleaned[idx+1:]
		}
		if idx := strings.LastIndex(cleaned, "```"); idx >= 0 {
			cleaned = cleaned[:idx]
		}
		cleaned = strings.TrimSpace(cleaned)
	}

	var items []extracted
	if err := json.Unmarshal([]byte(cleaned), &items); err != nil {
		return nil, fmt.Errorf("correction: parse oracle JSON: %w", err)
	}
	out := make([]Candidate, 0, len(items))
	for _, it := range items {
		cor := strings.TrimSpace(it.Correct)
		if cor == "" {
			continue
		}
		cat := models.Category(strings.TrimSpace(it.Category))
		if !cat.Valid() {
			cat = ""
		}
		out = append(out, Candidate{
			Origin:     OriginOracle,
			Incorrect:  strings.TrimSpace(it.Incorrect),
			Correct:    cor,
			Category:   cat,
			Paths:      it.Paths,
			Confidence: clamp01(it.Confidence),
		})
	}
	return out, nil
}
