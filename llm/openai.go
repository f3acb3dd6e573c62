package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/use-agent/propscout/config"
	"github.com/use-agent/propscout/models"
)

// Client is a lightweight OpenAI-compatible chat completion client for the
// query and summarize steps around the scraper.
// It speaks the chat completions wire format over net/http.
type Client struct {
	httpClient *http.Client
	apiKey     string
	model      string
	baseURL    string
}

// NewClient creates a client from cfg. Pass a nil httpClient to get one
// with cfg.Timeout.
func NewClient(cfg config.LLMConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		httpClient: httpClient,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		baseURL:    cfg.BaseURL,
	}
}

// chatRequest is the OpenAI chat completion request body.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is the minimal OpenAI chat completion response we need.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// chatErrorResponse captures an API error from the LLM provider.
type chatErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

const urlSystemPrompt = "You are a URL construction agent for Bayut property searches. Return only the URL."

const urlPromptTemplate = `
Convert this rental query to a complete Bayut URL: "%s"

Use this format:
https://www.bayut.com/to-rent/{beds}-{property_type}/{location}/{area}/?rent_frequency={freq}&price_min={min}&price_max={max}&baths_in={baths}

Examples:
"3BR apartment in Dubai Marina under 90k monthly"
→ https://www.bayut.com/to-rent/3-bedroom-apartments/dubai/dubai-marina/?rent_frequency=monthly&price_max=90000

"2BR villa in Downtown Dubai 5k-15k monthly with 2 baths"
→ https://www.bayut.com/to-rent/2-bedroom-villas/dubai/downtown-dubai/?rent_frequency=monthly&price_min=5000&price_max=15000&baths_in=2

"Studio in JVC around 5k monthly"
→ https://www.bayut.com/to-rent/studio-apartments/dubai/jumeirah-village-circle/?rent_frequency=monthly&price_max=5000

"Villa in Abu Dhabi under 150k yearly"
→ https://www.bayut.com/to-rent/villas/abu-dhabi/abu-dhabi-city/?rent_frequency=yearly&price_max=150000

Return ONLY the complete Bayut URL with all relevant parameters.
`

const summarySystemPrompt = "You are a helpful property rental assistant. Provide clear, concise summaries with actionable information."

const summaryPromptTemplate = `
You are a property rental assistant. Summarize the following scraped property data in a helpful, concise way for the user.

Original User Query: %s

Scraped Property Data:
%s

Please provide:
1. A brief summary of what was found
2. Key highlights (best deals, locations, etc.)
3. Direct links to each property for the user to view/rent

Format your response as a clean, user-friendly summary with clickable property links.
`

var reURL = regexp.MustCompile(`https://\S+`)

// ResolveSearchURL asks the model to turn a natural-language rental query
// into a listings search URL.
func (c *Client) ResolveSearchURL(ctx context.Context, query string) (string, error) {
	reply, err := c.complete(ctx, urlSystemPrompt, fmt.Sprintf(urlPromptTemplate, query), 0.1)
	if err != nil {
		return "", err
	}
	return extractURL(reply), nil
}

// Summarize asks the model for a user-facing summary of records.
func (c *Client) Summarize(ctx context.Context, query string, records []models.PropertyRecord) (string, error) {
	if records == nil {
		records = []models.PropertyRecord{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal records: %w", err)
	}
	return c.complete(ctx, summarySystemPrompt, fmt.Sprintf(summaryPromptTemplate, query, data), 0.3)
}

// extractURL takes the first line of a reply that starts with a URL, else
// the first https URL anywhere in it, else the whole reply.
func extractURL(reply string) string {
	if strings.HasPrefix(reply, "http") {
		first, _, _ := strings.Cut(reply, "\n")
		return strings.TrimSpace(first)
	}
	if m := reURL.FindString(reply); m != "" {
		return m
	}
	return reply
}

// complete runs one chat completion and returns the trimmed reply.
func (c *Client) complete(ctx context.Context, system, user string, temperature float64) (string, error) {
	if c.apiKey == "" {
		return "", models.NewScrapeError(models.ErrCodeLLMNotConfigured, "no LLM API key configured", nil)
	}

	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: temperature,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	// Build URL: baseURL + /chat/completions
	endpoint := strings.TrimRight(c.baseURL, "/") + "/chat/completions"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", models.NewScrapeError(models.ErrCodeLLMFailure, "LLM request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", models.NewScrapeError(models.ErrCodeLLMFailure, "failed to read LLM response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", classifyLLMError(resp.StatusCode, respBody)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", models.NewScrapeError(models.ErrCodeLLMFailure, "failed to parse LLM response", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", models.NewScrapeError(models.ErrCodeLLMFailure, "LLM returned no choices", nil)
	}

	return strings.TrimSpace(chatResp.Choices[0].Message.Content), nil
}

// classifyLLMError maps HTTP status codes to appropriate error codes.
func classifyLLMError(statusCode int, body []byte) *models.ScrapeError {
	var errResp chatErrorResponse
	msg := "LLM API error"
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		msg = errResp.Error.Message
	}

	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return models.NewScrapeError(models.ErrCodeLLMAuthFailure, msg, nil)
	case statusCode == http.StatusTooManyRequests:
		return models.NewScrapeError(models.ErrCodeLLMRateLimited, msg, nil)
	default:
		return models.NewScrapeError(models.ErrCodeLLMFailure, fmt.Sprintf("LLM API returned %d: %s", statusCode, msg), nil)
	}
}
