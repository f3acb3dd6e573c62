package main

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

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// propertyRecord mirrors the propscout API record.
type propertyRecord struct {
	URL         string `json:"url"`
	Pricing     string `json:"pricing"`
	Location    string `json:"location"`
	Description string `json:"description"`
}

// apiError mirrors the propscout API error detail.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// scrapeResponse mirrors the propscout scrape response.
type scrapeResponse struct {
	Success         bool             `json:"success"`
	TotalProperties int              `json:"total_properties"`
	Properties      []propertyRecord `json:"properties"`
	Error           *apiError        `json:"error"`
}

// parseQueryResponse mirrors the propscout parse-query response.
type parseQueryResponse struct {
	Success bool `json:"success"`
	Data    *struct {
		URL      string `json:"url"`
		RawQuery string `json:"raw_query"`
	} `json:"data"`
	Error *apiError `json:"error"`
}

// summarizeResponse mirrors the propscout summarize response.
type summarizeResponse struct {
	Success bool      `json:"success"`
	Summary string    `json:"summary"`
	Error   *apiError `json:"error"`
}

func main() {
	apiURL := os.Getenv("PROPSCOUT_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}

	s := newServer(apiURL, &http.Client{Timeout: 300 * time.Second})

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func newServer(apiURL string, client *http.Client) *server.MCPServer {
	s := server.NewMCPServer(
		"propscout",
		"0.1.0",
		server.WithToolCapabilities(false),
	)

	scrapeTool := mcp.NewTool("scrape_properties",
		mcp.WithDescription("Scrape rental listings from a Bayut search results URL. Visits the first N property detail pages and returns price, location header and description for each. Fields that could not be read are \"Not found\"."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("Fully-qualified Bayut search results URL"),
		),
		mcp.WithNumber("max_properties",
			mcp.Description("Number of properties to scrape (default: 5)"),
		),
	)
	s.AddTool(scrapeTool, handleScrapeProperties(apiURL, client))

	findTool := mcp.NewTool("find_rentals",
		mcp.WithDescription("Find rental properties from a natural-language request, e.g. \"2BR apartment in Dubai Marina under 120k yearly\". Builds the search URL with an LLM, scrapes the listings and returns a summary. Requires the server to have an OpenAI API key."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("What the user is looking for"),
		),
		mcp.WithNumber("max_properties",
			mcp.Description("Number of properties to scrape (default: 3)"),
		),
	)
	s.AddTool(findTool, handleFindRentals(apiURL, client))

	return s
}

// apiPost sends a POST request to the propscout API and decodes the JSON
// response into out. Error bodies decode into out as well.
func apiPost(ctx context.Context, client *http.Client, apiURL, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parse response (HTTP %d): %w", resp.StatusCode, err)
	}
	return nil
}

func errorText(e *apiError, fallback string) string {
	if e == nil {
		return fallback
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func scrape(ctx context.Context, client *http.Client, apiURL, searchURL string, maxProps int) (*scrapeResponse, error) {
	payload := map[string]any{"url": searchURL}
	if maxProps > 0 {
		payload["max_properties"] = maxProps
	}
	var resp scrapeResponse
	if err := apiPost(ctx, client, apiURL, "/api/v1/scrape", payload, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("%s", errorText(resp.Error, "scrape failed"))
	}
	return &resp, nil
}

func handleScrapeProperties(apiURL string, client *http.Client) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		searchURL, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}
		maxProps := request.GetInt("max_properties", 0)

		resp, err := scrape(ctx, client, apiURL, searchURL, maxProps)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(formatRecords(resp.Properties)), nil
	}
}

func handleFindRentals(apiURL string, client *http.Client) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := request.RequireString("query")
		if err != nil {
			return mcp.NewToolResultError("query is required"), nil
		}
		maxProps := request.GetInt("max_properties", 3)

		// ── 1. Query → search URL ───────────────────────────────────
		var parsed parseQueryResponse
		if err := apiPost(ctx, client, apiURL, "/api/v1/parse-query", map[string]string{"query": query}, &parsed); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if !parsed.Success || parsed.Data == nil {
			return mcp.NewToolResultError(errorText(parsed.Error, "could not build a search URL")), nil
		}

		// ── 2. Scrape ───────────────────────────────────────────────
		scraped, err := scrape(ctx, client, apiURL, parsed.Data.URL, maxProps)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		// ── 3. Summarize (falls back to the raw listing) ───────────
		var summary summarizeResponse
		err = apiPost(ctx, client, apiURL, "/api/v1/summarize", map[string]any{
			"data":           scraped.Properties,
			"original_query": query,
		}, &summary)

		var b strings.Builder
		fmt.Fprintf(&b, "Search URL: %s\n\n", parsed.Data.URL)
		if err == nil && summary.Success {
			b.WriteString(summary.Summary)
			b.WriteString("\n\n---\n")
		}
		b.WriteString(formatRecords(scraped.Properties))
		return mcp.NewToolResultText(b.String()), nil
	}
}

// formatRecords renders records as a numbered plain-text list.
func formatRecords(records []propertyRecord) string {
	if len(records) == 0 {
		return "No properties found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d properties:\n", len(records))
	for i, r := range records {
		fmt.Fprintf(&b, "\n%d. %s\n   Price: %s\n   Location: %s\n   Description: %s\n",
			i+1, r.URL, oneLine(r.Pricing), oneLine(r.Location), oneLine(r.Description))
	}
	return b.String()
}

// oneLine collapses runs of whitespace so multi-line DOM text reads inline.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
