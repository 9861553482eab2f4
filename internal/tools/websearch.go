package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// WebSearchToolName is the registered name of the Tavily search tool.
const WebSearchToolName = "web_search"

const defaultTavilyURL = "https://api.tavily.com/search"

// WebSearchConfig configures the web_search tool.
type WebSearchConfig struct {
	APIKey     string
	MaxResults int
	// BaseURL overrides the Tavily endpoint, mostly for tests.
	BaseURL string
	Client  *http.Client
}

type tavilyRequest struct {
	APIKey     string `json:"api_key"`
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type tavilyResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// WebSearchTool returns a tool that queries the Tavily search API.
func WebSearchTool(cfg WebSearchConfig) *Tool {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 4
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultTavilyURL
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 30 * time.Second}
	}

	return &Tool{
		Name:        WebSearchToolName,
		Description: "Search the web for up to date information. Returns titles, URLs and snippets.",
		Params: []Param{
			{Name: "query", Type: "string", Description: "The search query"},
		},
		Required: []string{"query"},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			query, err := StringArg(args, "query")
			if err != nil {
				return "", err
			}
			if strings.TrimSpace(query) == "" {
				return "", errors.New("query is required")
			}
			return searchTavily(ctx, cfg, query)
		},
	}
}

func searchTavily(ctx context.Context, cfg WebSearchConfig, query string) (string, error) {
	body, err := json.Marshal(tavilyRequest{APIKey: cfg.APIKey, Query: query, MaxResults: cfg.MaxResults})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := cfg.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("search returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode search response: %w", err)
	}
	if len(out.Results) == 0 {
		return "No results found for: " + query, nil
	}

	var sb strings.Builder
	for i, r := range out.Results {
		fmt.Fprintf(&sb, "%d. %s\n%s\n", i+1, r.Title, r.URL)
		if r.Content != "" {
			sb.WriteString(r.Content)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}
