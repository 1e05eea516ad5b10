package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

const (
	searchEndpoint  = "https://html.duckduckgo.com/html/"
	userAgent       = "Mozilla/5.0 (X11; Linux x86_64) NeuroSurf/1.0"
	maxPageBytes    = 2 << 20 // 2MB fetch ceiling
	maxScrapedRunes = 8000
	maxResults      = 8
)

// SearchResult is one hit from a web search.
type SearchResult struct {
	Title string
	URL   string
}

// WebClient performs searches and page scrapes for the agent and the
// research pipeline.
type WebClient struct {
	http *http.Client
}

// NewWebClient creates a client with a bounded request timeout.
func NewWebClient(timeout time.Duration) *WebClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &WebClient{http: &http.Client{Timeout: timeout}}
}

func (c *WebClient) fetch(ctx context.Context, method, rawURL string, body io.Reader) (*html.Node, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", rawURL, err)
	}
	return doc, nil
}

// Search queries the DuckDuckGo HTML endpoint and returns up to maxResults
// hits.
func (c *WebClient) Search(ctx context.Context, query string) ([]SearchResult, error) {
	form := url.Values{"q": {query}}
	doc, err := c.fetch(ctx, http.MethodPost, searchEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}

	var results []SearchResult
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(results) >= maxResults {
			return
		}
		if n.Type == html.ElementNode && n.Data == "a" && hasClass(n, "result__a") {
			href := attr(n, "href")
			title := strings.TrimSpace(textContent(n))
			if href != "" && title != "" {
				results = append(results, SearchResult{Title: title, URL: resolveRedirect(href)})
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return results, nil
}

// Scrape fetches a page and returns its title and readable text, truncated.
func (c *WebClient) Scrape(ctx context.Context, pageURL string) (title, text string, err error) {
	doc, err := c.fetch(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", "", err
	}
	title = pageTitle(doc)
	text = truncateRunes(extractText(doc), maxScrapedRunes)
	return title, text, nil
}

// resolveRedirect unwraps DuckDuckGo's /l/?uddg= redirect links.
func resolveRedirect(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Scheme == "" {
		return "https:" + href
	}
	return href
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return b.String()
}

func pageTitle(doc *html.Node) string {
	var title string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if title != "" {
			return
		}
		if n.Type == html.ElementNode && n.Data == "title" {
			title = strings.TrimSpace(textContent(n))
			return
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return title
}

// extractText pulls visible text, skipping script, style, and nav chrome.
func extractText(doc *html.Node) string {
	skip := map[string]bool{
		"script": true, "style": true, "noscript": true,
		"nav": true, "header": true, "footer": true,
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skip[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				b.WriteString(t)
				b.WriteByte('\n')
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return strings.TrimSpace(b.String())
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "\n... [truncated]"
}

// SearchTool exposes web search to the agent.
type SearchTool struct {
	client *WebClient
}

// NewSearchTool wraps a web client as an agent tool.
func NewSearchTool(client *WebClient) *SearchTool {
	return &SearchTool{client: client}
}

func (t *SearchTool) Name() string { return "web_search" }

func (t *SearchTool) Description() string {
	return "Search the web. Parameters: {\"query\": \"golang generics\"}"
}

func (t *SearchTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	query, err := stringParam(params, "query")
	if err != nil {
		return "", err
	}
	results, err := t.client.Search(ctx, query)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "no results", nil
	}
	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s\n   %s\n", i+1, r.Title, r.URL)
	}
	return b.String(), nil
}

// ScrapeTool exposes page scraping to the agent.
type ScrapeTool struct {
	client *WebClient
}

// NewScrapeTool wraps a web client as an agent tool.
func NewScrapeTool(client *WebClient) *ScrapeTool {
	return &ScrapeTool{client: client}
}

func (t *ScrapeTool) Name() string { return "web_scrape" }

func (t *ScrapeTool) Description() string {
	return "Fetch a page and return its readable text. Parameters: {\"url\": \"https://example.com\"}"
}

func (t *ScrapeTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	pageURL, err := stringParam(params, "url")
	if err != nil {
		return "", err
	}
	title, text, err := t.client.Scrape(ctx, pageURL)
	if err != nil {
		return "", err
	}
	if title != "" {
		return title + "\n\n" + text, nil
	}
	return text, nil
}
