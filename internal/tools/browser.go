package tools

import (
	"context"
	"fmt"
	"strings"
)

// OpenTabTool lets the agent open a browser tab on every connected client.
// The notify callback carries the action to the realtime layer.
type OpenTabTool struct {
	notify func(url, title string)
}

// NewOpenTabTool creates the tool around a tab-open callback.
func NewOpenTabTool(notify func(url, title string)) *OpenTabTool {
	return &OpenTabTool{notify: notify}
}

func (t *OpenTabTool) Name() string { return "browser_open_tab" }

func (t *OpenTabTool) Description() string {
	return "Open a new browser tab at a URL. Parameters: {\"url\": \"https://...\", \"title\": \"optional\"}"
}

func (t *OpenTabTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	url, err := stringParam(params, "url")
	if err != nil {
		return "", err
	}
	if !strings.Contains(url, "://") {
		url = "https://" + url
	}
	title, _ := params["title"].(string)
	t.notify(url, title)
	return fmt.Sprintf("opened tab: %s", url), nil
}
