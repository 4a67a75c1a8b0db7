package srv

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/cloudwego/eino-ext/components/tool/duckduckgo/v2"
	"github.com/cloudwego/eino/components/tool"
)

type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Summary string `json:"summary"`
}

type WebSearcher interface {
	Search(ctx context.Context, query string) ([]SearchResult, error)
}

// DuckDuckGo runs text searches through the eino duckduckgo tool.
type DuckDuckGo struct {
	tool tool.InvokableTool
}

func NewDuckDuckGo(ctx context.Context, maxResults int) (*DuckDuckGo, error) {
	if maxResults <= 0 {
		maxResults = 5
	}
	t, err := duckduckgo.NewTextSearchTool(ctx, &duckduckgo.Config{
		MaxResults: maxResults,
	})
	if err != nil {
		return nil, err
	}
	return &DuckDuckGo{tool: t}, nil
}

func (d *DuckDuckGo) Search(ctx context.Context, query string) ([]SearchResult, error) {
	args, err := json.Marshal(map[string]any{"query": query})
	if err != nil {
		return nil, err
	}
	raw, err := d.tool.InvokableRun(ctx, string(args))
	if err != nil {
		return nil, err
	}

	var resp struct {
		Results []SearchResult `json:"results"`
	}
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

func ApplyWebSearch(maxResults int) ApplyFunc {
	return func(s *Srv) {
		d, err := NewDuckDuckGo(context.Background(), maxResults)
		if err != nil {
			slog.Warn("web search disabled", slog.Any("error", err))
			return
		}
		s.search = d
	}
}

func ApplyWebSearcher(w WebSearcher) ApplyFunc {
	return func(s *Srv) {
		s.search = w
	}
}
