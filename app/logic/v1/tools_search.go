package v1

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/samber/lo"

	"github.com/atelier-studio/atelier/app/core"
	"github.com/atelier-studio/atelier/app/core/srv"
	"github.com/atelier-studio/atelier/pkg/types"
	"github.com/atelier-studio/atelier/pkg/utils"
)

const (
	webImageLimit  = 20 << 20
	browseMaxRunes = 6000
)

var (
	imageURLPattern = regexp.MustCompile(`(?i)\.(png|jpe?g|webp|gif)(\?|$)`)
	videoURLPattern = regexp.MustCompile(`(?i)(youtube\.com/watch|youtu\.be/|vimeo\.com/|\.mp4(\?|$))`)
)

func searchTools(s *Studio) []*Tool {
	readOnly := []ToolCapability{TOOL_CAP_READ_ONLY}
	return []*Tool{
		{
			Name:         TOOL_SEARCH_WEB,
			Description:  "Search the web for facts, trends or inspiration.",
			Family:       FAMILY_SEARCH,
			Capabilities: readOnly,
			Params: map[string]*schema.ParameterInfo{
				"query": strParam("Search query", true),
			},
			Handler: s.searchWeb,
		},
		{
			Name:         "search_images",
			Description:  "Search the web for reference images.",
			Family:       FAMILY_SEARCH,
			Capabilities: readOnly,
			Params: map[string]*schema.ParameterInfo{
				"query": strParam("What the images should show", true),
			},
			Handler: s.searchMedia("images photo", imageURLPattern),
		},
		{
			Name:         "search_videos",
			Description:  "Search the web for reference videos.",
			Family:       FAMILY_SEARCH,
			Capabilities: readOnly,
			Params: map[string]*schema.ParameterInfo{
				"query": strParam("What the videos should show", true),
			},
			Handler: s.searchMedia("video", videoURLPattern),
		},
		{
			Name:         "browse_url",
			Description:  "Read the text content of a web page.",
			Family:       FAMILY_SEARCH,
			Capabilities: readOnly,
			Params: map[string]*schema.ParameterInfo{
				"url": strParam("Page url", true),
			},
			Handler: s.browseURL,
		},
		{
			Name:        "fetch_web_image",
			Description: "Download an image from the web and make it the reference for the next generation or edit.",
			Family:      FAMILY_SEARCH,
			Params: map[string]*schema.ParameterInfo{
				"url": strParam("Image url", true),
			},
			Handler: s.fetchWebImage,
		},
		{
			Name:         "save_web_asset",
			Description:  "Save an image from the web into the project assets.",
			Family:       FAMILY_SEARCH,
			Capabilities: []ToolCapability{TOOL_CAP_GENERATION},
			Produces:     types.ASSET_IMAGE,
			Params: map[string]*schema.ParameterInfo{
				"url":         strParam("Image url", true),
				"description": strParam("What the image shows", false),
			},
			Handler: s.saveWebAsset,
		},
		{
			Name:         "semantic_search",
			Description:  "Search saved entities and past assets by meaning.",
			Family:       FAMILY_SEARCH,
			Capabilities: readOnly,
			Params: map[string]*schema.ParameterInfo{
				"query": strParam("What to look for", true),
				"limit": intParam("Maximum results", false),
			},
			Handler: s.semanticSearch,
		},
		{
			Name:         "get_library_docs",
			Description:  "Look up the documentation of a tool, library or product.",
			Family:       FAMILY_SEARCH,
			Capabilities: readOnly,
			Params: map[string]*schema.ParameterInfo{
				"library": strParam("Library or product name", true),
				"topic":   strParam("Optional topic", false),
			},
			Handler: s.getLibraryDocs,
		},
	}
}

func (s *Studio) webSearch(tc *TurnContext, query string) ([]srv.SearchResult, *types.ToolResult) {
	searcher := s.core.Srv().Search()
	if searcher == nil {
		return nil, types.ToolFailure("web search is not configured")
	}
	if r := s.checkRate(tc, core.LIMIT_CLASS_SEARCH); r != nil {
		return nil, r
	}
	hits, err := searcher.Search(tc, query)
	if err != nil {
		return nil, types.ToolFailure("search failed: " + err.Error())
	}
	return hits, nil
}

func searchResult(hits []srv.SearchResult) *types.ToolResult {
	res := types.ToolOK(fmt.Sprintf("%d results", len(hits)))
	res.Data = map[string]any{"results": hits}
	return res
}

func (s *Studio) searchWeb(tc *TurnContext, args Args) *types.ToolResult {
	hits, fail := s.webSearch(tc, args.String("query"))
	if fail != nil {
		return fail
	}
	return searchResult(hits)
}

// searchMedia narrows a text search to results pointing at media. When none
// match, the page results are returned so the model can browse them.
func (s *Studio) searchMedia(suffix string, pattern *regexp.Regexp) ToolHandler {
	return func(tc *TurnContext, args Args) *types.ToolResult {
		hits, fail := s.webSearch(tc, args.String("query")+" "+suffix)
		if fail != nil {
			return fail
		}
		media := lo.Filter(hits, func(h srv.SearchResult, _ int) bool { return pattern.MatchString(h.URL) })
		if len(media) == 0 {
			return searchResult(hits)
		}
		return searchResult(media)
	}
}

func (s *Studio) browseURL(tc *TurnContext, args Args) *types.ToolResult {
	endpoint := args.String("url")
	if !utils.IsURL(endpoint) {
		return types.ToolFailure("url is not a valid http url")
	}
	reader := s.core.Srv().AI().Reader()
	if reader == nil {
		return types.ToolFailure("page reading is not configured")
	}
	page, err := reader.Reader(tc, endpoint)
	if err != nil {
		return types.ToolFailure("failed to read the page: " + err.Error())
	}
	content := []rune(page.Content)
	truncated := len(content) > browseMaxRunes
	if truncated {
		content = content[:browseMaxRunes]
	}
	res := types.ToolOK(page.Title)
	res.Data = map[string]any{
		"title":       page.Title,
		"description": page.Description,
		"url":         page.Url,
		"content":     string(content),
		"truncated":   truncated,
	}
	return res
}

func (s *Studio) downloadWebImage(tc *TurnContext, url string) (string, error) {
	if !utils.IsURL(url) {
		return "", fmt.Errorf("url is not a valid http url")
	}
	processor := s.core.Srv().Media()
	if processor == nil {
		return "", fmt.Errorf("downloads are not configured")
	}
	raw, mime, err := processor.Fetch(tc, url, webImageLimit)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(mime, "image/") {
		mime = utils.SniffImageMime(raw)
	}
	return UploadBytes(tc, s.core, tc.UserID, UPLOAD_KIND_WEB, raw, mime)
}

// fetchWebImage copies the image to our storage and makes it the session
// reference, so the next call that needs an image picks it up.
func (s *Studio) fetchWebImage(tc *TurnContext, args Args) *types.ToolResult {
	url, err := s.downloadWebImage(tc, args.String("url"))
	if err != nil {
		return types.ToolFailure("failed to fetch the image: " + err.Error())
	}
	NewReferenceResolver(s.core).Remember(tc, tc.SessionID, url)
	if tc.Refs.Primary == "" {
		tc.Refs.Primary = url
	}
	tc.Refs.All = lo.Uniq(append([]string{url}, tc.Refs.All...))

	res := types.ToolOK("image fetched and set as the reference")
	res.Data = map[string]any{"image_url": url, "source_url": args.String("url")}
	return res
}

func (s *Studio) saveWebAsset(tc *TurnContext, args Args) *types.ToolResult {
	url, err := s.downloadWebImage(tc, args.String("url"))
	if err != nil {
		return types.ToolFailure("failed to save the image: " + err.Error())
	}
	return &types.ToolResult{
		Success:   true,
		AssetURL:  url,
		AssetType: types.ASSET_IMAGE,
		ModelUsed: "web",
		Prompt:    args.String("description"),
		Params:    map[string]any{"source_url": args.String("url")},
	}
}

func (s *Studio) semanticSearch(tc *TurnContext, args Args) *types.ToolResult {
	query := args.String("query")
	limit := args.Int("limit", 10)
	entities, err := NewEntityLogic(tc, s.core).Search(query, limit)
	if err != nil {
		return toolError(tc, err)
	}

	assets, err := s.core.Store().AssetStore().ListRecent(tc, types.ListAssetOptions{UserID: tc.UserID}, 200)
	if err != nil {
		slog.Warn("failed to list assets for search", slog.String("user_id", tc.UserID), slog.Any("error", err))
	}
	words := strings.Fields(strings.ToLower(query))
	matched := lo.Filter(assets, func(a *types.GeneratedAsset, _ int) bool {
		prompt := strings.ToLower(a.Prompt)
		return len(words) > 0 && lo.EveryBy(words, func(w string) bool { return strings.Contains(prompt, w) })
	})

	res := types.ToolOK(fmt.Sprintf("%d entities, %d assets", len(entities), len(matched)))
	res.Entities = entities
	res.Data = map[string]any{"assets": lo.Map(lo.Slice(matched, 0, limit), func(a *types.GeneratedAsset, _ int) map[string]any {
		return map[string]any{"id": a.ID, "url": a.URL, "type": a.Type, "prompt": utils.Prefix(a.Prompt, 120)}
	})}
	return res
}

func (s *Studio) getLibraryDocs(tc *TurnContext, args Args) *types.ToolResult {
	query := strings.TrimSpace(args.String("library") + " " + args.String("topic") + " documentation")
	hits, fail := s.webSearch(tc, query)
	if fail != nil {
		return fail
	}
	if len(hits) == 0 {
		return types.ToolFailure("no documentation found")
	}
	page := s.browseURL(tc, Args{"url": hits[0].URL})
	if !page.Success {
		// the snippets are still useful
		return searchResult(hits)
	}
	if data, ok := page.Data.(map[string]any); ok {
		data["other_results"] = lo.Slice(hits, 1, 5)
	}
	return page
}
