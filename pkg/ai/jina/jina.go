package jina

// reader provider for https://jina.ai/

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/atelier-studio/atelier/pkg/ai"
)

const (
	NAME = "jina"

	DEFAULT_READER_ENDPOINT = "https://r.jina.ai/"
)

type Driver struct {
	client   *http.Client
	token    string
	endpoint string
}

func New(token, endpoint string) *Driver {
	if endpoint == "" {
		endpoint = DEFAULT_READER_ENDPOINT
	}
	if !strings.HasSuffix(endpoint, "/") {
		endpoint += "/"
	}
	return &Driver{
		client:   &http.Client{Timeout: time.Minute},
		token:    token,
		endpoint: endpoint,
	}
}

func (s *Driver) applyBaseHeader(req *http.Request) {
	req.Header.Add("Accept", "application/json")
	if s.token != "" {
		req.Header.Add("Authorization", "Bearer "+s.token)
	}
}

type ReaderResponse struct {
	Code   int             `json:"code"`
	Status int             `json:"status"`
	Data   ai.ReaderResult `json:"data"`
}

func (s *Driver) Reader(ctx context.Context, endpoint string) (*ai.ReaderResult, error) {
	slog.Debug("Reader", slog.String("driver", NAME), slog.String("endpoint", endpoint))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+endpoint, nil)
	if err != nil {
		return nil, err
	}
	s.applyBaseHeader(req)
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Failed to request jina reader: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Failed to request jina reader, %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var result ReaderResponse
	if err = json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("Failed to unmarshal response, %w", err)
	}

	return &result.Data, nil
}

var _ ai.Reader = (*Driver)(nil)
