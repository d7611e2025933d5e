// Package cloudsync bundles ready-made CloudProvider implementations. The
// persistence core never requires one; the embedding application opts in.
package cloudsync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dgnsrekt/kline_agent/internal/overlay"
)

// HTTPProvider syncs overlay records against a plain REST backend:
// PUT/GET {base}/overlays/{symbol} with a JSON array body.
type HTTPProvider struct {
	base   string
	client *http.Client
}

// NewHTTPProvider creates a provider for the given base URL. client may be
// nil, in which case a client with a 10s timeout is used.
func NewHTTPProvider(base string, client *http.Client) *HTTPProvider {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPProvider{base: strings.TrimRight(base, "/"), client: client}
}

func (p *HTTPProvider) recordURL(symbol string) string {
	return p.base + "/overlays/" + url.PathEscape(symbol)
}

func (p *HTTPProvider) Upload(ctx context.Context, symbol string, records []overlay.Serialized) error {
	if records == nil {
		records = []overlay.Serialized{}
	}
	body, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("cloudsync: encode %s: %w", symbol, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, p.recordURL(symbol), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("cloudsync: upload %s: %w", symbol, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("cloudsync: upload %s: HTTP %d", symbol, resp.StatusCode)
	}
	return nil
}

func (p *HTTPProvider) Download(ctx context.Context, symbol string) ([]overlay.Serialized, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.recordURL(symbol), nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cloudsync: download %s: %w", symbol, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return []overlay.Serialized{}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cloudsync: download %s: HTTP %d", symbol, resp.StatusCode)
	}

	var records []overlay.Serialized
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("cloudsync: decode %s: %w", symbol, err)
	}
	if records == nil {
		records = []overlay.Serialized{}
	}
	return records, nil
}
