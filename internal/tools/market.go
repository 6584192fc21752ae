package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// PriceClient fetches quotes from the market-data collaborator. Prices are
// regulated data and are never synthesized locally.
type PriceClient struct {
	baseURL string
	http    *http.Client
}

func NewPriceClient(baseURL string, timeout time.Duration) *PriceClient {
	return &PriceClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *PriceClient) GetPrice(ctx context.Context, symbol, market string) (map[string]any, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("market", market)
	return getJSON(ctx, c.http, c.baseURL+"/price?"+q.Encode())
}

// AnalysisClient fetches educational market commentary for one symbol.
type AnalysisClient struct {
	baseURL string
	http    *http.Client
}

func NewAnalysisClient(baseURL string, timeout time.Duration) *AnalysisClient {
	return &AnalysisClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *AnalysisClient) GetAnalysis(ctx context.Context, symbol string) (map[string]any, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	return getJSON(ctx, c.http, c.baseURL+"/analysis?"+q.Encode())
}

func getJSON(ctx context.Context, client *http.Client, u string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}

func postJSON(ctx context.Context, client *http.Client, u string, payload any) (map[string]any, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}
