package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pomora/pomora/internal/render"
)

const requestTimeout = 15 * time.Second

// HTTPRenderer asks the render service to paint cards. The service takes
// the card input as JSON and answers with raw image bytes.
type HTTPRenderer struct {
	baseURL string
	client  *http.Client
}

func NewHTTPRenderer(baseURL string) render.Renderer {
	return &HTTPRenderer{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: requestTimeout},
	}
}

func (r *HTTPRenderer) StatusCard(ctx context.Context, input render.StatusCardInput) ([]byte, error) {
	return r.post(ctx, "/status-card", input)
}

func (r *HTTPRenderer) LeaderboardCard(ctx context.Context, input render.LeaderboardCardInput) ([]byte, error) {
	return r.post(ctx, "/leaderboard-card", input)
}

func (r *HTTPRenderer) post(ctx context.Context, path string, payload any) ([]byte, error) {
	if r.baseURL == "" {
		return nil, fmt.Errorf("render service url is not configured")
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if !isHTTPSuccessStatus(resp.StatusCode) {
		return nil, fmt.Errorf("render service returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("render service returned an empty image")
	}
	return body, nil
}

func isHTTPSuccessStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}
