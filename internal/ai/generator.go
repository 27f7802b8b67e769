// Package ai calls the external insight service that writes a personalized
// message for a lead.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/unclebandit/leopard-outreach/internal/model"
)

// ErrDisabled is returned when no endpoint is configured.
var ErrDisabled = errors.New("ai generation is not configured")

type Request struct {
	TenantID int           `json:"tenant_id"`
	LeadID   int           `json:"lead_id"`
	Channel  model.Channel `json:"channel"`
	Insight  string        `json:"insight"`
	Fallback string        `json:"fallback"`
}

type HTTPGenerator struct {
	Endpoint string
	Token    string
	Client   *http.Client
}

func (g *HTTPGenerator) Generate(ctx context.Context, req Request) (string, error) {
	if g == nil || g.Endpoint == "" {
		return "", ErrDisabled
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if g.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.Token)
	}

	client := g.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("ai generate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("ai generate: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	var out struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("ai generate: decode response: %w", err)
	}
	if strings.TrimSpace(out.Content) == "" {
		return "", errors.New("ai generate: empty content")
	}
	return out.Content, nil
}
