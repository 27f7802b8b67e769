package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strings"

	appErrors "github.com/unclebandit/leopard-outreach/internal/errors"
	"github.com/unclebandit/leopard-outreach/internal/model"
)

const defaultEmailBaseURL = "https://api.resend.com"

// EmailAdapter posts to a transactional email HTTP API with a bearer token.
type EmailAdapter struct {
	sender httpSender
}

func NewEmailAdapter(client *http.Client, ratePerSec float64) *EmailAdapter {
	return &EmailAdapter{sender: newHTTPSender(client, ratePerSec)}
}

type emailRequest struct {
	From    string   `json:"from,omitempty"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

func (a *EmailAdapter) Send(ctx context.Context, cfg *model.ProviderConfig, msg Message) (*Result, error) {
	if cfg.BearerToken == "" {
		err := fmt.Errorf("email provider %d has no bearer token", cfg.ID)
		return &Result{ErrorMessage: err.Error()}, &appErrors.ProviderError{Provider: string(cfg.Kind), Err: err}
	}
	base := cfg.BaseURL
	if base == "" {
		base = defaultEmailBaseURL
	}

	body, err := json.Marshal(emailRequest{
		From:    cfg.FromAddress,
		To:      []string{msg.To},
		Subject: msg.Subject,
		HTML:    ToHTML(msg.Content),
	})
	if err != nil {
		return &Result{ErrorMessage: err.Error()}, err
	}

	req, err := http.NewRequest(http.MethodPost, strings.TrimRight(base, "/")+"/emails", bytes.NewReader(body))
	if err != nil {
		return &Result{ErrorMessage: err.Error()}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cfg.BearerToken)

	res, err := a.sender.do(ctx, req)
	if err != nil {
		return res, &appErrors.ProviderError{Provider: string(cfg.Kind), StatusCode: res.StatusCode, Err: err}
	}
	return res, nil
}

// ToHTML passes HTML content through and turns plain text into escaped
// paragraphs with line breaks.
func ToHTML(content string) string {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "<") {
		return content
	}
	escaped := html.EscapeString(content)
	return "<p>" + strings.ReplaceAll(escaped, "\n", "<br>") + "</p>"
}
