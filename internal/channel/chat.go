package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	appErrors "github.com/unclebandit/leopard-outreach/internal/errors"
	"github.com/unclebandit/leopard-outreach/internal/model"
)

// ChatAdapter talks to a chat transport HTTP API addressed by instance name
// and authenticated with an apikey header:
//
//	POST {base_url}/message/sendText/{instance}  {"number": "...", "text": "..."}
type ChatAdapter struct {
	sender httpSender
}

func NewChatAdapter(client *http.Client, ratePerSec float64) *ChatAdapter {
	return &ChatAdapter{sender: newHTTPSender(client, ratePerSec)}
}

func (a *ChatAdapter) Send(ctx context.Context, cfg *model.ProviderConfig, msg Message) (*Result, error) {
	if cfg.BaseURL == "" || cfg.InstanceName == "" || cfg.APIKey == "" {
		err := fmt.Errorf("chat provider %d is missing base_url, instance_name or api_key", cfg.ID)
		return &Result{ErrorMessage: err.Error()}, &appErrors.ProviderError{Provider: string(cfg.Kind), Err: err}
	}

	body, err := json.Marshal(map[string]string{
		"number": digitsOnly(msg.To),
		"text":   msg.Content,
	})
	if err != nil {
		return &Result{ErrorMessage: err.Error()}, err
	}

	endpoint := strings.TrimRight(cfg.BaseURL, "/") + "/message/sendText/" + url.PathEscape(cfg.InstanceName)
	req, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return &Result{ErrorMessage: err.Error()}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", cfg.APIKey)

	res, err := a.sender.do(ctx, req)
	if err != nil {
		return res, &appErrors.ProviderError{Provider: string(cfg.Kind), StatusCode: res.StatusCode, Err: err}
	}
	return res, nil
}

func digitsOnly(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
