package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/tunisianchic/backend-boutique/internal/resilience"
)

// Flouci opens hosted sessions on the Flouci gateway.
type Flouci struct {
	HTTP      resilience.HTTPClient
	BaseURL   string
	AppToken  string
	AppSecret string
}

func (f Flouci) Name() string { return "flouci" }

func (f Flouci) Init(ctx context.Context, req InitRequest) (string, error) {
	body, err := json.Marshal(map[string]any{
		"amount":               millimes(req.Amount),
		"accept_card":          true,
		"session_timeout_secs": 1200,
		"description":          req.OrderNumber,
		"success_link":         req.ReturnURL,
		"fail_link":            req.ReturnURL,
	})
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequest(http.MethodPost, strings.TrimRight(f.BaseURL, "/")+"/generate_payment", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("store_id", f.AppToken)
	httpReq.Header.Set("store_secret", f.AppSecret)

	resp, err := f.HTTP.Do(ctx, httpReq)
	if err != nil {
		return "", fmt.Errorf("flouci init: %w", err)
	}
	defer resp.Body.Close()

	var decoded struct {
		Link   string `json:"link"`
		Result struct {
			Link string `json:"link"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("flouci init: decode response: %w", err)
	}
	for _, url := range []string{decoded.Result.Link, decoded.Link} {
		if url != "" {
			return url, nil
		}
	}
	return "", errGatewayResponse
}
