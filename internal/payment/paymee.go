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

// Paymee opens hosted sessions on the Paymee gateway.
type Paymee struct {
	HTTP    resilience.HTTPClient
	BaseURL string
	APIKey  string
}

func (p Paymee) Name() string { return "paymee" }

func (p Paymee) Init(ctx context.Context, req InitRequest) (string, error) {
	body, err := json.Marshal(map[string]any{
		"amount": millimes(req.Amount),
		"note":   req.OrderNumber,
		"url":    req.ReturnURL,
	})
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequest(http.MethodPost, strings.TrimRight(p.BaseURL, "/")+"/payments/init", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Token "+p.APIKey)

	resp, err := p.HTTP.Do(ctx, httpReq)
	if err != nil {
		return "", fmt.Errorf("paymee init: %w", err)
	}
	defer resp.Body.Close()

	var decoded struct {
		PaymentURL string `json:"payment_url"`
		Data       struct {
			PaymentURL string `json:"payment_url"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("paymee init: decode response: %w", err)
	}
	for _, url := range []string{decoded.Data.PaymentURL, decoded.PaymentURL} {
		if url != "" {
			return url, nil
		}
	}
	return "", errGatewayResponse
}
