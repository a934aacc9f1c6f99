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

// Konnect opens hosted sessions on the Konnect gateway.
type Konnect struct {
	HTTP     resilience.HTTPClient
	BaseURL  string
	APIKey   string
	WalletID string
	Webhook  string
}

func (k Konnect) Name() string { return "konnect" }

func (k Konnect) Init(ctx context.Context, req InitRequest) (string, error) {
	payload := map[string]any{
		"amount":               millimes(req.Amount),
		"note":                 req.OrderNumber,
		"url":                  req.ReturnURL,
		"acceptedPaymentMethods": []string{"wallet", "bank_card", "e-DINAR"},
	}
	if k.WalletID != "" {
		payload["receiverWalletId"] = k.WalletID
	}
	if k.Webhook != "" {
		payload["webhook"] = k.Webhook
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequest(http.MethodPost, strings.TrimRight(k.BaseURL, "/")+"/payments/init", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Token "+k.APIKey)

	resp, err := k.HTTP.Do(ctx, httpReq)
	if err != nil {
		return "", fmt.Errorf("konnect init: %w", err)
	}
	defer resp.Body.Close()

	var decoded struct {
		PaymentURL  string `json:"payment_url"`
		RedirectURL string `json:"redirect_url"`
		Result      struct {
			Link string `json:"link"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("konnect init: decode response: %w", err)
	}
	for _, url := range []string{decoded.PaymentURL, decoded.RedirectURL, decoded.Result.Link} {
		if url != "" {
			return url, nil
		}
	}
	return "", errGatewayResponse
}
