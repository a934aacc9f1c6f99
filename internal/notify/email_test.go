package notify

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/tunisianchic/backend-boutique/internal/common"
	"github.com/tunisianchic/backend-boutique/internal/obs"
)

func TestMain(m *testing.M) {
	obs.MustRegisterDomainMetrics("boutique_test", prometheus.NewRegistry())
	os.Exit(m.Run())
}

func TestHandleOrderConfirmation(t *testing.T) {
	outbox := &common.InMemoryEmail{}
	mailer := Mailer{Sender: outbox, Log: zerolog.Nop()}

	payload, err := json.Marshal(OrderConfirmationPayload{
		OrderNumber: "ORD-20250601-AB12CD",
		Email:       "amel@example.tn",
		Total:       "218.00",
		ItemCount:   2,
	})
	require.NoError(t, err)

	err = mailer.HandleOrderConfirmation(context.Background(), asynq.NewTask(TaskOrderConfirmation, payload))
	require.NoError(t, err)
	require.Len(t, outbox.Outbox, 1)
	require.Equal(t, "amel@example.tn", outbox.Outbox[0].To)
	require.Contains(t, outbox.Outbox[0].Subject, "ORD-20250601-AB12CD")
	require.Contains(t, outbox.Outbox[0].HTML, "218.00 TND")
}

func TestHandleOrderConfirmationBadPayload(t *testing.T) {
	mailer := Mailer{Sender: common.NopEmailSender{}, Log: zerolog.Nop()}
	err := mailer.HandleOrderConfirmation(context.Background(), asynq.NewTask(TaskOrderConfirmation, []byte("{")))
	require.Error(t, err)
}
