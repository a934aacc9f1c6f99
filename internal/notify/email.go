package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"html"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/tunisianchic/backend-boutique/internal/common"
	"github.com/tunisianchic/backend-boutique/internal/obs"
	"github.com/tunisianchic/backend-boutique/internal/order"
)

// TaskOrderConfirmation is the asynq task type for post-checkout emails.
const TaskOrderConfirmation = "email:order_confirmation"

// OrderConfirmationPayload travels through Redis between the API and
// the worker.
type OrderConfirmationPayload struct {
	OrderNumber string `json:"orderNumber"`
	Email       string `json:"email"`
	Total       string `json:"total"`
	ItemCount   int    `json:"itemCount"`
}

// EmailNotifier enqueues confirmation emails after checkout commits.
// Enqueue failures are logged, never surfaced: the order already exists.
type EmailNotifier struct {
	Client *asynq.Client
	Log    zerolog.Logger
}

func (n EmailNotifier) OrderCreated(ctx context.Context, created order.Created) {
	if n.Client == nil {
		return
	}
	payload, err := json.Marshal(OrderConfirmationPayload{
		OrderNumber: created.Order.OrderNumber,
		Email:       created.Email,
		Total:       created.Order.Total.StringFixed(2),
		ItemCount:   len(created.Order.Items),
	})
	if err != nil {
		n.Log.Error().Err(err).Msg("encode order confirmation task")
		return
	}
	if _, err := n.Client.EnqueueContext(ctx, asynq.NewTask(TaskOrderConfirmation, payload), asynq.MaxRetry(5)); err != nil {
		obs.EmailDeliveriesTotal.WithLabelValues("order_confirmation", "enqueue_failed").Inc()
		n.Log.Error().Err(err).Str("order_number", created.Order.OrderNumber).Msg("enqueue order confirmation")
		return
	}
	obs.EmailDeliveriesTotal.WithLabelValues("order_confirmation", "enqueued").Inc()
}

// Mailer processes queued email tasks on the worker.
type Mailer struct {
	Sender common.EmailSender
	Log    zerolog.Logger
}

// HandleOrderConfirmation renders and sends one confirmation email.
// Errors are returned so asynq retries with backoff.
func (m Mailer) HandleOrderConfirmation(ctx context.Context, task *asynq.Task) error {
	var p OrderConfirmationPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		return fmt.Errorf("decode order confirmation payload: %w", err)
	}

	subject := fmt.Sprintf("Votre commande %s est confirmée", p.OrderNumber)
	if err := m.Sender.Send(p.Email, subject, renderOrderConfirmation(p)); err != nil {
		obs.EmailDeliveriesTotal.WithLabelValues("order_confirmation", "failed").Inc()
		m.Log.Error().Err(err).Str("order_number", p.OrderNumber).Msg("send order confirmation")
		return err
	}
	obs.EmailDeliveriesTotal.WithLabelValues("order_confirmation", "sent").Inc()
	return nil
}

func renderOrderConfirmation(p OrderConfirmationPayload) string {
	return fmt.Sprintf(
		`<h1>Merci pour votre commande&nbsp;!</h1>
<p>Votre commande <strong>%s</strong> (%d article(s)) a bien été enregistrée.</p>
<p>Total&nbsp;: <strong>%s TND</strong></p>
<p>Vous recevrez un email dès son expédition.</p>`,
		html.EscapeString(p.OrderNumber), p.ItemCount, html.EscapeString(p.Total),
	)
}
