package contact

import (
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strings"

	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/tunisianchic/backend-boutique/internal/common"
)

// Message is a storefront contact form submission. The website field
// is a honeypot: humans never see it, bots fill it.
type Message struct {
	Name    string `json:"name" validate:"required,max=120"`
	Email   string `json:"email" validate:"required,email"`
	Subject string `json:"subject" validate:"required,max=200"`
	Body    string `json:"message" validate:"required,max=5000"`
	Website string `json:"website"`
}

type Handler struct {
	sender   common.EmailSender
	inbox    string
	validate *validator.Validate
	log      zerolog.Logger
}

func NewHandler(sender common.EmailSender, inbox string, validate *validator.Validate, log zerolog.Logger) *Handler {
	if validate == nil {
		validate = validator.New()
	}
	return &Handler{sender: sender, inbox: inbox, validate: validate, log: log}
}

// Submit handles POST /contact.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var msg Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "request body must be valid JSON", nil)
		return
	}
	if strings.TrimSpace(msg.Website) != "" {
		// Honeypot tripped: pretend success, drop the message.
		common.JSON(w, http.StatusAccepted, map[string]any{"data": map[string]any{"sent": true}})
		return
	}
	if err := h.validate.Struct(msg); err != nil {
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", "invalid contact message", map[string]any{"reason": err.Error()})
		return
	}

	if err := h.sender.Send(h.inbox, "[Contact] "+msg.Subject, renderBody(msg)); err != nil {
		h.log.Error().Err(err).Msg("contact relay failed")
		common.JSONError(w, http.StatusBadGateway, "DELIVERY_FAILED", "message could not be delivered, try again later", nil)
		return
	}
	common.JSON(w, http.StatusAccepted, map[string]any{"data": map[string]any{"sent": true}})
}

func renderBody(msg Message) string {
	return fmt.Sprintf(
		"<p><strong>De&nbsp;:</strong> %s &lt;%s&gt;</p><p>%s</p>",
		html.EscapeString(msg.Name),
		html.EscapeString(msg.Email),
		strings.ReplaceAll(html.EscapeString(msg.Body), "\n", "<br>"),
	)
}
