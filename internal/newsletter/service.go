package newsletter

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/tunisianchic/backend-boutique/internal/db"
)

// Store is the slice of the query layer the ledger needs.
type Store interface {
	InsertSubscription(ctx context.Context, email string) (db.NewsletterSubscription, bool, error)
	GetSubscriptionByEmail(ctx context.Context, email string) (db.NewsletterSubscription, error)
	MarkDiscountUsed(ctx context.Context, email string) (int64, error)
}

// Status reports the ledger state for one email.
type Status struct {
	Subscribed        bool `json:"subscribed"`
	DiscountAvailable bool `json:"discountAvailable"`
}

var ErrInvalidEmail = errors.New("newsletter: invalid email")

// Service owns the newsletter subscription ledger. Every email is
// normalised to lowercase before it reaches SQL.
type Service struct {
	Q   Store
	Log zerolog.Logger
}

// Normalize lowercases and trims an email for ledger comparisons.
func Normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 {
		return false
	}
	domain := email[at+1:]
	return strings.Contains(domain, ".") && !strings.ContainsAny(email, " \t")
}

// Subscribe records a signup. Repeat signups are reported as not
// created and never reset discount_used.
func (s *Service) Subscribe(ctx context.Context, email string) (created bool, err error) {
	norm := Normalize(email)
	if !validEmail(norm) {
		return false, ErrInvalidEmail
	}
	_, created, err = s.Q.InsertSubscription(ctx, norm)
	if err != nil {
		return false, err
	}
	return created, nil
}

// GetStatus reports subscription and discount availability for an email.
func (s *Service) GetStatus(ctx context.Context, email string) (Status, error) {
	norm := Normalize(email)
	if !validEmail(norm) {
		return Status{}, ErrInvalidEmail
	}
	sub, err := s.Q.GetSubscriptionByEmail(ctx, norm)
	if errors.Is(err, pgx.ErrNoRows) {
		return Status{}, nil
	}
	if err != nil {
		return Status{}, err
	}
	return Status{Subscribed: true, DiscountAvailable: !sub.DiscountUsed}, nil
}

// Eligible resolves discount eligibility for checkout. Ledger failures
// degrade to not-eligible so an order never blocks on the ledger.
func (s *Service) Eligible(ctx context.Context, email string) bool {
	status, err := s.GetStatus(ctx, email)
	if err != nil {
		s.Log.Warn().Err(err).Msg("newsletter eligibility lookup failed, treating as not eligible")
		return false
	}
	return status.DiscountAvailable
}

// DiscountFlipper is the single ledger write checkout needs.
type DiscountFlipper interface {
	MarkDiscountUsed(ctx context.Context, email string) (int64, error)
}

// ClaimDiscount performs the exclusive conditional flip. It returns
// true only when this caller moved discount_used from false to true.
// Run it on a transaction-bound store so the flip commits or rolls
// back with the order.
func ClaimDiscount(ctx context.Context, q DiscountFlipper, email string) (bool, error) {
	affected, err := q.MarkDiscountUsed(ctx, Normalize(email))
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}
