package db

import "context"

// The unique index on lower(email) backs the conflict target so repeat
// signups never create a second row or touch discount_used.
const insertSubscription = `
INSERT INTO newsletter_subscriptions (email)
VALUES (lower($1))
ON CONFLICT ((lower(email))) DO NOTHING
RETURNING id, email, discount_used, created_at
`

// InsertSubscription records a signup. The returned created flag is
// false when the email was already on the ledger.
func (q *Queries) InsertSubscription(ctx context.Context, email string) (NewsletterSubscription, bool, error) {
	rows, err := q.db.Query(ctx, insertSubscription, email)
	if err != nil {
		return NewsletterSubscription{}, false, err
	}
	defer rows.Close()
	if !rows.Next() {
		return NewsletterSubscription{}, false, rows.Err()
	}
	var sub NewsletterSubscription
	if err := rows.Scan(&sub.ID, &sub.Email, &sub.DiscountUsed, &sub.CreatedAt); err != nil {
		return NewsletterSubscription{}, false, err
	}
	return sub, true, rows.Err()
}

const getSubscriptionByEmail = `
SELECT id, email, discount_used, created_at
FROM newsletter_subscriptions
WHERE lower(email) = lower($1)
`

func (q *Queries) GetSubscriptionByEmail(ctx context.Context, email string) (NewsletterSubscription, error) {
	row := q.db.QueryRow(ctx, getSubscriptionByEmail, email)
	var sub NewsletterSubscription
	err := row.Scan(&sub.ID, &sub.Email, &sub.DiscountUsed, &sub.CreatedAt)
	return sub, err
}

// Conditional flip: only an unused subscription row is updated, so the
// rows-affected count tells the caller whether it won the discount.
const markDiscountUsed = `
UPDATE newsletter_subscriptions
SET discount_used = TRUE
WHERE lower(email) = lower($1) AND NOT discount_used
`

func (q *Queries) MarkDiscountUsed(ctx context.Context, email string) (int64, error) {
	tag, err := q.db.Exec(ctx, markDiscountUsed, email)
	return tag.RowsAffected(), err
}
