package db

import "context"

const insertDomainEvent = `
INSERT INTO domain_events (topic, aggregate_id, payload)
VALUES ($1, $2, $3)
`

func (q *Queries) InsertDomainEvent(ctx context.Context, topic, aggregateID string, payload []byte) error {
	_, err := q.db.Exec(ctx, insertDomainEvent, topic, aggregateID, payload)
	return err
}
