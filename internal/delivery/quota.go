package delivery

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/dmitrymomot/campaigner/internal/metrics"
)

// DefaultDailyLimit is the per-user messages-per-day cap.
const DefaultDailyLimit = 350

// SendCounter counts send-log entries for quota accounting.
type SendCounter interface {
	CountSince(ctx context.Context, userID primitive.ObjectID, since time.Time) (int64, error)
}

// Quota enforces the per-user daily send cap. The check is advisory with
// respect to concurrent sends by the same user: the count and the send are
// not one transaction. A user has at most one send in flight in normal
// operation, so the race is accepted.
type Quota struct {
	counter SendCounter
	limit   int64
	loc     *time.Location
}

// NewQuota creates a Quota. A non-positive limit falls back to
// DefaultDailyLimit; a nil location falls back to time.Local. The location
// decides where "midnight" is for the daily window.
func NewQuota(counter SendCounter, limit int, loc *time.Location) *Quota {
	if limit <= 0 {
		limit = DefaultDailyLimit
	}
	if loc == nil {
		loc = time.Local
	}
	return &Quota{counter: counter, limit: int64(limit), loc: loc}
}

// Check fails with ErrQuotaExceeded when sending requested more messages
// would push the user past the daily limit, counted since local midnight.
func (q *Quota) Check(ctx context.Context, userID primitive.ObjectID, requested int) error {
	sentToday, err := q.counter.CountSince(ctx, userID, q.midnight())
	if err != nil {
		return err
	}
	if sentToday+int64(requested) > q.limit {
		metrics.QuotaRejections.Inc()
		return fmt.Errorf("%w: %d sent today, %d requested, limit %d",
			ErrQuotaExceeded, sentToday, requested, q.limit)
	}
	return nil
}

// Remaining reports how many messages the user may still send today. Never
// negative.
func (q *Quota) Remaining(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	sentToday, err := q.counter.CountSince(ctx, userID, q.midnight())
	if err != nil {
		return 0, err
	}
	if sentToday >= q.limit {
		return 0, nil
	}
	return q.limit - sentToday, nil
}

// Limit returns the configured daily cap.
func (q *Quota) Limit() int64 {
	return q.limit
}

func (q *Quota) midnight() time.Time {
	now := time.Now().In(q.loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, q.loc)
}
