package reports

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	summaryKey = "reports:daily_summary"
	summaryTTL = 8 * 24 * time.Hour
)

// ErrNoSummary is returned before the first summary has been stored.
var ErrNoSummary = errors.New("reports: no stored summary")

// StoredSummary is a generated summary text and when it was produced.
type StoredSummary struct {
	Text        string
	GeneratedAt time.Time
}

// SummaryStore keeps the most recent generated summary in Redis.
type SummaryStore struct {
	client *redis.Client
}

// NewSummaryStore builds a store. A nil client disables it.
func NewSummaryStore(client *redis.Client) *SummaryStore {
	return &SummaryStore{client: client}
}

// Save replaces the stored summary.
func (s *SummaryStore) Save(ctx context.Context, summary StoredSummary) error {
	if s == nil || s.client == nil {
		return nil
	}
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, summaryKey, "text", summary.Text, "generated_at", summary.GeneratedAt.UTC().Format(time.RFC3339))
	pipe.Expire(ctx, summaryKey, summaryTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// Latest returns the stored summary or ErrNoSummary.
func (s *SummaryStore) Latest(ctx context.Context) (StoredSummary, error) {
	if s == nil || s.client == nil {
		return StoredSummary{}, ErrNoSummary
	}
	fields, err := s.client.HGetAll(ctx, summaryKey).Result()
	if err != nil {
		return StoredSummary{}, err
	}
	text, ok := fields["text"]
	if !ok {
		return StoredSummary{}, ErrNoSummary
	}
	generated, _ := time.Parse(time.RFC3339, fields["generated_at"])
	return StoredSummary{Text: text, GeneratedAt: generated}, nil
}
