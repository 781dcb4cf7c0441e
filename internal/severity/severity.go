package severity

import (
	"context"
	"fmt"
	"time"

	"logwatch-backend/internal/storage"
)

// RepeatWindow is how far back same-fingerprint occurrences are counted.
const RepeatWindow = 30 * time.Minute

var levelWeights = map[string]int{
	storage.LevelCritical: 10,
	storage.LevelError:    5,
	storage.LevelWarn:     2,
}

type Counter interface {
	CountLogs(ctx context.Context, filter storage.LogFilter) (int, error)
}

type Scorer struct {
	counter Counter
	now     func() time.Time
}

func NewScorer(counter Counter) *Scorer {
	return &Scorer{counter: counter, now: time.Now}
}

// BaseScore is the weight of a level; unknown and empty levels weigh 0.
func BaseScore(level string) int {
	return levelWeights[level]
}

// Score adds the recent repeat count to the level weight for fingerprinted
// error records. The record is expected to be persisted already so that the
// count includes it. The score is not capped.
func (s *Scorer) Score(ctx context.Context, rec storage.LogRecord) (int, error) {
	score := BaseScore(rec.Level)
	if rec.Type != storage.LogTypeError || rec.Fingerprint == "" {
		return score, nil
	}
	repeats, err := s.counter.CountLogs(ctx, storage.LogFilter{
		Fingerprint: rec.Fingerprint,
		Since:       s.now().Add(-RepeatWindow),
	})
	if err != nil {
		return 0, fmt.Errorf("count repeats: %w", err)
	}
	return score + repeats, nil
}
