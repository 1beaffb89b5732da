package game

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const statsKeyPrefix = "rtp_stats:"

// StatsRecorder maintains the daily RTP aggregate used for offline auditing
type StatsRecorder struct {
	store  Store
	logger zerolog.Logger
}

// NewStatsRecorder creates a stats recorder
func NewStatsRecorder(store Store, logger zerolog.Logger) *StatsRecorder {
	return &StatsRecorder{
		store:  store,
		logger: logger.With().Str("component", "stats_recorder").Logger(),
	}
}

func statsKey(at time.Time) string {
	return statsKeyPrefix + at.UTC().Format("2006-01-02")
}

// RecordSpin folds one spin into the day's aggregate under CAS
func (s *StatsRecorder) RecordSpin(ctx context.Context, at time.Time, bet, win decimal.Decimal) error {
	err := s.store.UpdateJSON(ctx, statsKey(at), 0, func(current []byte) (interface{}, error) {
		stats := &RTPStats{TotalBets: decimal.Zero, TotalWins: decimal.Zero, RTP: decimal.Zero}
		if current != nil {
			if err := json.Unmarshal(current, stats); err != nil {
				return nil, fmt.Errorf("failed to unmarshal rtp stats: %w", err)
			}
		}
		stats.TotalGames++
		stats.TotalBets = stats.TotalBets.Add(bet)
		stats.TotalWins = stats.TotalWins.Add(win)
		if stats.TotalBets.IsPositive() {
			stats.RTP = stats.TotalWins.Div(stats.TotalBets).Round(4)
		}
		return stats, nil
	})
	if err != nil {
		return fmt.Errorf("failed to record spin stats: %w", err)
	}
	return nil
}

// Daily returns the aggregate for a given UTC date (2006-01-02)
func (s *StatsRecorder) Daily(ctx context.Context, date string) (*RTPStats, error) {
	var stats RTPStats
	if err := s.store.GetJSON(ctx, statsKeyPrefix+date, &stats); err != nil {
		return nil, fmt.Errorf("failed to load rtp stats for %s: %w", date, err)
	}
	return &stats, nil
}
