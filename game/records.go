package game

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

const outcomeKeyPrefix = "game:"

// RecordStore persists immutable spin outcome records with a bounded
// retention window.
type RecordStore struct {
	store     Store
	retention time.Duration
	logger    zerolog.Logger
}

// NewRecordStore creates a record store. retention bounds how long outcome
// records stay queryable.
func NewRecordStore(store Store, retention time.Duration, logger zerolog.Logger) *RecordStore {
	return &RecordStore{
		store:     store,
		retention: retention,
		logger:    logger.With().Str("component", "record_store").Logger(),
	}
}

// Save writes an outcome record. Records are write-once; nothing updates them
// after creation.
func (r *RecordStore) Save(ctx context.Context, rec *OutcomeRecord) error {
	if err := r.store.SetJSON(ctx, outcomeKeyPrefix+rec.GameID, rec, r.retention); err != nil {
		return fmt.Errorf("failed to save outcome record: %w", err)
	}
	return nil
}

// Get loads an outcome record by game ID
func (r *RecordStore) Get(ctx context.Context, gameID string) (*OutcomeRecord, error) {
	var rec OutcomeRecord
	if err := r.store.GetJSON(ctx, outcomeKeyPrefix+gameID, &rec); err != nil {
		return nil, fmt.Errorf("failed to load outcome record %s: %w", gameID, err)
	}
	return &rec, nil
}
