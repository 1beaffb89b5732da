package game

import (
	"context"
	"errors"
	"fmt"

	storage "github.com/aiandyou50/CandleSpinner-sub000/db/redis"
	"github.com/rs/zerolog"
)

const (
	serverSeedKeyPrefix = "serverSeed:"
	nonceKeyPrefix      = "nonce:"
)

// SeedStore persists the per-player server seed and its rolling nonce
// counter. A seed is created on first play and is immutable afterwards;
// rotation supersedes it with a fresh seed and resets the nonce scope.
type SeedStore struct {
	store  Store
	logger zerolog.Logger
}

// NewSeedStore creates a seed store
func NewSeedStore(store Store, logger zerolog.Logger) *SeedStore {
	return &SeedStore{
		store:  store,
		logger: logger.With().Str("component", "seed_store").Logger(),
	}
}

// Current returns the player's active server seed, creating one on first play
func (s *SeedStore) Current(ctx context.Context, player string) (string, error) {
	seed, err := s.store.Get(ctx, serverSeedKeyPrefix+player)
	if err == nil {
		return seed, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return "", fmt.Errorf("failed to load server seed: %w", err)
	}

	seed, err = NewServerSeed()
	if err != nil {
		return "", err
	}
	if err := s.store.Set(ctx, serverSeedKeyPrefix+player, seed, 0); err != nil {
		return "", fmt.Errorf("failed to persist server seed: %w", err)
	}

	s.logger.Info().
		Str("player", player).
		Str("seed_hash", SeedHash(seed)).
		Msg("Server seed created")

	return seed, nil
}

// Rotate supersedes the current seed with a fresh one and resets the nonce
// counter. The old seed is returned so it can be revealed to the player for
// auditing; it is never mutated, only replaced.
func (s *SeedStore) Rotate(ctx context.Context, player string) (revealed string, newHash string, err error) {
	old, err := s.store.Get(ctx, serverSeedKeyPrefix+player)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return "", "", fmt.Errorf("failed to load server seed: %w", err)
	}

	seed, err := NewServerSeed()
	if err != nil {
		return "", "", err
	}
	if err := s.store.Set(ctx, serverSeedKeyPrefix+player, seed, 0); err != nil {
		return "", "", fmt.Errorf("failed to persist server seed: %w", err)
	}
	// Nonce is scoped to one server seed, so rotation restarts it at zero.
	if err := s.store.Set(ctx, nonceKeyPrefix+player, 0, 0); err != nil {
		return "", "", fmt.Errorf("failed to reset nonce: %w", err)
	}

	s.logger.Info().
		Str("player", player).
		Str("seed_hash", SeedHash(seed)).
		Msg("Server seed rotated")

	return old, SeedHash(seed), nil
}

// NextNonce returns the next nonce for the player, incrementing by exactly 1.
// The first spin of a seed epoch uses nonce 0.
func (s *SeedStore) NextNonce(ctx context.Context, player string) (int64, error) {
	n, err := s.store.Incr(ctx, nonceKeyPrefix+player)
	if err != nil {
		return 0, fmt.Errorf("failed to advance nonce: %w", err)
	}
	return n - 1, nil
}
