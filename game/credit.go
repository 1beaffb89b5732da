package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	storage "github.com/aiandyou50/CandleSpinner-sub000/db/redis"
	apperrors "github.com/aiandyou50/CandleSpinner-sub000/errors"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const balanceKeyPrefix = "user_"

// CreditLedger owns the off-chain balance record of each player. All
// mutations go through the store's per-key compare-and-swap so concurrent
// requests for the same player cannot silently discard each other's writes.
type CreditLedger struct {
	store  Store
	logger zerolog.Logger
}

// NewCreditLedger creates a credit ledger
func NewCreditLedger(store Store, logger zerolog.Logger) *CreditLedger {
	return &CreditLedger{
		store:  store,
		logger: logger.With().Str("component", "credit_ledger").Logger(),
	}
}

func (l *CreditLedger) key(player string) string {
	return balanceKeyPrefix + player
}

// Get returns the player's balance record, zeroed when none exists yet. A
// store failure is surfaced, never mistaken for an empty account.
func (l *CreditLedger) Get(ctx context.Context, player string) (*UserBalanceState, error) {
	var state UserBalanceState
	if err := l.store.GetJSON(ctx, l.key(player), &state); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return NewUserBalanceState(), nil
		}
		return nil, apperrors.Wrap(err, apperrors.ErrStoreError, "failed to load balance record").WithRetryable(true)
	}
	return &state, nil
}

// ApplyDelta adds delta to the player's credit, clamping at zero, and returns
// the new balance.
func (l *CreditLedger) ApplyDelta(ctx context.Context, player string, delta decimal.Decimal) (decimal.Decimal, error) {
	var newBalance decimal.Decimal

	err := l.mutate(ctx, player, func(state *UserBalanceState) error {
		state.Credit = state.Credit.Add(delta)
		if state.Credit.IsNegative() {
			state.Credit = decimal.Zero
		}
		newBalance = state.Credit
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}

	return newBalance, nil
}

// SetPending stores the two-step collect state: the amount a player may still
// collect (or gamble) and whether collection is currently allowed.
func (l *CreditLedger) SetPending(ctx context.Context, player string, amount decimal.Decimal, flag bool) error {
	return l.mutate(ctx, player, func(state *UserBalanceState) error {
		state.PendingWinnings = amount
		state.CanDoubleUp = flag
		return nil
	})
}

// Collect moves pending winnings into the balance and clears the flag. It
// fails with NoPendingFunds when nothing is collectable, leaving the record
// untouched, so a duplicate collect cannot pay twice.
func (l *CreditLedger) Collect(ctx context.Context, player string) (decimal.Decimal, error) {
	var moved decimal.Decimal

	err := l.mutate(ctx, player, func(state *UserBalanceState) error {
		if !state.CanDoubleUp {
			return apperrors.New(apperrors.ErrNoPendingFunds, "no pending winnings to collect")
		}
		moved = state.PendingWinnings
		state.Credit = state.Credit.Add(moved)
		if state.Credit.IsNegative() {
			state.Credit = decimal.Zero
		}
		state.PendingWinnings = decimal.Zero
		state.CanDoubleUp = false
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}

	l.logger.Info().
		Str("player", player).
		Str("amount", moved.String()).
		Msg("Pending winnings collected")

	return moved, nil
}

// mutate runs a read-modify-write of the balance record under CAS
func (l *CreditLedger) mutate(ctx context.Context, player string, fn func(*UserBalanceState) error) error {
	err := l.store.UpdateJSON(ctx, l.key(player), 0, func(current []byte) (interface{}, error) {
		state := NewUserBalanceState()
		if current != nil {
			if err := json.Unmarshal(current, state); err != nil {
				return nil, fmt.Errorf("failed to unmarshal balance record: %w", err)
			}
		}
		if err := fn(state); err != nil {
			return nil, err
		}
		return state, nil
	})
	if err != nil {
		if apperrors.IsAppError(err) {
			return err
		}
		return apperrors.Wrap(err, apperrors.ErrStoreError, "failed to update balance record")
	}
	return nil
}
