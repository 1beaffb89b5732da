package ton

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	storage "github.com/aiandyou50/CandleSpinner-sub000/db/redis"
	apperrors "github.com/aiandyou50/CandleSpinner-sub000/errors"
	"github.com/rs/zerolog"
)

const sequenceKeyPrefix = "sequence:"

// Store is the durable-map surface the ledger pipeline needs
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	GetJSON(ctx context.Context, key string, dest interface{}) error
	SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	UpdateJSON(ctx context.Context, key string, expiration time.Duration, fn func(current []byte) (interface{}, error)) error
}

// SequenceSource reads the network's view of an account's sequence counter
type SequenceSource interface {
	GetSequence(ctx context.Context, account string) (int64, error)
}

// SequenceReconciler issues on-chain sequence numbers for custody accounts.
// The durable value is a ratchet: it never moves backward, even when the
// network's view lags a transaction still propagating. Issuance is
// serialized per account, so two concurrent settlements cannot observe the
// same base and double-issue a number.
type SequenceReconciler struct {
	store       Store
	source      SequenceSource
	logger      zerolog.Logger
	maxAttempts int
	baseDelay   time.Duration

	mu       sync.Mutex
	accounts map[string]*sync.Mutex
}

// NewSequenceReconciler creates a sequence reconciler
func NewSequenceReconciler(store Store, source SequenceSource, maxAttempts int, baseDelay time.Duration, logger zerolog.Logger) *SequenceReconciler {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if baseDelay <= 0 {
		baseDelay = 200 * time.Millisecond
	}
	return &SequenceReconciler{
		store:       store,
		source:      source,
		logger:      logger.With().Str("component", "sequence_reconciler").Logger(),
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		accounts:    make(map[string]*sync.Mutex),
	}
}

func (r *SequenceReconciler) lockFor(account string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.accounts[account]
	if !ok {
		lock = &sync.Mutex{}
		r.accounts[account] = lock
	}
	return lock
}

// Next returns the next usable sequence number for the account. The value is
// persisted before it is returned, so a crash between issuance and submission
// burns the number instead of reusing it.
func (r *SequenceReconciler) Next(ctx context.Context, account string) (int64, error) {
	lock := r.lockFor(account)
	lock.Lock()
	defer lock.Unlock()

	network, err := r.networkSequence(ctx, account)
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrSequenceError, "failed to read network sequence")
	}

	local, err := r.localSequence(ctx, account)
	if err != nil {
		return 0, err
	}

	base := local
	if network > base {
		base = network
	}
	next := base + 1

	if err := r.store.Set(ctx, sequenceKeyPrefix+account, next, 0); err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrSequenceError, "failed to persist sequence")
	}

	r.logger.Debug().
		Str("account", account).
		Int64("local", local).
		Int64("network", network).
		Int64("next", next).
		Msg("Sequence issued")

	return next, nil
}

// Reset forcibly resynchronizes the durable value to the network's observed
// value. Operator-invoked recovery only; nothing calls this automatically.
func (r *SequenceReconciler) Reset(ctx context.Context, account string) (int64, error) {
	lock := r.lockFor(account)
	lock.Lock()
	defer lock.Unlock()

	network, err := r.networkSequence(ctx, account)
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrSequenceError, "failed to read network sequence")
	}
	if err := r.store.Set(ctx, sequenceKeyPrefix+account, network, 0); err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrSequenceError, "failed to persist sequence")
	}

	r.logger.Warn().
		Str("account", account).
		Int64("sequence", network).
		Msg("Sequence forcibly resynchronized to network value")

	return network, nil
}

func (r *SequenceReconciler) localSequence(ctx context.Context, account string) (int64, error) {
	raw, err := r.store.Get(ctx, sequenceKeyPrefix+account)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return 0, nil
		}
		return 0, apperrors.Wrap(err, apperrors.ErrSequenceError, "failed to read local sequence")
	}
	local, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apperrors.NewWithDebug(apperrors.ErrSequenceError, "corrupt local sequence value", fmt.Sprintf("value %q: %v", raw, err))
	}
	return local, nil
}

// networkSequence reads the network view with a bounded backoff loop of its
// own, on top of the RPC client's internal retry.
func (r *SequenceReconciler) networkSequence(ctx context.Context, account string) (int64, error) {
	delay := r.baseDelay
	var lastErr error

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		seqno, err := r.source.GetSequence(ctx, account)
		if err == nil {
			return seqno, nil
		}
		lastErr = err
		if attempt == r.maxAttempts {
			break
		}

		r.logger.Warn().
			Err(err).
			Str("account", account).
			Int("attempt", attempt).
			Msg("Network sequence read failed, backing off")

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	return 0, lastErr
}
