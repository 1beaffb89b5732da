package ton

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	storage "github.com/aiandyou50/CandleSpinner-sub000/db/redis"
	apperrors "github.com/aiandyou50/CandleSpinner-sub000/errors"
	"github.com/aiandyou50/CandleSpinner-sub000/game"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// State names one stage of the settlement pipeline
type State string

const (
	StateValidating           State = "validating"
	StateBuildingMessage      State = "building_message"
	StateSubmitting           State = "submitting"
	StateAwaitingConfirmation State = "awaiting_confirmation"
	StateRecording            State = "recording"
	StateDone                 State = "done"
	StateFailed               State = "failed"
)

// Mode selects the direction of an on-chain settlement
type Mode string

const (
	ModeDeposit    Mode = "deposit"
	ModeWithdrawal Mode = "withdrawal"
)

// Confirmation is the three-state poll outcome. A lapsed poll window is not
// a failure: the message may already be irreversibly included.
type Confirmation string

const (
	ConfirmationConfirmed   Confirmation = "confirmed"
	ConfirmationUnconfirmed Confirmation = "unconfirmed"
	ConfirmationRejected    Confirmation = "rejected"
)

const (
	settlementKeyPrefix   = "settlement:"
	unconfirmedIndexKey   = "settlement:unconfirmed"
	topicSettlementEvents = "settlement.recorded"
)

// Request is one inbound deposit or withdrawal
type Request struct {
	Player string          `json:"player"`
	Amount decimal.Decimal `json:"amount"`
	Mode   Mode            `json:"mode"`
}

// Result summarizes a finished settlement
type Result struct {
	ID                   string          `json:"id"`
	TransactionReference string          `json:"transactionReference,omitempty"`
	NewBalance           decimal.Decimal `json:"newBalance"`
	Confirmed            bool            `json:"confirmed"`
	Confirmation         Confirmation    `json:"confirmation"`
}

// LogEntry is the settlement log record. Status is the only field the
// reconciliation job may rewrite after creation; everything else is
// write-once.
type LogEntry struct {
	ID          string          `json:"id"`
	Player      string          `json:"player"`
	Mode        Mode            `json:"mode"`
	Amount      decimal.Decimal `json:"amount"`
	Destination string          `json:"destination"`
	MessageHash string          `json:"messageHash"`
	Seqno       int64           `json:"seqno"`
	Status      Confirmation    `json:"status"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// Limits bounds accepted settlement amounts per mode
type Limits struct {
	MinDeposit    decimal.Decimal
	MaxDeposit    decimal.Decimal
	MinWithdrawal decimal.Decimal
	MaxWithdrawal decimal.Decimal
}

// Publisher emits settlement events. Implemented by the Kafka producer;
// a nil Publisher disables eventing.
type Publisher interface {
	SendMessage(topic string, key string, value interface{}) error
}

// Orchestrator drives a deposit or withdrawal through the settlement state
// machine. Failed paths never touch the credit ledger; the ledger reflects a
// settlement only after submission succeeded or timed out unconfirmed.
type Orchestrator struct {
	ledger          *game.CreditLedger
	sequences       *SequenceReconciler
	rpc             *Client
	wallet          *Wallet
	store           Store
	limits          Limits
	contractAddress string
	pollInterval    time.Duration
	pollDeadline    time.Duration
	submitAttempts  int
	submitBaseDelay time.Duration
	producer        Publisher
	logger          zerolog.Logger
}

// OrchestratorConfig holds settlement orchestrator wiring
type OrchestratorConfig struct {
	Ledger          *game.CreditLedger
	Sequences       *SequenceReconciler
	RPC             *Client
	Wallet          *Wallet
	Store           Store
	Limits          Limits
	ContractAddress string
	PollInterval    time.Duration
	PollDeadline    time.Duration
	SubmitAttempts  int
	SubmitBaseDelay time.Duration
	Producer        Publisher
	Logger          zerolog.Logger
}

// NewOrchestrator creates a settlement orchestrator
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	pollDeadline := cfg.PollDeadline
	if pollDeadline <= 0 {
		pollDeadline = 30 * time.Second
	}
	submitAttempts := cfg.SubmitAttempts
	if submitAttempts <= 0 {
		submitAttempts = 3
	}
	submitBaseDelay := cfg.SubmitBaseDelay
	if submitBaseDelay <= 0 {
		submitBaseDelay = 500 * time.Millisecond
	}

	return &Orchestrator{
		ledger:          cfg.Ledger,
		sequences:       cfg.Sequences,
		rpc:             cfg.RPC,
		wallet:          cfg.Wallet,
		store:           cfg.Store,
		limits:          cfg.Limits,
		contractAddress: cfg.ContractAddress,
		pollInterval:    pollInterval,
		pollDeadline:    pollDeadline,
		submitAttempts:  submitAttempts,
		submitBaseDelay: submitBaseDelay,
		producer:        cfg.Producer,
		logger:          cfg.Logger.With().Str("component", "settlement_orchestrator").Logger(),
	}
}

// Settle runs one request through the state machine and returns the terminal
// result. All work completes within the caller's request lifetime; nothing
// is scheduled beyond it.
func (o *Orchestrator) Settle(ctx context.Context, req Request) (*Result, error) {
	id := uuid.NewString()
	logger := o.logger.With().
		Str("settlement_id", id).
		Str("player", req.Player).
		Str("mode", string(req.Mode)).
		Logger()

	var (
		state        = StateValidating
		destination  string
		msg          *SignedMessage
		hash         string
		confirmation Confirmation
	)

	for {
		logger.Debug().Str("state", string(state)).Msg("Settlement state entered")

		switch state {
		case StateValidating:
			if err := o.validate(ctx, req); err != nil {
				return nil, o.fail(logger, state, err)
			}
			state = StateBuildingMessage

		case StateBuildingMessage:
			seqno, err := o.sequences.Next(ctx, o.wallet.Address())
			if err != nil {
				return nil, o.fail(logger, state, err)
			}
			destination = o.destination(req)
			msg, err = o.wallet.BuildTransfer(seqno, destination, req.Amount, string(req.Mode)+":"+id)
			if err != nil {
				return nil, o.fail(logger, state, apperrors.Wrap(err, apperrors.ErrInternalServerError, "failed to build transfer message"))
			}
			state = StateSubmitting

		case StateSubmitting:
			var err error
			hash, err = o.submit(ctx, logger, msg)
			if err != nil {
				return nil, o.fail(logger, state, err)
			}
			state = StateAwaitingConfirmation

		case StateAwaitingConfirmation:
			status := o.awaitConfirmation(ctx, logger, destination, hash)
			switch {
			case status == nil:
				confirmation = ConfirmationUnconfirmed
				state = StateRecording
			case status.Success:
				confirmation = ConfirmationConfirmed
				state = StateRecording
			default:
				// The network included the message and the contract rejected
				// it; no funds moved, so the ledger stays untouched.
				confirmation = ConfirmationRejected
				o.writeLog(ctx, logger, o.entry(id, req, destination, msg, ConfirmationRejected))
				return nil, o.fail(logger, state, apperrors.NewWithDebug(
					apperrors.ErrLedgerApplication,
					"ledger rejected the settlement message",
					fmt.Sprintf("exit code %d", status.ExitCode),
				))
			}

		case StateRecording:
			entry := o.entry(id, req, destination, msg, confirmation)
			o.writeLog(ctx, logger, entry)

			newBalance, err := o.ledger.ApplyDelta(ctx, req.Player, o.delta(req))
			if err != nil {
				return nil, o.fail(logger, state, err)
			}
			if confirmation == ConfirmationUnconfirmed {
				if err := o.indexUnconfirmed(ctx, id); err != nil {
					logger.Error().Err(err).Msg("Failed to index unconfirmed settlement")
				}
			}
			o.publish(entry)

			logger.Info().
				Str("hash", hash).
				Str("confirmation", string(confirmation)).
				Str("new_balance", newBalance.String()).
				Msg("Settlement recorded")

			return &Result{
				ID:                   id,
				TransactionReference: hash,
				NewBalance:           newBalance,
				Confirmed:            confirmation == ConfirmationConfirmed,
				Confirmation:         confirmation,
			}, nil
		}
	}
}

func (o *Orchestrator) validate(ctx context.Context, req Request) error {
	if req.Player == "" {
		return apperrors.New(apperrors.ErrInvalidRequest, "player is required")
	}
	if !req.Amount.IsPositive() {
		return apperrors.New(apperrors.ErrInvalidRequest, "amount must be positive")
	}

	var min, max decimal.Decimal
	switch req.Mode {
	case ModeDeposit:
		min, max = o.limits.MinDeposit, o.limits.MaxDeposit
	case ModeWithdrawal:
		min, max = o.limits.MinWithdrawal, o.limits.MaxWithdrawal
	default:
		return apperrors.New(apperrors.ErrInvalidRequest, "unknown settlement mode")
	}
	if req.Amount.LessThan(min) || req.Amount.GreaterThan(max) {
		return apperrors.New(apperrors.ErrInvalidRequest,
			fmt.Sprintf("amount must be between %s and %s", min, max))
	}

	if req.Mode == ModeWithdrawal {
		state, err := o.ledger.Get(ctx, req.Player)
		if err != nil {
			return err
		}
		if state.Credit.LessThan(req.Amount) {
			return apperrors.New(apperrors.ErrInsufficientFunds, "balance below requested withdrawal")
		}
	}
	return nil
}

// destination picks the transfer counterparty: deposits top up the game
// contract, withdrawals pay out to the player's own address.
func (o *Orchestrator) destination(req Request) string {
	if req.Mode == ModeDeposit {
		return o.contractAddress
	}
	return req.Player
}

func (o *Orchestrator) delta(req Request) decimal.Decimal {
	if req.Mode == ModeDeposit {
		return req.Amount
	}
	return req.Amount.Neg()
}

// submit pushes the signed envelope with an explicit bounded retry loop.
// Only transport-class failures are retried; an application-level rejection
// will not change on resubmission.
func (o *Orchestrator) submit(ctx context.Context, logger zerolog.Logger, msg *SignedMessage) (string, error) {
	delay := o.submitBaseDelay
	var lastErr error

	for attempt := 1; attempt <= o.submitAttempts; attempt++ {
		hash, err := o.rpc.Submit(ctx, msg.Boc)
		if err == nil {
			if hash == "" {
				hash = msg.Hash
			}
			return hash, nil
		}
		lastErr = err

		var rpcErr *RPCError
		if errors.As(err, &rpcErr) && !rpcErr.Retryable() {
			return "", o.classifySubmitError(rpcErr)
		}
		if attempt == o.submitAttempts {
			break
		}

		logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("backoff", delay).
			Msg("Submission failed, backing off")

		select {
		case <-ctx.Done():
			return "", apperrors.Wrap(ctx.Err(), apperrors.ErrTransientNetwork, "cancelled during submission")
		case <-time.After(delay):
		}
		delay *= 2
	}

	return "", apperrors.Wrap(lastErr, apperrors.ErrTransientNetwork, "submission attempts exhausted")
}

func (o *Orchestrator) classifySubmitError(rpcErr *RPCError) error {
	msg := strings.ToLower(rpcErr.Message)
	if strings.Contains(msg, "duplicate") || strings.Contains(msg, "already applied") || strings.Contains(msg, "seqno") {
		return apperrors.Wrap(rpcErr, apperrors.ErrReplayedNonce, "sequence already consumed by the ledger")
	}
	return apperrors.Wrap(rpcErr, apperrors.ErrLedgerApplication, "ledger refused the message")
}

// awaitConfirmation polls the counterparty's recent activity on a fixed
// interval until the deadline. A nil return means the window lapsed without
// a definitive answer.
func (o *Orchestrator) awaitConfirmation(ctx context.Context, logger zerolog.Logger, account, hash string) *TransactionStatus {
	deadline := time.Now().Add(o.pollDeadline)

	for time.Now().Before(deadline) {
		status, err := o.rpc.GetStatus(ctx, account, hash)
		if err != nil {
			logger.Debug().Err(err).Msg("Status poll failed, will retry")
		} else if status != nil {
			return status
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(o.pollInterval):
		}
	}

	logger.Info().
		Str("hash", hash).
		Dur("window", o.pollDeadline).
		Msg("Confirmation window lapsed without a definitive status")
	return nil
}

func (o *Orchestrator) entry(id string, req Request, destination string, msg *SignedMessage, status Confirmation) *LogEntry {
	entry := &LogEntry{
		ID:          id,
		Player:      req.Player,
		Mode:        req.Mode,
		Amount:      req.Amount,
		Destination: destination,
		Status:      status,
		CreatedAt:   time.Now().UTC(),
	}
	if msg != nil {
		entry.MessageHash = msg.Hash
		entry.Seqno = msg.Seqno
	}
	return entry
}

func (o *Orchestrator) writeLog(ctx context.Context, logger zerolog.Logger, entry *LogEntry) {
	if err := o.store.SetJSON(ctx, settlementKeyPrefix+entry.ID, entry, 0); err != nil {
		logger.Error().Err(err).Msg("Failed to write settlement log entry")
	}
}

func (o *Orchestrator) indexUnconfirmed(ctx context.Context, id string) error {
	return o.store.UpdateJSON(ctx, unconfirmedIndexKey, 0, func(current []byte) (interface{}, error) {
		var ids []string
		if current != nil {
			if err := json.Unmarshal(current, &ids); err != nil {
				return nil, fmt.Errorf("failed to unmarshal unconfirmed index: %w", err)
			}
		}
		if lo.Contains(ids, id) {
			return ids, nil
		}
		return append(ids, id), nil
	})
}

func (o *Orchestrator) removeUnconfirmed(ctx context.Context, id string) error {
	return o.store.UpdateJSON(ctx, unconfirmedIndexKey, 0, func(current []byte) (interface{}, error) {
		var ids []string
		if current != nil {
			if err := json.Unmarshal(current, &ids); err != nil {
				return nil, fmt.Errorf("failed to unmarshal unconfirmed index: %w", err)
			}
		}
		return lo.Without(ids, id), nil
	})
}

func (o *Orchestrator) publish(entry *LogEntry) {
	if o.producer == nil {
		return
	}
	if err := o.producer.SendMessage(topicSettlementEvents, entry.Player, entry); err != nil {
		o.logger.Error().Err(err).Str("settlement_id", entry.ID).Msg("Failed to publish settlement event")
	}
}

func (o *Orchestrator) fail(logger zerolog.Logger, state State, err error) error {
	logger.Warn().
		Err(err).
		Str("state", string(state)).
		Bool("retryable", apperrors.IsRetryable(err)).
		Msg("Settlement failed")
	return err
}

// Reconcile finalizes settlements whose confirmation window lapsed. It is
// invoked by an external scheduler, never by an in-process timer: a still
// unknown status simply stays indexed for the next run. A rejection found
// here reverses the optimistic ledger delta that Recording applied.
func (o *Orchestrator) Reconcile(ctx context.Context) (int, error) {
	var ids []string
	if err := o.store.GetJSON(ctx, unconfirmedIndexKey, &ids); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return 0, nil
		}
		return 0, apperrors.Wrap(err, apperrors.ErrStoreError, "failed to read unconfirmed index")
	}

	resolved := 0
	for _, id := range ids {
		var entry LogEntry
		if err := o.store.GetJSON(ctx, settlementKeyPrefix+id, &entry); err != nil {
			o.logger.Error().Err(err).Str("settlement_id", id).Msg("Unconfirmed settlement has no log entry, dropping")
			if err := o.removeUnconfirmed(ctx, id); err != nil {
				o.logger.Error().Err(err).Str("settlement_id", id).Msg("Failed to drop settlement from index")
			}
			continue
		}

		status, err := o.rpc.GetStatus(ctx, entry.Destination, entry.MessageHash)
		if err != nil || status == nil {
			continue
		}

		if status.Success {
			entry.Status = ConfirmationConfirmed
		} else {
			entry.Status = ConfirmationRejected
			// Recording credited/debited optimistically; undo it.
			if _, err := o.ledger.ApplyDelta(ctx, entry.Player, o.delta(Request{Player: entry.Player, Amount: entry.Amount, Mode: entry.Mode}).Neg()); err != nil {
				o.logger.Error().Err(err).Str("settlement_id", id).Msg("Failed to reverse rejected settlement")
				continue
			}
		}

		o.writeLog(ctx, o.logger, &entry)
		if err := o.removeUnconfirmed(ctx, id); err != nil {
			o.logger.Error().Err(err).Str("settlement_id", id).Msg("Failed to remove settlement from index")
			continue
		}
		o.publish(&entry)
		resolved++

		o.logger.Info().
			Str("settlement_id", id).
			Str("status", string(entry.Status)).
			Msg("Settlement reconciled")
	}

	return resolved, nil
}
