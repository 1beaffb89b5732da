package server

import (
	"context"
	"time"

	apperrors "github.com/aiandyou50/CandleSpinner-sub000/errors"
	"github.com/aiandyou50/CandleSpinner-sub000/events/kafka"
	"github.com/aiandyou50/CandleSpinner-sub000/game"
	"github.com/aiandyou50/CandleSpinner-sub000/pkg/winfeed"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Publisher emits game events. Implemented by the Kafka producer; nil
// disables eventing.
type Publisher interface {
	SendMessage(topic string, key string, value interface{}) error
}

// SpinService runs the full spin flow: fairness derivation, payout,
// balance mutation and outcome recording. The derived outcome is final the
// moment it is recorded; nothing downstream can change it.
type SpinService struct {
	fairness *game.FairnessEngine
	payout   *game.PayoutEngine
	ledger   *game.CreditLedger
	seeds    *game.SeedStore
	records  *game.RecordStore
	stats    *game.StatsRecorder
	minWager decimal.Decimal
	maxWager decimal.Decimal
	producer Publisher
	feed     *winfeed.Broadcaster
	logger   zerolog.Logger
}

// SpinServiceConfig holds spin service wiring
type SpinServiceConfig struct {
	Fairness *game.FairnessEngine
	Payout   *game.PayoutEngine
	Ledger   *game.CreditLedger
	Seeds    *game.SeedStore
	Records  *game.RecordStore
	Stats    *game.StatsRecorder
	MinWager decimal.Decimal
	MaxWager decimal.Decimal
	Producer Publisher
	Feed     *winfeed.Broadcaster
	Logger   zerolog.Logger
}

// NewSpinService creates a spin service
func NewSpinService(cfg SpinServiceConfig) *SpinService {
	return &SpinService{
		fairness: cfg.Fairness,
		payout:   cfg.Payout,
		ledger:   cfg.Ledger,
		seeds:    cfg.Seeds,
		records:  cfg.Records,
		stats:    cfg.Stats,
		minWager: cfg.MinWager,
		maxWager: cfg.MaxWager,
		producer: cfg.Producer,
		feed:     cfg.Feed,
		logger:   cfg.Logger.With().Str("component", "spin_service").Logger(),
	}
}

// SpinRequest is one inbound spin
type SpinRequest struct {
	Player     string          `json:"player" binding:"required"`
	Wager      decimal.Decimal `json:"wager" binding:"required"`
	ClientSeed string          `json:"clientSeed" binding:"required"`
}

// SpinResponse summarizes a settled spin
type SpinResponse struct {
	GameID         string                             `json:"gameId"`
	Symbols        [game.ReelCount][game.RowCount]int `json:"symbols"`
	TotalWin       decimal.Decimal                    `json:"totalWin"`
	IsJackpot      bool                               `json:"isJackpot"`
	PerReelPayout  [game.ReelCount]decimal.Decimal    `json:"perReelPayout"`
	SeedHashPublic string                             `json:"seedHashPublic"`
	Nonce          int64                              `json:"nonce"`
	NewBalance     decimal.Decimal                    `json:"newBalance"`
}

// Spin settles one wager. The wager is debited up front; winnings land in
// the pending-collect state so the player can collect (or gamble) them in a
// second step. Any still-pending winnings are collected implicitly first so
// a spin never silently discards them.
func (s *SpinService) Spin(ctx context.Context, req SpinRequest) (*SpinResponse, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}

	state, err := s.ledger.Get(ctx, req.Player)
	if err != nil {
		return nil, err
	}
	if state.CanDoubleUp {
		if _, err := s.ledger.Collect(ctx, req.Player); err != nil {
			return nil, err
		}
		state, err = s.ledger.Get(ctx, req.Player)
		if err != nil {
			return nil, err
		}
	}
	if state.Credit.LessThan(req.Wager) {
		return nil, apperrors.New(apperrors.ErrInsufficientFunds, "balance below requested wager")
	}

	serverSeed, err := s.seeds.Current(ctx, req.Player)
	if err != nil {
		return nil, err
	}
	nonce, err := s.seeds.NextNonce(ctx, req.Player)
	if err != nil {
		return nil, err
	}

	digest := s.fairness.Derive(serverSeed, req.ClientSeed, nonce)
	board, err := s.fairness.SymbolsFromDigest(digest)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrFairnessViolation, "failed to derive symbols")
	}

	var centers [game.ReelCount]int
	for reel := 0; reel < game.ReelCount; reel++ {
		centers[reel] = board[reel][game.CenterRow]
	}
	result := s.payout.Calculate(centers, req.Wager)

	newBalance, err := s.ledger.ApplyDelta(ctx, req.Player, req.Wager.Neg())
	if err != nil {
		return nil, err
	}
	if err := s.ledger.SetPending(ctx, req.Player, result.TotalWin, result.TotalWin.IsPositive()); err != nil {
		return nil, err
	}

	gameID := uuid.NewString()
	record := &game.OutcomeRecord{
		GameID:        gameID,
		Player:        req.Player,
		Wager:         req.Wager,
		Symbols:       board,
		PerReelPayout: result.PerReelPayout,
		TotalWin:      result.TotalWin,
		IsJackpot:     result.IsJackpot,
		Balance:       newBalance,
		SeedHash:      game.SeedHash(serverSeed),
		ClientSeed:    req.ClientSeed,
		Nonce:         nonce,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.records.Save(ctx, record); err != nil {
		return nil, err
	}
	if err := s.stats.RecordSpin(ctx, record.CreatedAt, req.Wager, result.TotalWin); err != nil {
		s.logger.Error().Err(err).Str("game_id", gameID).Msg("Failed to record RTP stats")
	}

	s.announce(record)

	s.logger.Info().
		Str("player", req.Player).
		Str("game_id", gameID).
		Str("wager", req.Wager.String()).
		Str("total_win", result.TotalWin.String()).
		Bool("is_jackpot", result.IsJackpot).
		Int64("nonce", nonce).
		Msg("Spin settled")

	return &SpinResponse{
		GameID:         gameID,
		Symbols:        board,
		TotalWin:       result.TotalWin,
		IsJackpot:      result.IsJackpot,
		PerReelPayout:  result.PerReelPayout,
		SeedHashPublic: record.SeedHash,
		Nonce:          nonce,
		NewBalance:     newBalance,
	}, nil
}

func (s *SpinService) validate(req SpinRequest) error {
	if req.Player == "" {
		return apperrors.New(apperrors.ErrInvalidRequest, "player is required")
	}
	if req.ClientSeed == "" {
		return apperrors.New(apperrors.ErrInvalidRequest, "clientSeed is required")
	}
	if !req.Wager.IsPositive() {
		return apperrors.New(apperrors.ErrInvalidRequest, "wager must be positive")
	}
	if req.Wager.LessThan(s.minWager) || req.Wager.GreaterThan(s.maxWager) {
		return apperrors.New(apperrors.ErrInvalidRequest, "wager outside allowed bounds")
	}
	return nil
}

func (s *SpinService) announce(record *game.OutcomeRecord) {
	if s.producer != nil {
		if err := s.producer.SendMessage(kafka.TopicSpinSettled, record.Player, record); err != nil {
			s.logger.Error().Err(err).Str("game_id", record.GameID).Msg("Failed to publish spin event")
		}
	}
	if s.feed != nil && record.TotalWin.IsPositive() {
		s.feed.Send(winfeed.WinEvent{
			Player:    record.Player,
			GameID:    record.GameID,
			TotalWin:  record.TotalWin,
			IsJackpot: record.IsJackpot,
			At:        record.CreatedAt,
		})
	}
}

// CollectResponse reports a finished collect
type CollectResponse struct {
	Collected  decimal.Decimal `json:"collected"`
	NewBalance decimal.Decimal `json:"newBalance"`
}

// Collect moves pending winnings into the balance
func (s *SpinService) Collect(ctx context.Context, player string) (*CollectResponse, error) {
	if player == "" {
		return nil, apperrors.New(apperrors.ErrInvalidRequest, "player is required")
	}

	moved, err := s.ledger.Collect(ctx, player)
	if err != nil {
		return nil, err
	}
	state, err := s.ledger.Get(ctx, player)
	if err != nil {
		return nil, err
	}

	return &CollectResponse{
		Collected:  moved,
		NewBalance: state.Credit,
	}, nil
}

// RevealResponse carries a rotated seed back to the player for auditing
type RevealResponse struct {
	RevealedServerSeed string `json:"revealedServerSeed"`
	NewSeedHash        string `json:"newSeedHash"`
}

// Reveal rotates the player's server seed and discloses the superseded one
func (s *SpinService) Reveal(ctx context.Context, player string) (*RevealResponse, error) {
	if player == "" {
		return nil, apperrors.New(apperrors.ErrInvalidRequest, "player is required")
	}

	revealed, newHash, err := s.seeds.Rotate(ctx, player)
	if err != nil {
		return nil, err
	}
	return &RevealResponse{
		RevealedServerSeed: revealed,
		NewSeedHash:        newHash,
	}, nil
}

// VerifyRequest re-checks a past outcome against a revealed seed
type VerifyRequest struct {
	ServerSeed    string              `json:"serverSeed" binding:"required"`
	ClientSeed    string              `json:"clientSeed" binding:"required"`
	Nonce         int64               `json:"nonce"`
	CenterSymbols [game.ReelCount]int `json:"centerSymbols"`
}

// VerifyResponse reports a fairness audit result
type VerifyResponse struct {
	Valid         bool                `json:"valid"`
	SeedHash      string              `json:"seedHash"`
	CenterSymbols [game.ReelCount]int `json:"centerSymbols"`
}

// Verify re-derives an outcome from a revealed seed and compares it against
// the claimed center symbols.
func (s *SpinService) Verify(req VerifyRequest) (*VerifyResponse, error) {
	centers, err := s.fairness.CenterSymbols(s.fairness.Derive(req.ServerSeed, req.ClientSeed, req.Nonce))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInvalidRequest, "failed to derive outcome")
	}

	return &VerifyResponse{
		Valid:         s.fairness.Verify(req.ServerSeed, req.ClientSeed, req.Nonce, req.CenterSymbols),
		SeedHash:      game.SeedHash(req.ServerSeed),
		CenterSymbols: centers,
	}, nil
}

// Balance returns the player's balance record
func (s *SpinService) Balance(ctx context.Context, player string) (*game.UserBalanceState, error) {
	if player == "" {
		return nil, apperrors.New(apperrors.ErrInvalidRequest, "player is required")
	}
	return s.ledger.Get(ctx, player)
}

// Outcome returns a recorded spin by game ID
func (s *SpinService) Outcome(ctx context.Context, gameID string) (*game.OutcomeRecord, error) {
	if gameID == "" {
		return nil, apperrors.New(apperrors.ErrInvalidRequest, "gameId is required")
	}
	record, err := s.records.Get(ctx, gameID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrNotFound, "outcome record not found")
	}
	return record, nil
}
