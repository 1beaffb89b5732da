package game

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Board geometry. Only the center row is payout-relevant; top and bottom rows
// are decorative.
const (
	ReelCount = 3
	RowCount  = 3
	CenterRow = 1
)

// Store is the minimal durable-map surface the game components need. The
// backing store is a flat string-keyed map offering independent get/put per
// key plus per-key optimistic compare-and-swap; it provides no multi-key
// transactions.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Incr(ctx context.Context, key string) (int64, error)
	GetJSON(ctx context.Context, key string, dest interface{}) error
	SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	UpdateJSON(ctx context.Context, key string, expiration time.Duration, fn func(current []byte) (interface{}, error)) error
}

// SymbolConfig describes one reel symbol. Threshold is the upper bound
// (exclusive at 100) of the symbol's slice of the 0-99 digest value range;
// the table is ordered from most to least common. Rate is the per-reel payout
// multiple of the wager when the symbol participates in a win.
type SymbolConfig struct {
	ID        int             `json:"id"`
	Name      string          `json:"name"`
	Threshold int             `json:"threshold"`
	Rate      decimal.Decimal `json:"rate"`
}

// DefaultPaytable returns the candle-themed symbol table. Cumulative
// thresholds 35/60/75/85/92/97/100 give hit probabilities of
// 35/25/15/10/7/5/3 percent per reel.
func DefaultPaytable() []SymbolConfig {
	return []SymbolConfig{
		{ID: 0, Name: "green_candle", Threshold: 35, Rate: decimal.RequireFromString("0.02")},
		{ID: 1, Name: "red_candle", Threshold: 60, Rate: decimal.RequireFromString("0.05")},
		{ID: 2, Name: "doji", Threshold: 75, Rate: decimal.RequireFromString("0.1")},
		{ID: 3, Name: "hammer", Threshold: 85, Rate: decimal.RequireFromString("0.25")},
		{ID: 4, Name: "golden_cross", Threshold: 92, Rate: decimal.RequireFromString("0.75")},
		{ID: 5, Name: "whale", Threshold: 97, Rate: decimal.RequireFromString("2")},
		{ID: 6, Name: "moon", Threshold: 100, Rate: decimal.RequireFromString("5")},
	}
}

// UserBalanceState is the mutable per-player aggregate: off-chain credit plus
// the two-step collect state. Every mutation clamps credit at zero.
type UserBalanceState struct {
	Credit          decimal.Decimal `json:"credit"`
	CanDoubleUp     bool            `json:"canDoubleUp"`
	PendingWinnings decimal.Decimal `json:"pendingWinnings"`
}

// NewUserBalanceState returns a zeroed balance record
func NewUserBalanceState() *UserBalanceState {
	return &UserBalanceState{
		Credit:          decimal.Zero,
		PendingWinnings: decimal.Zero,
	}
}

// OutcomeRecord is the immutable record of one spin. Created once, retained
// for a bounded window, never mutated.
type OutcomeRecord struct {
	GameID        string                     `json:"gameId"`
	Player        string                     `json:"player"`
	Wager         decimal.Decimal            `json:"wager"`
	Symbols       [ReelCount][RowCount]int   `json:"symbols"`
	PerReelPayout [ReelCount]decimal.Decimal `json:"perReelPayout"`
	TotalWin      decimal.Decimal            `json:"totalWin"`
	IsJackpot     bool                       `json:"isJackpot"`
	Balance       decimal.Decimal            `json:"balance"`
	SeedHash      string                     `json:"seedHash"`
	ClientSeed    string                     `json:"clientSeed"`
	Nonce         int64                      `json:"nonce"`
	CreatedAt     time.Time                  `json:"createdAt"`
}

// RTPStats is the daily aggregate used for offline RTP auditing
type RTPStats struct {
	TotalGames int64           `json:"totalGames"`
	TotalBets  decimal.Decimal `json:"totalBets"`
	TotalWins  decimal.Decimal `json:"totalWins"`
	RTP        decimal.Decimal `json:"rtp"`
}
