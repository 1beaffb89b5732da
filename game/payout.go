package game

import (
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// PayoutResult holds the settlement of one spin
type PayoutResult struct {
	TotalWin      decimal.Decimal            `json:"totalWin"`
	IsJackpot     bool                       `json:"isJackpot"`
	PerReelPayout [ReelCount]decimal.Decimal `json:"perReelPayout"`
	CenterSymbols [ReelCount]int             `json:"centerSymbols"`
	Multiplier    int64                      `json:"multiplier"`
}

// PayoutEngine applies the paytable to derived center symbols
type PayoutEngine struct {
	paytable          []SymbolConfig
	rates             map[int]decimal.Decimal
	jackpotMultiplier int64
}

// NewPayoutEngine creates a payout engine. jackpotMultiplier is applied when
// all three center symbols match.
func NewPayoutEngine(paytable []SymbolConfig, jackpotMultiplier int64) *PayoutEngine {
	return &PayoutEngine{
		paytable: paytable,
		rates: lo.SliceToMap(paytable, func(s SymbolConfig) (int, decimal.Decimal) {
			return s.ID, s.Rate
		}),
		jackpotMultiplier: jackpotMultiplier,
	}
}

// Calculate computes per-reel and total payout for the given center symbols.
//
// Two passes: the first tallies symbol occurrences, the second applies
// per-reel amounts. The jackpot check needs the full triple, so a running
// fold cannot decide it. A symbol occurring on two or more reels pays
// wager x rate on every reel showing it; a lone symbol pays nothing. A full
// triple multiplies the total and every non-zero per-reel amount by the
// jackpot multiplier.
func (p *PayoutEngine) Calculate(centers [ReelCount]int, wager decimal.Decimal) PayoutResult {
	result := PayoutResult{
		CenterSymbols: centers,
		Multiplier:    1,
	}

	counts := lo.CountValues(centers[:])

	for reel, sym := range centers {
		if counts[sym] < 2 {
			result.PerReelPayout[reel] = decimal.Zero
			continue
		}
		amount := wager.Mul(p.rates[sym])
		result.PerReelPayout[reel] = amount
		result.TotalWin = result.TotalWin.Add(amount)
	}

	if centers[0] == centers[1] && centers[1] == centers[2] {
		result.IsJackpot = true
		result.Multiplier = p.jackpotMultiplier
		multiplier := decimal.NewFromInt(p.jackpotMultiplier)
		result.TotalWin = result.TotalWin.Mul(multiplier)
		for reel := range result.PerReelPayout {
			if !result.PerReelPayout[reel].IsZero() {
				result.PerReelPayout[reel] = result.PerReelPayout[reel].Mul(multiplier)
			}
		}
	}

	return result
}

// TheoreticalRTP returns the analytically computed return-to-player per unit
// wager: the probability-weighted sum of per-symbol payouts over three reels.
// A pair of symbol s (3 arrangements, two orderings each counted by the
// binomial term) pays 2 x rate; a triple pays 3 x rate x jackpot multiplier.
// Used only for offline auditing, never as an online control.
func (p *PayoutEngine) TheoreticalRTP() float64 {
	rtp := 0.0
	prev := 0
	for _, sym := range p.paytable {
		prob := float64(sym.Threshold-prev) / 100.0
		prev = sym.Threshold

		rate, _ := sym.Rate.Float64()
		pairReturn := 3 * prob * prob * (1 - prob) * 2 * rate
		tripleReturn := prob * prob * prob * 3 * rate * float64(p.jackpotMultiplier)
		rtp += pairReturn + tripleReturn
	}
	return rtp
}
