package server

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	storage "github.com/aiandyou50/CandleSpinner-sub000/db/redis"
	apperrors "github.com/aiandyou50/CandleSpinner-sub000/errors"
	"github.com/aiandyou50/CandleSpinner-sub000/game"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// memStore is an in-memory game.Store used by the package tests
type memStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string]string)}
}

func (m *memStore) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.data[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", storage.ErrNotFound, key)
	}
	return val, nil
}

func (m *memStore) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = fmt.Sprintf("%v", value)
	return nil
}

func (m *memStore) Incr(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, _ := strconv.ParseInt(m.data[key], 10, 64)
	cur++
	m.data[key] = strconv.FormatInt(cur, 10)
	return cur, nil
}

func (m *memStore) GetJSON(ctx context.Context, key string, dest interface{}) error {
	val, err := m.Get(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(val), dest)
}

func (m *memStore) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return m.Set(ctx, key, string(data), expiration)
}

func (m *memStore) UpdateJSON(ctx context.Context, key string, expiration time.Duration, fn func(current []byte) (interface{}, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var current []byte
	if val, ok := m.data[key]; ok {
		current = []byte(val)
	}
	next, err := fn(current)
	if err != nil {
		return err
	}
	data, err := json.Marshal(next)
	if err != nil {
		return err
	}
	m.data[key] = string(data)
	return nil
}

// capturePublisher records published events instead of talking to Kafka
type capturePublisher struct {
	mu       sync.Mutex
	messages []string
}

func (p *capturePublisher) SendMessage(topic string, key string, value interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, topic+"/"+key)
	return nil
}

func newSpinFixture(t *testing.T) (*SpinService, *game.CreditLedger, *capturePublisher) {
	t.Helper()

	store := newMemStore()
	logger := zerolog.Nop()
	paytable := game.DefaultPaytable()
	ledger := game.NewCreditLedger(store, logger)
	publisher := &capturePublisher{}

	svc := NewSpinService(SpinServiceConfig{
		Fairness: game.NewFairnessEngine(paytable),
		Payout:   game.NewPayoutEngine(paytable, 100),
		Ledger:   ledger,
		Seeds:    game.NewSeedStore(store, logger),
		Records:  game.NewRecordStore(store, time.Hour, logger),
		Stats:    game.NewStatsRecorder(store, logger),
		MinWager: decimal.NewFromInt(1),
		MaxWager: decimal.NewFromInt(1000),
		Producer: publisher,
		Logger:   logger,
	})
	return svc, ledger, publisher
}

func fund(t *testing.T, ledger *game.CreditLedger, player string, amount int64) {
	t.Helper()
	if _, err := ledger.ApplyDelta(context.Background(), player, decimal.NewFromInt(amount)); err != nil {
		t.Fatalf("failed to fund player: %v", err)
	}
}

func TestSpinDebitsWagerAndRecordsOutcome(t *testing.T) {
	svc, ledger, publisher := newSpinFixture(t)
	ctx := context.Background()
	fund(t, ledger, "alice", 500)

	resp, err := svc.Spin(ctx, SpinRequest{
		Player:     "alice",
		Wager:      decimal.NewFromInt(50),
		ClientSeed: "client-entropy",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !resp.NewBalance.Equal(decimal.NewFromInt(450)) {
		t.Errorf("expected balance 450 after debit, got %s", resp.NewBalance)
	}
	if resp.GameID == "" {
		t.Error("expected a game ID")
	}
	if resp.Nonce != 0 {
		t.Errorf("expected first nonce 0, got %d", resp.Nonce)
	}

	// The recorded outcome must match the response exactly.
	record, err := svc.Outcome(ctx, resp.GameID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record.Symbols != resp.Symbols {
		t.Error("recorded symbols differ from response")
	}
	if !record.TotalWin.Equal(resp.TotalWin) {
		t.Errorf("recorded win %s != response win %s", record.TotalWin, resp.TotalWin)
	}
	if record.SeedHash != resp.SeedHashPublic {
		t.Error("recorded seed hash differs from response")
	}

	// Winnings land in the pending state, not the balance.
	state, err := ledger.Get(ctx, "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !state.PendingWinnings.Equal(resp.TotalWin) {
		t.Errorf("pending winnings %s != total win %s", state.PendingWinnings, resp.TotalWin)
	}
	if state.CanDoubleUp != resp.TotalWin.IsPositive() {
		t.Errorf("CanDoubleUp %v inconsistent with win %s", state.CanDoubleUp, resp.TotalWin)
	}

	publisher.mu.Lock()
	defer publisher.mu.Unlock()
	if len(publisher.messages) != 1 {
		t.Errorf("expected 1 published event, got %d", len(publisher.messages))
	}
}

func TestSpinNonceAdvancesPerSpin(t *testing.T) {
	svc, ledger, _ := newSpinFixture(t)
	ctx := context.Background()
	fund(t, ledger, "alice", 1000)

	for want := int64(0); want < 3; want++ {
		resp, err := svc.Spin(ctx, SpinRequest{
			Player:     "alice",
			Wager:      decimal.NewFromInt(1),
			ClientSeed: "seed",
		})
		if err != nil {
			t.Fatalf("spin %d failed: %v", want, err)
		}
		if resp.Nonce != want {
			t.Errorf("expected nonce %d, got %d", want, resp.Nonce)
		}
	}
}

func TestSpinInsufficientFunds(t *testing.T) {
	svc, ledger, _ := newSpinFixture(t)
	ctx := context.Background()
	fund(t, ledger, "alice", 10)

	_, err := svc.Spin(ctx, SpinRequest{
		Player:     "alice",
		Wager:      decimal.NewFromInt(50),
		ClientSeed: "seed",
	})
	if err == nil {
		t.Fatal("expected error for wager above balance")
	}
	if apperrors.GetCode(err) != apperrors.ErrInsufficientFunds {
		t.Errorf("expected ErrInsufficientFunds, got %d", apperrors.GetCode(err))
	}

	// Balance untouched on rejection.
	state, err := ledger.Get(ctx, "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !state.Credit.Equal(decimal.NewFromInt(10)) {
		t.Errorf("expected balance 10, got %s", state.Credit)
	}
}

func TestSpinValidation(t *testing.T) {
	svc, ledger, _ := newSpinFixture(t)
	ctx := context.Background()
	fund(t, ledger, "alice", 1000)

	tests := []struct {
		name string
		req  SpinRequest
	}{
		{"missing player", SpinRequest{Wager: decimal.NewFromInt(10), ClientSeed: "s"}},
		{"missing client seed", SpinRequest{Player: "alice", Wager: decimal.NewFromInt(10)}},
		{"zero wager", SpinRequest{Player: "alice", ClientSeed: "s"}},
		{"negative wager", SpinRequest{Player: "alice", Wager: decimal.NewFromInt(-5), ClientSeed: "s"}},
		{"wager above maximum", SpinRequest{Player: "alice", Wager: decimal.NewFromInt(5000), ClientSeed: "s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Spin(ctx, tt.req)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if apperrors.GetCode(err) != apperrors.ErrInvalidRequest {
				t.Errorf("expected ErrInvalidRequest, got %d", apperrors.GetCode(err))
			}
		})
	}
}

func TestSpinAutoCollectsPendingWinnings(t *testing.T) {
	svc, ledger, _ := newSpinFixture(t)
	ctx := context.Background()
	fund(t, ledger, "alice", 100)

	// Leave winnings uncollected, as if the player spun again mid-gamble.
	if err := ledger.SetPending(ctx, "alice", decimal.NewFromInt(40), true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	resp, err := svc.Spin(ctx, SpinRequest{
		Player:     "alice",
		Wager:      decimal.NewFromInt(20),
		ClientSeed: "seed",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 100 + 40 collected - 20 wager = 120.
	if !resp.NewBalance.Equal(decimal.NewFromInt(120)) {
		t.Errorf("expected balance 120 after auto-collect, got %s", resp.NewBalance)
	}
}

func TestCollectMovesPendingIntoBalance(t *testing.T) {
	svc, ledger, _ := newSpinFixture(t)
	ctx := context.Background()
	fund(t, ledger, "alice", 100)
	if err := ledger.SetPending(ctx, "alice", decimal.NewFromInt(30), true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	resp, err := svc.Collect(ctx, "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.Collected.Equal(decimal.NewFromInt(30)) {
		t.Errorf("expected collected 30, got %s", resp.Collected)
	}
	if !resp.NewBalance.Equal(decimal.NewFromInt(130)) {
		t.Errorf("expected balance 130, got %s", resp.NewBalance)
	}
}

func TestRevealThenVerifyPastSpin(t *testing.T) {
	svc, ledger, _ := newSpinFixture(t)
	ctx := context.Background()
	fund(t, ledger, "alice", 100)

	spin, err := svc.Spin(ctx, SpinRequest{
		Player:     "alice",
		Wager:      decimal.NewFromInt(10),
		ClientSeed: "audit-me",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reveal, err := svc.Reveal(ctx, "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reveal.RevealedServerSeed == "" {
		t.Fatal("expected a revealed seed")
	}
	if game.SeedHash(reveal.RevealedServerSeed) != spin.SeedHashPublic {
		t.Error("revealed seed does not hash to the published commitment")
	}

	var centers [game.ReelCount]int
	for reel := 0; reel < game.ReelCount; reel++ {
		centers[reel] = spin.Symbols[reel][game.CenterRow]
	}

	verify, err := svc.Verify(VerifyRequest{
		ServerSeed:    reveal.RevealedServerSeed,
		ClientSeed:    "audit-me",
		Nonce:         spin.Nonce,
		CenterSymbols: centers,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !verify.Valid {
		t.Error("expected the recorded outcome to verify against the revealed seed")
	}

	// A tampered claim must not verify.
	tampered := centers
	tampered[0] = (tampered[0] + 1) % 7
	verify, err = svc.Verify(VerifyRequest{
		ServerSeed:    reveal.RevealedServerSeed,
		ClientSeed:    "audit-me",
		Nonce:         spin.Nonce,
		CenterSymbols: tampered,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if verify.Valid {
		t.Error("tampered symbols must not verify")
	}
}

func TestOutcomeUnknownGameID(t *testing.T) {
	svc, _, _ := newSpinFixture(t)

	_, err := svc.Outcome(context.Background(), "no-such-game")
	if err == nil {
		t.Fatal("expected error for unknown game ID")
	}
	if apperrors.GetCode(err) != apperrors.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %d", apperrors.GetCode(err))
	}
}
