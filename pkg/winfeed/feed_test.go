package winfeed

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func testEvent(gameID string) WinEvent {
	return WinEvent{
		Player:   "alice",
		GameID:   gameID,
		TotalWin: decimal.NewFromInt(100),
		At:       time.Now().UTC(),
	}
}

func receive(t *testing.T, ch <-chan WinEvent) WinEvent {
	t.Helper()
	select {
	case event := <-ch:
		return event
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return WinEvent{}
	}
}

func TestBroadcasterDeliversToEveryListener(t *testing.T) {
	b := NewBroadcaster(4)
	ctx := context.Background()

	first, cancelFirst := b.Listen(ctx)
	defer cancelFirst()
	second, cancelSecond := b.Listen(ctx)
	defer cancelSecond()

	b.Send(testEvent("game-1"))

	if got := receive(t, first); got.GameID != "game-1" {
		t.Errorf("first listener got %q, want game-1", got.GameID)
	}
	if got := receive(t, second); got.GameID != "game-1" {
		t.Errorf("second listener got %q, want game-1", got.GameID)
	}
}

func TestBroadcasterCancelUnregisters(t *testing.T) {
	b := NewBroadcaster(4)

	ch, cancel := b.Listen(context.Background())
	if b.Len() != 1 {
		t.Fatalf("expected 1 listener, got %d", b.Len())
	}

	cancel()

	deadline := time.After(time.Second)
	for b.Len() != 0 {
		select {
		case <-deadline:
			t.Fatal("listener not unregistered after cancel")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if _, ok := <-ch; ok {
		t.Error("expected channel closed after cancel")
	}

	// Publishing with no listeners must not block or panic.
	b.Send(testEvent("game-2"))
}

func TestBroadcasterSlowListenerDoesNotBlockPeers(t *testing.T) {
	b := NewBroadcaster(1)
	ctx := context.Background()

	slow, cancelSlow := b.Listen(ctx)
	defer cancelSlow()
	fast, cancelFast := b.Listen(ctx)
	defer cancelFast()

	// The slow listener never drains, so its buffer stays full after the
	// first event. The fast listener keeps receiving regardless.
	b.Send(testEvent("game-1"))
	if got := receive(t, fast); got.GameID != "game-1" {
		t.Errorf("fast listener got %q, want game-1", got.GameID)
	}

	b.Send(testEvent("game-2"))
	if got := receive(t, fast); got.GameID != "game-2" {
		t.Errorf("fast listener got %q, want game-2", got.GameID)
	}

	// The first event is still intact for the slow listener; game-2 was
	// dropped for it alone.
	if got := receive(t, slow); got.GameID != "game-1" {
		t.Errorf("slow listener got %q, want game-1", got.GameID)
	}
}
