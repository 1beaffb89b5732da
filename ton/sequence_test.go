package ton

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "github.com/aiandyou50/CandleSpinner-sub000/errors"
	"github.com/rs/zerolog"
)

// fakeSource is a scriptable network sequence view
type fakeSource struct {
	seqno    int64
	failures int
	calls    int
}

func (f *fakeSource) GetSequence(ctx context.Context, account string) (int64, error) {
	f.calls++
	if f.failures > 0 {
		f.failures--
		return 0, errors.New("connection reset")
	}
	return f.seqno, nil
}

func newTestReconciler(store Store, source SequenceSource) *SequenceReconciler {
	return NewSequenceReconciler(store, source, 3, time.Millisecond, zerolog.Nop())
}

func TestNextIsStrictlyMonotonic(t *testing.T) {
	ctx := context.Background()
	source := &fakeSource{seqno: 5}
	rec := newTestReconciler(newMemStore(), source)

	prev := int64(0)
	for i := 0; i < 5; i++ {
		next, err := rec.Next(ctx, "EQcustody")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if next <= prev {
			t.Fatalf("sequence must be strictly increasing: got %d after %d", next, prev)
		}
		if next <= source.seqno {
			t.Fatalf("sequence %d not above network value %d", next, source.seqno)
		}
		prev = next
	}

	// First call takes the network base 5, later ones ride the local ratchet.
	if prev != 10 {
		t.Errorf("expected 10 after five issuances from base 5, got %d", prev)
	}
}

func TestNextRatchetsOverLaggingNetwork(t *testing.T) {
	ctx := context.Background()
	source := &fakeSource{seqno: 8}
	rec := newTestReconciler(newMemStore(), source)

	first, err := rec.Next(ctx, "EQcustody")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != 9 {
		t.Fatalf("expected 9, got %d", first)
	}

	// The network still reports 8 while the submitted transaction
	// propagates; the durable ratchet must win.
	second, err := rec.Next(ctx, "EQcustody")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second != 10 {
		t.Errorf("expected 10, got %d", second)
	}
}

func TestNextFollowsNetworkJumps(t *testing.T) {
	ctx := context.Background()
	source := &fakeSource{seqno: 2}
	rec := newTestReconciler(newMemStore(), source)

	if _, err := rec.Next(ctx, "EQcustody"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Another submitter advanced the account past our ratchet.
	source.seqno = 20
	next, err := rec.Next(ctx, "EQcustody")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next != 21 {
		t.Errorf("expected 21, got %d", next)
	}
}

func TestNextRetriesTransientReadFailures(t *testing.T) {
	ctx := context.Background()
	source := &fakeSource{seqno: 3, failures: 2}
	rec := newTestReconciler(newMemStore(), source)

	next, err := rec.Next(ctx, "EQcustody")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next != 4 {
		t.Errorf("expected 4, got %d", next)
	}
	if source.calls != 3 {
		t.Errorf("expected 3 read attempts, got %d", source.calls)
	}
}

func TestNextSurfacesExhaustedRetries(t *testing.T) {
	ctx := context.Background()
	source := &fakeSource{seqno: 3, failures: 10}
	rec := newTestReconciler(newMemStore(), source)

	_, err := rec.Next(ctx, "EQcustody")
	if err == nil {
		t.Fatal("expected error after exhausted retries")
	}
	if apperrors.GetCode(err) != apperrors.ErrSequenceError {
		t.Errorf("expected SequenceError, got code %d", apperrors.GetCode(err))
	}
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	source := &fakeSource{seqno: 2}
	store := newMemStore()
	rec := newTestReconciler(store, source)

	for i := 0; i < 4; i++ {
		if _, err := rec.Next(ctx, "EQcustody"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	source.seqno = 3
	got, err := rec.Reset(ctx, "EQcustody")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 3 {
		t.Fatalf("expected resync to network value 3, got %d", got)
	}

	next, err := rec.Next(ctx, "EQcustody")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next != 4 {
		t.Errorf("expected 4 after reset, got %d", next)
	}
}
