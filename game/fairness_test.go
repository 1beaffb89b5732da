package game

import (
	"strings"
	"testing"
)

func TestDeriveIsDeterministic(t *testing.T) {
	engine := NewFairnessEngine(DefaultPaytable())

	seed, err := NewServerSeed()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for nonce := int64(0); nonce < 50; nonce++ {
		first := engine.Derive(seed, "client-seed", nonce)
		second := engine.Derive(seed, "client-seed", nonce)
		if first != second {
			t.Fatalf("digest not deterministic at nonce %d: %s != %s", nonce, first, second)
		}
		if len(first) != 64 {
			t.Fatalf("expected 64 hex chars, got %d", len(first))
		}

		firstCenters, err := engine.CenterSymbols(first)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		secondCenters, err := engine.CenterSymbols(second)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if firstCenters != secondCenters {
			t.Fatalf("center symbols not deterministic at nonce %d", nonce)
		}
	}
}

func TestCenterSymbolsThresholdMapping(t *testing.T) {
	engine := NewFairnessEngine(DefaultPaytable())

	// Each reel consumes 10 hex chars; the parsed value is reduced mod 100.
	tests := []struct {
		name   string
		digest string
		want   [ReelCount]int
	}{
		{
			name:   "all zero values map to most common symbol",
			digest: strings.Repeat("0", 30),
			want:   [ReelCount]int{0, 0, 0},
		},
		{
			name: "threshold boundaries",
			// 0x22 = 34 -> symbol 0, 0x23 = 35 -> symbol 1, 0x63 = 99 -> symbol 6
			digest: "0000000022" + "0000000023" + "0000000063",
			want:   [ReelCount]int{0, 1, 6},
		},
		{
			name: "mid-table values",
			// 0x3b = 59 -> symbol 1, 0x3c = 60 -> symbol 2, 0x55 = 85 -> symbol 4
			digest: "000000003b" + "000000003c" + "0000000055",
			want:   [ReelCount]int{1, 2, 4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := engine.CenterSymbols(tt.digest)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestCenterSymbolsRejectsShortDigest(t *testing.T) {
	engine := NewFairnessEngine(DefaultPaytable())

	if _, err := engine.CenterSymbols(strings.Repeat("a", 29)); err == nil {
		t.Error("expected error for 29-char digest")
	}
	if _, err := engine.CenterSymbols(""); err == nil {
		t.Error("expected error for empty digest")
	}
	// Exactly 30 chars is the minimum usable digest.
	if _, err := engine.CenterSymbols(strings.Repeat("a", 30)); err != nil {
		t.Errorf("unexpected error for 30-char digest: %v", err)
	}
}

func TestSymbolsFromDigestKeepsCenterRow(t *testing.T) {
	engine := NewFairnessEngine(DefaultPaytable())
	digest := engine.Derive("seed", "client", 7)

	centers, err := engine.CenterSymbols(digest)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 0; i < 10; i++ {
		board, err := engine.SymbolsFromDigest(digest)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for reel := 0; reel < ReelCount; reel++ {
			if board[reel][CenterRow] != centers[reel] {
				t.Fatalf("center row diverged from derived symbols on reel %d", reel)
			}
			for row := 0; row < RowCount; row++ {
				if board[reel][row] < 0 || board[reel][row] > 6 {
					t.Fatalf("symbol out of range: %d", board[reel][row])
				}
			}
		}
	}
}

func TestVerify(t *testing.T) {
	engine := NewFairnessEngine(DefaultPaytable())

	seed, err := NewServerSeed()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	clientSeed := "player-chosen-entropy"
	nonce := int64(42)

	centers, err := engine.CenterSymbols(engine.Derive(seed, clientSeed, nonce))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !engine.Verify(seed, clientSeed, nonce, centers) {
		t.Fatal("expected verification of genuine outcome to succeed")
	}

	tampered := centers
	tampered[0] = (tampered[0] + 1) % 7

	tests := []struct {
		name       string
		serverSeed string
		clientSeed string
		nonce      int64
		claimed    [ReelCount]int
	}{
		{"altered server seed", seed + "00", clientSeed, nonce, centers},
		{"altered client seed", seed, clientSeed + "x", nonce, centers},
		{"altered nonce", seed, clientSeed, nonce + 1, centers},
		{"altered symbols", seed, clientSeed, nonce, tampered},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if engine.Verify(tt.serverSeed, tt.clientSeed, tt.nonce, tt.claimed) {
				t.Error("expected verification to fail")
			}
		})
	}
}

func TestSeedHashCommitment(t *testing.T) {
	seed, err := NewServerSeed()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(seed) != 64 {
		t.Errorf("expected 64 hex chars of seed, got %d", len(seed))
	}
	if SeedHash(seed) != SeedHash(seed) {
		t.Error("seed hash must be stable")
	}
	if SeedHash(seed) == SeedHash(seed+"0") {
		t.Error("different seeds must not share a commitment")
	}

	other, err := NewServerSeed()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seed == other {
		t.Error("consecutive seeds must differ")
	}
}
