package game

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	mathrand "math/rand"
	"strconv"
	"sync"
	"time"
)

// digestCharsPerReel is the slice of hex characters consumed per reel index.
// HMAC-SHA256 yields 64 hex characters, so the 30 needed for three reels are
// always in bounds.
const digestCharsPerReel = 10

// FairnessEngine derives provably fair spin outcomes. The center symbol of
// each reel is a pure function of (serverSeed, clientSeed, nonce); the
// decorative top/bottom rows carry no fairness guarantee and are drawn from a
// plain PRNG.
type FairnessEngine struct {
	paytable []SymbolConfig

	mu    sync.Mutex
	decor *mathrand.Rand
}

// NewFairnessEngine creates an engine for the given symbol table
func NewFairnessEngine(paytable []SymbolConfig) *FairnessEngine {
	return &FairnessEngine{
		paytable: paytable,
		decor:    mathrand.New(mathrand.NewSource(time.Now().UnixNano())),
	}
}

// NewServerSeed generates a fresh 32-byte server seed, hex encoded
func NewServerSeed() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate server seed: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// SeedHash returns the public commitment for a server seed. Publishing the
// hash before play lets players audit fairness after the seed is revealed.
func SeedHash(serverSeed string) string {
	sum := sha256.Sum256([]byte(serverSeed))
	return hex.EncodeToString(sum[:])
}

// Derive computes the keyed digest for one spin:
// hex(HMAC-SHA256(key=serverSeed, msg="clientSeed:nonce"))
func (e *FairnessEngine) Derive(serverSeed, clientSeed string, nonce int64) string {
	mac := hmac.New(sha256.New, []byte(serverSeed))
	mac.Write([]byte(clientSeed + ":" + strconv.FormatInt(nonce, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

// CenterSymbols maps the digest to the three payout-relevant center symbols.
// Reel i consumes digest[i*10:(i+1)*10] parsed as a base-16 integer, reduced
// modulo 100 and mapped through the cumulative probability table.
func (e *FairnessEngine) CenterSymbols(digest string) ([ReelCount]int, error) {
	var centers [ReelCount]int

	if len(digest) < ReelCount*digestCharsPerReel {
		return centers, fmt.Errorf("digest too short: %d hex chars, need %d", len(digest), ReelCount*digestCharsPerReel)
	}

	for reel := 0; reel < ReelCount; reel++ {
		slice := digest[reel*digestCharsPerReel : (reel+1)*digestCharsPerReel]
		n, err := strconv.ParseInt(slice, 16, 64)
		if err != nil {
			return centers, fmt.Errorf("failed to parse digest slice %q: %w", slice, err)
		}
		centers[reel] = e.symbolFromValue(int(n % 100))
	}

	return centers, nil
}

// SymbolsFromDigest builds the full 3x3 board: deterministic centers plus
// decorative top/bottom rows.
func (e *FairnessEngine) SymbolsFromDigest(digest string) ([ReelCount][RowCount]int, error) {
	var board [ReelCount][RowCount]int

	centers, err := e.CenterSymbols(digest)
	if err != nil {
		return board, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for reel := 0; reel < ReelCount; reel++ {
		board[reel][0] = e.symbolFromValue(e.decor.Intn(100))
		board[reel][CenterRow] = centers[reel]
		board[reel][2] = e.symbolFromValue(e.decor.Intn(100))
	}

	return board, nil
}

// Verify re-derives the digest and compares the claimed center symbols. Only
// centers matter: decorative rows are not reproducible. A mismatch signals
// tampering or a bug.
func (e *FairnessEngine) Verify(serverSeed, clientSeed string, nonce int64, claimedCenters [ReelCount]int) bool {
	centers, err := e.CenterSymbols(e.Derive(serverSeed, clientSeed, nonce))
	if err != nil {
		return false
	}
	return centers == claimedCenters
}

// symbolFromValue maps a 0-99 value through the cumulative threshold table
func (e *FairnessEngine) symbolFromValue(v int) int {
	for _, sym := range e.paytable {
		if v < sym.Threshold {
			return sym.ID
		}
	}
	// Table ends at threshold 100, so this is unreachable for valid tables.
	return e.paytable[len(e.paytable)-1].ID
}
