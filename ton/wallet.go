package ton

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// opTokenTransfer tags the transfer envelope understood by the contract
// endpoint.
const opTokenTransfer uint32 = 0x0f8a7ea5

// messageTTL bounds how long a signed envelope stays submittable
const messageTTL = 5 * time.Minute

// Wallet signs outbound ledger messages with the custody key. The key is
// decoded lazily behind a single-flight guard; the wallet itself is built
// once at startup and passed to components explicitly, never reached through
// package state.
type Wallet struct {
	address string
	keyHex  string
	logger  zerolog.Logger

	once    sync.Once
	key     ed25519.PrivateKey
	initErr error
}

// WalletConfig holds custody wallet configuration
type WalletConfig struct {
	Address string
	KeyHex  string
	Logger  zerolog.Logger
}

// NewWallet creates a custody wallet. The key is not decoded until first use.
func NewWallet(cfg WalletConfig) *Wallet {
	return &Wallet{
		address: cfg.Address,
		keyHex:  cfg.KeyHex,
		logger:  cfg.Logger.With().Str("component", "custody-wallet").Logger(),
	}
}

// Address returns the custody account address
func (w *Wallet) Address() string {
	return w.address
}

func (w *Wallet) privateKey() (ed25519.PrivateKey, error) {
	w.once.Do(func() {
		seed, err := hex.DecodeString(w.keyHex)
		if err != nil {
			w.initErr = fmt.Errorf("failed to decode custody key: %w", err)
			return
		}
		if len(seed) != ed25519.SeedSize {
			w.initErr = fmt.Errorf("custody key must be %d bytes, got %d", ed25519.SeedSize, len(seed))
			return
		}
		w.key = ed25519.NewKeyFromSeed(seed)
		w.logger.Info().Str("address", w.address).Msg("Custody key loaded")
	})
	return w.key, w.initErr
}

// SignedMessage is a submit-ready ledger message envelope
type SignedMessage struct {
	Hash       string
	Boc        string
	Seqno      int64
	ValidUntil int64
}

// BuildTransfer constructs and signs a token-transfer envelope carrying the
// given sequence number. The envelope layout is the opaque wire format the
// contract endpoint accepts; only the signature and the sequence ratchet are
// our concern here.
func (w *Wallet) BuildTransfer(seqno int64, destination string, amount decimal.Decimal, comment string) (*SignedMessage, error) {
	key, err := w.privateKey()
	if err != nil {
		return nil, err
	}
	if destination == "" {
		return nil, fmt.Errorf("transfer destination must not be empty")
	}

	validUntil := time.Now().Add(messageTTL).Unix()

	var payload bytes.Buffer
	binary.Write(&payload, binary.BigEndian, opTokenTransfer)
	binary.Write(&payload, binary.BigEndian, uint64(seqno))
	binary.Write(&payload, binary.BigEndian, uint64(validUntil))
	writeChunk(&payload, []byte(destination))
	writeChunk(&payload, []byte(amount.String()))
	writeChunk(&payload, []byte(comment))

	signature := ed25519.Sign(key, payload.Bytes())
	envelope := append(payload.Bytes(), signature...)

	sum := sha256.Sum256(envelope)

	return &SignedMessage{
		Hash:       hex.EncodeToString(sum[:]),
		Boc:        base64.StdEncoding.EncodeToString(envelope),
		Seqno:      seqno,
		ValidUntil: validUntil,
	}, nil
}

func writeChunk(buf *bytes.Buffer, data []byte) {
	binary.Write(buf, binary.BigEndian, uint16(len(data)))
	buf.Write(data)
}
