package ton

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aiandyou50/CandleSpinner-sub000/httpclient"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ErrorKind classifies one failed RPC exchange
type ErrorKind int

const (
	// KindTransport covers connection errors, timeouts and HTTP-level
	// throttling. Retryable.
	KindTransport ErrorKind = iota
	// KindDecode covers responses that arrived but could not be parsed
	KindDecode
	// KindRPC covers well-formed error payloads from the RPC provider
	KindRPC
)

// RPCError is the classified failure of a single ledger RPC call
type RPCError struct {
	Kind    ErrorKind
	Code    int
	Message string
	Err     error
}

func (e *RPCError) Error() string {
	switch e.Kind {
	case KindTransport:
		return fmt.Sprintf("ledger rpc transport error (status %d): %s", e.Code, e.Message)
	case KindDecode:
		return fmt.Sprintf("ledger rpc decode error: %s", e.Message)
	default:
		return fmt.Sprintf("ledger rpc error %d: %s", e.Code, e.Message)
	}
}

func (e *RPCError) Unwrap() error { return e.Err }

// Retryable reports whether a backoff retry can plausibly help. Only
// transport failures and provider throttling qualify; application-level
// rejections will fail the same way again.
func (e *RPCError) Retryable() bool {
	if e.Kind == KindTransport {
		return true
	}
	return e.Kind == KindRPC && e.Code == 429
}

// Client talks to a TON-style JSON-RPC provider. Every exposed call is one
// logical request with bounded retry on retryable failures.
type Client struct {
	http        *httpclient.Client
	logger      zerolog.Logger
	maxAttempts int
	baseDelay   time.Duration
}

// ClientConfig holds ledger RPC client configuration
type ClientConfig struct {
	Endpoint       string
	APIKey         string
	RequestTimeout time.Duration
	MaxAttempts    int
	RetryBaseDelay time.Duration
	Logger         zerolog.Logger
}

// NewClient creates a ledger RPC client
func NewClient(cfg ClientConfig) *Client {
	headers := map[string]string{}
	if cfg.APIKey != "" {
		headers["X-API-Key"] = cfg.APIKey
	}

	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	baseDelay := cfg.RetryBaseDelay
	if baseDelay <= 0 {
		baseDelay = 200 * time.Millisecond
	}

	return &Client{
		http: httpclient.New(httpclient.Config{
			BaseURL: cfg.Endpoint,
			Timeout: cfg.RequestTimeout,
			Logger:  cfg.Logger,
			Headers: headers,
		}),
		logger:      cfg.Logger.With().Str("component", "ledger-rpc").Logger(),
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
	}
}

type rpcRequest struct {
	ID      string      `json:"id"`
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// AccountState is the provider's view of one ledger account
type AccountState struct {
	Balance           string `json:"balance"`
	State             string `json:"state"`
	LastTransactionID struct {
		LT   string `json:"lt"`
		Hash string `json:"hash"`
	} `json:"last_transaction_id"`
}

// GetMethodResult is the outcome of a read-only contract getter
type GetMethodResult struct {
	GasUsed  int64           `json:"gas_used"`
	ExitCode int             `json:"exit_code"`
	Stack    [][]interface{} `json:"stack"`
}

// TransactionMessage is one message attached to a ledger transaction
type TransactionMessage struct {
	Hash        string `json:"hash"`
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Value       string `json:"value"`
}

// Transaction is one confirmed ledger transaction
type Transaction struct {
	ID struct {
		LT   string `json:"lt"`
		Hash string `json:"hash"`
	} `json:"transaction_id"`
	Utime    int64                `json:"utime"`
	ExitCode int                  `json:"exit_code"`
	InMsg    *TransactionMessage  `json:"in_msg"`
	OutMsgs  []TransactionMessage `json:"out_msgs"`
}

// TransactionStatus is the confirmation state of one submitted message
type TransactionStatus struct {
	Hash        string
	LogicalTime string
	Success     bool
	ExitCode    int
}

// GetAccountState fetches balance and lifecycle state of an account
func (c *Client) GetAccountState(ctx context.Context, address string) (*AccountState, error) {
	var state AccountState
	if err := c.invoke(ctx, "getAddressInformation", map[string]interface{}{"address": address}, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// GetBalance returns the account balance in base token units
func (c *Client) GetBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	state, err := c.GetAccountState(ctx, address)
	if err != nil {
		return decimal.Zero, err
	}
	if state.Balance == "" {
		return decimal.Zero, nil
	}
	balance, err := decimal.NewFromString(state.Balance)
	if err != nil {
		return decimal.Zero, &RPCError{Kind: KindDecode, Message: fmt.Sprintf("unparseable balance %q", state.Balance), Err: err}
	}
	return balance, nil
}

// RunGetMethod executes a read-only getter on a contract
func (c *Client) RunGetMethod(ctx context.Context, address, method string, stack [][]interface{}) (*GetMethodResult, error) {
	if stack == nil {
		stack = [][]interface{}{}
	}
	var result GetMethodResult
	err := c.invoke(ctx, "runGetMethod", map[string]interface{}{
		"address": address,
		"method":  method,
		"stack":   stack,
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// GetSequence reads the account's current sequence counter. An account that
// has never sent a transaction (getter fails or wallet uninitialized) is at
// sequence 0.
func (c *Client) GetSequence(ctx context.Context, address string) (int64, error) {
	result, err := c.RunGetMethod(ctx, address, "seqno", nil)
	if err != nil {
		return 0, err
	}
	if result.ExitCode != 0 {
		c.logger.Debug().
			Str("address", address).
			Int("exit_code", result.ExitCode).
			Msg("Sequence getter failed, treating account as fresh")
		return 0, nil
	}
	if len(result.Stack) == 0 || len(result.Stack[0]) < 2 {
		return 0, &RPCError{Kind: KindDecode, Message: "empty getter stack for seqno"}
	}
	raw, ok := result.Stack[0][1].(string)
	if !ok {
		return 0, &RPCError{Kind: KindDecode, Message: fmt.Sprintf("unexpected seqno stack entry %v", result.Stack[0][1])}
	}
	seqno, err := strconv.ParseInt(raw, 0, 64)
	if err != nil {
		return 0, &RPCError{Kind: KindDecode, Message: fmt.Sprintf("unparseable seqno %q", raw), Err: err}
	}
	return seqno, nil
}

// Submit sends a signed message envelope and returns its hash
func (c *Client) Submit(ctx context.Context, bocBase64 string) (string, error) {
	var result struct {
		Hash string `json:"hash"`
	}
	if err := c.invoke(ctx, "sendBoc", map[string]interface{}{"boc": bocBase64}, &result); err != nil {
		return "", err
	}
	return result.Hash, nil
}

// GetTransactions lists recent transactions for an account, newest first
func (c *Client) GetTransactions(ctx context.Context, address string, limit int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 10
	}
	var txs []Transaction
	err := c.invoke(ctx, "getTransactions", map[string]interface{}{
		"address": address,
		"limit":   limit,
	}, &txs)
	if err != nil {
		return nil, err
	}
	return txs, nil
}

// GetStatus looks for the message hash in the account's recent transactions.
// It degrades to (nil, nil) when the provider cannot answer the lookup:
// callers must treat an unknown status as "not yet observable", never as
// failure.
func (c *Client) GetStatus(ctx context.Context, address, messageHash string) (*TransactionStatus, error) {
	txs, err := c.GetTransactions(ctx, address, 20)
	if err != nil {
		var rpcErr *RPCError
		if errors.As(err, &rpcErr) && rpcErr.Kind == KindRPC {
			c.logger.Debug().
				Err(err).
				Str("address", address).
				Msg("Provider cannot look up transactions, status unknown")
			return nil, nil
		}
		return nil, err
	}

	for _, tx := range txs {
		if tx.InMsg == nil || tx.InMsg.Hash != messageHash {
			continue
		}
		return &TransactionStatus{
			Hash:        messageHash,
			LogicalTime: tx.ID.LT,
			Success:     tx.ExitCode == 0,
			ExitCode:    tx.ExitCode,
		}, nil
	}
	return nil, nil
}

// invoke runs one logical RPC call with a bounded explicit retry loop.
// Only failures classified retryable are reattempted; the delay doubles
// between attempts.
func (c *Client) invoke(ctx context.Context, method string, params, result interface{}) error {
	delay := c.baseDelay
	var lastErr error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		err := c.once(ctx, method, params, result)
		if err == nil {
			return nil
		}
		lastErr = err

		var rpcErr *RPCError
		if !errors.As(err, &rpcErr) || !rpcErr.Retryable() || attempt == c.maxAttempts {
			return err
		}

		c.logger.Warn().
			Err(err).
			Str("method", method).
			Int("attempt", attempt).
			Dur("backoff", delay).
			Msg("Retryable RPC failure, backing off")

		select {
		case <-ctx.Done():
			return &RPCError{Kind: KindTransport, Message: "cancelled during backoff", Err: ctx.Err()}
		case <-time.After(delay):
		}
		delay *= 2
	}

	return lastErr
}

func (c *Client) once(ctx context.Context, method string, params, result interface{}) error {
	req := rpcRequest{
		ID:      uuid.NewString(),
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
	}

	resp, err := c.http.Post(ctx, "", req, nil)
	if err != nil {
		return &RPCError{Kind: KindTransport, Message: err.Error(), Err: err}
	}
	if !resp.IsSuccess() {
		kind := KindRPC
		if resp.StatusCode == 429 || resp.StatusCode >= 500 {
			kind = KindTransport
		}
		return &RPCError{Kind: kind, Code: resp.StatusCode, Message: string(resp.Body)}
	}

	var envelope rpcResponse
	if err := resp.Unmarshal(&envelope); err != nil {
		return &RPCError{Kind: KindDecode, Message: "malformed rpc envelope", Err: err}
	}
	if envelope.Error != nil {
		kind := KindRPC
		if envelope.Error.Code == 429 {
			kind = KindTransport
		}
		return &RPCError{Kind: kind, Code: envelope.Error.Code, Message: envelope.Error.Message}
	}
	if result != nil {
		if err := json.Unmarshal(envelope.Result, result); err != nil {
			return &RPCError{Kind: KindDecode, Message: fmt.Sprintf("malformed %s result", method), Err: err}
		}
	}
	return nil
}
