package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/grod220/validator-finances/internal/retry"
)

// Default configuration values.
const (
	DefaultTimeout        = 30 * time.Second
	DefaultMaxAttempts    = 3
	DefaultRetryDelay     = 2 * time.Second
	DefaultRateLimitDelay = 30 * time.Second
	DefaultMaxDelay       = 120 * time.Second
	DefaultBackoffMult    = 2.0
)

// ErrSlotSkipped is returned by block queries for slots the cluster skipped.
var ErrSlotSkipped = errors.New("slot skipped")

// RPC error codes for skipped or pruned slots.
const (
	rpcErrSlotSkipped       = -32007
	rpcErrLongTermStorage   = -32009
)

// HTTPClient is a Solana JSON-RPC 2.0 client over HTTP.
type HTTPClient struct {
	endpoint  string
	client    *http.Client
	policy    retry.Policy
	requestID atomic.Uint64

	// onCall, when set, receives every call's method, duration across all
	// retry attempts, and final outcome.
	onCall func(method string, d time.Duration, err error)
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithMaxAttempts sets the total attempt budget per call.
func WithMaxAttempts(n int) ClientOption {
	return func(c *HTTPClient) {
		c.policy.MaxAttempts = n
	}
}

// WithRetryDelay sets the base delay for transient failures.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.policy.BaseDelay = d
	}
}

// WithRateLimitDelay sets the base delay after a 429.
func WithRateLimitDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.policy.RateLimitDelay = d
	}
}

// WithMaxDelay sets maximum retry delay.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.policy.MaxDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// WithCallObserver registers a hook invoked after every RPC call.
func WithCallObserver(fn func(method string, d time.Duration, err error)) ClientOption {
	return func(c *HTTPClient) {
		c.onCall = fn
	}
}

// NewHTTPClient creates a new Solana RPC HTTP client.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: DefaultTimeout},
		policy: retry.Policy{
			MaxAttempts:    DefaultMaxAttempts,
			BaseDelay:      DefaultRetryDelay,
			RateLimitDelay: DefaultRateLimitDelay,
			Multiplier:     DefaultBackoffMult,
			MaxDelay:       DefaultMaxDelay,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// rpcRequest represents a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError represents a JSON-RPC 2.0 error.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// call performs a JSON-RPC call with retries. Rate-limited responses back
// off on the long delay ladder; RPC-level errors are not retried.
func (c *HTTPClient) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	reqID := c.requestID.Add(1)
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	start := time.Now()
	callErr := retry.Do(ctx, c.policy, func(ctx context.Context) (retry.ErrorClass, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return retry.Fatal, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return retry.Transient, fmt.Errorf("http request: %w", err)
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return retry.Transient, fmt.Errorf("read response: %w", err)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			return retry.RateLimited, fmt.Errorf("rate limited (429)")
		}

		if resp.StatusCode != http.StatusOK {
			class := retry.ClassifyStatus(resp.StatusCode)
			return class, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
		}

		var rpcResp rpcResponse
		if err := json.Unmarshal(respBody, &rpcResp); err != nil {
			return retry.Transient, fmt.Errorf("unmarshal response: %w", err)
		}

		if rpcResp.Error != nil {
			// RPC errors are not retried
			return retry.Fatal, rpcResp.Error
		}

		if result != nil && rpcResp.Result != nil {
			if err := json.Unmarshal(rpcResp.Result, result); err != nil {
				return retry.Fatal, fmt.Errorf("unmarshal result: %w", err)
			}
		}

		return retry.None, nil
	})

	if c.onCall != nil {
		c.onCall(method, time.Since(start), callErr)
	}
	return callErr
}

// GetEpochInfo retrieves the cluster's current epoch state.
func (c *HTTPClient) GetEpochInfo(ctx context.Context) (*EpochInfo, error) {
	var result struct {
		Epoch        uint64 `json:"epoch"`
		AbsoluteSlot int64  `json:"absoluteSlot"`
		SlotIndex    int64  `json:"slotIndex"`
		SlotsInEpoch int64  `json:"slotsInEpoch"`
	}

	if err := c.call(ctx, "getEpochInfo", nil, &result); err != nil {
		return nil, err
	}

	return &EpochInfo{
		Epoch:        result.Epoch,
		AbsoluteSlot: result.AbsoluteSlot,
		SlotIndex:    result.SlotIndex,
		SlotsInEpoch: result.SlotsInEpoch,
	}, nil
}

// GetInflationReward retrieves the staking reward paid to a vote account for
// one epoch. Returns nil when no reward was paid.
func (c *HTTPClient) GetInflationReward(ctx context.Context, voteAccount string, epoch uint64) (*InflationReward, error) {
	params := []interface{}{
		[]string{voteAccount},
		map[string]interface{}{"epoch": epoch},
	}

	var result []*struct {
		Epoch         uint64 `json:"epoch"`
		EffectiveSlot int64  `json:"effectiveSlot"`
		Amount        uint64 `json:"amount"`
		PostBalance   uint64 `json:"postBalance"`
		Commission    *uint8 `json:"commission"`
	}

	if err := c.call(ctx, "getInflationReward", params, &result); err != nil {
		return nil, err
	}

	if len(result) == 0 || result[0] == nil {
		return nil, nil
	}

	r := result[0]
	return &InflationReward{
		Epoch:         r.Epoch,
		EffectiveSlot: r.EffectiveSlot,
		Lamports:      r.Amount,
		PostBalance:   r.PostBalance,
		Commission:    r.Commission,
	}, nil
}

// GetLeaderSchedule retrieves the identity's leader slot indices for the
// epoch containing the given slot. Indices are relative to the epoch start.
func (c *HTTPClient) GetLeaderSchedule(ctx context.Context, slot int64, identity string) ([]int64, error) {
	params := []interface{}{
		slot,
		map[string]interface{}{"identity": identity},
	}

	var result map[string][]int64
	if err := c.call(ctx, "getLeaderSchedule", params, &result); err != nil {
		return nil, err
	}

	return result[identity], nil
}

// GetBlockRewards retrieves the rewards-only view of a block. Returns
// ErrSlotSkipped when the cluster skipped the slot.
func (c *HTTPClient) GetBlockRewards(ctx context.Context, slot int64) (*BlockRewards, error) {
	params := []interface{}{
		slot,
		map[string]interface{}{
			"encoding":                       "json",
			"transactionDetails":             "none",
			"rewards":                        true,
			"maxSupportedTransactionVersion": 0,
		},
	}

	var result struct {
		BlockTime *int64 `json:"blockTime"`
		Rewards   []struct {
			Pubkey     string `json:"pubkey"`
			Lamports   int64  `json:"lamports"`
			RewardType string `json:"rewardType"`
		} `json:"rewards"`
	}

	if err := c.call(ctx, "getBlock", params, &result); err != nil {
		var rpcErr *rpcError
		if errors.As(err, &rpcErr) && (rpcErr.Code == rpcErrSlotSkipped || rpcErr.Code == rpcErrLongTermStorage) {
			return nil, ErrSlotSkipped
		}
		return nil, err
	}

	block := &BlockRewards{Slot: slot, BlockTime: result.BlockTime}
	for _, r := range result.Rewards {
		block.Rewards = append(block.Rewards, BlockReward{
			Pubkey:     r.Pubkey,
			Lamports:   r.Lamports,
			RewardType: r.RewardType,
		})
	}

	return block, nil
}

// GetSignaturesForAddress retrieves signatures for an address with pagination.
func (c *HTTPClient) GetSignaturesForAddress(ctx context.Context, address string, opts *SignaturesOpts) ([]SignatureInfo, error) {
	config := make(map[string]interface{})
	if opts != nil {
		if opts.Before != "" {
			config["before"] = opts.Before
		}
		if opts.Until != "" {
			config["until"] = opts.Until
		}
		if opts.Limit > 0 {
			config["limit"] = opts.Limit
		}
	}

	params := []interface{}{address}
	if len(config) > 0 {
		params = append(params, config)
	}

	var result []struct {
		Signature string      `json:"signature"`
		Slot      int64       `json:"slot"`
		BlockTime *int64      `json:"blockTime"`
		Err       interface{} `json:"err"`
	}

	if err := c.call(ctx, "getSignaturesForAddress", params, &result); err != nil {
		return nil, err
	}

	sigs := make([]SignatureInfo, len(result))
	for i, r := range result {
		sigs[i] = SignatureInfo{
			Signature: r.Signature,
			Slot:      r.Slot,
			BlockTime: r.BlockTime,
			Err:       r.Err,
		}
	}

	return sigs, nil
}

// GetTransactionWithBalances retrieves the balance-delta view of a
// transaction. Returns nil when the transaction is not found.
func (c *HTTPClient) GetTransactionWithBalances(ctx context.Context, signature string) (*Transaction, error) {
	params := []interface{}{
		signature,
		map[string]interface{}{
			"encoding":                       "json",
			"maxSupportedTransactionVersion": 0,
		},
	}

	var result struct {
		Slot      int64  `json:"slot"`
		BlockTime *int64 `json:"blockTime"`
		Meta      *struct {
			Err          interface{} `json:"err"`
			Fee          uint64      `json:"fee"`
			PreBalances  []uint64    `json:"preBalances"`
			PostBalances []uint64    `json:"postBalances"`
		} `json:"meta"`
		Transaction *struct {
			Message *struct {
				AccountKeys []string `json:"accountKeys"`
			} `json:"message"`
		} `json:"transaction"`
	}

	if err := c.call(ctx, "getTransaction", params, &result); err != nil {
		return nil, err
	}

	if result.Slot == 0 && result.BlockTime == nil {
		// Transaction not found
		return nil, nil
	}

	tx := &Transaction{
		Signature: signature,
		Slot:      result.Slot,
	}
	if result.BlockTime != nil {
		tx.BlockTime = *result.BlockTime
	}
	if result.Meta != nil {
		tx.Err = result.Meta.Err
		tx.Fee = result.Meta.Fee
		tx.PreBalances = result.Meta.PreBalances
		tx.PostBalances = result.Meta.PostBalances
	}
	if result.Transaction != nil && result.Transaction.Message != nil {
		tx.AccountKeys = result.Transaction.Message.AccountKeys
	}

	return tx, nil
}

// GetSlot retrieves the current slot.
func (c *HTTPClient) GetSlot(ctx context.Context) (int64, error) {
	var result int64
	if err := c.call(ctx, "getSlot", nil, &result); err != nil {
		return 0, err
	}
	return result, nil
}

// GetBlockTime retrieves the estimated production time of a block.
func (c *HTTPClient) GetBlockTime(ctx context.Context, slot int64) (*int64, error) {
	params := []interface{}{slot}
	var result *int64
	if err := c.call(ctx, "getBlockTime", params, &result); err != nil {
		return nil, err
	}
	return result, nil
}
