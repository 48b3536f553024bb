// Package dune backfills ledger facts from Dune Analytics when RPC history
// is pruned. Queries run asynchronously: submit SQL, then poll the execution
// until it completes or fails.
package dune

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/grod220/validator-finances/internal/addrbook"
	"github.com/grod220/validator-finances/internal/domain"
)

// DefaultBaseURL is the Dune API.
const DefaultBaseURL = "https://api.dune.com/api/v1"

// Default execution timings.
const (
	DefaultQueryTimeout = 300 * time.Second
	DefaultPollInterval = 3 * time.Second
	DefaultInitialDelay = 5 * time.Second
)

// Client runs bulk backfill queries for one validator's accounts.
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client

	voteAccount       string
	identity          string
	withdrawAuthority string

	queryTimeout time.Duration
	pollInterval time.Duration
	initialDelay time.Duration

	observe func(query string, d time.Duration, rows int)
}

// Option configures Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

// WithTimings overrides execution timeout, poll interval, and initial delay.
func WithTimings(timeout, poll, initial time.Duration) Option {
	return func(c *Client) {
		c.queryTimeout = timeout
		c.pollInterval = poll
		c.initialDelay = initial
	}
}

// WithQueryObserver registers a hook invoked after every query with its name,
// wall-clock duration, and row count.
func WithQueryObserver(fn func(query string, d time.Duration, rows int)) Option {
	return func(c *Client) {
		c.observe = fn
	}
}

// NewClient creates a Dune client for the validator's accounts. Addresses are
// validated up front because they are interpolated into SQL text.
func NewClient(apiKey, voteAccount, identity, withdrawAuthority string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("dune api key is required")
	}
	for _, addr := range []string{voteAccount, identity, withdrawAuthority} {
		if err := addrbook.ValidateAddress(addr); err != nil {
			return nil, fmt.Errorf("validate account address: %w", err)
		}
	}

	c := &Client{
		apiKey:            apiKey,
		baseURL:           DefaultBaseURL,
		client:            &http.Client{Timeout: 60 * time.Second},
		voteAccount:       voteAccount,
		identity:          identity,
		withdrawAuthority: withdrawAuthority,
		queryTimeout:      DefaultQueryTimeout,
		pollInterval:      DefaultPollInterval,
		initialDelay:      DefaultInitialDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// validateDate rejects anything but YYYY-MM-DD before SQL interpolation.
func validateDate(date string) error {
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return fmt.Errorf("invalid date %q: must be YYYY-MM-DD", date)
	}
	return nil
}

// runQuery executes one named query, reporting it to the observer hook.
func (c *Client) runQuery(ctx context.Context, name, sql string) ([]map[string]json.RawMessage, error) {
	start := time.Now()
	rows, err := c.executeQuery(ctx, sql)
	if c.observe != nil {
		c.observe(name, time.Since(start), len(rows))
	}
	return rows, err
}

type executeResponse struct {
	ExecutionID string `json:"execution_id"`
}

type resultsResponse struct {
	State  string  `json:"state"`
	Error  *string `json:"error"`
	Result *struct {
		Rows []map[string]json.RawMessage `json:"rows"`
	} `json:"result"`
}

// executeQuery submits SQL and polls until the execution completes.
func (c *Client) executeQuery(ctx context.Context, sql string) ([]map[string]json.RawMessage, error) {
	body, err := json.Marshal(map[string]string{
		"sql":         sql,
		"performance": "medium",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal execute request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/sql/execute", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create execute request: %w", err)
	}
	req.Header.Set("X-Dune-Api-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submit query: %w", err)
	}
	var exec executeResponse
	err = json.NewDecoder(resp.Body).Decode(&exec)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("parse execute response: %w", err)
	}
	if exec.ExecutionID == "" {
		return nil, fmt.Errorf("execute response missing execution_id")
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(c.initialDelay):
	}

	resultsURL := fmt.Sprintf("%s/execution/%s/results", c.baseURL, exec.ExecutionID)
	deadline := time.Now().Add(c.queryTimeout)

	for {
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("query timed out after %s", c.queryTimeout)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, resultsURL, nil)
		if err != nil {
			return nil, fmt.Errorf("create results request: %w", err)
		}
		req.Header.Set("X-Dune-Api-Key", c.apiKey)

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("get results: %w", err)
		}
		var results resultsResponse
		err = json.NewDecoder(resp.Body).Decode(&results)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("parse results response: %w", err)
		}

		switch results.State {
		case "QUERY_STATE_COMPLETED":
			if results.Result == nil {
				return nil, nil
			}
			return results.Result.Rows, nil
		case "QUERY_STATE_FAILED":
			msg := "unknown error"
			if results.Error != nil {
				msg = *results.Error
			}
			return nil, fmt.Errorf("query failed: %s", msg)
		default:
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.pollInterval):
			}
		}
	}
}

// FetchInflationRewards aggregates voting rewards to the vote account per
// epoch from start date onward.
func (c *Client) FetchInflationRewards(ctx context.Context, startDate string) ([]domain.EpochReward, error) {
	if err := validateDate(startDate); err != nil {
		return nil, err
	}

	sql := fmt.Sprintf(`
		SELECT
		  FLOOR(block_slot / 432000) as epoch,
		  SUM(lamports) / 1e9 as reward_sol
		FROM solana.rewards
		WHERE reward_type = 'Voting'
		  AND recipient = '%s'
		  AND block_date >= DATE '%s'
		GROUP BY FLOOR(block_slot / 432000)
		ORDER BY epoch
	`, c.voteAccount, startDate)

	rows, err := c.runQuery(ctx, "inflation_rewards", sql)
	if err != nil {
		return nil, fmt.Errorf("fetch inflation rewards: %w", err)
	}

	var rewards []domain.EpochReward
	for _, row := range rows {
		epoch, err := rowU64(row, "epoch")
		if err != nil {
			return nil, err
		}
		sol, err := rowF64(row, "reward_sol")
		if err != nil {
			return nil, err
		}
		// The rewards table does not carry the commission rate or the
		// effective slot; those stay unset on backfilled rows.
		rewards = append(rewards, domain.EpochReward{
			Epoch:    epoch,
			Lamports: solToLamports(sol),
			Date:     domain.EpochDate(epoch),
		})
	}

	return rewards, nil
}

// FetchLeaderFees aggregates fee rewards to the identity per epoch. The
// rewards table only shows produced blocks, so leader slots equal blocks and
// skipped slots cannot be recovered from this source.
func (c *Client) FetchLeaderFees(ctx context.Context, startDate string) ([]domain.EpochLeaderFees, error) {
	if err := validateDate(startDate); err != nil {
		return nil, err
	}

	sql := fmt.Sprintf(`
		SELECT
		  FLOOR(block_slot / 432000) as epoch,
		  COUNT(*) as blocks_produced,
		  SUM(lamports) / 1e9 as total_fees_sol
		FROM solana.rewards
		WHERE reward_type = 'Fee'
		  AND recipient = '%s'
		  AND block_date >= DATE '%s'
		GROUP BY FLOOR(block_slot / 432000)
		ORDER BY epoch
	`, c.identity, startDate)

	rows, err := c.runQuery(ctx, "leader_fees", sql)
	if err != nil {
		return nil, fmt.Errorf("fetch leader fees: %w", err)
	}

	var fees []domain.EpochLeaderFees
	for _, row := range rows {
		epoch, err := rowU64(row, "epoch")
		if err != nil {
			return nil, err
		}
		blocks, err := rowU64(row, "blocks_produced")
		if err != nil {
			return nil, err
		}
		sol, err := rowF64(row, "total_fees_sol")
		if err != nil {
			return nil, err
		}
		fees = append(fees, domain.EpochLeaderFees{
			Epoch:          epoch,
			FeeLamports:    solToLamports(sol),
			LeaderSlots:    int(blocks),
			BlocksProduced: int(blocks),
			Date:           domain.EpochDate(epoch),
		})
	}

	return fees, nil
}

// FetchVoteCosts aggregates vote transaction fees signed by the identity per
// epoch, tagged with the dune source.
func (c *Client) FetchVoteCosts(ctx context.Context, startDate string) ([]domain.EpochVoteCost, error) {
	if err := validateDate(startDate); err != nil {
		return nil, err
	}

	sql := fmt.Sprintf(`
		SELECT
		  FLOOR(block_slot / 432000) as epoch,
		  COUNT(*) as vote_count,
		  SUM(fee) / 1e9 as total_fee_sol
		FROM solana.vote_transactions
		WHERE signer = '%s'
		  AND block_date >= DATE '%s'
		GROUP BY FLOOR(block_slot / 432000)
		ORDER BY epoch
	`, c.identity, startDate)

	rows, err := c.runQuery(ctx, "vote_costs", sql)
	if err != nil {
		return nil, fmt.Errorf("fetch vote costs: %w", err)
	}

	var costs []domain.EpochVoteCost
	for _, row := range rows {
		epoch, err := rowU64(row, "epoch")
		if err != nil {
			return nil, err
		}
		votes, err := rowU64(row, "vote_count")
		if err != nil {
			return nil, err
		}
		sol, err := rowF64(row, "total_fee_sol")
		if err != nil {
			return nil, err
		}
		costs = append(costs, domain.EpochVoteCost{
			Epoch:        epoch,
			CostLamports: solToLamports(sol),
			EventCount:   votes,
			Source:       domain.VoteCostDune,
			Date:         domain.EpochDate(epoch),
		})
	}

	return costs, nil
}

// FetchTransfers returns native SOL transfers touching any tracked account
// from start date onward, with dust filtered out.
func (c *Client) FetchTransfers(ctx context.Context, startDate string) ([]domain.Transfer, error) {
	if err := validateDate(startDate); err != nil {
		return nil, err
	}

	accountList := fmt.Sprintf("'%s', '%s', '%s'", c.identity, c.withdrawAuthority, c.voteAccount)

	sql := fmt.Sprintf(`
		SELECT
		  block_slot,
		  from_owner,
		  to_owner,
		  amount_display as amount_sol,
		  tx_id as signature,
		  block_time
		FROM tokens_solana.transfers
		WHERE token_mint_address = 'So11111111111111111111111111111111111111111'
		  AND block_date >= DATE '%s'
		  AND (
		    from_owner IN (%s)
		    OR to_owner IN (%s)
		  )
		ORDER BY block_slot DESC
		LIMIT 5000
	`, startDate, accountList, accountList)

	rows, err := c.runQuery(ctx, "transfers", sql)
	if err != nil {
		return nil, fmt.Errorf("fetch transfers: %w", err)
	}

	var transfers []domain.Transfer
	for _, row := range rows {
		slot, err := rowU64(row, "block_slot")
		if err != nil {
			return nil, err
		}
		from, err := rowString(row, "from_owner")
		if err != nil {
			return nil, err
		}
		to, err := rowString(row, "to_owner")
		if err != nil {
			return nil, err
		}
		sol, err := rowF64(row, "amount_sol")
		if err != nil {
			return nil, err
		}
		signature, err := rowString(row, "signature")
		if err != nil {
			return nil, err
		}

		lamports := solToLamports(sol)
		if lamports < domain.MinTransferLamports {
			continue
		}

		transfers = append(transfers, domain.Transfer{
			Signature: signature,
			Slot:      int64(slot),
			BlockTime: rowTimestamp(row, "block_time"),
			From:      from,
			To:        to,
			Lamports:  lamports,
		})
	}

	return transfers, nil
}
