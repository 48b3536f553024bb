// Package jito queries the Jito validator API for per-epoch MEV rewards.
// Tips are claimed to the vote account by Jito's merkle root upload
// authority; the API reports every known epoch in a single response.
package jito

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/grod220/validator-finances/internal/domain"
	"github.com/grod220/validator-finances/internal/retry"
)

// DefaultBaseURL is the Jito mainnet API.
const DefaultBaseURL = "https://kobe.mainnet.jito.network/api/v1"

// Client fetches MEV claims for one validator.
type Client struct {
	baseURL string
	client  *http.Client
	policy  retry.Policy
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

// WithRetryPolicy overrides the retry policy.
func WithRetryPolicy(p retry.Policy) Option {
	return func(c *Client) {
		c.policy = p
	}
}

// NewClient creates a Jito API client. The API rate-limits aggressively, so
// the default policy carries the long 429 backoff.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		policy:  retry.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// epochData is one element of the validators endpoint response.
type epochData struct {
	Epoch            uint64 `json:"epoch"`
	MevCommissionBps uint64 `json:"mev_commission_bps"`
	MevRewards       uint64 `json:"mev_rewards"`
}

// FetchClaims returns the validator's MEV commission for every epoch the API
// knows about, sorted ascending. Commission is the bps share of total tips.
func (c *Client) FetchClaims(ctx context.Context, voteAccount string) ([]domain.MevClaim, error) {
	url := fmt.Sprintf("%s/validators/%s", c.baseURL, voteAccount)

	var epochs []epochData
	err := retry.Do(ctx, c.policy, func(ctx context.Context) (retry.ErrorClass, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return retry.Fatal, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return retry.Transient, fmt.Errorf("http request: %w", err)
		}
		defer resp.Body.Close()

		if class := retry.ClassifyStatus(resp.StatusCode); class != retry.None {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return class, fmt.Errorf("jito api status %d: %s", resp.StatusCode, body)
		}

		if err := json.NewDecoder(resp.Body).Decode(&epochs); err != nil {
			return retry.Fatal, fmt.Errorf("decode response: %w", err)
		}

		return retry.None, nil
	})
	if err != nil {
		return nil, err
	}

	claims := make([]domain.MevClaim, 0, len(epochs))
	for _, e := range epochs {
		// mev_commission_bps of 1000 means a 10% validator share.
		commission := e.MevRewards * e.MevCommissionBps / 10_000
		claims = append(claims, domain.MevClaim{
			Epoch:              e.Epoch,
			GrossLamports:      e.MevRewards,
			CommissionLamports: commission,
			Date:               domain.EpochDate(e.Epoch),
		})
	}

	sort.Slice(claims, func(i, j int) bool { return claims[i].Epoch < claims[j].Epoch })
	return claims, nil
}
