// Package custody talks to the wallet-custody service that deploys and
// tracks per-user multisig safes.
package custody

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrNotFound means the custody service has no multisig recorded for this
// agent/user pair.
var ErrNotFound = errors.New("multisig not found")

// Client is a thin wrapper over the custody HTTP API.
type Client struct {
	http *resty.Client
}

// NewClient builds a client rooted at baseURL, e.g. "http://localhost:3001/api".
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
	}
}

type lookupRequest struct {
	AgentAddress string `json:"agentAddress"`
	UserAddress  string `json:"userAddress"`
}

type lookupResponse struct {
	Error           string `json:"error"`
	MultisigAddress string `json:"multisig_address"`
}

type createRequest struct {
	AgentID      string `json:"agentId"`
	AgentAddress string `json:"agentAddress"`
	UserAddress  string `json:"userAddress"`
}

type createResponse struct {
	Error string `json:"error"`
	Data  struct {
		SafeAddress string `json:"safeAddress"`
	} `json:"data"`
}

// Lookup returns the multisig address deployed for the agent/user pair.
// A service-side miss in any form (error status, error field, or an empty
// address) maps to ErrNotFound.
func (c *Client) Lookup(ctx context.Context, agentAddress, userAddress string) (string, error) {
	var out lookupResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(lookupRequest{AgentAddress: agentAddress, UserAddress: userAddress}).
		SetResult(&out).
		Post("/wallet/get/multisig")
	if err != nil {
		return "", fmt.Errorf("custody lookup: %w", err)
	}
	if resp.IsError() || out.Error != "" || out.MultisigAddress == "" {
		return "", ErrNotFound
	}
	return out.MultisigAddress, nil
}

// Create asks the custody service to deploy a new multisig owned by the
// agent and user, returning the safe address.
func (c *Client) Create(ctx context.Context, agentID, agentAddress, userAddress string) (string, error) {
	var out createResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(createRequest{AgentID: agentID, AgentAddress: agentAddress, UserAddress: userAddress}).
		SetResult(&out).
		Post("/wallet/create")
	if err != nil {
		return "", fmt.Errorf("custody create: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("custody create: status %s", resp.Status())
	}
	if out.Error != "" {
		return "", fmt.Errorf("custody create: %s", out.Error)
	}
	if out.Data.SafeAddress == "" {
		return "", fmt.Errorf("custody create: empty safe address in response")
	}
	return out.Data.SafeAddress, nil
}
