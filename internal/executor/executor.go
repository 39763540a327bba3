// Package executor triggers off-chain execution of tasks that have already
// been registered on-chain. The execution service may lag behind the chain,
// so Execute retries with backoff until the service accepts the task.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/orchardfi/advisor/internal/retry"
)

// DefaultPolicy mirrors the service's expected settling time.
var DefaultPolicy = retry.Policy{Attempts: 5, BaseDelay: time.Second}

// Client triggers task execution over HTTP.
type Client struct {
	http    *resty.Client
	agentID string
	policy  retry.Policy
	log     zerolog.Logger
}

// NewClient builds a client rooted at baseURL. A zero policy gets
// DefaultPolicy.
func NewClient(baseURL, agentID string, timeout time.Duration, policy retry.Policy, log zerolog.Logger) *Client {
	if policy.Attempts == 0 {
		policy = DefaultPolicy
	}
	return &Client{
		http:    resty.New().SetBaseURL(baseURL).SetTimeout(timeout),
		agentID: agentID,
		policy:  policy,
		log:     log,
	}
}

type executeRequest struct {
	TxUUID  string `json:"txUUID"`
	AgentID string `json:"agentId"`
}

// Execute asks the service to run the registered task, retrying while it has
// not yet observed the on-chain registration.
func (c *Client) Execute(ctx context.Context, taskID string) error {
	attempt := 0
	err := retry.Do(ctx, c.policy, func(ctx context.Context) error {
		attempt++
		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParam("taskId", taskID).
			SetBody(executeRequest{TxUUID: taskID, AgentID: c.agentID}).
			Post("/task/execute")
		if err != nil {
			c.log.Warn().Err(err).Str("task_id", taskID).Int("attempt", attempt).Msg("task execution request failed")
			return err
		}
		if resp.IsError() {
			c.log.Warn().Str("task_id", taskID).Int("attempt", attempt).Str("status", resp.Status()).Msg("task execution rejected")
			return fmt.Errorf("status %s: %s", resp.Status(), resp.String())
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("execute task %s: %w", taskID, err)
	}
	return nil
}
