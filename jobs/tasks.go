// Package jobs runs scheduled background work: periodic ledger verification
// over hard-locked periods.
package jobs

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerVerify replays a company's ledger and verifies that
	// hard-locked periods still produce their recorded fingerprints.
	TaskLedgerVerify = "ledger:verify"
)

// LedgerVerifyPayload identifies the company to verify.
type LedgerVerifyPayload struct {
	CompanyID string `json:"companyId"`
}

// NewLedgerVerifyTask constructs an Asynq task.
func NewLedgerVerifyTask(payload LedgerVerifyPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerVerify, data), nil
}

// Client submits jobs to the queue.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) (*Client, error) {
	return &Client{client: asynq.NewClient(redisOpts)}, nil
}

// EnqueueLedgerVerify enqueues a verification run for the company.
func (c *Client) EnqueueLedgerVerify(ctx context.Context, companyID string) (*asynq.TaskInfo, error) {
	task, err := NewLedgerVerifyTask(LedgerVerifyPayload{CompanyID: companyID})
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault))
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}
