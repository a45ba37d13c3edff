package service

import (
	"time"

	"cafeplease/internal/jobs"

	"github.com/hibiken/asynq"
)

// JobClient interface for scheduling background jobs
type JobClient interface {
	ScheduleValidationExpiry(requestID string, at time.Time) error
	ScheduleCodeCompletion(requestID string, at time.Time) error
}

// AsynqJobClient implements JobClient using asynq
type AsynqJobClient struct {
	client *asynq.Client
}

func NewAsynqJobClient(client *asynq.Client) *AsynqJobClient {
	return &AsynqJobClient{client: client}
}

func (c *AsynqJobClient) ScheduleValidationExpiry(requestID string, at time.Time) error {
	return jobs.ScheduleValidationExpiry(c.client, requestID, at)
}

func (c *AsynqJobClient) ScheduleCodeCompletion(requestID string, at time.Time) error {
	return jobs.ScheduleCodeCompletion(c.client, requestID, at)
}
