package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const (
	TypeValidationExpiry = "approval:expire"
	TypeCodeCompletion   = "code:complete"
)

// dueMargin pushes the job just past the deadline; transitions fire only
// once now is strictly after it.
const dueMargin = time.Second

// Reconciler applies a request's pending time-based transition if it is due.
type Reconciler interface {
	ReconcileTimers(ctx context.Context, requestID string) (bool, error)
}

type JobServer struct {
	server     *asynq.Server
	client     *asynq.Client
	reconciler Reconciler
	log        *zap.Logger
}

func NewJobServer(redisAddr string, reconciler Reconciler, log *zap.Logger) (*JobServer, *asynq.Client) {
	redisOpt := asynq.RedisClientOpt{Addr: redisAddr}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 4,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
			},
		},
	)

	client := asynq.NewClient(redisOpt)

	return &JobServer{
		server:     server,
		client:     client,
		reconciler: reconciler,
		log:        log,
	}, client
}

// Mux returns the handler set served by Start.
func (js *JobServer) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeValidationExpiry, js.handleTimer)
	mux.HandleFunc(TypeCodeCompletion, js.handleTimer)
	return mux
}

func (js *JobServer) Start() error {
	return js.server.Start(js.Mux())
}

func (js *JobServer) Stop() {
	js.server.Shutdown()
	js.client.Close()
}

// Job handlers

func (js *JobServer) handleTimer(ctx context.Context, t *asynq.Task) error {
	requestID := string(t.Payload())

	// The scheduler tick may already have moved the request on; that is a no-op here.
	applied, err := js.reconciler.ReconcileTimers(ctx, requestID)
	if err != nil {
		return fmt.Errorf("failed to reconcile request %s: %w", requestID, err)
	}

	if applied {
		js.log.Info("Timer applied", zap.String("type", t.Type()), zap.String("request_id", requestID))
	}
	return nil
}

// Schedule jobs

func ScheduleValidationExpiry(client *asynq.Client, requestID string, expiresAt time.Time) error {
	return schedule(client, TypeValidationExpiry, requestID, expiresAt)
}

func ScheduleCodeCompletion(client *asynq.Client, requestID string, endsAt time.Time) error {
	return schedule(client, TypeCodeCompletion, requestID, endsAt)
}

func schedule(client *asynq.Client, taskType, requestID string, at time.Time) error {
	task := asynq.NewTask(taskType, []byte(requestID))
	_, err := client.Enqueue(task,
		asynq.Queue("critical"),
		asynq.TaskID(taskType+":"+requestID),
		asynq.ProcessAt(at.Add(dueMargin)),
		asynq.MaxRetry(3),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil // already scheduled
	}
	return err
}
