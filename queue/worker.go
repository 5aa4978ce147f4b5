package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/extreme-creations/formie/deliverylog"
	"github.com/extreme-creations/formie/errors"
	"github.com/extreme-creations/formie/integration"
	"github.com/extreme-creations/formie/metric"
	"github.com/extreme-creations/formie/submission"
)

// ConfigSource resolves an integration handle to its configuration.
type ConfigSource interface {
	Integration(handle string) (integration.Config, bool)
}

// Sender runs one delivery attempt. Satisfied by pipeline.Pipeline.
type Sender interface {
	Send(ctx context.Context, sub *submission.Submission, cfg integration.Config) (deliverylog.Result, error)
}

// Config holds worker tuning. Zero values take the defaults noted per field.
type Config struct {
	StreamName    string        `json:"stream_name,omitempty"`    // default "FORMIE_SENDS"
	ConsumerName  string        `json:"consumer_name,omitempty"`  // default "formie-delivery"
	FilterSubject string        `json:"filter_subject,omitempty"` // default SubjectPrefix + ".>"
	MaxDeliver    int           `json:"max_deliver,omitempty"`    // default 5
	AckWait       time.Duration `json:"ack_wait,omitempty"`       // default 2m
	RetryDelay    time.Duration `json:"retry_delay,omitempty"`    // default 30s
	JobTimeout    time.Duration `json:"job_timeout,omitempty"`    // default 1m
}

// Validate checks the configuration and applies defaults.
func (c *Config) Validate() error {
	if c.StreamName == "" {
		c.StreamName = "FORMIE_SENDS"
	}
	if c.ConsumerName == "" {
		c.ConsumerName = "formie-delivery"
	}
	if c.FilterSubject == "" {
		c.FilterSubject = SubjectPrefix + ".>"
	}
	if c.MaxDeliver == 0 {
		c.MaxDeliver = 5
	}
	if c.MaxDeliver < 0 {
		return errors.WrapInvalid(
			fmt.Errorf("max deliver must be positive, got %d", c.MaxDeliver),
			"Config", "Validate", "check max deliver")
	}
	if c.AckWait == 0 {
		c.AckWait = 2 * time.Minute
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = 30 * time.Second
	}
	if c.JobTimeout == 0 {
		c.JobTimeout = time.Minute
	}
	return nil
}

// Disposition is the ack decision for one job delivery.
type Disposition int

const (
	// DispositionAck removes the job: the attempt reached a terminal state.
	DispositionAck Disposition = iota
	// DispositionRetry redelivers the job after RetryDelay.
	DispositionRetry
	// DispositionReject terminates the job: retrying cannot help.
	DispositionReject
)

// String returns the string representation of Disposition
func (d Disposition) String() string {
	switch d {
	case DispositionAck:
		return "ack"
	case DispositionRetry:
		return "retry"
	case DispositionReject:
		return "reject"
	default:
		return "unknown"
	}
}

// disposition maps an attempt error to an ack decision. Transient errors
// retry; invalid and fatal errors terminate. Unclassified errors retry,
// bounded by the consumer's MaxDeliver.
func disposition(err error) Disposition {
	switch {
	case err == nil:
		return DispositionAck
	case errors.IsInvalid(err), errors.IsFatal(err):
		return DispositionReject
	default:
		return DispositionRetry
	}
}

// Worker consumes send jobs and runs one delivery attempt per delivery. The
// durable consumer guarantees at most one in-flight delivery per job, so the
// pipeline never sees concurrent attempts for the same pair.
type Worker struct {
	js           jetstream.JetStream
	submissions  submission.Store
	integrations ConfigSource
	sender       Sender
	cfg          Config
	logger       *slog.Logger
	metrics      *metric.Metrics

	started    atomic.Bool
	consumeCtx jetstream.ConsumeContext
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithWorkerLogger sets the structured logger.
func WithWorkerLogger(logger *slog.Logger) WorkerOption {
	return func(w *Worker) { w.logger = logger }
}

// WithWorkerMetrics enables queue metrics.
func WithWorkerMetrics(m *metric.Metrics) WorkerOption {
	return func(w *Worker) { w.metrics = m }
}

// NewWorker creates a worker. Config defaults are applied by Validate.
func NewWorker(js jetstream.JetStream, submissions submission.Store, integrations ConfigSource, sender Sender, cfg Config, opts ...WorkerOption) (*Worker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	w := &Worker{
		js:           js,
		submissions:  submissions,
		integrations: integrations,
		sender:       sender,
		cfg:          cfg,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start ensures the stream and durable consumer exist and begins consuming.
func (w *Worker) Start(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Worker", "Start", "check state")
	}

	_, err := w.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      w.cfg.StreamName,
		Subjects:  []string{SubjectPrefix + ".>"},
		Retention: jetstream.WorkQueuePolicy,
	})
	if err != nil {
		w.started.Store(false)
		return errors.WrapTransient(err, "Worker", "Start", "ensure stream")
	}

	consumer, err := w.js.CreateOrUpdateConsumer(ctx, w.cfg.StreamName, jetstream.ConsumerConfig{
		Durable:       w.cfg.ConsumerName,
		FilterSubject: w.cfg.FilterSubject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       w.cfg.AckWait,
		MaxDeliver:    w.cfg.MaxDeliver,
	})
	if err != nil {
		w.started.Store(false)
		return errors.WrapTransient(err, "Worker", "Start", "ensure consumer")
	}

	consumeCtx, err := consumer.Consume(w.handle)
	if err != nil {
		w.started.Store(false)
		return errors.WrapTransient(err, "Worker", "Start", "start consumer")
	}
	w.consumeCtx = consumeCtx

	w.logger.Info("delivery worker started",
		"stream", w.cfg.StreamName,
		"consumer", w.cfg.ConsumerName,
		"filter", w.cfg.FilterSubject)
	return nil
}

// Stop drains the consumer. Jobs already in flight finish their attempt.
func (w *Worker) Stop() error {
	if !w.started.CompareAndSwap(true, false) {
		return errors.WrapInvalid(errors.ErrNotStarted, "Worker", "Stop", "check state")
	}
	if w.consumeCtx != nil {
		w.consumeCtx.Stop()
		w.consumeCtx = nil
	}
	w.logger.Info("delivery worker stopped", "consumer", w.cfg.ConsumerName)
	return nil
}

func (w *Worker) handle(msg jetstream.Msg) {
	job, err := ParseJob(msg.Data())
	if err != nil {
		// A payload we cannot parse never becomes parseable
		w.logger.Error("dropping malformed send job", "subject", msg.Subject(), "error", err)
		_ = msg.Term()
		return
	}

	if w.metrics != nil {
		w.metrics.JobsReceived.WithLabelValues(job.IntegrationHandle).Inc()
		if meta, metaErr := msg.Metadata(); metaErr == nil && meta.NumDelivered > 1 {
			w.metrics.JobsRedelivered.WithLabelValues(job.IntegrationHandle).Inc()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.JobTimeout)
	defer cancel()

	attemptErr := w.attempt(ctx, job)

	switch d := disposition(attemptErr); d {
	case DispositionAck:
		if err := msg.Ack(); err != nil {
			w.logger.Warn("ack failed", "subject", msg.Subject(), "error", err)
		}
	case DispositionRetry:
		w.logger.Warn("send job will be redelivered",
			"submission", job.SubmissionID,
			"integration", job.IntegrationHandle,
			"delay", w.cfg.RetryDelay,
			"error", attemptErr)
		if err := msg.NakWithDelay(w.cfg.RetryDelay); err != nil {
			w.logger.Warn("nak failed", "subject", msg.Subject(), "error", err)
		}
	case DispositionReject:
		w.logger.Error("send job terminated",
			"submission", job.SubmissionID,
			"integration", job.IntegrationHandle,
			"error", attemptErr)
		if err := msg.Term(); err != nil {
			w.logger.Warn("term failed", "subject", msg.Subject(), "error", err)
		}
	}
}

// attempt runs one delivery attempt for the job.
func (w *Worker) attempt(ctx context.Context, job Job) error {
	cfg, ok := w.integrations.Integration(job.IntegrationHandle)
	if !ok {
		return errors.WrapFatal(errors.ErrIntegrationNotFound, "Worker", "attempt", job.IntegrationHandle)
	}

	sub, err := w.submissions.Submission(ctx, job.SubmissionID)
	if err != nil {
		return err
	}

	_, err = w.sender.Send(ctx, sub, cfg)
	if err != nil && w.metrics != nil {
		w.metrics.ErrorsTotal.WithLabelValues(job.IntegrationHandle, errors.Classify(err).String()).Inc()
	}
	return err
}
