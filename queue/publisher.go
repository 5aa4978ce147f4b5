package queue

import (
	"context"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/extreme-creations/formie/errors"
)

// Publisher enqueues send jobs onto the delivery stream.
type Publisher struct {
	js jetstream.JetStream
}

// NewPublisher creates a publisher.
func NewPublisher(js jetstream.JetStream) *Publisher {
	return &Publisher{js: js}
}

// Enqueue publishes one send job. EnqueuedAt is stamped here so callers only
// name the pair.
func (p *Publisher) Enqueue(ctx context.Context, submissionID int64, integrationHandle string) error {
	job := Job{
		SubmissionID:      submissionID,
		IntegrationHandle: integrationHandle,
		EnqueuedAt:        time.Now().UTC(),
	}
	if err := job.Validate(); err != nil {
		return err
	}

	data, err := job.Marshal()
	if err != nil {
		return err
	}

	if _, err := p.js.Publish(ctx, job.Subject(), data); err != nil {
		return errors.WrapTransient(err, "Publisher", "Enqueue", job.Subject())
	}
	return nil
}
