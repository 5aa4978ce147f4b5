// Package queue moves send jobs between the form runtime and the delivery
// worker over NATS JetStream. A job names one (submission, integration) pair;
// the consumer runs at most one attempt per job delivery, and redelivery
// policy lives entirely in the stream configuration.
package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/extreme-creations/formie/errors"
)

// SubjectPrefix is the subject space all send jobs publish under. The last
// token is the integration handle so a consumer can filter per integration.
const SubjectPrefix = "formie.sends"

// Job is one queued send: deliver submission SubmissionID to the integration
// named IntegrationHandle.
type Job struct {
	SubmissionID      int64     `json:"submission_id"`
	IntegrationHandle string    `json:"integration_handle"`
	EnqueuedAt        time.Time `json:"enqueued_at"`
}

// Subject returns the NATS subject this job publishes to.
func (j Job) Subject() string {
	return fmt.Sprintf("%s.%s", SubjectPrefix, j.IntegrationHandle)
}

// Validate checks that the job names a real pair.
func (j Job) Validate() error {
	if j.SubmissionID <= 0 {
		return errors.WrapInvalid(
			fmt.Errorf("submission id must be positive, got %d", j.SubmissionID),
			"Job", "Validate", "check submission id")
	}
	if j.IntegrationHandle == "" {
		return errors.WrapInvalid(
			fmt.Errorf("integration handle is required"),
			"Job", "Validate", "check integration handle")
	}
	return nil
}

// Marshal encodes the job for publishing.
func (j Job) Marshal() ([]byte, error) {
	data, err := json.Marshal(j)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Job", "Marshal", "encode job")
	}
	return data, nil
}

// ParseJob decodes and validates a job payload.
func ParseJob(data []byte) (Job, error) {
	var j Job
	if err := json.Unmarshal(data, &j); err != nil {
		return Job{}, errors.WrapInvalid(err, "Job", "ParseJob", "decode job")
	}
	if err := j.Validate(); err != nil {
		return Job{}, err
	}
	return j, nil
}
