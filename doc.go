// Package formie implements the form-to-integration delivery core: it takes
// normalized form submission values, maps them onto external integration
// schemas, and delivers the mapped payloads over HTTP with a durable record
// of every attempt.
//
// # Architecture
//
// A submission flows through four stages:
//
//	┌─────────────────────────────────────┐
//	│            Queue                    │  NATS JetStream jobs,
//	│  (one job per submission+target)    │  redelivery policy
//	└─────────────────────────────────────┘
//	           ↓ dispatches
//	┌─────────────────────────────────────┐
//	│           Pipeline                  │  Build → Mutate → Gate →
//	│   (one invocation, one attempt)     │  Send, exactly one result
//	└─────────────────────────────────────┘
//	           ↓ resolves via
//	┌─────────────────────────────────────┐
//	│      Mapping + Projection           │  Field values typed for
//	│  (handles, dotted paths, templates) │  the target schema
//	└─────────────────────────────────────┘
//	           ↓ records to
//	┌─────────────────────────────────────┐
//	│         Delivery Log                │  Append-only NATS KV,
//	│   (succeeded/failed/cancelled)      │  one entry per attempt
//	└─────────────────────────────────────┘
//
// # Packages
//
//   - field: normalized field values (scalars, options, dates, composites)
//   - submission: read-only access to a filled-in form
//   - integration: external schemas, field type resolution, configuration
//   - projector: value projection for display, summary, export and delivery
//   - mapping: mapping resolution with templates and null stripping
//   - pipeline: the send state machine with hooks and opt-in gating
//   - deliverylog: the append-only per-attempt delivery record
//   - queue: JetStream job publishing and the delivery worker
//
// The pipeline never retries on its own: a failed attempt is recorded and
// surfaced, and the queue decides whether the job is redelivered.
package formie
