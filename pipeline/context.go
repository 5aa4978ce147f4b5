package pipeline

import (
	"context"

	"github.com/extreme-creations/formie/integration"
	"github.com/extreme-creations/formie/mapping"
	"github.com/extreme-creations/formie/pkg/cache"
	"github.com/extreme-creations/formie/submission"
)

// PayloadContext carries everything a send attempt knows at the Mutating
// stage: the complete, already-typed payload plus the endpoint and method it
// will be sent with. Hooks receive a clone and return a new context, so the
// state machine's transition stays pure; the pipeline always re-reads
// endpoint, method, headers and payload from the returned context.
type PayloadContext struct {
	Submission  *submission.Submission
	Integration integration.Config

	Endpoint string
	Method   string
	Headers  map[string]string
	Payload  *mapping.OrderedMap

	// Cache is scoped to one pipeline invocation. It replaces ambient
	// per-request statics: anything a hook wants to share with a later
	// hook goes here and dies with the attempt.
	Cache *cache.Simple[any]

	cancelled bool
	reason    string
}

// Cancelled reports whether a hook vetoed the attempt.
func (pc *PayloadContext) Cancelled() bool {
	return pc.cancelled
}

// CancelReason returns the veto reason, if any.
func (pc *PayloadContext) CancelReason() string {
	return pc.reason
}

// WithCancel returns a copy marked cancelled with the given reason.
func (pc *PayloadContext) WithCancel(reason string) *PayloadContext {
	out := pc.clone()
	out.cancelled = true
	out.reason = reason
	return out
}

// clone copies the context. The payload is cloned too so hook rewrites never
// alias the pipeline's own copy; headers are copied for the same reason.
func (pc *PayloadContext) clone() *PayloadContext {
	headers := make(map[string]string, len(pc.Headers))
	for k, v := range pc.Headers {
		headers[k] = v
	}

	var payload *mapping.OrderedMap
	if pc.Payload != nil {
		payload = pc.Payload.Clone()
	}

	return &PayloadContext{
		Submission:  pc.Submission,
		Integration: pc.Integration,
		Endpoint:    pc.Endpoint,
		Method:      pc.Method,
		Headers:     headers,
		Payload:     payload,
		Cache:       pc.Cache,
		cancelled:   pc.cancelled,
		reason:      pc.reason,
	}
}

// Hook is an extension point fired around the send. A hook may rewrite the
// payload, endpoint or method by returning an updated context, or veto the
// attempt via WithCancel. Hooks must be idempotent: invoking one twice with
// an identical context must produce an identical result with no duplicated
// side effects.
type Hook func(ctx context.Context, pc *PayloadContext) (*PayloadContext, error)

// Assembler wraps the generic resolved map into the integration-specific
// payload shape. Which fields nest under which keys is each integration's
// own contract; the default assembler passes the resolved map through
// unchanged.
type Assembler func(cfg integration.Config, resolved *mapping.OrderedMap) *mapping.OrderedMap
