// Package pipeline orchestrates one integration send attempt: build the
// mapped payload, run mutation hooks, evaluate opt-in gating, deliver over
// HTTP, and record exactly one delivery result. One invocation is exactly
// one attempt; retrying a failed attempt is the queue's decision, made from
// the recorded result.
package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/extreme-creations/formie/deliverylog"
	"github.com/extreme-creations/formie/errors"
	"github.com/extreme-creations/formie/field"
	"github.com/extreme-creations/formie/integration"
	"github.com/extreme-creations/formie/mapping"
	"github.com/extreme-creations/formie/metric"
	"github.com/extreme-creations/formie/pkg/cache"
	"github.com/extreme-creations/formie/submission"
)

// State is a send attempt's position in the pipeline.
type State int

const (
	// StateBuilding resolves the field mapping into a payload.
	StateBuilding State = iota
	// StateMutating runs before-send hooks over the complete payload.
	StateMutating
	// StateSending performs the outbound HTTP call.
	StateSending
	// StateSucceeded is terminal: the payload was delivered.
	StateSucceeded
	// StateFailed is terminal: transport error or upstream rejection.
	StateFailed
	// StateCancelled is terminal: gating or a hook vetoed the attempt.
	StateCancelled
)

// String returns the string representation of State
func (s State) String() string {
	switch s {
	case StateBuilding:
		return "building"
	case StateMutating:
		return "mutating"
	case StateSending:
		return "sending"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Pipeline runs send attempts. Safe for concurrent use across different
// (submission, integration) pairs; the queue's single-consumer-per-job
// guarantee keeps at most one attempt in flight per pair.
type Pipeline struct {
	resolver  *mapping.Resolver
	transport Transport
	store     deliverylog.Store
	logger    *slog.Logger
	metrics   *metric.Metrics
	assembler Assembler

	beforeSend []Hook
	afterSend  []Hook
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithMetrics enables delivery metrics.
func WithMetrics(m *metric.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithAssembler sets the integration-specific payload assembly step.
func WithAssembler(a Assembler) Option {
	return func(p *Pipeline) { p.assembler = a }
}

// WithBeforeSendHook appends a hook fired after Building completes and
// before gating. Hooks run in registration order.
func WithBeforeSendHook(h Hook) Option {
	return func(p *Pipeline) { p.beforeSend = append(p.beforeSend, h) }
}

// WithAfterSendHook appends a hook fired after the HTTP call completes.
// After-send hook errors are logged, never fatal.
func WithAfterSendHook(h Hook) Option {
	return func(p *Pipeline) { p.afterSend = append(p.afterSend, h) }
}

// New creates a pipeline.
func New(resolver *mapping.Resolver, transport Transport, store deliverylog.Store, opts ...Option) *Pipeline {
	p := &Pipeline{
		resolver:  resolver,
		transport: transport,
		store:     store,
		logger:    slog.Default(),
		assembler: func(_ integration.Config, resolved *mapping.OrderedMap) *mapping.OrderedMap {
			return resolved
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Send runs one attempt end to end and returns the recorded result. The
// returned error is non-nil when the attempt failed; the queue decides
// redelivery from its classification. A fatal precondition (missing
// submission, disabled integration) means the attempt never started and no
// result is recorded.
func (p *Pipeline) Send(ctx context.Context, sub *submission.Submission, cfg integration.Config) (deliverylog.Result, error) {
	if !cfg.Enabled {
		return deliverylog.Result{}, errors.WrapInvalid(errors.ErrIntegrationDisabled, "Pipeline", "Send", "check enabled")
	}

	// Building: the mapping must fully resolve before any hook fires, so
	// hooks only ever see a complete, already-typed payload.
	resolved, err := p.resolver.Resolve(ctx, sub, cfg.Mapping, cfg.Fields)
	if err != nil {
		return deliverylog.Result{}, err
	}

	pc := &PayloadContext{
		Submission:  sub,
		Integration: cfg,
		Endpoint:    cfg.Endpoint,
		Method:      cfg.RequestMethod(),
		Headers:     cfg.Headers,
		Payload:     p.assembler(cfg, resolved),
		Cache:       cache.NewSimple[any](),
	}

	result := deliverylog.NewResult(sub.ID, cfg.Handle)

	// Mutating
	pc, hookErr := p.runBeforeSendHooks(ctx, pc)
	if hookErr != nil {
		// A hook failure is an attempt failure, not a veto: the error keeps
		// its classification so the queue can retry transient causes.
		result.State = deliverylog.StateFailed
		result.ErrorMessage = "before-send hook: " + hookErr.Error()
		p.finalize(ctx, result)
		return result, errors.Wrap(hookErr, "Pipeline", "Send", "run before-send hooks")
	}
	if pc.Cancelled() {
		return p.finalizeCancelled(ctx, result, cancelHookVeto, pc.CancelReason()), nil
	}

	// Gated
	if !p.optInAccepted(sub, cfg) {
		return p.finalizeCancelled(ctx, result, cancelOptInDeclined, "opt-in field not accepted"), nil
	}

	// Sending
	result = p.send(ctx, pc, result)

	// After-send hooks observe the outcome; their failures never change it.
	p.runAfterSendHooks(ctx, pc)

	p.finalize(ctx, result)

	if result.State == deliverylog.StateFailed {
		return result, errors.WrapTransient(errors.ErrDeliveryFailed, "Pipeline", "Send", cfg.Handle)
	}
	return result, nil
}

func (p *Pipeline) runBeforeSendHooks(ctx context.Context, pc *PayloadContext) (*PayloadContext, error) {
	for _, hook := range p.beforeSend {
		next, err := hook(ctx, pc.clone())
		if err != nil {
			return pc, err
		}
		if next == nil {
			continue
		}
		pc = next
		if pc.Cancelled() {
			return pc, nil
		}
	}
	return pc, nil
}

func (p *Pipeline) runAfterSendHooks(ctx context.Context, pc *PayloadContext) {
	for _, hook := range p.afterSend {
		if _, err := hook(ctx, pc.clone()); err != nil {
			p.logger.Warn("after-send hook failed",
				"integration", pc.Integration.Handle,
				"error", err)
		}
	}
}

// optInAccepted evaluates the integration's opt-in gate. A configured field
// that no longer exists on the form passes with a warning: configuration
// drift must not silently block every send.
func (p *Pipeline) optInAccepted(sub *submission.Submission, cfg integration.Config) bool {
	if cfg.OptInField == "" {
		return true
	}

	if _, ok := sub.Descriptor(cfg.OptInField); !ok {
		p.logger.Warn("opt-in field not on form, allowing send",
			"integration", cfg.Handle,
			"field", cfg.OptInField)
		return true
	}

	value, _ := sub.FieldValue(cfg.OptInField)
	return truthy(value)
}

// truthy reports whether a field value counts as consent.
func truthy(v field.Value) bool {
	switch v.Shape() {
	case field.ShapeEmpty:
		return false
	case field.ShapeScalar:
		switch s := v.Scalar().(type) {
		case bool:
			return s
		case string:
			return s != "" && s != "0" && s != "false"
		case float64:
			return s != 0
		case int:
			return s != 0
		case int64:
			return s != 0
		default:
			return true
		}
	case field.ShapeOptionSingle:
		return v.Option().Value != ""
	case field.ShapeOptionMulti:
		return len(v.Options()) > 0
	default:
		return true
	}
}

func (p *Pipeline) send(ctx context.Context, pc *PayloadContext, result deliverylog.Result) deliverylog.Result {
	body, err := json.Marshal(pc.Payload)
	if err != nil {
		result.State = deliverylog.StateFailed
		result.ErrorMessage = "payload marshal: " + err.Error()
		return result
	}

	if p.metrics != nil {
		p.metrics.PayloadBytes.WithLabelValues(pc.Integration.Handle).Observe(float64(len(body)))
	}

	start := time.Now()
	resp, err := p.transport.Send(ctx, Request{
		Method:  pc.Method,
		URL:     pc.Endpoint,
		Headers: pc.Headers,
		Body:    body,
	})
	if p.metrics != nil {
		p.metrics.SendDuration.WithLabelValues(pc.Integration.Handle).Observe(time.Since(start).Seconds())
	}

	if err != nil {
		// Timeouts are just another transport failure: Failed, logged,
		// no retry here.
		result.State = deliverylog.StateFailed
		result.ErrorMessage = err.Error()
		return result
	}

	result.HTTPStatus = resp.StatusCode
	result.ResponseBody = string(resp.Body)

	switch ClassifyResponse(resp) {
	case OutcomeOK:
		result.State = deliverylog.StateSucceeded
	case OutcomeDuplicate:
		// The record already exists upstream; the data arrived.
		result.State = deliverylog.StateSucceeded
		result.Duplicate = true
	default:
		result.State = deliverylog.StateFailed
	}

	return result
}

// Metric label values for cancelled attempts. The label set is fixed:
// free-form veto reasons stay in Result.Reason, never in a label.
const (
	cancelOptInDeclined = "opt_in_declined"
	cancelHookVeto      = "hook_veto"
)

func (p *Pipeline) finalizeCancelled(ctx context.Context, result deliverylog.Result, label, reason string) deliverylog.Result {
	result.State = deliverylog.StateCancelled
	result.Reason = reason

	if p.metrics != nil {
		p.metrics.CancelledTotal.WithLabelValues(result.IntegrationHandle, label).Inc()
	}

	p.finalize(ctx, result)
	return result
}

// finalize writes the one delivery result for this attempt. The append uses
// a detached context: an upstream cancellation (end of request, queue
// shutdown) must not be able to skip the log write.
func (p *Pipeline) finalize(ctx context.Context, result deliverylog.Result) {
	logCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := p.store.Append(logCtx, result); err != nil {
		p.logger.Error("delivery log append failed",
			"integration", result.IntegrationHandle,
			"submission", result.SubmissionID,
			"attempt", result.AttemptID,
			"error", err)
	}

	if p.metrics != nil {
		p.metrics.AttemptsTotal.WithLabelValues(result.IntegrationHandle, string(result.State)).Inc()
	}

	p.logger.Info("integration send attempt finished",
		"integration", result.IntegrationHandle,
		"submission", result.SubmissionID,
		"state", string(result.State),
		"status", result.HTTPStatus)
}
