package pipeline

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/extreme-creations/formie/deliverylog"
	"github.com/extreme-creations/formie/errors"
	"github.com/extreme-creations/formie/field"
	"github.com/extreme-creations/formie/integration"
	"github.com/extreme-creations/formie/mapping"
	"github.com/extreme-creations/formie/metric"
	"github.com/extreme-creations/formie/projector"
	"github.com/extreme-creations/formie/submission"
)

// stubTransport records requests and replies with a scripted response.
type stubTransport struct {
	mu       sync.Mutex
	requests []Request
	response *Response
	err      error
}

func (s *stubTransport) Send(_ context.Context, req Request) (*Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	return s.response, nil
}

func (s *stubTransport) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func testSubmission() *submission.Submission {
	layout := []field.Descriptor{
		{Handle: "email", Kind: field.KindEmail},
		{Handle: "name", Kind: field.KindSingleLineText},
		{Handle: "optIn", Kind: field.KindAgree},
	}
	values := map[string]field.Value{
		"email": field.NewScalar("alice@example.com"),
		"name":  field.NewScalar("Alice"),
		"optIn": field.NewScalar(true),
	}
	return submission.New(7, "contact", layout, values)
}

func testConfig() integration.Config {
	return integration.Config{
		Handle:   "mailchimp",
		Category: integration.CategoryEmailMarketing,
		Enabled:  true,
		Endpoint: "https://api.example.com/members",
		ListID:   "abc",
		Mapping: integration.Mapping{
			{Target: "EMAIL", Source: "email"},
			{Target: "NAME", Source: "name"},
		},
		Fields: []integration.Field{
			{Handle: "EMAIL", Type: integration.FieldTypeString, Required: true},
			{Handle: "NAME", Type: integration.FieldTypeString},
		},
	}
}

func newTestPipeline(t *testing.T, transport Transport, store deliverylog.Store, opts ...Option) *Pipeline {
	t.Helper()
	resolver := mapping.NewResolver(projector.New(nil), nil, nil)
	return New(resolver, transport, store, opts...)
}

func TestSend_Success(t *testing.T) {
	transport := &stubTransport{response: &Response{StatusCode: 200, Body: []byte(`{"id":"m1"}`)}}
	store := deliverylog.NewMemoryStore()
	p := newTestPipeline(t, transport, store)

	result, err := p.Send(context.Background(), testSubmission(), testConfig())
	require.NoError(t, err)

	assert.Equal(t, deliverylog.StateSucceeded, result.State)
	assert.Equal(t, 200, result.HTTPStatus)
	assert.Equal(t, `{"id":"m1"}`, result.ResponseBody)
	assert.Equal(t, 1, transport.calls())

	// Payload arrived in mapping order with the resolved values
	var payload map[string]any
	require.NoError(t, json.Unmarshal(transport.requests[0].Body, &payload))
	assert.Equal(t, "alice@example.com", payload["EMAIL"])
	assert.Equal(t, "Alice", payload["NAME"])
}

func TestSend_ExactlyOneLogPerTerminalState(t *testing.T) {
	tests := []struct {
		name      string
		transport *stubTransport
		config    func() integration.Config
		state     deliverylog.State
		wantErr   bool
		httpCalls int
	}{
		{
			"200 response",
			&stubTransport{response: &Response{StatusCode: 200}},
			testConfig,
			deliverylog.StateSucceeded,
			false,
			1,
		},
		{
			"500 response",
			&stubTransport{response: &Response{StatusCode: 500, Body: []byte(`{"error":"upstream"}`)}},
			testConfig,
			deliverylog.StateFailed,
			true,
			1,
		},
		{
			"transport exception",
			&stubTransport{err: stderrors.New("dial tcp: connection refused")},
			testConfig,
			deliverylog.StateFailed,
			true,
			1,
		},
		{
			"gating rejection",
			&stubTransport{response: &Response{StatusCode: 200}},
			func() integration.Config {
				cfg := testConfig()
				cfg.OptInField = "optIn"
				return cfg
			},
			deliverylog.StateCancelled,
			false,
			0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := deliverylog.NewMemoryStore()
			p := newTestPipeline(t, tt.transport, store)

			sub := testSubmission()
			if tt.state == deliverylog.StateCancelled {
				// Unchecked opt-in
				sub = submission.New(7, "contact", sub.Layout(), map[string]field.Value{
					"email": field.NewScalar("alice@example.com"),
					"optIn": field.NewScalar(false),
				})
			}

			result, err := p.Send(context.Background(), sub, tt.config())
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}

			assert.Equal(t, tt.state, result.State)
			assert.Equal(t, tt.httpCalls, tt.transport.calls())

			entries := store.All()
			require.Len(t, entries, 1, "exactly one log entry per attempt")
			assert.Equal(t, tt.state, entries[0].State)
		})
	}
}

func TestSend_GatingCancelledIsNotFailure(t *testing.T) {
	transport := &stubTransport{response: &Response{StatusCode: 200}}
	store := deliverylog.NewMemoryStore()
	metrics := metric.NewMetrics()
	p := newTestPipeline(t, transport, store, WithMetrics(metrics))

	cfg := testConfig()
	cfg.OptInField = "optIn"

	sub := submission.New(7, "contact", []field.Descriptor{
		{Handle: "email", Kind: field.KindEmail},
		{Handle: "optIn", Kind: field.KindAgree},
	}, map[string]field.Value{
		"email": field.NewScalar("alice@example.com"),
		// optIn never submitted
	})

	result, err := p.Send(context.Background(), sub, cfg)
	require.NoError(t, err, "a cancelled send is not a system failure")

	assert.Equal(t, deliverylog.StateCancelled, result.State)
	assert.Equal(t, "opt-in field not accepted", result.Reason)
	assert.True(t, result.Success())
	assert.Equal(t, 0, transport.calls())
	assert.Equal(t, float64(1),
		testutil.ToFloat64(metrics.CancelledTotal.WithLabelValues("mailchimp", "opt_in_declined")))
}

func TestSend_OptInAccepted(t *testing.T) {
	transport := &stubTransport{response: &Response{StatusCode: 200}}
	store := deliverylog.NewMemoryStore()
	p := newTestPipeline(t, transport, store)

	cfg := testConfig()
	cfg.OptInField = "optIn"

	result, err := p.Send(context.Background(), testSubmission(), cfg)
	require.NoError(t, err)
	assert.Equal(t, deliverylog.StateSucceeded, result.State)
	assert.Equal(t, 1, transport.calls())
}

func TestSend_OptInFieldMissingFromFormAllowsSend(t *testing.T) {
	transport := &stubTransport{response: &Response{StatusCode: 200}}
	p := newTestPipeline(t, transport, deliverylog.NewMemoryStore())

	cfg := testConfig()
	cfg.OptInField = "ghostField"

	result, err := p.Send(context.Background(), testSubmission(), cfg)
	require.NoError(t, err)
	assert.Equal(t, deliverylog.StateSucceeded, result.State)
}

func TestSend_HookRewritesEndpointAndPayload(t *testing.T) {
	transport := &stubTransport{response: &Response{StatusCode: 200}}
	store := deliverylog.NewMemoryStore()

	hook := func(_ context.Context, pc *PayloadContext) (*PayloadContext, error) {
		pc.Endpoint = "https://api.example.com/v2/members"
		pc.Method = "PUT"
		pc.Payload.Set("SOURCE", "website")
		return pc, nil
	}

	p := newTestPipeline(t, transport, store, WithBeforeSendHook(hook))

	_, err := p.Send(context.Background(), testSubmission(), testConfig())
	require.NoError(t, err)

	require.Equal(t, 1, transport.calls())
	req := transport.requests[0]
	assert.Equal(t, "https://api.example.com/v2/members", req.URL)
	assert.Equal(t, "PUT", req.Method)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(req.Body, &payload))
	assert.Equal(t, "website", payload["SOURCE"])
}

func TestSend_HookIdempotence(t *testing.T) {
	hook := func(_ context.Context, pc *PayloadContext) (*PayloadContext, error) {
		pc.Payload.Set("TAG", "newsletter")
		return pc, nil
	}

	resolver := mapping.NewResolver(projector.New(nil), nil, nil)
	resolved, err := resolver.Resolve(context.Background(), testSubmission(), testConfig().Mapping, testConfig().Fields)
	require.NoError(t, err)

	pc := &PayloadContext{Payload: resolved}

	first, err := hook(context.Background(), pc.clone())
	require.NoError(t, err)
	second, err := hook(context.Background(), pc.clone())
	require.NoError(t, err)

	firstJSON, err := json.Marshal(first.Payload)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second.Payload)
	require.NoError(t, err)
	assert.Equal(t, string(firstJSON), string(secondJSON))

	// The original context is untouched by hook invocations
	_, ok := pc.Payload.Get("TAG")
	assert.False(t, ok)
}

func TestSend_HookVetoCancels(t *testing.T) {
	transport := &stubTransport{response: &Response{StatusCode: 200}}
	store := deliverylog.NewMemoryStore()

	hook := func(_ context.Context, pc *PayloadContext) (*PayloadContext, error) {
		return pc.WithCancel("suppressed by spam filter"), nil
	}

	metrics := metric.NewMetrics()
	p := newTestPipeline(t, transport, store, WithBeforeSendHook(hook), WithMetrics(metrics))

	result, err := p.Send(context.Background(), testSubmission(), testConfig())
	require.NoError(t, err)

	assert.Equal(t, deliverylog.StateCancelled, result.State)
	assert.Equal(t, "suppressed by spam filter", result.Reason)
	assert.Equal(t, 0, transport.calls())

	entries := store.All()
	require.Len(t, entries, 1)
	assert.Equal(t, deliverylog.StateCancelled, entries[0].State)

	// The metric label is the fixed veto marker, not the free-form reason
	assert.Equal(t, float64(1),
		testutil.ToFloat64(metrics.CancelledTotal.WithLabelValues("mailchimp", "hook_veto")))
	assert.Equal(t, float64(0),
		testutil.ToFloat64(metrics.CancelledTotal.WithLabelValues("mailchimp", "suppressed by spam filter")))
}

func TestSend_HookErrorFailsAttempt(t *testing.T) {
	transport := &stubTransport{response: &Response{StatusCode: 200}}
	store := deliverylog.NewMemoryStore()

	hook := func(_ context.Context, _ *PayloadContext) (*PayloadContext, error) {
		return nil, stderrors.New("hook exploded")
	}

	p := newTestPipeline(t, transport, store, WithBeforeSendHook(hook))

	result, err := p.Send(context.Background(), testSubmission(), testConfig())
	require.Error(t, err)

	// A hook failure is a Failed attempt, not a veto
	assert.Equal(t, deliverylog.StateFailed, result.State)
	assert.Contains(t, result.ErrorMessage, "hook exploded")
	assert.Equal(t, 0, transport.calls())

	entries := store.All()
	require.Len(t, entries, 1)
	assert.Equal(t, deliverylog.StateFailed, entries[0].State)
}

func TestSend_HookErrorKeepsClassification(t *testing.T) {
	transport := &stubTransport{response: &Response{StatusCode: 200}}
	store := deliverylog.NewMemoryStore()

	transientHook := func(_ context.Context, _ *PayloadContext) (*PayloadContext, error) {
		return nil, errors.WrapTransient(errors.ErrConnectionTimeout, "CRMHook", "lookup", "fetch contact")
	}

	p := newTestPipeline(t, transport, store, WithBeforeSendHook(transientHook))

	_, err := p.Send(context.Background(), testSubmission(), testConfig())
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err), "transient hook failures must stay retryable")

	invalidHook := func(_ context.Context, _ *PayloadContext) (*PayloadContext, error) {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "CRMHook", "lookup", "check settings")
	}

	p = newTestPipeline(t, transport, deliverylog.NewMemoryStore(), WithBeforeSendHook(invalidHook))

	_, err = p.Send(context.Background(), testSubmission(), testConfig())
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestSend_DuplicateTreatedAsDelivered(t *testing.T) {
	transport := &stubTransport{response: &Response{
		StatusCode: 400,
		Body:       []byte(`[{"errorCode":"DUPLICATES_DETECTED"}]`),
	}}
	store := deliverylog.NewMemoryStore()
	p := newTestPipeline(t, transport, store)

	result, err := p.Send(context.Background(), testSubmission(), testConfig())
	require.NoError(t, err)

	assert.Equal(t, deliverylog.StateSucceeded, result.State)
	assert.True(t, result.Duplicate)
	assert.Equal(t, 400, result.HTTPStatus)
}

func TestSend_FailureCapturesResponseBody(t *testing.T) {
	transport := &stubTransport{response: &Response{
		StatusCode: 422,
		Body:       []byte(`{"detail":"email is invalid"}`),
	}}
	store := deliverylog.NewMemoryStore()
	p := newTestPipeline(t, transport, store)

	result, err := p.Send(context.Background(), testSubmission(), testConfig())
	require.Error(t, err)

	assert.Equal(t, deliverylog.StateFailed, result.State)
	assert.Equal(t, 422, result.HTTPStatus)
	assert.Contains(t, result.ResponseBody, "email is invalid")
}

func TestSend_DisabledIntegrationNeverAttempts(t *testing.T) {
	transport := &stubTransport{response: &Response{StatusCode: 200}}
	store := deliverylog.NewMemoryStore()
	p := newTestPipeline(t, transport, store)

	cfg := testConfig()
	cfg.Enabled = false

	_, err := p.Send(context.Background(), testSubmission(), cfg)
	require.Error(t, err)
	assert.Equal(t, 0, transport.calls())
	assert.Empty(t, store.All())
}

func TestSend_AssemblerWrapsPayload(t *testing.T) {
	transport := &stubTransport{response: &Response{StatusCode: 200}}
	store := deliverylog.NewMemoryStore()

	assembler := func(cfg integration.Config, resolved *mapping.OrderedMap) *mapping.OrderedMap {
		wrapped := mapping.NewOrderedMap()
		wrapped.Set("listId", cfg.ListID)
		wrapped.Set("contact", resolved)
		return wrapped
	}

	p := newTestPipeline(t, transport, store, WithAssembler(assembler))

	_, err := p.Send(context.Background(), testSubmission(), testConfig())
	require.NoError(t, err)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(transport.requests[0].Body, &payload))
	assert.Equal(t, "abc", payload["listId"])

	contact, ok := payload["contact"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "alice@example.com", contact["EMAIL"])
}

func TestSend_AfterSendHookFailureDoesNotChangeOutcome(t *testing.T) {
	transport := &stubTransport{response: &Response{StatusCode: 200}}
	store := deliverylog.NewMemoryStore()

	hook := func(_ context.Context, _ *PayloadContext) (*PayloadContext, error) {
		return nil, stderrors.New("observer broke")
	}

	p := newTestPipeline(t, transport, store, WithAfterSendHook(hook))

	result, err := p.Send(context.Background(), testSubmission(), testConfig())
	require.NoError(t, err)
	assert.Equal(t, deliverylog.StateSucceeded, result.State)
}

func TestClassifyResponse(t *testing.T) {
	tests := []struct {
		name     string
		resp     *Response
		expected Outcome
	}{
		{"nil response", nil, OutcomeError},
		{"200", &Response{StatusCode: 200}, OutcomeOK},
		{"201", &Response{StatusCode: 201}, OutcomeOK},
		{"409 conflict", &Response{StatusCode: 409}, OutcomeDuplicate},
		{"400 with duplicate marker", &Response{StatusCode: 400, Body: []byte(`DUPLICATES_DETECTED`)}, OutcomeDuplicate},
		{"400 member exists", &Response{StatusCode: 400, Body: []byte(`alice is already a list member`)}, OutcomeDuplicate},
		{"500", &Response{StatusCode: 500}, OutcomeError},
		{"404", &Response{StatusCode: 404, Body: []byte("not found")}, OutcomeError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ClassifyResponse(tt.resp))
		})
	}
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "building", StateBuilding.String())
	assert.Equal(t, "mutating", StateMutating.String())
	assert.Equal(t, "sending", StateSending.String())
	assert.Equal(t, "succeeded", StateSucceeded.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "cancelled", StateCancelled.String())
	assert.Equal(t, "unknown", State(42).String())
}
