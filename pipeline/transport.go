package pipeline

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"
)

// Request is one outbound delivery request.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

// Response captures the status and full body of an upstream reply. The body
// is captured even on error responses because upstream APIs frequently embed
// structured error details in a 4xx/5xx body.
type Response struct {
	StatusCode int
	Body       []byte
}

// Transport performs the outbound HTTP call for the pipeline's Sending
// state. A returned error means the request never completed (DNS, timeout,
// connection reset); an upstream error status comes back as a Response with
// a nil error so the body survives for diagnostics.
type Transport interface {
	Send(ctx context.Context, req Request) (*Response, error)
}

// Outcome classifies an upstream response. Duplicate is a first-class
// outcome rather than exception control flow: CRM APIs report an existing
// record as an error status, but for delivery purposes the data arrived.
type Outcome int

const (
	// OutcomeOK is a 2xx response.
	OutcomeOK Outcome = iota
	// OutcomeDuplicate is an upstream duplicate-record rejection.
	OutcomeDuplicate
	// OutcomeError is any other non-2xx response.
	OutcomeError
)

// duplicateMarkers are upstream body fragments that identify a
// duplicate-record rejection.
var duplicateMarkers = []string{
	"DUPLICATES_DETECTED",
	"duplicate parameter",
	"already a list member",
}

// ClassifyResponse maps an upstream response to an Outcome.
func ClassifyResponse(resp *Response) Outcome {
	if resp == nil {
		return OutcomeError
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return OutcomeOK
	}

	if resp.StatusCode == http.StatusConflict {
		return OutcomeDuplicate
	}

	body := string(resp.Body)
	for _, marker := range duplicateMarkers {
		if strings.Contains(body, marker) {
			return OutcomeDuplicate
		}
	}

	return OutcomeError
}

// maxCapturedBody caps how much of an upstream body is kept for the
// delivery log.
const maxCapturedBody = 64 * 1024

// HTTPTransport is the production Transport backed by net/http.
type HTTPTransport struct {
	client      *http.Client
	contentType string
}

// NewHTTPTransport creates a transport with the given timeout. A zero
// timeout defaults to 30 seconds.
func NewHTTPTransport(timeout time.Duration) *HTTPTransport {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &HTTPTransport{
		client:      &http.Client{Timeout: timeout},
		contentType: "application/json",
	}
}

// Send implements Transport.
func (t *HTTPTransport) Send(ctx context.Context, req Request) (*Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", t.contentType)
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCapturedBody))
	if err != nil {
		// Keep the status even when the body read fails mid-stream.
		return &Response{StatusCode: resp.StatusCode}, nil
	}

	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}
