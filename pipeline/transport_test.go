package pipeline

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPTransport_Send(t *testing.T) {
	var gotMethod, gotContentType, gotAuth string
	var gotBody []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotContentType = r.Header.Get("Content-Type")
		gotAuth = r.Header.Get("Authorization")
		gotBody, _ = io.ReadAll(r.Body)

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"rec-1"}`))
	}))
	defer server.Close()

	transport := NewHTTPTransport(5 * time.Second)
	resp, err := transport.Send(context.Background(), Request{
		Method:  "POST",
		URL:     server.URL,
		Headers: map[string]string{"Authorization": "Bearer tok"},
		Body:    []byte(`{"EMAIL":"alice@example.com"}`),
	})
	require.NoError(t, err)

	assert.Equal(t, 201, resp.StatusCode)
	assert.Equal(t, `{"id":"rec-1"}`, string(resp.Body))
	assert.Equal(t, "POST", gotMethod)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, `{"EMAIL":"alice@example.com"}`, string(gotBody))
}

func TestHTTPTransport_ErrorStatusIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"detail":"email is invalid"}`))
	}))
	defer server.Close()

	transport := NewHTTPTransport(5 * time.Second)
	resp, err := transport.Send(context.Background(), Request{Method: "POST", URL: server.URL})
	require.NoError(t, err, "upstream rejection must surface as a response, not an error")

	assert.Equal(t, 422, resp.StatusCode)
	assert.Contains(t, string(resp.Body), "email is invalid")
}

func TestHTTPTransport_ConnectionFailure(t *testing.T) {
	transport := NewHTTPTransport(time.Second)

	// Closed server: the request never completes
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	resp, err := transport.Send(context.Background(), Request{Method: "POST", URL: url})
	require.Error(t, err)
	assert.Nil(t, resp)
}

func TestHTTPTransport_CapsCapturedBody(t *testing.T) {
	huge := strings.Repeat("x", maxCapturedBody*2)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, huge)
	}))
	defer server.Close()

	transport := NewHTTPTransport(5 * time.Second)
	resp, err := transport.Send(context.Background(), Request{Method: "GET", URL: server.URL})
	require.NoError(t, err)

	assert.Len(t, resp.Body, maxCapturedBody)
}

func TestHTTPTransport_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	transport := NewHTTPTransport(time.Minute)
	_, err := transport.Send(ctx, Request{Method: "POST", URL: server.URL})
	assert.Error(t, err)
}
