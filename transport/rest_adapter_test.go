package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-wabridge/core"
)

func TestRESTAdapter_PostsBodyWithMergedHeaders(t *testing.T) {
	var gotMethod, gotAgent, gotEvent string
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotAgent = r.Header.Get("User-Agent")
		gotEvent = r.Header.Get("X-Webhook-Event")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	adapter := NewRESTAdapter(server.Client())
	adapter.DefaultHeaders["User-Agent"] = "agent/1"

	res, err := adapter.Do(context.Background(), Request{
		URL:     server.URL,
		Headers: map[string]string{"X-Webhook-Event": "message"},
		Body:    []byte(`{"event":"message"}`),
	})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if !res.Success() || res.StatusCode != http.StatusAccepted {
		t.Fatalf("expected accepted response, got %d", res.StatusCode)
	}
	if gotMethod != http.MethodPost {
		t.Fatalf("expected POST default method, got %s", gotMethod)
	}
	if gotAgent != "agent/1" || gotEvent != "message" {
		t.Fatalf("expected merged headers, got %q %q", gotAgent, gotEvent)
	}
	if string(gotBody) != `{"event":"message"}` {
		t.Fatalf("unexpected body %q", gotBody)
	}
}

func TestRESTAdapter_TimeoutReturnsExternalError(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	adapter := NewRESTAdapter(server.Client())
	_, err := adapter.Do(context.Background(), Request{URL: server.URL, Timeout: 20 * time.Millisecond})
	if err == nil {
		t.Fatalf("expected timeout error")
	}
	if !core.IsErrorCode(err, core.ErrorExternalOperation) {
		t.Fatalf("expected external operation code, got %v", err)
	}
}

func TestRESTAdapter_ResponseLimitReturnsRichError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("12345"))
	}))
	defer server.Close()

	adapter := NewRESTAdapter(server.Client())
	adapter.MaxResponseBodyBytes = 4

	_, err := adapter.Do(context.Background(), Request{Method: http.MethodGet, URL: server.URL})
	if err == nil {
		t.Fatalf("expected response body limit error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryExternal {
		t.Fatalf("expected external category, got %q", rich.Category)
	}
	if rich.Code != http.StatusBadGateway {
		t.Fatalf("expected %d code, got %d", http.StatusBadGateway, rich.Code)
	}
}

func TestRESTAdapter_NilReturnsInternalError(t *testing.T) {
	var adapter *RESTAdapter
	_, err := adapter.Do(context.Background(), Request{URL: "http://x"})
	if !core.IsErrorCode(err, core.ErrorInternal) {
		t.Fatalf("expected internal error code, got %v", err)
	}
}
