package executor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRunRoundTrip(t *testing.T) {
	var gotToken string
	var gotReq RunRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("Access-Token")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(RunResult{
			Output:     "42\n",
			ExitCode:   0,
			ExitStatus: StatusSuccess,
			UsedTime:   17,
		})
	}))
	defer server.Close()

	client := NewHTTPClient(Config{BaseURL: server.URL, AccessToken: "secret"})
	result := client.Run(context.Background(), RunRequest{Input: "6 7", Code: "int main() {}", Timeout: 200})

	if result.ExitStatus != StatusSuccess || result.Output != "42\n" || result.UsedTime != 17 {
		t.Fatalf("unexpected result %+v", result)
	}
	if gotToken != "secret" {
		t.Fatalf("access token header not sent, got %q", gotToken)
	}
	if gotReq.Input != "6 7" || gotReq.Code != "int main() {}" || gotReq.Timeout != 200 {
		t.Fatalf("unexpected wire request %+v", gotReq)
	}
}

func TestRunDefaultsTimeout(t *testing.T) {
	var gotReq RunRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		_ = json.NewEncoder(w).Encode(RunResult{ExitStatus: StatusSuccess})
	}))
	defer server.Close()

	client := NewHTTPClient(Config{BaseURL: server.URL})
	client.Run(context.Background(), RunRequest{Input: "x", Code: "y"})

	if gotReq.Timeout != 100 {
		t.Fatalf("expected default 100ms timeout on the wire, got %d", gotReq.Timeout)
	}
}

func TestRunConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // nothing listens anymore

	client := NewHTTPClient(Config{BaseURL: server.URL})
	result := client.Run(context.Background(), RunRequest{Input: "x", Code: "y", Timeout: 100})

	want := CantConnectResult()
	if result != want {
		t.Fatalf("expected sentinel %+v, got %+v", want, result)
	}
}

func TestRunNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewHTTPClient(Config{BaseURL: server.URL})
	result := client.Run(context.Background(), RunRequest{Input: "x", Code: "y", Timeout: 100})

	if result.ExitStatus != StatusCantConnect {
		t.Fatalf("expected CANT_CONNECT_TO_COMPILER, got %s", result.ExitStatus)
	}
}

func TestRunMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer server.Close()

	client := NewHTTPClient(Config{BaseURL: server.URL})
	result := client.Run(context.Background(), RunRequest{Input: "x", Code: "y", Timeout: 100})

	if result.ExitStatus != StatusCantConnect {
		t.Fatalf("expected CANT_CONNECT_TO_COMPILER, got %s", result.ExitStatus)
	}
}

func TestRunTimeoutDegrades(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		_ = json.NewEncoder(w).Encode(RunResult{ExitStatus: StatusSuccess})
	}))
	defer server.Close()

	client := NewHTTPClient(Config{BaseURL: server.URL, TransportMargin: 50 * time.Millisecond})
	result := client.Run(context.Background(), RunRequest{Input: "x", Code: "y", Timeout: 50})

	if result.ExitStatus != StatusCantConnect {
		t.Fatalf("a slow sandbox should degrade to the sentinel, got %s", result.ExitStatus)
	}
}
