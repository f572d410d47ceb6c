package midgard

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"midgard-metrics/internal/domain"
)

func TestHTTPClient_FetchDepthPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/history/depths/BTC.BTC" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("interval") != "hour" || q.Get("from") != "1000" || q.Get("count") != "400" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"meta": {"startTime": "1000", "endTime": "8200"},
			"intervals": [
				{"startTime": "1000", "endTime": "4600", "assetDepth": "12.5"},
				{"startTime": 4600, "endTime": 8200, "assetDepth": 13}
			]
		}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, WithRateLimit(0, 0))
	page, err := client.FetchPage(context.Background(), PageRequest{
		Family: domain.FamilyDepths, Pool: "BTC.BTC", From: 1000,
	})
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}

	if page.EndTime != 8200 {
		t.Errorf("expected endTime 8200, got %d", page.EndTime)
	}
	if len(page.Intervals) != 2 {
		t.Fatalf("expected 2 intervals, got %d", len(page.Intervals))
	}
}

func TestHTTPClient_SwapsUsePoolQuery(t *testing.T) {
	var gotPool string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/history/swaps" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotPool = r.URL.Query().Get("pool")
		w.Write([]byte(`{"meta": {"endTime": 10}, "intervals": []}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, WithRateLimit(0, 0))
	if _, err := client.FetchPage(context.Background(), PageRequest{Family: domain.FamilySwaps, Pool: "ETH.ETH", Count: 50}); err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if gotPool != "ETH.ETH" {
		t.Errorf("expected pool ETH.ETH, got %q", gotPool)
	}
}

func TestHTTPClient_NetworkFamilies(t *testing.T) {
	paths := map[string]string{
		domain.FamilyEarnings: "/v2/history/earnings",
		domain.FamilyRunePool: "/v2/history/runepool",
	}
	for family, want := range paths {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != want {
				t.Errorf("%s: unexpected path %s", family, r.URL.Path)
			}
			w.Write([]byte(`{"meta": {"endTime": "10"}, "intervals": []}`))
		}))

		client := NewHTTPClient(server.URL, WithRateLimit(0, 0))
		if _, err := client.FetchPage(context.Background(), PageRequest{Family: family}); err != nil {
			t.Errorf("%s: FetchPage: %v", family, err)
		}
		server.Close()
	}
}

func TestHTTPClient_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream down"))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, WithRateLimit(0, 0))
	_, err := client.FetchPage(context.Background(), PageRequest{Family: domain.FamilyRunePool})

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", statusErr.StatusCode)
	}
}

func TestHTTPClient_MalformedEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"meta": {}, "intervals": []}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, WithRateLimit(0, 0))
	if _, err := client.FetchPage(context.Background(), PageRequest{Family: domain.FamilyEarnings}); err == nil {
		t.Fatal("expected error for missing meta.endTime")
	}
}

func TestHTTPClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	client := NewHTTPClient(server.URL, WithTimeout(50*time.Millisecond), WithRateLimit(0, 0))
	if _, err := client.FetchPage(context.Background(), PageRequest{Family: domain.FamilyRunePool}); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestHTTPClient_NoRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, WithRateLimit(0, 0))
	if _, err := client.FetchPage(context.Background(), PageRequest{Family: domain.FamilyRunePool}); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 call, got %d", calls.Load())
	}
}

func TestHTTPClient_RequiresPool(t *testing.T) {
	client := NewHTTPClient("http://127.0.0.1:1")
	if _, err := client.FetchPage(context.Background(), PageRequest{Family: domain.FamilyDepths}); err == nil {
		t.Error("expected error for depths without pool")
	}
	if _, err := client.FetchPage(context.Background(), PageRequest{Family: "candles"}); err == nil {
		t.Error("expected error for unknown family")
	}
}
