package embedding

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestServer(t *testing.T, failures int, calls *atomic.Int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if int(n) <= failures {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var req embeddingsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		resp := embeddingsResponse{}
		for i := range req.Input {
			resp.Data = append(resp.Data, struct {
				Index     int       `json:"index"`
				Embedding []float64 `json:"embedding"`
			}{Index: i, Embedding: []float64{float64(i), 1, 0}})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestEmbedBatchRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int64
	srv := newTestServer(t, 2, &calls)
	defer srv.Close()

	p, err := NewHTTPProvider(HTTPConfig{
		URL:        srv.URL,
		Model:      "test-model",
		Dimensions: 3,
		MaxRetries: 3,
		RetryBase:  time.Millisecond,
		RetryCap:   5 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewHTTPProvider() error = %v", err)
	}

	vecs, err := p.EmbedBatch(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("EmbedBatch() error = %v", err)
	}
	if len(vecs) != 2 {
		t.Fatalf("got %d vectors, want 2", len(vecs))
	}
	if calls.Load() != 3 {
		t.Fatalf("provider called %d times, want 3 (2 failures + 1 success)", calls.Load())
	}
}

func TestEmbedBatchExhaustsRetries(t *testing.T) {
	var calls atomic.Int64
	srv := newTestServer(t, 100, &calls)
	defer srv.Close()

	p, _ := NewHTTPProvider(HTTPConfig{
		URL:        srv.URL,
		Dimensions: 3,
		MaxRetries: 2,
		RetryBase:  time.Millisecond,
		RetryCap:   2 * time.Millisecond,
	})
	if _, err := p.EmbedBatch(context.Background(), []string{"x"}); err == nil {
		t.Fatalf("EmbedBatch() should fail after retry exhaustion")
	}
	if calls.Load() != 3 {
		t.Fatalf("provider called %d times, want 3", calls.Load())
	}
}

func TestEmbedBatchDoesNotRetryBadRequest(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	p, _ := NewHTTPProvider(HTTPConfig{
		URL:        srv.URL,
		Dimensions: 3,
		MaxRetries: 3,
		RetryBase:  time.Millisecond,
	})
	if _, err := p.EmbedBatch(context.Background(), []string{"x"}); err == nil {
		t.Fatalf("EmbedBatch() should fail on 400")
	}
	if calls.Load() != 1 {
		t.Fatalf("provider called %d times, want 1 (no retry on 400)", calls.Load())
	}
}

func TestSanitize(t *testing.T) {
	cases := []struct {
		in, want string
		max      int
	}{
		{"  hello   world  ", "hello world", 100},
		{"a\tb\nc", "a b c", 100},
		{"abcdef", "abc", 3},
		{"", "", 100},
	}
	for _, tc := range cases {
		if got := Sanitize(tc.in, tc.max); got != tc.want {
			t.Fatalf("Sanitize(%q, %d) = %q, want %q", tc.in, tc.max, got, tc.want)
		}
	}
}

func TestFallbackVectorUnitNormAndDeterministic(t *testing.T) {
	a := FallbackVector("stand A12 capacity", 64)
	b := FallbackVector("stand A12 capacity", 64)
	c := FallbackVector("different text", 64)

	var norm float64
	for _, v := range a {
		norm += v * v
	}
	if math.Abs(math.Sqrt(norm)-1) > 1e-9 {
		t.Fatalf("fallback norm = %v, want 1", math.Sqrt(norm))
	}

	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("fallback not deterministic at index %d", i)
		}
	}

	same := true
	for i := range a {
		if a[i] != c[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatalf("distinct inputs produced identical fallback vectors")
	}

	empty := FallbackVector("", 8)
	if empty[0] != 1 {
		t.Fatalf("empty-input fallback should be the unit basis vector")
	}
}
