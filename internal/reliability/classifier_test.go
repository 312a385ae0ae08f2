package reliability

import (
	"testing"
	"time"
)

func TestIsRetryableHTTPStatus(t *testing.T) {
	cases := []struct {
		code int
		want bool
	}{
		{200, false},
		{400, false},
		{404, false},
		{429, true},
		{500, true},
		{502, true},
		{503, true},
		{504, true},
	}
	for _, tc := range cases {
		if got := IsRetryableHTTPStatus(tc.code); got != tc.want {
			t.Fatalf("IsRetryableHTTPStatus(%d) = %v, want %v", tc.code, got, tc.want)
		}
	}
}

func TestExponentialBackoffCaps(t *testing.T) {
	base := 100 * time.Millisecond
	cap := time.Second

	if got := ExponentialBackoff(0, base, cap); got != base {
		t.Fatalf("attempt 0 = %v, want %v", got, base)
	}
	if got := ExponentialBackoff(1, base, cap); got != 200*time.Millisecond {
		t.Fatalf("attempt 1 = %v, want 200ms", got)
	}
	if got := ExponentialBackoff(10, base, cap); got != cap {
		t.Fatalf("attempt 10 = %v, want cap %v", got, cap)
	}
}

func TestRateLimitBackoffFloor(t *testing.T) {
	base := 100 * time.Millisecond
	cap := 10 * time.Second

	if got := RateLimitBackoff(0, base, cap); got < 4*base {
		t.Fatalf("rate limit backoff = %v, want >= %v", got, 4*base)
	}
	if !IsRateLimitStatus(429) {
		t.Fatalf("429 should classify as rate limit")
	}
	if IsRateLimitStatus(503) {
		t.Fatalf("503 should not classify as rate limit")
	}
}
