package reliability

import "time"

// IsRetryableHTTPStatus classifies retryable HTTP status codes.
func IsRetryableHTTPStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// IsRateLimitStatus reports whether the status signals provider rate limiting.
// Rate-limit responses get a dedicated, longer backoff than ordinary retries.
func IsRateLimitStatus(code int) bool {
	return code == 429
}

// ExponentialBackoff computes a deterministic capped backoff duration.
func ExponentialBackoff(attempt int, base, cap time.Duration) time.Duration {
	if attempt <= 0 {
		return base
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= cap {
			return cap
		}
	}
	return d
}

// RateLimitBackoff returns the backoff for a rate-limited attempt. It starts
// from a higher floor so repeated 429s do not hammer the provider.
func RateLimitBackoff(attempt int, base, cap time.Duration) time.Duration {
	floor := 4 * base
	d := ExponentialBackoff(attempt, floor, cap)
	if d < floor {
		return floor
	}
	return d
}
