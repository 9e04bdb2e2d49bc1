package rate_limiter

import "math"

// tokenBucketCheck refills the bucket for the elapsed time, capped at
// capacity, and consumes one token when at least one is available. There is
// no fixed reset point: tokens come back continuously.
func tokenBucketCheck(prev *tokenBucketState, cfg Config, now float64) (tokenBucketState, checkResult) {
	bucket := tokenBucketState{
		Tokens:     float64(cfg.Requests),
		LastRefill: now,
	}
	if prev != nil {
		bucket = *prev
	}

	refilled := elapsedSince(bucket.LastRefill, now) * cfg.rate()
	bucket.Tokens = math.Min(float64(cfg.Requests), bucket.Tokens+refilled)
	bucket.LastRefill = now

	res := checkResult{}
	if bucket.Tokens >= 1 {
		bucket.Tokens--
		res.allowed = true
	} else {
		res.retryAfter = math.Ceil(1 / cfg.rate())
	}
	res.remaining = int(bucket.Tokens)

	return bucket, res
}
