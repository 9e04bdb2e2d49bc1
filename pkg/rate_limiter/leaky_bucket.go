package rate_limiter

import "math"

// leakyBucketCheck drains the bucket at cfg.rate() for the elapsed time and
// admits a request while the volume is below capacity. Volume never goes
// negative regardless of how long the bucket sat idle.
func leakyBucketCheck(prev *leakyBucketState, cfg Config, now float64) (leakyBucketState, checkResult) {
	bucket := leakyBucketState{Volume: 0, LastLeak: now}
	if prev != nil {
		bucket = *prev
	}

	leaked := elapsedSince(bucket.LastLeak, now) * cfg.rate()
	bucket.Volume = math.Max(0, bucket.Volume-leaked)
	bucket.LastLeak = now

	capacity := float64(cfg.Requests)

	res := checkResult{}
	if bucket.Volume < capacity {
		bucket.Volume++
		res.allowed = true
	} else {
		res.retryAfter = math.Ceil((bucket.Volume - capacity) / cfg.rate())
	}

	res.remaining = int(capacity - bucket.Volume)
	if res.remaining < 0 {
		res.remaining = 0
	}

	return bucket, res
}
