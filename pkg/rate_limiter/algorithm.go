package rate_limiter

// checkResult is the outcome contract shared by the four admission checks.
// Times are wall-clock unix seconds, matching the persisted state.
type checkResult struct {
	allowed    bool
	remaining  int
	resetAt    float64 // zero when the algorithm has no fixed reset point
	retryAfter float64 // seconds, zero unless denied
}

// elapsedSince clamps negative elapsed time (clock skew) to zero so that
// refill and leak arithmetic never runs backwards.
func elapsedSince(last, now float64) float64 {
	if now <= last {
		return 0
	}
	return now - last
}
