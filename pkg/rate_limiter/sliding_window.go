package rate_limiter

// slidingWindowCheck keeps the timestamps of the requests admitted during
// the last window and allows a new one while fewer than cfg.Requests are
// retained. The reset point is when the oldest retained request leaves the
// window.
func slidingWindowCheck(prev *slidingWindowState, cfg Config, now float64) (slidingWindowState, checkResult) {
	windowStart := now - float64(cfg.Window)

	var history []float64
	if prev != nil {
		history = prev.Requests
	}

	retained := make([]float64, 0, len(history)+1)
	for _, ts := range history {
		if ts > windowStart {
			retained = append(retained, ts)
		}
	}

	res := checkResult{}
	if len(retained) < cfg.Requests {
		retained = append(retained, now)
		res.allowed = true
	}

	if len(retained) > 0 {
		oldest := retained[0]
		for _, ts := range retained[1:] {
			if ts < oldest {
				oldest = ts
			}
		}
		res.resetAt = oldest + float64(cfg.Window)
	}

	if !res.allowed && res.resetAt > 0 {
		res.retryAfter = res.resetAt - now
	}

	res.remaining = cfg.Requests - len(retained)
	if res.remaining < 0 {
		res.remaining = 0
	}

	return slidingWindowState{Requests: retained}, res
}
