package rate_limiter

import "math"

// fixedWindowCheck counts requests inside wall-clock-aligned windows.
// Crossing a window boundary starts a fresh counter, so a burst straddling
// the boundary can briefly admit up to twice the limit.
func fixedWindowCheck(prev *fixedWindowState, cfg Config, now float64) (fixedWindowState, checkResult) {
	boundary := math.Floor(now/float64(cfg.Window)) * float64(cfg.Window)

	window := fixedWindowState{Count: 0, WindowStart: boundary}
	if prev != nil && prev.WindowStart == boundary {
		window = *prev
	}

	res := checkResult{
		resetAt: boundary + float64(cfg.Window),
	}
	if window.Count < cfg.Requests {
		window.Count++
		res.allowed = true
	} else {
		res.retryAfter = res.resetAt - now
	}

	res.remaining = cfg.Requests - window.Count
	if res.remaining < 0 {
		res.remaining = 0
	}

	return window, res
}
