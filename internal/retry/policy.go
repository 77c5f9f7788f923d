package retry

import "time"

// StrategyFor builds a Strategy from a DAG/node retryPolicy's Strategy name
// and base backoff duration (spec §4.3's "DAG-level retryPolicy wins over
// node-level; both default to {3, 2s}"). Unknown names fall back to fixed
// delay, same as an empty string.
func StrategyFor(name string, backoff time.Duration) Strategy {
	switch name {
	case "exponential":
		return NewExponentialBackoff(backoff, 5*time.Minute, false)
	case "linear":
		return NewLinearBackoff(backoff, 5*time.Minute, backoff, false)
	case "none":
		return NewNoRetry()
	case "fixed", "":
		return NewFixedDelay(backoff, false)
	default:
		return NewFixedDelay(backoff, false)
	}
}
