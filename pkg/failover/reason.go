package failover

import "time"

// Reason categorizes provider failures for cooldown and failover decisions.
type Reason string

const (
	ReasonBilling     Reason = "billing"
	ReasonRateLimit   Reason = "rate_limit"
	ReasonAuth        Reason = "auth"
	ReasonTimeout     Reason = "timeout"
	ReasonFormat      Reason = "format"
	ReasonUnavailable Reason = "unavailable"
	ReasonUnknown     Reason = "unknown"
)

// CooldownDuration returns how long a candidate is suspended after a
// failure of this kind. Format errors indicate a request defect, not a
// transient provider problem, so they never trigger a cooldown.
func (r Reason) CooldownDuration() time.Duration {
	switch r {
	case ReasonBilling:
		return time.Hour
	case ReasonRateLimit:
		return time.Minute
	case ReasonAuth:
		return 5 * time.Minute
	case ReasonTimeout:
		return 30 * time.Second
	case ReasonFormat:
		return 0
	case ReasonUnavailable:
		return time.Minute
	default:
		return 10 * time.Second
	}
}

// Valid reports whether r is one of the known failure reasons.
func (r Reason) Valid() bool {
	switch r {
	case ReasonBilling, ReasonRateLimit, ReasonAuth, ReasonTimeout,
		ReasonFormat, ReasonUnavailable, ReasonUnknown:
		return true
	}
	return false
}
