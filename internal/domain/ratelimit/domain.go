package ratelimit

type Reason string

const (
	ReasonAllowed     Reason = "allowed"
	ReasonLimited     Reason = "limited"
	ReasonBanned      Reason = "banned"
	ReasonUnavailable Reason = "unavailable"
)

type Decision struct {
	Allowed bool
	Reason  Reason
	Count   int64
}

// FailMode decides what a policy answers while the counter store is down.
type FailMode string

const (
	FailOpen   FailMode = "open"
	FailClosed FailMode = "closed"
)
