package limiter

import "time"

// timing-related data used to decide when a host may be fetched again
type HostTiming struct {
	lastFetchAt time.Time
}

func (h HostTiming) LastFetchAt() time.Time {
	return h.lastFetchAt
}
