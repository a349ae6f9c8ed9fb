package port

import "time"

type Scheduler interface {
	// Schedule invokes fn once, at least d from now. Ordering between timers is unspecified.
	Schedule(d time.Duration, fn func())
}
