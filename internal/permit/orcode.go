package permit

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// orClock hands out strictly increasing nanosecond timestamps so two
// approvals in the same instant still produce distinct order-of-payment
// codes.
type orClock struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func newORClock() *orClock {
	return &orClock{now: time.Now}
}

func (c *orClock) next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	ts := c.now().UnixNano()
	if ts <= c.last {
		ts = c.last + 1
	}
	c.last = ts
	return ts
}

// generateORCode builds the order-of-payment code handed to the citizen for
// cashier payment: `<prefix>-<timestamp>-<entity suffix>`. The monotonic
// timestamp plus entity-derived suffix makes collisions effectively
// impossible under concurrent approvals, and the code stays human-readable
// on the payment slip.
func generateORCode(clock *orClock, prefix, entityID string) string {
	suffix := strings.ReplaceAll(entityID, "-", "")
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	return fmt.Sprintf("%s-%d-%s", prefix, clock.next(), suffix)
}
