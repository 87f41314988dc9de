package ratelimit

import (
	"sync"
	"time"
)

// Pacer slows a batch of remote calls down: after every burst of calls it
// sleeps for the configured delay so a big recovery sweep does not hammer
// the panels. One Pacer is shared across jobs that may overlap, so the
// counter is guarded.
type Pacer struct {
	burst int
	delay time.Duration
	sleep func(time.Duration)

	mu    sync.Mutex
	count int
}

// NewPacer returns a pacer that sleeps delay after every burst calls.
// A burst or delay of zero disables pacing.
func NewPacer(burst int, delay time.Duration) *Pacer {
	return &Pacer{burst: burst, delay: delay, sleep: time.Sleep}
}

// WithSleep overrides the sleep function (tests).
func (p *Pacer) WithSleep(sleep func(time.Duration)) *Pacer {
	p.sleep = sleep
	return p
}

// Tick records one remote call and sleeps when the burst is used up. The
// sleep happens outside the lock so a waiting goroutine only pays for its
// own burst.
func (p *Pacer) Tick() {
	if p.burst <= 0 || p.delay <= 0 {
		return
	}
	p.mu.Lock()
	p.count++
	due := p.count%p.burst == 0
	p.mu.Unlock()
	if due {
		p.sleep(p.delay)
	}
}
