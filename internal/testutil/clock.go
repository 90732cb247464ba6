package testutil

import (
	"sync"
	"time"
)

// Clock advances by one second on every reading.
type Clock struct {
	mtx sync.Mutex
	now time.Time
}

func NewClock() *Clock {
	return &Clock{
		now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (clock *Clock) Now() time.Time {
	clock.mtx.Lock()
	defer clock.mtx.Unlock()

	clock.now = clock.now.Add(time.Second)

	return clock.now
}
