package feed_test

import "time"

const (
	waitFor = 5 * time.Second
	tick    = 10 * time.Millisecond
)
