package config

import "time"

// RetryPolicy returns the handler retry settings of the event router
func (c EventConfig) RetryPolicy() (int, time.Duration) {
	retries := c.MaxRetries
	if retries < 0 {
		retries = 0
	}
	interval := c.InitialInterval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return retries, interval
}
