package types

import "sync/atomic"

// Counter is a simple atomic counter supporting increment and decrement.
// The zero value is ready to use and must not be copied after first use.
type Counter struct {
	v int32
}

// Inc adds one and returns the new value.
func (c *Counter) Inc() int32 {
	return atomic.AddInt32(&c.v, 1)
}

// Dec subtracts one and returns the new value.
func (c *Counter) Dec() int32 {
	return atomic.AddInt32(&c.v, -1)
}

// Load returns the current value.
func (c *Counter) Load() int32 {
	return atomic.LoadInt32(&c.v)
}

// Reset sets the counter back to zero.
func (c *Counter) Reset() {
	atomic.StoreInt32(&c.v, 0)
}
