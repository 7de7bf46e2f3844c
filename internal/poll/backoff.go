package poll

import "time"

// backoff widens the poll interval after repeated enumeration failures. The
// first failure keeps the base interval; from the second consecutive
// failure on, the delay doubles per failure up to the cap.
type backoff struct {
	base     time.Duration
	cap      time.Duration
	failures int
}

func (b *backoff) success() {
	b.failures = 0
}

func (b *backoff) failure() {
	b.failures++
}

func (b *backoff) delay() time.Duration {
	if b.failures < 2 {
		return b.base
	}
	d := b.base
	for i := 1; i < b.failures; i++ {
		d *= 2
		if d >= b.cap {
			return b.cap
		}
	}
	return d
}
