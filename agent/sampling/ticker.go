// SPDX-License-Identifier: GPL-3.0-or-later

package sampling

import "time"

// ticker fires on interval boundaries of the wall clock and sends a running clock counter.
type ticker struct {
	C    <-chan int
	done chan struct{}
}

func newTicker(interval time.Duration) *ticker {
	c := make(chan int, 1)
	t := &ticker{C: c, done: make(chan struct{})}
	go t.run(interval, c)
	return t
}

func (t *ticker) Stop() {
	close(t.done)
}

func (t *ticker) run(interval time.Duration, c chan<- int) {
	var clock int

	timer := time.NewTimer(untilNext(time.Now(), interval))
	defer timer.Stop()

	for {
		select {
		case <-t.done:
			return
		case now := <-timer.C:
			select {
			case c <- clock:
			default:
			}
			clock++
			timer.Reset(untilNext(now, interval))
		}
	}
}

func untilNext(now time.Time, interval time.Duration) time.Duration {
	return now.Truncate(interval).Add(interval).Sub(now)
}
