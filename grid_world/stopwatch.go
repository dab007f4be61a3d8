package grid_world

import (
	"fmt"
	"sync"
	"time"

	channerics "github.com/niceyeti/channerics/channels"
)

// stopwatch periodically reports the time elapsed since it was started,
// until stopped.
type stopwatch struct {
	start time.Time
	now   func() time.Time
	done  chan struct{}
	once  sync.Once
	wg    sync.WaitGroup
}

// startStopwatch calls onTick with the formatted elapsed time immediately and then once per period.
func startStopwatch(
	now func() time.Time,
	period time.Duration,
	onTick func(elapsed string),
) *stopwatch {
	sw := &stopwatch{
		start: now(),
		now:   now,
		done:  make(chan struct{}),
	}
	onTick(FormatElapsed(0))

	sw.wg.Add(1)
	go func() {
		defer sw.wg.Done()
		ticks := channerics.NewTicker(sw.done, period)
		for {
			select {
			case <-sw.done:
				return
			case _, ok := <-ticks:
				if !ok {
					return
				}
				onTick(FormatElapsed(sw.Elapsed()))
			}
		}
	}()
	return sw
}

func (sw *stopwatch) Elapsed() time.Duration {
	return sw.now().Sub(sw.start)
}

// Stop halts the ticks and waits for the routine to exit. Safe to call more than once.
func (sw *stopwatch) Stop() {
	sw.once.Do(func() { close(sw.done) })
	sw.wg.Wait()
}

// FormatElapsed formats a duration as whole minutes and seconds, MM:SS.
func FormatElapsed(d time.Duration) string {
	secs := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}
