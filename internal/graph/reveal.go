package graph

import (
	"context"
	"time"
)

// DefaultRevealDuration is how long the line takes to draw in.
const DefaultRevealDuration = 1500 * time.Millisecond

// Reveal tracks the left-to-right draw-in of a chart.
type Reveal struct {
	Duration time.Duration
}

// Progress returns the fraction revealed after elapsed, in [0, 1].
func (r Reveal) Progress(elapsed time.Duration) float64 {
	if r.Duration <= 0 || elapsed >= r.Duration {
		return 1
	}
	if elapsed <= 0 {
		return 0
	}
	return float64(elapsed) / float64(r.Duration)
}

// ClipWidth returns the visible width at the given progress.
func ClipWidth(progress, width float64) float64 {
	return min(max(progress, 0), 1) * width
}

// Animate emits the reveal progress once per tick, ending with 1. The
// channel is closed when the reveal completes or ctx is done, whichever
// comes first.
func Animate(ctx context.Context, d, tick time.Duration) <-chan float64 {
	ch := make(chan float64, 1)
	go func() {
		defer close(ch)
		r := Reveal{Duration: d}
		if d <= 0 || tick <= 0 {
			select {
			case ch <- 1:
			case <-ctx.Done():
			}
			return
		}

		start := time.Now()
		ticker := time.NewTicker(tick)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				p := r.Progress(now.Sub(start))
				select {
				case ch <- p:
				case <-ctx.Done():
					return
				}
				if p >= 1 {
					return
				}
			}
		}
	}()
	return ch
}
