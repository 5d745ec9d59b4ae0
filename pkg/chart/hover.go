package chart

import (
	"math"
	"time"
)

const (
	HoverTimeWindow = 5 * time.Second
	HoverMBWindow   = 10.0

	hoverTimeWeight = 0.1
	hoverMBWeight   = 0.01
)

// Nearest returns the point closest to the cursor at (at, mb). Only points
// strictly inside HoverTimeWindow and HoverMBWindow are candidates; among them the
// lowest 0.1*|dt|s + 0.01*|dMB| score wins, earlier lines first on ties.
func Nearest(lines []Line, at time.Time, mb float64) (Point, bool) {
	var (
		best      Point
		bestScore = math.Inf(1)
		found     bool
	)

	for _, line := range lines {
		for _, p := range line.Points {
			dt := math.Abs(p.Time.Sub(at).Seconds())
			dmb := math.Abs(p.MB - mb)
			if dt >= HoverTimeWindow.Seconds() || dmb >= HoverMBWindow {
				continue
			}
			score := hoverTimeWeight*dt + hoverMBWeight*dmb
			if score < bestScore {
				best, bestScore, found = p, score, true
			}
		}
	}
	return best, found
}

// NearestInTime returns the point of line closest in time to at, ignoring the
// value axis.
func NearestInTime(line Line, at time.Time) (Point, bool) {
	var (
		best  Point
		bestD = time.Duration(math.MaxInt64)
		found bool
	)
	for _, p := range line.Points {
		d := p.Time.Sub(at)
		if d < 0 {
			d = -d
		}
		if d < bestD {
			best, bestD, found = p, d, true
		}
	}
	return best, found
}
