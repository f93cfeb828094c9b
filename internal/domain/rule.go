package domain

import "time"

// Sample is one hourly (or current-instant) forecast observation. Wind
// speeds are km/h, temperature °C, humidity percent relative.
type Sample struct {
	Time     time.Time
	Temp     float64
	Humidity float64
	WindMean float64
	WindGust float64
}

// Thresholds are the configuration-time constants of the compound fire
// danger rule:
//
//	temp > TempAbove AND humidity < HumidityBelow AND
//	(windMean > WindMeanAbove OR windGust > WindGustAbove)
type Thresholds struct {
	TempAbove     float64
	HumidityBelow float64
	WindMeanAbove float64
	WindGustAbove float64
}

// Match evaluates the compound rule against a single sample.
func (t Thresholds) Match(s Sample) bool {
	return s.Temp > t.TempAbove &&
		s.Humidity < t.HumidityBelow &&
		(s.WindMean > t.WindMeanAbove || s.WindGust > t.WindGustAbove)
}

// Window is a maximal contiguous time range over which the compound rule
// holds. Start and End are both inclusive sample times.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether the instant lies within the window, inclusive
// on both ends.
func (w Window) Contains(at time.Time) bool {
	return !at.Before(w.Start) && !at.After(w.End)
}

// Windows scans an ascending sample sequence and returns the maximal
// contiguous ranges where the rule holds. A run opens on the first
// matching sample after a non-matching (or absent) one, extends while
// consecutive samples match, and closes on the first non-matching sample
// or at the end of the sequence. A gap larger than step counts as a break,
// exactly like a failing sample.
//
// The returned windows are pairwise disjoint and sorted by start, and
// every matching sample belongs to exactly one window.
func (t Thresholds) Windows(samples []Sample, step time.Duration) []Window {
	var wins []Window
	var open bool
	var start, last time.Time

	for _, s := range samples {
		ok := t.Match(s)
		if open && ok && s.Time.Sub(last) > step {
			// Gap: close the current run before considering this sample.
			wins = append(wins, Window{Start: start, End: last})
			open = false
		}
		switch {
		case ok && !open:
			open = true
			start = s.Time
			last = s.Time
		case ok:
			last = s.Time
		case open:
			wins = append(wins, Window{Start: start, End: last})
			open = false
		}
	}
	if open {
		wins = append(wins, Window{Start: start, End: last})
	}
	return wins
}

// WindowContaining returns the window that contains the instant, if any.
func WindowContaining(wins []Window, at time.Time) (Window, bool) {
	for _, w := range wins {
		if w.Contains(at) {
			return w, true
		}
	}
	return Window{}, false
}
