// Package batching implements the ordering-window calculator and the
// per-restaurant capacity registry. Windows are the unit of consolidation:
// every order placed while a window is open is delivered in one courier run
// after the window closes.
package batching

import "time"

// Window is one fixed ordering interval. Windows close on the half hour
// (:00 and :30), open 15 minutes before they close, and are expected to be
// ready for pickup 30 minutes after they close. Windows are value types and
// immutable once computed.
type Window struct {
	OpensAt  time.Time `json:"opens_at"`
	ClosesAt time.Time `json:"closes_at"`
	ReadyAt  time.Time `json:"ready_at"`
}

// Calculator maps wall-clock time to ordering windows. The zero value closes
// windows around the clock; setting OpenHour/CloseHour restricts window
// closes to [OpenHour:00, CloseHour:00] local time and skips forward past
// out-of-range boundaries, rolling the date across midnight when needed.
type Calculator struct {
	OpenHour  int // first in-range closing hour, inclusive (0 = unrestricted)
	CloseHour int // last in-range closing hour, inclusive (0 = unrestricted)
}

// Current returns the window orders placed at now fall into: the window
// whose close is the first :00/:30 boundary strictly after now.
func (c Calculator) Current(now time.Time) Window {
	return c.windowClosing(c.nextBoundary(now))
}

// Next returns the window after Current(now).
func (c Calculator) Next(now time.Time) Window {
	cur := c.Current(now)
	return c.windowClosing(c.skipClosed(cur.ClosesAt.Add(30 * time.Minute)))
}

// nextBoundary returns the first half-hour boundary strictly after t,
// adjusted past any configured closed hours.
func (c Calculator) nextBoundary(t time.Time) time.Time {
	top := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
	var b time.Time
	if t.Minute() < 30 {
		b = top.Add(30 * time.Minute)
	} else {
		b = top.Add(time.Hour)
	}
	return c.skipClosed(b)
}

// skipClosed advances b in half-hour steps until it lands inside the
// configured operating hours. Bounded: a full day has 48 boundaries.
func (c Calculator) skipClosed(b time.Time) time.Time {
	if c.OpenHour == 0 && c.CloseHour == 0 {
		return b
	}
	for i := 0; i < 49; i++ {
		h := b.Hour()
		if h >= c.OpenHour && (h < c.CloseHour || (h == c.CloseHour && b.Minute() == 0)) {
			return b
		}
		b = b.Add(30 * time.Minute)
	}
	return b
}

func (c Calculator) windowClosing(closesAt time.Time) Window {
	return Window{
		OpensAt:  closesAt.Add(-15 * time.Minute),
		ClosesAt: closesAt,
		ReadyAt:  closesAt.Add(30 * time.Minute),
	}
}
