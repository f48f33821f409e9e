package ledger

import (
	"time"
)

// Window is one processing window of the weekly timetable. DayMask has one
// bit per weekday, bit position matching time.Weekday.
type Window struct {
	DayMask  uint8
	StartMin int
	EndMin   int
}

func dayBit(d time.Weekday) uint8 {
	return 1 << uint8(d)
}

const (
	maskMonToThu = uint8(1<<time.Monday | 1<<time.Tuesday | 1<<time.Wednesday | 1<<time.Thursday)
	maskMonToSat = maskMonToThu | 1<<time.Friday | 1<<time.Saturday
	maskFriday   = uint8(1 << time.Friday)
)

// DefaultTimetable reflects the payout desk hours: mornings every day except
// Sunday, full afternoons early in the week, a short afternoon on the last
// business day.
func DefaultTimetable() []Window {
	return []Window{
		{DayMask: maskMonToSat, StartMin: 8 * 60, EndMin: 12 * 60},
		{DayMask: maskMonToThu, StartMin: 14 * 60, EndMin: 18 * 60},
		{DayMask: maskFriday, StartMin: 14 * 60, EndMin: 16 * 60},
	}
}

type Timetable struct {
	windows  []Window
	location *time.Location
}

func NewTimetable(windows []Window, location *time.Location) *Timetable {
	return &Timetable{
		windows:  windows,
		location: location,
	}
}

func minuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

func (t *Timetable) InWindow(now time.Time) bool {
	now = now.In(t.location)
	minute := minuteOfDay(now)
	for _, w := range t.windows {
		if w.DayMask&dayBit(now.Weekday()) == 0 {
			continue
		}
		if w.StartMin <= minute && minute < w.EndMin {
			return true
		}
	}
	return false
}

// NextStart scans forward day by day, wrapping the week, for the first window
// start after now.
func (t *Timetable) NextStart(now time.Time) time.Time {
	now = now.In(t.location)
	for d := 0; d <= 7; d++ {
		day := now.AddDate(0, 0, d)
		best := -1
		for _, w := range t.windows {
			if w.DayMask&dayBit(day.Weekday()) == 0 {
				continue
			}
			if d == 0 && w.StartMin <= minuteOfDay(now) {
				continue
			}
			if best < 0 || w.StartMin < best {
				best = w.StartMin
			}
		}
		if best >= 0 {
			return time.Date(day.Year(), day.Month(), day.Day(), best/60, best%60, 0, 0, t.location)
		}
	}
	// Empty timetable; nothing sensible to wait for.
	return now
}
