package calendar

import (
	"fmt"
	"time"
	_ "time/tzdata"

	"session-trader/internal/types"
)

const dateLayout = "2006-01-02"

// Exchange describes a regular weekday session in a fixed location.
type Exchange struct {
	loc      *time.Location
	openMin  int
	closeMin int
	holidays map[string]bool
}

// New builds an exchange calendar. open and close are "HH:MM" in tz; holidays are
// "YYYY-MM-DD" dates with no session.
func New(tz, open, close string, holidays []string) (*Exchange, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load location %q: %w", tz, err)
	}
	o, err := parseHHMM(open)
	if err != nil {
		return nil, fmt.Errorf("session open: %w", err)
	}
	c, err := parseHHMM(close)
	if err != nil {
		return nil, fmt.Errorf("session close: %w", err)
	}
	if c <= o {
		return nil, fmt.Errorf("session close %s must be after open %s", close, open)
	}
	hs := make(map[string]bool, len(holidays))
	for _, h := range holidays {
		if _, err := time.Parse(dateLayout, h); err != nil {
			return nil, fmt.Errorf("holiday %q: %w", h, err)
		}
		hs[h] = true
	}
	return &Exchange{loc: loc, openMin: o, closeMin: c, holidays: hs}, nil
}

func parseHHMM(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

func (e *Exchange) Location() *time.Location { return e.loc }

// IsTradingDay reports whether the calendar day of t (in the exchange location) has a session.
func (e *Exchange) IsTradingDay(t time.Time) bool {
	t = t.In(e.loc)
	if wd := t.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}
	return !e.holidays[t.Format(dateLayout)]
}

func (e *Exchange) at(day time.Time, minutes int) time.Time {
	y, m, d := day.In(e.loc).Date()
	return time.Date(y, m, d, minutes/60, minutes%60, 0, 0, e.loc)
}

// SessionOpen returns the open of the session on day.
func (e *Exchange) SessionOpen(day time.Time) (time.Time, error) {
	if !e.IsTradingDay(day) {
		return time.Time{}, fmt.Errorf("no session on %s", day.In(e.loc).Format(dateLayout))
	}
	return e.at(day, e.openMin), nil
}

// nextTradingDay returns the first trading day strictly after day.
func (e *Exchange) nextTradingDay(day time.Time) time.Time {
	y, m, d := day.In(e.loc).Date()
	next := time.Date(y, m, d, 12, 0, 0, 0, e.loc)
	for i := 0; i < 370; i++ {
		next = next.AddDate(0, 0, 1)
		if e.IsTradingDay(next) {
			return next
		}
	}
	return next
}

// Clock computes the market clock at now.
func (e *Exchange) Clock(now time.Time) types.Clock {
	now = now.In(e.loc)
	c := types.Clock{Timestamp: now}

	if e.IsTradingDay(now) {
		open, closeAt := e.at(now, e.openMin), e.at(now, e.closeMin)
		switch {
		case now.Before(open):
			c.NextOpen, c.NextClose = open, closeAt
			return c
		case now.Before(closeAt):
			next := e.nextTradingDay(now)
			c.IsOpen = true
			c.SessionOpen = open
			c.NextOpen = e.at(next, e.openMin)
			c.NextClose = closeAt
			return c
		}
	}
	next := e.nextTradingDay(now)
	c.NextOpen, c.NextClose = e.at(next, e.openMin), e.at(next, e.closeMin)
	return c
}
