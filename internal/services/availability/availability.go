package availability

import (
	"fmt"
	"sort"
	"time"

	"hubon-pickup/pkg/errors"
)

const dateLayout = "2006-01-02"

// HubAvailability is one hub's scheduling snapshot as served to the storefront.
// Weekday indices run 0 (Sunday) through 6 (Saturday).
type HubAvailability struct {
	CutoffDays int      `json:"cutoff_date"`
	PickupDays []int    `json:"pickup_days"`
	Holidays   []string `json:"holiday_infos"`
	HubHours   []int    `json:"hub_hours"`
}

// Clock supplies "now" to the calculator.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock.
var SystemClock Clock = ClockFunc(time.Now)

// Calculator derives the dates a customer may not pick for a hub. It holds no
// mutable state and is safe for concurrent use.
type Calculator struct {
	clock    Clock
	location *time.Location
}

// NewCalculator creates a calculator. Dates are normalised to midnight in loc;
// a nil loc means time.Local.
func NewCalculator(clock Clock, loc *time.Location) *Calculator {
	if clock == nil {
		clock = SystemClock
	}
	if loc == nil {
		loc = time.Local
	}
	return &Calculator{clock: clock, location: loc}
}

// Today returns the clock's current date at midnight.
func (c *Calculator) Today() time.Time {
	return StartOfDay(c.clock.Now().In(c.location))
}

// DisabledDates returns the sorted, de-duplicated union of the cutoff window,
// every date in the month that falls on a weekday the hub cannot serve, and
// the hub's holidays. month and year select the calendar page for the weekday
// expansion only (0 means current); the cutoff window always starts from today.
func (c *Calculator) DisabledDates(hub *HubAvailability, month, year int) ([]time.Time, error) {
	if hub == nil {
		return []time.Time{}, nil
	}

	cutoff, err := CutoffDates(hub.CutoffDays, c.Today())
	if err != nil {
		return nil, err
	}

	weekdays, err := ReconcileWeekdays(hub.PickupDays, hub.HubHours)
	if err != nil {
		return nil, err
	}

	weekdayDates, err := c.DatesForWeekdays(weekdays, month, year)
	if err != nil {
		return nil, err
	}

	holidays, err := c.HolidayDates(hub.Holidays)
	if err != nil {
		return nil, err
	}

	return Union(cutoff, weekdayDates, holidays), nil
}

// CutoffDates returns today+1 .. today+cutoffDays, each at midnight.
func CutoffDates(cutoffDays int, today time.Time) ([]time.Time, error) {
	if cutoffDays < 0 {
		return nil, errors.NewDomainError(errors.CodeAvailabilityInput, "availability input invalid",
			fmt.Sprintf("cutoff days must not be negative, got %d", cutoffDays))
	}

	start := StartOfDay(today)
	dates := make([]time.Time, 0, cutoffDays)
	for i := 1; i <= cutoffDays; i++ {
		dates = append(dates, start.AddDate(0, 0, i))
	}
	return dates, nil
}

// ReconcileWeekdays returns the weekdays that are disabled: every day that is
// not both a pickup day and a staffed hub day. The result is sorted.
func ReconcileWeekdays(pickupDays, hubHours []int) ([]int, error) {
	pickup, err := weekdaySet(pickupDays, "pickup day")
	if err != nil {
		return nil, err
	}
	open, err := weekdaySet(hubHours, "hub hour day")
	if err != nil {
		return nil, err
	}

	disabled := make([]int, 0, 7)
	for day := 0; day < 7; day++ {
		if !(pickup[day] && open[day]) {
			disabled = append(disabled, day)
		}
	}
	return disabled, nil
}

// DatesForWeekdays returns every date of the given month (1-12) whose weekday
// is in weekdays. Zero month or year falls back to the clock's current one.
func (c *Calculator) DatesForWeekdays(weekdays []int, month, year int) ([]time.Time, error) {
	now := c.clock.Now().In(c.location)
	if month == 0 {
		month = int(now.Month())
	}
	if year == 0 {
		year = now.Year()
	}
	return DatesForWeekdaysIn(weekdays, month, year, c.location)
}

// DatesForWeekdaysIn is DatesForWeekdays with an explicit month, year and location.
func DatesForWeekdaysIn(weekdays []int, month, year int, loc *time.Location) ([]time.Time, error) {
	if month < 1 || month > 12 {
		return nil, errors.NewDomainError(errors.CodeAvailabilityInput, "availability input invalid",
			fmt.Sprintf("month must be between 1 and 12, got %d", month))
	}
	if year < 1 {
		return nil, errors.NewDomainError(errors.CodeAvailabilityInput, "availability input invalid",
			fmt.Sprintf("year must be positive, got %d", year))
	}
	wanted, err := weekdaySet(weekdays, "weekday")
	if err != nil {
		return nil, err
	}

	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, loc)
	var dates []time.Time
	for d := first; d.Month() == first.Month(); d = d.AddDate(0, 0, 1) {
		if wanted[int(d.Weekday())] {
			dates = append(dates, d)
		}
	}
	return dates, nil
}

// HolidayDates parses ISO dates (or RFC 3339 timestamps) into midnights.
func (c *Calculator) HolidayDates(holidays []string) ([]time.Time, error) {
	dates := make([]time.Time, 0, len(holidays))
	for _, raw := range holidays {
		d, err := ParseDate(raw, c.location)
		if err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return dates, nil
}

// ParseDate parses a calendar date in loc and returns its midnight.
func ParseDate(raw string, loc *time.Location) (time.Time, error) {
	if d, err := time.ParseInLocation(dateLayout, raw, loc); err == nil {
		return d, nil
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return StartOfDay(ts.In(loc)), nil
	}
	return time.Time{}, errors.NewDomainError(errors.CodeAvailabilityInput, "availability input invalid",
		fmt.Sprintf("holiday %q is not an ISO date", raw))
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Union merges date lists, keeping one entry per calendar date, sorted ascending.
func Union(lists ...[]time.Time) []time.Time {
	seen := make(map[string]struct{})
	out := make([]time.Time, 0)
	for _, list := range lists {
		for _, d := range list {
			d = StartOfDay(d)
			key := d.Format(dateLayout)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// FormatDates renders dates as YYYY-MM-DD strings.
func FormatDates(dates []time.Time) []string {
	out := make([]string, len(dates))
	for i, d := range dates {
		out[i] = d.Format(dateLayout)
	}
	return out
}

func weekdaySet(days []int, what string) ([7]bool, error) {
	var set [7]bool
	for _, day := range days {
		if day < 0 || day > 6 {
			return set, errors.NewDomainError(errors.CodeAvailabilityInput, "availability input invalid",
				fmt.Sprintf("%s %d is outside 0-6", what, day))
		}
		set[day] = true
	}
	return set, nil
}
