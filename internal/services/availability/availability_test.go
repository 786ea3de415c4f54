package availability

import (
	"sync"
	"testing"
	"time"

	"hubon-pickup/pkg/errors"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(y int, m time.Month, d, hour int) Clock {
	return ClockFunc(func() time.Time {
		return time.Date(y, m, d, hour, 37, 12, 0, time.UTC)
	})
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func assertDomainCode(t *testing.T, err error, code int) {
	t.Helper()
	domainErr, ok := errors.As(err)
	require.True(t, ok, "expected DomainError, got %v", err)
	assert.Equal(t, code, domainErr.Code)
}

func TestCutoffDates(t *testing.T) {
	dates, err := CutoffDates(3, time.Date(2025, 1, 1, 15, 0, 0, 0, time.UTC))

	require.NoError(t, err)
	want := []time.Time{day(2025, 1, 2), day(2025, 1, 3), day(2025, 1, 4)}
	if diff := cmp.Diff(want, dates); diff != "" {
		t.Errorf("CutoffDates() mismatch (-want +got):\n%s", diff)
	}
}

func TestCutoffDates_CrossesMonthAndYear(t *testing.T) {
	dates, err := CutoffDates(2, day(2024, 12, 31))

	require.NoError(t, err)
	assert.Equal(t, []time.Time{day(2025, 1, 1), day(2025, 1, 2)}, dates)
}

func TestCutoffDates_Zero(t *testing.T) {
	dates, err := CutoffDates(0, day(2025, 1, 1))

	require.NoError(t, err)
	assert.Empty(t, dates)
}

func TestCutoffDates_Negative(t *testing.T) {
	_, err := CutoffDates(-1, day(2025, 1, 1))

	assertDomainCode(t, err, errors.CodeAvailabilityInput)
}

func TestReconcileWeekdays(t *testing.T) {
	disabled, err := ReconcileWeekdays([]int{0, 2, 4, 5, 6}, []int{1, 3, 5})

	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 6}, disabled)
}

func TestReconcileWeekdays_Cases(t *testing.T) {
	tests := []struct {
		name     string
		pickup   []int
		hours    []int
		expected []int
	}{
		{"all days match", []int{0, 1, 2, 3, 4, 5, 6}, []int{6, 5, 4, 3, 2, 1, 0}, []int{}},
		{"no pickup days", nil, []int{1, 2, 3}, []int{0, 1, 2, 3, 4, 5, 6}},
		{"duplicates tolerated", []int{1, 1, 2}, []int{1, 2, 2}, []int{0, 3, 4, 5, 6}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReconcileWeekdays(tt.pickup, tt.hours)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestReconcileWeekdays_OutOfRange(t *testing.T) {
	_, err := ReconcileWeekdays([]int{7}, []int{1})
	assertDomainCode(t, err, errors.CodeAvailabilityInput)

	_, err = ReconcileWeekdays([]int{1}, []int{-1})
	assertDomainCode(t, err, errors.CodeAvailabilityInput)
}

func TestDatesForWeekdays_ExplicitMonth(t *testing.T) {
	calc := NewCalculator(fixedClock(2025, 6, 15, 9), time.UTC)

	// Fridays of October 2024.
	dates, err := calc.DatesForWeekdays([]int{5}, 10, 2024)

	require.NoError(t, err)
	want := []time.Time{day(2024, 10, 4), day(2024, 10, 11), day(2024, 10, 18), day(2024, 10, 25)}
	if diff := cmp.Diff(want, dates); diff != "" {
		t.Errorf("DatesForWeekdays() mismatch (-want +got):\n%s", diff)
	}
}

func TestDatesForWeekdays_DefaultsToCurrentMonth(t *testing.T) {
	calc := NewCalculator(fixedClock(2024, 2, 10, 9), time.UTC)

	// Thursdays of February 2024 (leap year).
	dates, err := calc.DatesForWeekdays([]int{4}, 0, 0)

	require.NoError(t, err)
	assert.Equal(t, []time.Time{day(2024, 2, 1), day(2024, 2, 8), day(2024, 2, 15), day(2024, 2, 22), day(2024, 2, 29)}, dates)
}

func TestDatesForWeekdays_InvalidMonth(t *testing.T) {
	calc := NewCalculator(fixedClock(2024, 2, 10, 9), time.UTC)

	_, err := calc.DatesForWeekdays([]int{1}, 13, 2024)
	assertDomainCode(t, err, errors.CodeAvailabilityInput)

	_, err = calc.DatesForWeekdays([]int{9}, 1, 2024)
	assertDomainCode(t, err, errors.CodeAvailabilityInput)
}

func TestHolidayDates(t *testing.T) {
	calc := NewCalculator(fixedClock(2024, 10, 20, 9), time.UTC)

	dates, err := calc.HolidayDates([]string{"2024-10-23", "2024-10-25T17:30:00Z"})

	require.NoError(t, err)
	assert.Equal(t, []time.Time{day(2024, 10, 23), day(2024, 10, 25)}, dates)
}

func TestHolidayDates_Malformed(t *testing.T) {
	calc := NewCalculator(fixedClock(2024, 10, 20, 9), time.UTC)

	_, err := calc.HolidayDates([]string{"2024-10-23", "23/10/2024"})

	assertDomainCode(t, err, errors.CodeAvailabilityInput)
}

func TestDisabledDates_NilHub(t *testing.T) {
	calc := NewCalculator(fixedClock(2024, 10, 20, 9), time.UTC)

	dates, err := calc.DisabledDates(nil, 0, 0)

	require.NoError(t, err)
	assert.NotNil(t, dates)
	assert.Empty(t, dates)
}

func TestDisabledDates_EndToEnd(t *testing.T) {
	calc := NewCalculator(fixedClock(2024, 10, 20, 9), time.UTC)
	hub := &HubAvailability{
		CutoffDays: 4,
		PickupDays: []int{0, 2, 4, 5, 6},
		HubHours:   []int{1, 3, 5},
		Holidays:   []string{"2024-10-23", "2024-10-25", "2024-10-29"},
	}

	dates, err := calc.DisabledDates(hub, 10, 2024)

	require.NoError(t, err)
	// Every October day except the Fridays that are neither cutoff nor holiday.
	var want []time.Time
	for d := 1; d <= 31; d++ {
		if d == 4 || d == 11 || d == 18 {
			continue
		}
		want = append(want, day(2024, 10, d))
	}
	if diff := cmp.Diff(want, dates); diff != "" {
		t.Errorf("DisabledDates() mismatch (-want +got):\n%s", diff)
	}
}

func TestDisabledDates_CutoffAnchoredToToday(t *testing.T) {
	calc := NewCalculator(fixedClock(2024, 10, 30, 9), time.UTC)
	hub := &HubAvailability{
		CutoffDays: 3,
		PickupDays: []int{0, 1, 2, 3, 4, 5, 6},
		HubHours:   []int{0, 1, 2, 3, 4, 5, 6},
	}

	dates, err := calc.DisabledDates(hub, 12, 2024)

	require.NoError(t, err)
	assert.Equal(t, []time.Time{day(2024, 10, 31), day(2024, 11, 1), day(2024, 11, 2)}, dates)
}

func TestDisabledDates_DeduplicatesHolidayInCutoff(t *testing.T) {
	calc := NewCalculator(fixedClock(2025, 1, 1, 23), time.UTC)
	hub := &HubAvailability{
		CutoffDays: 2,
		PickupDays: []int{0, 1, 2, 3, 4, 5, 6},
		HubHours:   []int{0, 1, 2, 3, 4, 5, 6},
		Holidays:   []string{"2025-01-02", "2025-01-02"},
	}

	dates, err := calc.DisabledDates(hub, 1, 2025)

	require.NoError(t, err)
	assert.Equal(t, []time.Time{day(2025, 1, 2), day(2025, 1, 3)}, dates)
}

func TestDisabledDates_Idempotent(t *testing.T) {
	calc := NewCalculator(fixedClock(2024, 12, 28, 9), time.UTC)
	hub := &HubAvailability{
		CutoffDays: 5,
		PickupDays: []int{1, 3, 5},
		HubHours:   []int{1, 2, 3},
		Holidays:   []string{"2025-01-01"},
	}

	first, err := calc.DisabledDates(hub, 1, 2025)
	require.NoError(t, err)
	second, err := calc.DisabledDates(hub, 1, 2025)
	require.NoError(t, err)

	assert.ElementsMatch(t, first, second)
}

func TestDisabledDates_ConcurrentMonths(t *testing.T) {
	calc := NewCalculator(fixedClock(2024, 10, 20, 9), time.UTC)
	hub := &HubAvailability{CutoffDays: 1, PickupDays: []int{2}, HubHours: []int{2}}

	var wg sync.WaitGroup
	for m := 1; m <= 12; m++ {
		wg.Add(1)
		go func(m int) {
			defer wg.Done()
			dates, err := calc.DisabledDates(hub, m, 2025)
			assert.NoError(t, err)
			assert.NotEmpty(t, dates)
		}(m)
	}
	wg.Wait()
}

func TestDisabledDates_PropagatesInputErrors(t *testing.T) {
	calc := NewCalculator(fixedClock(2024, 10, 20, 9), time.UTC)

	_, err := calc.DisabledDates(&HubAvailability{CutoffDays: -2}, 0, 0)
	assertDomainCode(t, err, errors.CodeAvailabilityInput)

	_, err = calc.DisabledDates(&HubAvailability{Holidays: []string{"soon"}}, 0, 0)
	assertDomainCode(t, err, errors.CodeAvailabilityInput)
}

func TestUnion_NormalisesTimeOfDay(t *testing.T) {
	got := Union(
		[]time.Time{time.Date(2025, 3, 2, 18, 0, 0, 0, time.UTC)},
		[]time.Time{day(2025, 3, 1), day(2025, 3, 2)},
	)

	assert.Equal(t, []time.Time{day(2025, 3, 1), day(2025, 3, 2)}, got)
}

func TestFormatDates(t *testing.T) {
	assert.Equal(t, []string{"2024-10-21", "2024-10-22"}, FormatDates([]time.Time{day(2024, 10, 21), day(2024, 10, 22)}))
}

func TestWeekdayIndex(t *testing.T) {
	tests := map[string]int{"sunday": 0, "Monday": 1, " saturday ": 6, "3": 3}
	for in, want := range tests {
		got, err := WeekdayIndex(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := WeekdayIndex("someday")
	assertDomainCode(t, err, errors.CodeAvailabilityInput)
	_, err = WeekdayIndex("7")
	assertDomainCode(t, err, errors.CodeAvailabilityInput)
}
