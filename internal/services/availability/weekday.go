package availability

import (
	"fmt"
	"strconv"
	"strings"

	"hubon-pickup/pkg/errors"
)

var weekdayNames = map[string]int{
	"sunday":    0,
	"monday":    1,
	"tuesday":   2,
	"wednesday": 3,
	"thursday":  4,
	"friday":    5,
	"saturday":  6,
}

// WeekdayIndex translates a carrier weekday name ("monday") or numeric string
// ("1") into the Sunday=0 index used by the calculator.
func WeekdayIndex(v string) (int, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	if idx, ok := weekdayNames[v]; ok {
		return idx, nil
	}
	if n, err := strconv.Atoi(v); err == nil && n >= 0 && n <= 6 {
		return n, nil
	}
	return 0, errors.NewDomainError(errors.CodeAvailabilityInput, "availability input invalid",
		fmt.Sprintf("unknown weekday %q", v))
}
