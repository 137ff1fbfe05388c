package calendar

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dstolpe/dtaforge/pkg/dtaforge"
)

// Milliseconds per calendar unit, used for timestamp encoding.
const (
	MillisPerDay    = 86_400_000
	MillisPerHour   = 3_600_000
	MillisPerMinute = 60_000
	MillisPerSecond = 1_000
)

// epochOffset is the number of days from 1970-01-01 back to the Stata
// epoch 1960-01-01 (ten years, three of them leap).
const epochOffset = 3653

var daysInMonth = [13]int{0, 31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

func isLeapYear(y int) bool {
	return y%4 == 0 && (y%100 != 0 || y%400 == 0)
}

// DayCount parses a calendar date token of the form "YYYY-MM-DD" and
// returns the day count since 1960-01-01. Dates before the epoch yield
// negative counts. Malformed or impossible dates wrap ErrBadLiteral.
func DayCount(date string) (int32, error) {
	y, m, d, err := splitDate(date)
	if err != nil {
		return 0, err
	}
	return DayCountYMD(y, m, d), nil
}

// DayCountYMD returns the day count since 1960-01-01 for an already
// validated calendar date. The conversion is a pure function of the
// date; there is no hidden epoch drift.
func DayCountYMD(y, m, d int) int32 {
	// Howard Hinnant's civil-days algorithm, shifted from the Unix
	// epoch to 1960-01-01. Integer-only so far-future dates such as
	// the 9999-12-31 placeholder codes cannot overflow.
	if m <= 2 {
		y--
	}
	era := y / 400
	if y < 0 && y%400 != 0 {
		era--
	}
	yoe := y - era*400
	var mp int
	if m > 2 {
		mp = m - 3
	} else {
		mp = m + 9
	}
	doy := (153*mp+2)/5 + d - 1
	doe := yoe*365 + yoe/4 - yoe/100 + doy
	return int32(era*146097 + doe - 719468 + epochOffset)
}

// ValidDate reports whether the year/month/day triple names a real
// calendar date.
func ValidDate(y, m, d int) bool {
	if m < 1 || m > 12 {
		return false
	}
	max := daysInMonth[m]
	if m == 2 && isLeapYear(y) {
		max = 29
	}
	return d >= 1 && d <= max
}

// splitDate validates and decomposes a "YYYY-MM-DD" token.
func splitDate(date string) (y, m, d int, err error) {
	bad := func() (int, int, int, error) {
		return 0, 0, 0, fmt.Errorf("not a date: %q: %w", date, dtaforge.ErrBadLiteral)
	}
	parts := strings.SplitN(date, "-", 3)
	if len(parts) != 3 {
		return bad()
	}
	if y, err = strconv.Atoi(parts[0]); err != nil {
		return bad()
	}
	if m, err = strconv.Atoi(parts[1]); err != nil {
		return bad()
	}
	if d, err = strconv.Atoi(parts[2]); err != nil {
		return bad()
	}
	if !ValidDate(y, m, d) {
		return bad()
	}
	return y, m, d, nil
}
