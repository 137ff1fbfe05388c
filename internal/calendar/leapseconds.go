package calendar

// leapSecondDate is one entry of the historical leap-second table.
type leapSecondDate struct {
	year, month, day int
}

// leapSeconds is the closed set of positive leap seconds announced up
// to and including 2016-12-31. The table is a versioned constant of the
// target format's timestamp arithmetic; it is never recomputed.
// https://en.wikipedia.org/wiki/Leap_second
var leapSeconds = [27]leapSecondDate{
	{1972, 6, 30}, {1972, 12, 31}, // +2 seconds in 1972
	{1973, 12, 31},
	{1974, 12, 31},
	{1975, 12, 31},
	{1976, 12, 31},
	{1977, 12, 31},
	{1978, 12, 31},
	{1979, 12, 31},
	{1981, 6, 30},
	{1982, 6, 30},
	{1983, 6, 30},
	{1985, 6, 30},
	{1987, 12, 31},
	{1989, 12, 31},
	{1990, 12, 31},
	{1992, 6, 30},
	{1993, 6, 30},
	{1994, 6, 30},
	{1995, 12, 31},
	{1997, 6, 30},
	{1998, 12, 31},
	{2005, 12, 31},
	{2008, 12, 31},
	{2012, 6, 30},
	{2015, 6, 30},
	{2016, 12, 31},
}

// LeapSecondsBefore counts the leap seconds whose insertion date
// strictly precedes the given calendar date. A timestamp on the
// insertion date itself is not adjusted for that entry.
func LeapSecondsBefore(y, m, d int) int {
	n := 0
	for _, ls := range leapSeconds {
		if y > ls.year ||
			(y == ls.year && m > ls.month) ||
			(y == ls.year && m == ls.month && d > ls.day) {
			n++
		}
	}
	return n
}
