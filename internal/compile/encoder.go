package compile

import (
	"fmt"
	"strconv"

	"github.com/dstolpe/dtaforge/internal/calendar"
	"github.com/dstolpe/dtaforge/pkg/dtaforge"
)

// maxDateTimeLen truncates date-time cells before parsing. The target
// format supports neither time zones nor microseconds, so everything
// past the millisecond field is dropped.
const maxDateTimeLen = 23

// EncodeCell is the per-cell hot path: it turns raw cell text into a
// typed value under the column's resolved type, deciding system-missing,
// tagged-missing, or ordinary. An empty cell is always system-missing,
// regardless of the column type.
func (c *Compiler) EncodeCell(col *dtaforge.Column, text string) (dtaforge.Value, error) {
	if text == "" {
		return dtaforge.SystemMissingValue(), nil
	}
	switch {
	case col.IsDate:
		days, err := calendar.DayCount(text)
		if err != nil {
			return dtaforge.Value{}, fmt.Errorf("column %q: %w", col.Name, err)
		}
		return scanMissing(col, dtaforge.Int32Value(days))
	case col.IsDateTime:
		return encodeDateTime(col, text)
	case col.Type == dtaforge.StorageDouble:
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return dtaforge.Value{}, fmt.Errorf("column %q: not a number: %q: %w",
				col.Name, text, dtaforge.ErrBadLiteral)
		}
		return scanMissing(col, dtaforge.DoubleValue(f))
	case col.Type == dtaforge.StorageString:
		return dtaforge.StringValue(text), nil
	default:
		return dtaforge.Value{}, fmt.Errorf("column %q: unsupported variable type %s: %w",
			col.Name, col.Type, dtaforge.ErrTypeMismatch)
	}
}

// encodeDateTime parses "yyyy-mm-dd hh:MM:SS" with optional milliseconds
// into milliseconds since the 1960-01-01 epoch, adjusted by the leap
// seconds inserted strictly before the date. Date-time values never
// participate in missing-range lookup.
func encodeDateTime(col *dtaforge.Column, text string) (dtaforge.Value, error) {
	if len(text) > maxDateTimeLen {
		text = text[:maxDateTimeLen]
	}
	var year, month, day, hour, minute, second, msecs int
	n, _ := fmt.Sscanf(text, "%d-%d-%d %d:%d:%d.%d",
		&year, &month, &day, &hour, &minute, &second, &msecs)
	if n < 6 || !calendar.ValidDate(year, month, day) {
		return dtaforge.Value{}, fmt.Errorf(
			"column %q: not a valid date-time: %q (expected yyyy-mm-dd hh:MM:SS with optional milliseconds): %w",
			col.Name, text, dtaforge.ErrBadLiteral)
	}

	days := calendar.DayCountYMD(year, month, day)
	ms := float64(days)*calendar.MillisPerDay +
		float64(hour*calendar.MillisPerHour) +
		float64(minute*calendar.MillisPerMinute) +
		float64(second*calendar.MillisPerSecond) +
		float64(msecs)
	ms += float64(calendar.LeapSecondsBefore(year, month, day) * calendar.MillisPerSecond)
	return dtaforge.DoubleValue(ms), nil
}

// scanMissing linear-scans the column's missing ranges for the encoded
// value and tags the first match. A range typed inconsistently with the
// value indicates a corrupt missing-range table and is fatal.
func scanMissing(col *dtaforge.Column, v dtaforge.Value) (dtaforge.Value, error) {
	for _, r := range col.MissingRanges() {
		if r.Lo.Type != v.Type {
			return dtaforge.Value{}, fmt.Errorf(
				"column %q: missing range tagged %q is %s, value is %s: %w",
				col.Name, r.Tag, r.Lo.Type, v.Type, dtaforge.ErrTypeMismatch)
		}
		if inRange(v, r.Lo, r.Hi) {
			return v.Tagged(r.Tag), nil
		}
	}
	return v, nil
}
