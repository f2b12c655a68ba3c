package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// ISODate is the canonical date layout; it is always accepted.
const ISODate = "2006-01-02"

// Month-name layouts are unambiguous and accepted as written.
var namedLayouts = []string{
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
	"Monday, January 2, 2006",
}

// ISO dates carrying a time of day; the date is kept as written.
var isoTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

var (
	isoDate     = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)
	numericDate = regexp.MustCompile(`^(\d{1,4})[/.\-](\d{1,2})[/.\-](\d{1,4})$`)
	excelSerial = regexp.MustCompile(`^\d{5}(?:\.\d+)?$`)
)

type dateResult struct {
	date   time.Time
	reason string
}

// ParseEventDate parses a roster date.
//
// Accepted forms, in order: ISO 8601 (YYYY-MM-DD, optionally followed by a valid time),
// month-name forms, five-digit Excel serial day numbers, and numeric D/M/YYYY or
// M/D/YYYY when the order can be told from the values. A numeric date whose first two
// parts are both valid months and differ is ambiguous and is rejected.
// The returned reason is empty on success.
func ParseEventDate(raw string) (time.Time, string) {
	res := parseDate(raw)

	return res.date, res.reason
}

func parseDate(raw string) dateResult {
	s := strings.Join(strings.Fields(raw), " ")
	if s == "" {
		return dateResult{reason: ReasonEmpty}
	}

	if m := isoDate.FindStringSubmatch(s); m != nil {
		return fromParts(atoi(m[1]), atoi(m[2]), atoi(m[3]))
	}

	for _, layout := range isoTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return dateResult{date: dateOnly(t)}
		}
	}

	for _, layout := range namedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return dateResult{date: dateOnly(t)}
		}
	}

	if excelSerial.MatchString(s) {
		serial, err := strconv.ParseFloat(s, 64)
		if err == nil {
			if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
				return dateResult{date: dateOnly(t)}
			}
		}

		return dateResult{reason: ReasonUnparseable}
	}

	if m := numericDate.FindStringSubmatch(s); m != nil {
		return parseNumeric(m[1], m[2], m[3])
	}

	return dateResult{reason: ReasonUnparseable}
}

func parseNumeric(first, second, third string) dateResult {
	// Year first is read as Y/M/D, the only order in use with a leading year.
	if len(first) == 4 {
		return fromParts(atoi(first), atoi(second), atoi(third))
	}

	if len(third) != 4 {
		return dateResult{reason: ReasonUnparseable}
	}

	a, b, year := atoi(first), atoi(second), atoi(third)

	switch {
	case a == b:
		return fromParts(year, a, b)
	case a > 12 && b <= 12:
		return fromParts(year, b, a)
	case b > 12 && a <= 12:
		return fromParts(year, a, b)
	case a <= 12 && b <= 12:
		return dateResult{reason: ReasonAmbiguous}
	default:
		return dateResult{reason: ReasonUnparseable}
	}
}

func fromParts(year, month, day int) dateResult {
	if month < 1 || month > 12 || day < 1 || day > 31 || year < 1 {
		return dateResult{reason: ReasonUnparseable}
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes overflow such as 31 February; reject it instead.
	if t.Day() != day || int(t.Month()) != month {
		return dateResult{reason: ReasonUnparseable}
	}

	return dateResult{date: t}
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}

	return n
}
