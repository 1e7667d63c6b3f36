package importer

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Cell coercion. Rows are read with raw cell values, so everything arrives
// as a string: numbers unformatted, date cells as Excel serial numbers,
// free-typed dates however the operator wrote them. These helpers are the
// only place raw cell text is interpreted; phase logic never sees it.

// cellString returns the trimmed cell text. ok is false for blank cells.
func cellString(v string) (string, bool) {
	s := strings.TrimSpace(v)
	return s, s != ""
}

// cellNumber parses a numeric cell. Locale noise (thousand separators,
// currency symbols, spaces) is stripped before parsing, so "150 000,"
// "150,000" and "150000" all coerce to the same value.
func cellNumber(v string) (float64, bool) {
	s, ok := cellString(v)
	if !ok {
		return 0, false
	}

	var b strings.Builder
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.':
			b.WriteRune(r)
		case r == '-' && i == 0:
			b.WriteRune(r)
		}
	}

	n, err := strconv.ParseFloat(b.String(), 64)
	if err != nil || math.IsInf(n, 0) || math.IsNaN(n) {
		return 0, false
	}
	return n, true
}

// excelEpochOffsetDays is the serial number of the Unix epoch in the 1900
// date system (base 1899-12-30).
const excelEpochOffsetDays = 25569

// cellDate parses a date cell. Accepted forms, in order: Excel serial
// numbers, ISO YYYY-MM-DD, DD.MM.YYYY, DD/MM/YYYY, and a handful of
// common timestamp layouts as a last resort. Spreadsheets come from
// non-technical staff across locales, so acceptance is deliberately
// permissive; anything unparseable is simply absent, never an exception.
func cellDate(v string) (time.Time, bool) {
	s, ok := cellString(v)
	if !ok {
		return time.Time{}, false
	}

	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		if serial <= 0 {
			return time.Time{}, false
		}
		unixMillis := int64((serial - excelEpochOffsetDays) * 24 * 60 * 60 * 1000)
		return time.UnixMilli(unixMillis).UTC(), true
	}

	layouts := []string{
		"2006-01-02",
		"02.01.2006",
		"02/01/2006",
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006/01/02",
		"2.1.2006",
		"2/1/2006",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}

	return time.Time{}, false
}

// dateOnly drops the time component so due dates compare consistently.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
