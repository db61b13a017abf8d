package extraction

import (
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

const (
	minYear = 2000
	maxYear = 2100
)

// nearestFuture returns the first valid day/month on or after today. Dates
// that do not exist this year, like 29 February, roll forward to the next
// year where they do.
func nearestFuture(today civil.Date, month time.Month, day int) (civil.Date, bool) {
	for y := today.Year; y <= today.Year+8; y++ {
		d := civil.Date{Year: y, Month: month, Day: day}
		if d.IsValid() && !d.Before(today) {
			return d, true
		}
	}
	return civil.Date{}, false
}

// nextWeekday returns the next wd strictly after today.
func nextWeekday(today civil.Date, wd time.Weekday) civil.Date {
	delta := (int(wd) - int(today.In(time.UTC).Weekday()) + 7) % 7
	if delta == 0 {
		delta = 7
	}
	return today.AddDays(delta)
}

// parseNumericDate understands DD.MM, DD.MM.YY, DD.MM.YYYY and YYYY-MM-DD
// with ".", "/" or "-" separators.
func parseNumericDate(s string, today civil.Date) (civil.Date, bool) {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '.' || r == '/' || r == '-' })
	switch len(parts) {
	case 2:
		if len(parts[0]) > 2 || len(parts[1]) > 2 {
			return civil.Date{}, false
		}
		day, _ := strconv.Atoi(parts[0])
		month, _ := strconv.Atoi(parts[1])
		if month < 1 || month > 12 {
			return civil.Date{}, false
		}
		return nearestFuture(today, time.Month(month), day)
	case 3:
		ds, ms, ys := parts[0], parts[1], parts[2]
		if len(ds) == 4 {
			ys, ds = ds, ys
		}
		if len(ds) > 2 || len(ms) > 2 {
			return civil.Date{}, false
		}
		year, ok := parseYear(ys)
		if !ok {
			return civil.Date{}, false
		}
		day, _ := strconv.Atoi(ds)
		month, _ := strconv.Atoi(ms)
		if month < 1 || month > 12 {
			return civil.Date{}, false
		}
		d := civil.Date{Year: year, Month: time.Month(month), Day: day}
		return d, d.IsValid()
	}
	return civil.Date{}, false
}

// parseYear accepts four-digit years and two-digit years meaning 20YY.
func parseYear(s string) (int, bool) {
	if len(s) != 2 && len(s) != 4 {
		return 0, false
	}
	y, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	if len(s) == 2 {
		y += 2000
	}
	return y, y >= minYear && y <= maxYear
}

// parseDayNumber accepts "15", "1st", "22nd", "3rd" and "15th".
func parseDayNumber(s string) (int, bool) {
	s = strings.ToLower(s)
	for _, suffix := range []string{"st", "nd", "rd", "th"} {
		if strings.HasSuffix(s, suffix) {
			s = strings.TrimSuffix(s, suffix)
			break
		}
	}
	if len(s) == 0 || len(s) > 2 {
		return 0, false
	}
	d, err := strconv.Atoi(s)
	if err != nil || d < 1 || d > 31 {
		return 0, false
	}
	return d, true
}

// dayMonth builds a date from a day and month and an optional year token.
func dayMonth(today civil.Date, month time.Month, day int, yearTok string) (civil.Date, bool) {
	if len(yearTok) == 4 {
		if y, ok := parseYear(yearTok); ok {
			d := civil.Date{Year: y, Month: month, Day: day}
			return d, d.IsValid()
		}
	}
	return nearestFuture(today, month, day)
}
