package spreadsheet

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

var dateLayouts = []string{
	DateLayout,
	"1/2/2006",
	"01/02/2006",
	"2006/01/02",
	"1-2-2006",
	"01-02-06",
	"January 2, 2006",
	"Jan 2, 2006",
	time.RFC3339,
}

// Serial numbers outside these years are rejected; a bare year such as
// "2024" would otherwise read as a day in 1905.
const (
	minSerialYear = 1930
	maxSerialYear = 2100
)

// ParseDate accepts ISO dates, US style M/D/YYYY and Excel serial numbers.
func ParseDate(raw string) (time.Time, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	if serial, err := strconv.ParseFloat(value, 64); err == nil {
		if serial <= 0 {
			return time.Time{}, fmt.Errorf("invalid date %q", raw)
		}
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid date %q: %w", raw, err)
		}
		if t.Year() < minSerialYear || t.Year() > maxSerialYear {
			return time.Time{}, fmt.Errorf("invalid date %q: serial outside %d-%d", raw, minSerialYear, maxSerialYear)
		}
		return truncateDay(t), nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return truncateDay(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", raw)
}

// NormalizeDate converts any accepted date into DateLayout. Blank input and
// "N/A" return an empty string.
func NormalizeDate(raw string) (string, error) {
	value := strings.TrimSpace(raw)
	if value == "" || strings.EqualFold(value, "n/a") {
		return "", nil
	}
	t, err := ParseDate(value)
	if err != nil {
		return "", err
	}
	return t.Format(DateLayout), nil
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
