package extract

import (
	"regexp"
	"strings"
	"time"

	"pathfinder/pkg/models"
)

// DateLayout is the day format of every date column
const DateLayout = "2006-01-02"

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	DateLayout,
	"2006/01/02",
	"02/01/2006",
	"02-01-2006",
	"02.01.2006",
	"2/1/2006",
}

var embeddedDate = regexp.MustCompile(`\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}/\d{4}`)

// ParseDate tries each known layout and returns the calendar day. A date
// embedded in a longer text ("Publiée le 12/01/2026") is found too.
func ParseDate(s string) (time.Time, bool) {
	s = Nullable(CleanText(s))
	if s == "" {
		return time.Time{}, false
	}
	if t, ok := parseLayouts(s); ok {
		return t, true
	}
	if m := embeddedDate.FindString(s); m != "" {
		return parseLayouts(m)
	}
	return time.Time{}, false
}

func parseLayouts(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return models.Day(t), true
		}
	}
	return time.Time{}, false
}

// ParseDatePtr is ParseDate for optional columns
func ParseDatePtr(s string) *time.Time {
	t, ok := ParseDate(s)
	if !ok {
		return nil
	}
	return &t
}

// FormatDate renders an optional date, "" when absent
func FormatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(DateLayout)
}

// TrimDate drops a timestamp's time part ("2026-01-13T14:48:00Z" -> "2026-01-13")
func TrimDate(s string) string {
	before, _, _ := strings.Cut(s, "T")
	return strings.TrimSpace(before)
}
