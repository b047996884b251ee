package models

import (
	"strconv"
	"strings"
	"time"
)

// Metadata values arrive from JSON payloads and upstream parsers, so the same
// logical field may be a float64, an int, or a formatted string. These helpers
// normalize without erroring: downstream math must never throw on dirty case
// data, it defaults instead (see the parse-fallback note in DESIGN.md).

// ToFloat coerces a metadata value to float64. Strings are cleaned of currency
// separators before parsing. Returns false when the value is absent or
// unparsable.
func ToFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(x, ",", ""), "₹", ""))
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// dateLayouts are tried in order when parsing transaction dates. Bank
// statement exports are wildly inconsistent about this.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"02-01-2006 15:04:05",
	"02-01-2006",
	"02/01/2006 15:04:05",
	"02/01/2006",
}

// ToTime coerces a metadata value to a timestamp. Unix-second numerics and
// the layouts above are accepted. Returns the zero time and false when the
// value cannot be parsed; callers treat that as "epoch" per the engine's
// silent-fallback policy.
func ToTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case float64:
		if x <= 0 {
			return time.Time{}, false
		}
		return time.Unix(int64(x), 0).UTC(), true
	case int64:
		if x <= 0 {
			return time.Time{}, false
		}
		return time.Unix(x, 0).UTC(), true
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}

// ToBool coerces truthy metadata values ("true", 1, true).
func ToBool(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		return strings.EqualFold(strings.TrimSpace(x), "true")
	case float64:
		return x != 0
	case int:
		return x != 0
	default:
		return false
	}
}

// Time returns the parsed transaction timestamp of a link, zero time when
// absent or unparsable.
func (l *Link) Time() time.Time {
	if l.Metadata == nil {
		return time.Time{}
	}
	t, _ := ToTime(l.Metadata[MetaTransactionDate])
	return t
}
