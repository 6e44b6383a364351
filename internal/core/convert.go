package core

// convert.go turns raw import cells into payment field values.
//
// These functions handle the messy reality of exported order data:
//   - Currency symbols, thousands separators and accounting negatives in amounts
//   - Free-text dates in many layouts, with a clock fallback
//   - Excel formula prefixes (="value") and stray markup in text cells
//   - Delimited product lists in a single cell
//
// Nothing here returns an error. Invalid input yields the zero value with
// ok=false, or the documented fallback, so one bad cell never stops a row.

import (
	"net/mail"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// numericRegex validates that a string is a plain decimal number after cleanup.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)$`)

// tagRegex matches HTML/XML tags removed from text cells.
var tagRegex = regexp.MustCompile(`<[^>]*>`)

// urlRegex detects cells that look like URLs, which are never split on '/'.
var urlRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*://\S+$`)

// AmountPlaces is the number of decimal places amounts are rounded to.
const AmountPlaces = 2

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years more than this many years in the future are moved back a century.
var TwoDigitYearPivot = 20

// Date layouts, most specific first.
var (
	dateTimeLayouts = []string{
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"2006/01/02 15:04:05",
		"2006-1-2 15:04:05",
		"1/2/2006 15:04:05",
		"1/2/2006 15:04",
		"1/2/2006 3:04 PM",
		"Jan 2, 2006 3:04 PM",
		"January 2, 2006 3:04 PM",
		time.RFC1123Z,
		time.RFC1123,
	}
	fourDigitYearLayouts = []string{
		"2006-01-02", "2006/01/02", "2006.01.02", "2006-1-2",
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
		"Jan 2, 2006", "January 2, 2006", "2 Jan 2006", "2 January 2006",
		"20060102",
	}
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06", "1.2.06", "01.02.06",
	}
)

// AmountFormat describes the separators used in amount cells.
type AmountFormat struct {
	Thousands string
	Decimal   string
}

// DefaultAmountFormat is "1,234.56".
var DefaultAmountFormat = AmountFormat{Thousands: ",", Decimal: "."}

// ParseAmount converts a currency amount to a decimal rounded to AmountPlaces.
// Handles currency symbols, thousands separators and accounting format
// (parentheses for negative). Returns false for empty or invalid input.
func ParseAmount(s string, format AmountFormat) (decimal.Decimal, bool) {
	s = CleanCell(s)
	if s == "" {
		return decimal.Zero, false
	}

	isNegative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		isNegative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.Map(func(r rune) rune {
		if unicode.Is(unicode.Sc, r) || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)

	if format.Thousands != "" {
		s = strings.ReplaceAll(s, format.Thousands, "")
	}
	if format.Decimal != "" && format.Decimal != "." {
		s = strings.ReplaceAll(s, format.Decimal, ".")
	}

	if !numericRegex.MatchString(s) {
		return decimal.Zero, false
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	if isNegative {
		d = d.Neg()
	}
	return d.Round(AmountPlaces), true
}

// ParseDate parses a free-text date. When the text cannot be parsed the
// current time from now is returned instead; the row is never rejected.
func ParseDate(s string, now Clock) time.Time {
	if t, ok := parseDate(s, now()); ok {
		return t
	}
	return now()
}

// parseDate tries every known layout. ref anchors the 2-digit year pivot.
func parseDate(s string, ref time.Time) (time.Time, bool) {
	s = SanitizeText(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	pivotYear := ref.Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return t, true
		}
	}

	// Unix timestamps
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil && len(s) >= 9 {
		return time.Unix(secs, 0).UTC(), true
	}

	return time.Time{}, false
}

// ParseMode matches test/live case-insensitively, falling back to the
// ambient run mode for anything else.
func ParseMode(s string, testMode bool) string {
	switch strings.ToLower(SanitizeText(s)) {
	case ModeTest:
		return ModeTest
	case ModeLive:
		return ModeLive
	}
	if testMode {
		return ModeTest
	}
	return ModeLive
}

// ParseAbsInt converts s to a non-negative integer the way absint does:
// leading integer digits are used and the sign is dropped. Returns false
// when the result is zero.
func ParseAbsInt(s string) (int64, bool) {
	s = CleanCell(s)
	if s == "" {
		return 0, false
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		if i < 0 {
			i = -i
		}
		return i, i > 0
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		i := int64(f)
		if i < 0 {
			i = -i
		}
		return i, i > 0
	}

	// Leading digits, e.g. "42abc"
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	i, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return 0, false
	}
	return i, i > 0
}

// IsNumeric reports whether s is a plain number.
func IsNumeric(s string) bool {
	return numericRegex.MatchString(strings.TrimSpace(s))
}

// IsEmail reports whether s is a bare e-mail address.
func IsEmail(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || !strings.Contains(s, "@") {
		return false
	}
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return false
	}
	return addr.Address == s
}

// ParseCurrencyCode upper-cases s and validates it as an ISO 4217 code.
func ParseCurrencyCode(s string) (string, bool) {
	code := strings.ToUpper(SanitizeText(s))
	if code == "" {
		return "", false
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return "", false
	}
	return unit.String(), true
}

// SanitizeText strips markup, control characters and repeated whitespace.
func SanitizeText(s string) string {
	s = CleanCell(s)
	if s == "" {
		return ""
	}
	s = tagRegex.ReplaceAllString(s, "")
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// CleanCell removes common spreadsheet artifacts from a cell value:
// - Trims whitespace
// - Removes Excel formula prefix (="...")
// - Removes surrounding quotes
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") && len(s) >= 3 {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	s = strings.Trim(s, `"'`)
	return strings.TrimSpace(s)
}

// SplitList splits a delimited list cell into trimmed entries. The first
// delimiter present among '|', ',' and ';' is used; '/' is used only when
// the cell does not look like a URL or an absolute path. Empty entries are
// dropped.
func SplitList(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	var delimiter string
	switch {
	case strings.Contains(s, "|"):
		delimiter = "|"
	case strings.Contains(s, ","):
		delimiter = ","
	case strings.Contains(s, ";"):
		delimiter = ";"
	case strings.Contains(s, "/") && !urlRegex.MatchString(strings.ReplaceAll(s, " ", "%20")) && !strings.HasPrefix(s, "/"):
		delimiter = "/"
	}

	parts := []string{s}
	if delimiter != "" {
		parts = strings.Split(s, delimiter)
	}

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
