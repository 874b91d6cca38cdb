package bcp

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/username/finmail/backend/src/models"
)

// The bank reports times in Peru local time with no offset in the text.
var limaZone = time.FixedZone("America/Lima", -5*60*60)

// LabelPattern builds a case-insensitive pattern capturing the free text that
// follows a field label on the same line. Labels are written with explicit
// accent alternatives ("operaci[oó]n") because the bank's emails drop
// diacritics intermittently.
func LabelPattern(label string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)` + label + `\s*:?\s*([^\r\n]+)`)
}

// AmountPattern builds a pattern capturing an optional currency token and a
// numeric value after a field label.
func AmountPattern(label string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)` + label + `\s*:?\s*(S/\.?|US\$|USD|PEN|\$)?\s*([0-9][0-9.,]*)`)
}

// FirstMatch evaluates the patterns in order and returns the first capture
// group of the first one that matches, cleaned up. Returns "" when nothing
// matches; callers decide whether absence is fatal.
func FirstMatch(text string, patterns []*regexp.Regexp) string {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return CleanField(m[1])
		}
	}
	return ""
}

// ExtractAmount evaluates the patterns (built with AmountPattern) in order
// and returns the first amount that normalizes to a valid value. The
// currency defaults to PEN when no token precedes the number.
func ExtractAmount(text string, patterns []*regexp.Regexp) *models.AmountInfo {
	for _, re := range patterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		value, ok := normalizeAmountValue(m[2])
		if !ok {
			continue
		}
		return &models.AmountInfo{Value: value, Currency: detectCurrency(m[1])}
	}
	return nil
}

// normalizeAmountValue converts "1,234.56", "1.234,56", "1 500" style inputs
// to a plain decimal string with two fraction digits. Returns false for
// anything that does not parse to a non-negative number.
func normalizeAmountValue(raw string) (string, bool) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), " ", "")
	dot := strings.LastIndex(s, ".")
	comma := strings.LastIndex(s, ",")
	switch {
	case dot >= 0 && comma >= 0:
		// The later separator is the decimal one; the other marks thousands.
		if dot > comma {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		}
	case comma >= 0:
		if decimalSeparator(s, comma) {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case dot >= 0:
		if !decimalSeparator(s, dot) {
			s = strings.ReplaceAll(s, ".", "")
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return "", false
	}
	return strconv.FormatFloat(v, 'f', 2, 64), true
}

// decimalSeparator reports whether the single separator at idx reads as a
// decimal point: one or two trailing digits and no earlier occurrence.
func decimalSeparator(s string, idx int) bool {
	frac := len(s) - idx - 1
	return (frac == 1 || frac == 2) && strings.Count(s, string(s[idx])) == 1
}

func detectCurrency(token string) models.Currency {
	switch strings.ToUpper(strings.TrimSpace(token)) {
	case "US$", "USD", "$":
		return models.CurrencyUSD
	default:
		return models.CurrencyPEN
	}
}

var (
	reNumericDateTime = regexp.MustCompile(`(?i)(\d{2})/(\d{2})/(\d{4})\s*(?:-\s*|,\s*|a\s+las\s+)?(\d{1,2}):(\d{2})\s*([ap])\.?\s?m\.?|(\d{2})/(\d{2})/(\d{4})\s+(\d{1,2}):(\d{2})`)
	reNumericDate     = regexp.MustCompile(`(\d{2})/(\d{2})/(\d{4})`)
	reTextualDateTime = regexp.MustCompile(`(?i)(\d{1,2})\s+de\s+([a-zá]+)\s+(?:de|del)\s+(\d{4})(?:\s*(?:,|a\s+las)?\s*(\d{1,2}):(\d{2})\s*(?:([ap])\.?\s?m\.?)?)?`)
)

var spanishMonths = map[string]time.Month{
	"enero": time.January, "febrero": time.February, "marzo": time.March,
	"abril": time.April, "mayo": time.May, "junio": time.June,
	"julio": time.July, "agosto": time.August,
	"septiembre": time.September, "setiembre": time.September,
	"octubre": time.October, "noviembre": time.November, "diciembre": time.December,
}

// ExtractDateTime finds the first recognizable date-time in the text. The
// strict numeric dd/mm/yyyy hh:mm form is tried first, then the Spanish
// textual form ("5 de octubre de 2025, 2:30 pm"), then a bare dd/mm/yyyy
// date at midnight. A nil result means "not found", never "invalid";
// callers apply their own fallback.
func ExtractDateTime(text string) *time.Time {
	if m := reNumericDateTime.FindStringSubmatch(text); m != nil {
		if t, ok := numericDateTime(m); ok {
			return &t
		}
	}
	if m := reTextualDateTime.FindStringSubmatch(text); m != nil {
		if t, ok := textualDateTime(m); ok {
			return &t
		}
	}
	if m := reNumericDate.FindStringSubmatch(text); m != nil {
		if t, ok := makeDate(m[3], m[2], m[1], 0, 0, ""); ok {
			return &t
		}
	}
	return nil
}

func numericDateTime(m []string) (time.Time, bool) {
	// The pattern has two alternatives: with and without an am/pm marker.
	if m[1] != "" {
		hour, _ := strconv.Atoi(m[4])
		min, _ := strconv.Atoi(m[5])
		return makeDate(m[3], m[2], m[1], hour, min, m[6])
	}
	hour, _ := strconv.Atoi(m[10])
	min, _ := strconv.Atoi(m[11])
	return makeDate(m[9], m[8], m[7], hour, min, "")
}

func textualDateTime(m []string) (time.Time, bool) {
	month, ok := spanishMonths[strings.ToLower(m[2])]
	if !ok {
		return time.Time{}, false
	}
	day, _ := strconv.Atoi(m[1])
	year, _ := strconv.Atoi(m[3])
	hour, min := 0, 0
	if m[4] != "" {
		hour, _ = strconv.Atoi(m[4])
		min, _ = strconv.Atoi(m[5])
	}
	hour, ok = adjustMeridiem(hour, m[6])
	if !ok || day < 1 || day > 31 {
		return time.Time{}, false
	}
	return time.Date(year, month, day, hour, min, 0, 0, limaZone), true
}

func makeDate(yearStr, monthStr, dayStr string, hour, min int, meridiem string) (time.Time, bool) {
	year, _ := strconv.Atoi(yearStr)
	month, _ := strconv.Atoi(monthStr)
	day, _ := strconv.Atoi(dayStr)
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	hour, ok := adjustMeridiem(hour, meridiem)
	if !ok {
		return time.Time{}, false
	}
	return time.Date(year, time.Month(month), day, hour, min, 0, 0, limaZone), true
}

func adjustMeridiem(hour int, meridiem string) (int, bool) {
	switch strings.ToLower(meridiem) {
	case "p":
		if hour < 12 {
			hour += 12
		}
	case "a":
		if hour == 12 {
			hour = 0
		}
	}
	return hour, hour < 24
}

var reSpaces = regexp.MustCompile(`\s+`)

// CleanField collapses whitespace runs and trims separators a greedy capture
// tends to drag along.
func CleanField(s string) string {
	s = reSpaces.ReplaceAllString(s, " ")
	return strings.Trim(s, " \t.,;:|-")
}

// StripTrailingLabel cuts a capture at the first occurrence of any of the
// given label fragments (compared case-insensitively). Greedy patterns on
// single-line bodies sometimes pull the next field's label into the value.
func StripTrailingLabel(s string, labels ...string) string {
	lower := strings.ToLower(s)
	cut := len(s)
	for _, label := range labels {
		if idx := strings.Index(lower, strings.ToLower(label)); idx >= 0 && idx < cut {
			cut = idx
		}
	}
	return CleanField(s[:cut])
}
