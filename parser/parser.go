// Package parser turns raw bank notification text into a settlement
// candidate. It is heuristic extraction over the handful of phrasings the
// Brazilian banks actually send; anything else is reported as no match.
package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/brpix/pix-processor/utils"
)

// Notice is the parsed candidate: the amount the payer's bank says moved,
// and the moment it says the transfer happened, in the canonical timezone.
type Notice struct {
	Amount       decimal.Decimal
	TransferTime time.Time
}

// Ordered most to least specific; the first match wins.
var amountPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)R\$\s*(\d+(?:[,.]\d+)?)`),
	regexp.MustCompile(`(?i)valor\s*(?:de|recebido|:)?\s*R?\$?\s*(\d+(?:[,.]\d+)?)`),
	regexp.MustCompile(`(?i)R\$\D*?(\d+[,.]\d+)`),
	regexp.MustCompile(`(\d+,\d{2})`),
	regexp.MustCompile(`(\d+\.\d{2})`),
}

var lastResortAmountPattern = regexp.MustCompile(`(?i)R\$\D*(\d+(?:[,.]\d+)?)`)

var (
	relativeDayPattern = regexp.MustCompile(`(?i)\b(hoje|ontem)(?:\s+às|\s+at|\s+de)?\s+(\d{1,2}):(\d{1,2})`)
	dayMonthPattern    = regexp.MustCompile(`(\d{1,2})[/\-](\d{1,2})(?:[/\-]\d{2,4})?\s*(?:às|at|de)?\s*(\d{1,2}):(\d{1,2})`)
	dayMonthNamePattern = regexp.MustCompile(`(?i)(\d{1,2})\s+([A-Za-zçÇ]{3,})(?:\s+às|\s+at|\s+de)\s+(\d{1,2}):(\d{1,2})`)
)

var monthsByName = map[string]time.Month{
	"jan": time.January, "fev": time.February, "mar": time.March,
	"abr": time.April, "mai": time.May, "jun": time.June,
	"jul": time.July, "ago": time.August, "set": time.September,
	"out": time.October, "nov": time.November, "dez": time.December,
	"janeiro": time.January, "fevereiro": time.February, "março": time.March,
	"abril": time.April, "maio": time.May, "junho": time.June,
	"julho": time.July, "agosto": time.August, "setembro": time.September,
	"outubro": time.October, "novembro": time.November, "dezembro": time.December,
}

// Parse extracts an amount and a transfer time from stripped message text.
// No recognizable amount means no match. A missing or unrecognizable date
// falls back to now.
func Parse(content string, now time.Time) (Notice, bool) {
	amount, ok := extractAmount(content)
	if !ok {
		return Notice{}, false
	}

	now = utils.ToCanonical(now)

	transferTime, ok := extractTransferTime(content, now)
	if !ok {
		transferTime = now
	}

	return Notice{Amount: amount, TransferTime: transferTime}, true
}

func extractAmount(content string) (decimal.Decimal, bool) {
	for _, pattern := range amountPatterns {
		if match := pattern.FindStringSubmatch(content); match != nil {
			return parseAmount(match[1])
		}
	}

	if match := lastResortAmountPattern.FindStringSubmatch(content); match != nil {
		return parseAmount(match[1])
	}

	return decimal.Decimal{}, false
}

func parseAmount(raw string) (decimal.Decimal, bool) {
	normalized := strings.ReplaceAll(raw, ",", ".")

	amount, err := decimal.NewFromString(normalized)
	if err != nil {
		return decimal.Decimal{}, false
	}

	return amount, true
}

func extractTransferTime(content string, now time.Time) (time.Time, bool) {
	extractors := []func(string, time.Time) (time.Time, bool){
		extractRelativeDay,
		extractDayMonth,
		extractDayMonthName,
	}

	for _, extract := range extractors {
		if t, ok := extract(content, now); ok {
			return adjustYear(t, now), true
		}
	}

	return time.Time{}, false
}

func extractRelativeDay(content string, now time.Time) (time.Time, bool) {
	match := relativeDayPattern.FindStringSubmatch(content)
	if match == nil {
		return time.Time{}, false
	}

	day := now
	if strings.EqualFold(match[1], "ontem") {
		day = now.AddDate(0, 0, -1)
	}

	hour, minute := mustInt(match[2]), mustInt(match[3])
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, now.Location()), true
}

func extractDayMonth(content string, now time.Time) (time.Time, bool) {
	match := dayMonthPattern.FindStringSubmatch(content)
	if match == nil {
		return time.Time{}, false
	}

	day, month := mustInt(match[1]), mustInt(match[2])
	hour, minute := mustInt(match[3]), mustInt(match[4])

	return time.Date(now.Year(), time.Month(month), day, hour, minute, 0, 0, now.Location()), true
}

func extractDayMonthName(content string, now time.Time) (time.Time, bool) {
	match := dayMonthNamePattern.FindStringSubmatch(content)
	if match == nil {
		return time.Time{}, false
	}

	name := strings.ToLower(match[2])
	month, known := monthsByName[name]
	if !known {
		runes := []rune(name)
		if len(runes) >= 3 {
			month, known = monthsByName[string(runes[:3])]
		}
	}
	if !known {
		// Unrecognized month name, not a parse failure: the date simply
		// stays unresolved and the caller falls back to now.
		return time.Time{}, false
	}

	day := mustInt(match[1])
	hour, minute := mustInt(match[3]), mustInt(match[4])

	return time.Date(now.Year(), month, day, hour, minute, 0, 0, now.Location()), true
}

// adjustYear handles year-boundary texts: a "28 dezembro" email read in
// January resolved into the future, so it must refer to last year.
func adjustYear(t time.Time, now time.Time) time.Time {
	if t.After(now) && t.Sub(now) > 24*time.Hour {
		return t.AddDate(-1, 0, 0)
	}
	return t
}

func mustInt(raw string) int {
	value, _ := strconv.Atoi(raw)
	return value
}
