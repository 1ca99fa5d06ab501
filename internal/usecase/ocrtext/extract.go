// Package ocrtext pulls the transfer reference, amount, and timestamp out of
// raw OCR text from bank transfer screenshots. The OCR engine itself runs
// upstream; this package only parses its text output.
package ocrtext

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Extracted is what a screenshot's text yields. Zero values mean the field
// was not found.
type Extracted struct {
	Ref         string
	AmountCents int64
	At          time.Time
}

// Bank identifiers as sent by the upload command. Unknown banks fall back to
// generic patterns.
const (
	BankDBS  = "dbs"
	BankPOSB = "posb"
	BankSC   = "sc"
)

var (
	// DBS/POSB print "Transaction Ref" or "Reference no." followed by the id.
	dbsRefRe = regexp.MustCompile(`(?i)(?:transaction\s+ref(?:erence)?|reference\s+no\.?)\s*:?\s*([A-Za-z0-9]+)`)
	// Standard Chartered prints "Transfer Reference" on its receipts.
	scRefRe = regexp.MustCompile(`(?i)transfer\s+reference\s*:?\s*([A-Za-z0-9]+)`)
	// Generic fallback: any CHOW-prefixed token.
	chowRefRe = regexp.MustCompile(`\bCHOW\d+\b`)

	// Dollars with optional SGD/S$ marker and optional thousands commas.
	amountRe = regexp.MustCompile(`(?i)(?:SGD|S?\$)\s*([0-9][0-9,]*)\.([0-9]{2})`)

	// "02 Jan 2026 12:34 PM" and "02 Jan 2026 12:34:56" styles.
	dateTimeRes = []struct {
		re     *regexp.Regexp
		layout string
	}{
		{regexp.MustCompile(`\b(\d{1,2} [A-Za-z]{3} \d{4} \d{1,2}:\d{2}:\d{2} (?:AM|PM))\b`), "2 Jan 2006 3:04:05 PM"},
		{regexp.MustCompile(`\b(\d{1,2} [A-Za-z]{3} \d{4} \d{1,2}:\d{2} (?:AM|PM))\b`), "2 Jan 2006 3:04 PM"},
		{regexp.MustCompile(`\b(\d{1,2} [A-Za-z]{3} \d{4} \d{2}:\d{2}:\d{2})\b`), "2 Jan 2006 15:04:05"},
		{regexp.MustCompile(`\b(\d{1,2} [A-Za-z]{3} \d{4} \d{2}:\d{2})\b`), "2 Jan 2006 15:04"},
		{regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2})\b`), "2006-01-02 15:04:05"},
	}
)

// Extract parses text from the named bank's receipt layout. Timestamps
// without an offset are interpreted in loc.
func Extract(bank, text string, loc *time.Location) Extracted {
	if loc == nil {
		loc = time.UTC
	}
	return Extracted{
		Ref:         extractRef(bank, text),
		AmountCents: extractAmountCents(text),
		At:          extractTime(text, loc),
	}
}

func extractRef(bank, text string) string {
	switch strings.ToLower(strings.TrimSpace(bank)) {
	case BankDBS, BankPOSB:
		if m := dbsRefRe.FindStringSubmatch(text); m != nil {
			return m[1]
		}
	case BankSC:
		if m := scRefRe.FindStringSubmatch(text); m != nil {
			return m[1]
		}
	}
	if m := chowRefRe.FindString(text); m != "" {
		return m
	}
	if m := dbsRefRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

func extractAmountCents(text string) int64 {
	m := amountRe.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	dollars, err := strconv.ParseInt(strings.ReplaceAll(m[1], ",", ""), 10, 64)
	if err != nil {
		return 0
	}
	cents, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return 0
	}
	return dollars*100 + cents
}

func extractTime(text string, loc *time.Location) time.Time {
	for _, c := range dateTimeRes {
		m := c.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		t, err := time.ParseInLocation(c.layout, m[1], loc)
		if err == nil {
			return t
		}
	}
	return time.Time{}
}
