// backend/src/parsers/receipt/amount.go
package receipt

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// AmountStrategy proposes a receipt total from a layout.
type AmountStrategy struct {
	Name string
	Find func(Layout) (decimal.Decimal, bool)
}

var (
	// Optional currency symbol, integer part with optional thousands groups, two decimals.
	amountRe = regexp.MustCompile(`(?:[$€£¥]|R\$?)?\s?(\d{1,3}(?:[.,]\d{3})+|\d+)[.,](\d{2})`)

	// A token that could be an amount once OCR letter confusions are undone.
	numericishRe = regexp.MustCompile(`^[$€£¥R]?[\dOoDQlI|SBZ]+(?:[.,][\dOoDQlI|SBZ]+)*$`)

	ocrDigitReplacer = strings.NewReplacer(
		"O", "0", "o", "0", "D", "0", "Q", "0",
		"l", "1", "I", "1", "|", "1",
		"S", "5", "B", "8", "Z", "2",
	)

	subtotalRe   = regexp.MustCompile(`(?i)\bsub[\s\-]?total`)
	partTotalRe  = regexp.MustCompile(`(?i)\btotal\s+(?:tax|vat|savings?|saved|discounts?|items?|qty|quantity|tips?)\b`)
	grandTotalRe = regexp.MustCompile(`(?i)\bgrand\s*total`)
	totalRe      = regexp.MustCompile(`(?i)(total|amount\s+due|balance\s+due)`)
)

// DefaultAmountStrategies returns the amount strategies in priority order.
func DefaultAmountStrategies() []AmountStrategy {
	return []AmountStrategy{
		{Name: "keywordTotal", Find: KeywordTotal},
		{Name: "largestAmount", Find: LargestAmount},
	}
}

// KeywordTotal reads the amount printed on, or right below, a total line.
// Grand total lines win over plain total and amount-due lines.
func KeywordTotal(l Layout) (decimal.Decimal, bool) {
	for _, match := range []func(string) bool{isGrandTotalLine, isTotalLine} {
		for i, line := range l.Lines {
			if !match(line.Text) {
				continue
			}
			if amounts := findAmounts(line.Text); len(amounts) > 0 {
				return amounts[0], true
			}
			if i+1 < len(l.Lines) {
				if amounts := findAmounts(l.Lines[i+1].Text); len(amounts) > 0 {
					return amounts[0], true
				}
			}
		}
	}
	return decimal.Zero, false
}

// LargestAmount returns the largest currency-like value anywhere on the receipt.
func LargestAmount(l Layout) (decimal.Decimal, bool) {
	var best decimal.Decimal
	found := false
	for _, line := range l.Lines {
		for _, a := range findAmounts(line.Text) {
			if !found || a.GreaterThan(best) {
				best, found = a, true
			}
		}
	}
	return best, found
}

func isGrandTotalLine(text string) bool {
	return grandTotalRe.MatchString(text)
}

// isTotalLine ignores subtotals and "total tax"/"total savings" style lines.
func isTotalLine(text string) bool {
	text = subtotalRe.ReplaceAllString(text, "")
	return totalRe.MatchString(partTotalRe.ReplaceAllString(text, ""))
}

// NormalizeOCRDigits undoes common letter-for-digit confusions, but only in
// tokens that already look numeric so words are left alone.
func NormalizeOCRDigits(text string) string {
	fields := strings.Fields(text)
	for i, f := range fields {
		if !strings.ContainsAny(f, "0123456789.,") {
			continue
		}
		core := strings.TrimRight(f, ":;")
		if !numericishRe.MatchString(core) {
			continue
		}
		prefix := ""
		if strings.HasPrefix(core, "R") {
			prefix, core = "R", core[1:]
		}
		fields[i] = prefix + ocrDigitReplacer.Replace(core)
	}
	return strings.Join(fields, " ")
}

// findAmounts returns every currency-like value in the line, left to right,
// rounded to cents.
func findAmounts(text string) []decimal.Decimal {
	norm := NormalizeOCRDigits(text)

	var out []decimal.Decimal
	for _, m := range amountRe.FindAllStringSubmatchIndex(norm, -1) {
		// Reject a match glued to more digits, like "123.45" in "123.456" or "12.05" in "12.05.2024".
		if m[1] < len(norm) && isDigit(norm[m[1]]) {
			continue
		}
		if m[1]+1 < len(norm) && (norm[m[1]] == '.' || norm[m[1]] == ',') && isDigit(norm[m[1]+1]) {
			continue
		}
		if m[0] > 0 && isDigit(norm[m[0]-1]) {
			continue
		}
		intPart := strings.NewReplacer(",", "", ".", "").Replace(norm[m[2]:m[3]])
		d, err := decimal.NewFromString(intPart + "." + norm[m[4]:m[5]])
		if err != nil {
			continue
		}
		out = append(out, d.Round(2))
	}
	return out
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
