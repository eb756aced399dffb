// backend/src/parsers/receipt/merchant.go
package receipt

import (
	"regexp"
	"strings"

	"github.com/username/merchantguard/backend/src/security/validation"
)

// MerchantKeywords are chain names and generic shop words that mark a merchant line.
var MerchantKeywords = []string{
	"TRADER JOE", "WALMART", "WHOLE FOODS", "COSTCO", "SAFEWAY", "KROGER",
	"TARGET", "CVS", "WALGREENS", "MCDONALD", "STARBUCKS", "SUBWAY",
	"SPAR", "WINCO", "MOMI", "TOY", "STORE", "MARKET", "SHOP",
}

const (
	knownMerchantLines = 5
	topRegionFraction  = 0.25
)

// merchantKeywordRe matches a keyword as whole words, allowing a plural or
// possessive "S" so "TRADER JOE'S" and "STORES" still count.
var merchantKeywordRe = func() *regexp.Regexp {
	quoted := make([]string, len(MerchantKeywords))
	for i, kw := range MerchantKeywords {
		quoted[i] = regexp.QuoteMeta(kw)
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)(?:'?S)?\b`)
}()

// MerchantStrategy proposes a merchant name from a layout.
type MerchantStrategy struct {
	Name string
	Find func(Layout) (string, bool)
}

var (
	nameDisallowedRe = regexp.MustCompile(`[^\p{L}\p{N}_\s&'-]`)
	spaceRe          = regexp.MustCompile(`\s+`)
	numericLineRe    = regexp.MustCompile(`^[\d\s\-/.,:#$€£¥%*+()]+$`)
	letterRe         = regexp.MustCompile(`\p{L}`)

	// Lines that are never a merchant name: dates, times, phone numbers, urls,
	// reference numbers.
	noisePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b\d{1,4}[/.\-]\d{1,2}[/.\-]\d{2,4}\b`),
		regexp.MustCompile(`(?i)\b\d{1,2}:\d{2}(:\d{2})?\s*(am|pm)?\b`),
		regexp.MustCompile(`\(?\d{3}\)?[\s.\-]?\d{3}[\s.\-]\d{4}\b`),
		regexp.MustCompile(`(?i)(https?://|www\.|\.(com|net|org|co)\b)`),
		regexp.MustCompile(`(?i)\b(receipt|invoice|order|trans(action)?|ticket|ref|tel|phone|store|cashier|register|lane)\b\s*(#|no\b|num|:)`),
		regexp.MustCompile(`(?i)\b(receipt|invoice)\s*#?\s*\d`),
	}
)

// DefaultMerchantStrategies returns the merchant strategies in priority order.
func DefaultMerchantStrategies() []MerchantStrategy {
	return []MerchantStrategy{
		{Name: "knownMerchant", Find: KnownMerchant},
		{Name: "topRegionConfidence", Find: TopRegionConfidence},
	}
}

// KnownMerchant scans the first few lines for a merchant keyword. A clean first
// line is taken as the merchant even without a keyword; deeper lines need one.
// Noise lines (dates, phone numbers, urls, store references) are never used.
func KnownMerchant(l Layout) (string, bool) {
	for i, line := range l.Lines {
		if i >= knownMerchantLines {
			break
		}
		if !nameLike(line.Text) || isNoiseLine(line.Text) {
			continue
		}
		if i == 0 || merchantKeywordRe.MatchString(line.Text) {
			if name := CleanMerchantName(line.Text); name != "" {
				return name, true
			}
		}
	}
	return "", false
}

// TopRegionConfidence picks the most confidently read text line in the top quarter
// of the receipt. The first line is always a candidate.
func TopRegionConfidence(l Layout) (string, bool) {
	limit := l.Top + topRegionFraction*l.Height()

	best, bestConf := "", -1.0
	for i, line := range l.Lines {
		if i > 0 && line.CenterY > limit {
			break
		}
		if !nameLike(line.Text) || isNoiseLine(line.Text) {
			continue
		}
		name := CleanMerchantName(line.Text)
		if name == "" {
			continue
		}
		if line.Confidence > bestConf {
			best, bestConf = name, line.Confidence
		}
	}
	return best, best != ""
}

// CleanMerchantName strips punctuation OCR tends to hallucinate and removes markup.
func CleanMerchantName(s string) string {
	s = nameDisallowedRe.ReplaceAllString(s, " ")
	s = spaceRe.ReplaceAllString(s, " ")
	s = validation.SanitizeText(strings.TrimSpace(s))
	return validation.StripFormulaPrefix(s)
}

func nameLike(text string) bool {
	t := strings.TrimSpace(text)
	if len(t) < 3 || numericLineRe.MatchString(t) {
		return false
	}
	return letterRe.MatchString(t)
}

func isNoiseLine(text string) bool {
	for _, re := range noisePatterns {
		if re.MatchString(text) {
			return true
		}
	}
	return len(findAmounts(text)) > 0
}
