// backend/src/parsers/receipt/parser.go
package receipt

import (
	"github.com/username/merchantguard/backend/src/logger"
	"github.com/username/merchantguard/backend/src/models"
)

// Parser turns raw OCR tokens into merchant and total fields. Each field is
// resolved by its own ordered strategy list; the first strategy to match wins.
type Parser struct {
	merchant []MerchantStrategy
	amount   []AmountStrategy
}

// NewParser creates a parser with the default strategy chains.
func NewParser() *Parser {
	return NewParserWithStrategies(DefaultMerchantStrategies(), DefaultAmountStrategies())
}

// NewParserWithStrategies creates a parser with custom strategy chains.
func NewParserWithStrategies(merchant []MerchantStrategy, amount []AmountStrategy) *Parser {
	return &Parser{merchant: merchant, amount: amount}
}

// Parse never fails: unmatched fields are left nil.
func (p *Parser) Parse(tokens []models.OCRToken) models.ReceiptExtraction {
	var out models.ReceiptExtraction

	layout := GroupLines(tokens)
	if len(layout.Lines) == 0 {
		return out
	}

	for _, s := range p.merchant {
		if name, ok := s.Find(layout); ok {
			out.MerchantName = &name
			logger.L.Debug("Merchant matched", "strategy", s.Name, "merchant", name)
			break
		}
	}

	for _, s := range p.amount {
		if d, ok := s.Find(layout); ok {
			total := d.InexactFloat64()
			out.TotalAmount = &total
			logger.L.Debug("Total matched", "strategy", s.Name, "total", d.StringFixed(2))
			break
		}
	}

	return out
}
