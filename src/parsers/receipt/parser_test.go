package receipt

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/merchantguard/backend/src/models"
)

// tok places a word at (left, top) with a 20px tall box.
func tok(text string, left, top, conf float64) models.OCRToken {
	return models.OCRToken{
		Text:       text,
		Box:        models.BoundingBox{Left: left, Top: top, Right: left + 12*float64(len(text)), Bottom: top + 20},
		Confidence: conf,
	}
}

func walmartReceipt() []models.OCRToken {
	// Deliberately shuffled; the parser must not rely on token order.
	return []models.OCRToken{
		tok("$123.45", 300, 272, 0.93),
		tok("Walmart", 120, 10, 0.97),
		tok("BANANAS", 20, 150, 0.90),
		tok("0.59", 300, 150, 0.92),
		tok("(479) 273-4000", 90, 70, 0.88),
		tok("SUBTOTAL", 20, 210, 0.91),
		tok("118.00", 300, 212, 0.90),
		tok("TAX", 20, 240, 0.89),
		tok("5.45", 300, 240, 0.90),
		tok("TOTAL", 20, 270, 0.95),
		tok("CASH", 20, 300, 0.90),
		tok("140.00", 300, 300, 0.90),
		tok("CHANGE", 20, 330, 0.90),
		tok("16.55", 300, 330, 0.90),
	}
}

func TestParse_WalmartReceipt(t *testing.T) {
	got := NewParser().Parse(walmartReceipt())

	require.NotNil(t, got.MerchantName)
	assert.Equal(t, "Walmart", *got.MerchantName)
	require.NotNil(t, got.TotalAmount)
	assert.InDelta(t, 123.45, *got.TotalAmount, 1e-9)
}

func TestParse_EmptyTokens(t *testing.T) {
	for _, tokens := range [][]models.OCRToken{nil, {}, {tok("   ", 0, 0, 0.9), tok("", 0, 40, 0.9)}} {
		got := NewParser().Parse(tokens)
		assert.Nil(t, got.MerchantName)
		assert.Nil(t, got.TotalAmount)
		assert.True(t, got.Empty())
	}
}

func TestParse_FallbackStrategies(t *testing.T) {
	tokens := []models.OCRToken{
		tok("Corner", 20, 10, 0.80),
		tok("Deli", 110, 12, 0.84),
		tok("12/05/2024", 20, 40, 0.99),
		tok("10:31", 200, 40, 0.99),
		tok("Coffee", 20, 100, 0.90),
		tok("3.50", 300, 100, 0.90),
		tok("Bagel", 20, 130, 0.90),
		tok("2.25", 300, 130, 0.90),
		tok("Thank", 20, 300, 0.99),
		tok("you", 100, 300, 0.99),
	}

	got := NewParser().Parse(tokens)
	require.NotNil(t, got.MerchantName)
	assert.Equal(t, "Corner Deli", *got.MerchantName)
	require.NotNil(t, got.TotalAmount)
	assert.InDelta(t, 3.50, *got.TotalAmount, 1e-9)
}

func TestParse_MerchantOnly(t *testing.T) {
	got := NewParser().Parse([]models.OCRToken{tok("COSTCO", 20, 10, 0.9), tok("WHOLESALE", 120, 10, 0.9)})
	require.NotNil(t, got.MerchantName)
	assert.Equal(t, "COSTCO WHOLESALE", *got.MerchantName)
	assert.Nil(t, got.TotalAmount)
}

func TestGroupLines(t *testing.T) {
	layout := GroupLines([]models.OCRToken{
		tok("right", 200, 16, 0.5),
		tok("left", 10, 10, 1.0),
		tok("below", 10, 60, 0.7),
	})

	require.Len(t, layout.Lines, 2)
	assert.Equal(t, "left right", layout.Lines[0].Text)
	assert.InDelta(t, 0.75, layout.Lines[0].Confidence, 1e-9)
	assert.Equal(t, "below", layout.Lines[1].Text)
	assert.Equal(t, 10.0, layout.Top)
	assert.Equal(t, 80.0, layout.Bottom)
}

func TestGroupLines_ToleranceScalesWithHeight(t *testing.T) {
	tall := func(text string, top float64) models.OCRToken {
		return models.OCRToken{Text: text, Box: models.BoundingBox{Left: top, Top: top, Right: top + 50, Bottom: top + 60}}
	}
	// Centers 15px apart: one line at 60px text height, two at 20px.
	layout := GroupLines([]models.OCRToken{tall("a", 0), tall("b", 15)})
	assert.Len(t, layout.Lines, 1)

	layout = GroupLines([]models.OCRToken{tok("a", 0, 0, 1), tok("b", 20, 15, 1)})
	assert.Len(t, layout.Lines, 2)
}

func TestKnownMerchant_OnlyTopLines(t *testing.T) {
	lines := []Line{{Text: "12/05/2024"}, {Text: "Line two"}, {Text: "Line three"}, {Text: "Line four"}, {Text: "Line five"}, {Text: "CORNER STORE"}}
	_, ok := KnownMerchant(Layout{Lines: lines})
	assert.False(t, ok)

	lines[4].Text = "CORNER STORE"
	name, ok := KnownMerchant(Layout{Lines: lines})
	assert.True(t, ok)
	assert.Equal(t, "CORNER STORE", name)
}

func TestKnownMerchant_FirstLineBeatsDeeperKeyword(t *testing.T) {
	name, ok := KnownMerchant(Layout{Lines: []Line{{Text: "Joe's Diner"}, {Text: "Corner Market"}}})
	assert.True(t, ok)
	assert.Equal(t, "Joe's Diner", name)
}

func TestKnownMerchant_WholeWordKeywords(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"TOYOTA SERVICE", false},
		{"WORKSHOP SUPPLY", false},
		{"TARGETED ADS", false},
		{"THE TOY BOX", true},
		{"TRADER JOE'S", true},
		{"Farmers Market", true},
		{"LOWE'S HOME STORES", true},
	}
	for _, tt := range tests {
		// Line 0 is noise so only the keyword rule can pick line 1.
		_, ok := KnownMerchant(Layout{Lines: []Line{{Text: "10:31 AM"}, {Text: tt.line}}})
		assert.Equal(t, tt.want, ok, tt.line)
	}
}

func TestParse_NoisyHeaderLines(t *testing.T) {
	tests := []struct {
		name   string
		tokens []models.OCRToken
		want   string
	}{
		{
			name: "store reference under header",
			tokens: []models.OCRToken{
				tok("TOTAL", 20, 120, 0.95), tok("4.50", 300, 120, 0.95),
				tok("Store", 20, 40, 0.99), tok("#0421", 100, 40, 0.99), tok("12/05/2024", 200, 40, 0.99),
				tok("Blue", 20, 10, 0.80), tok("Bottle", 90, 10, 0.80), tok("Coffee", 180, 10, 0.80),
			},
			want: "Blue Bottle Coffee",
		},
		{
			name: "shop url under header",
			tokens: []models.OCRToken{
				tok("Shop", 20, 40, 0.99), tok("online", 80, 40, 0.99), tok("www.joes.com", 170, 40, 0.99),
				tok("Joe's", 20, 10, 0.70), tok("Diner", 100, 10, 0.70),
			},
			want: "Joe's Diner",
		},
		{
			name: "noise first line then real name",
			tokens: []models.OCRToken{
				tok("Store", 20, 10, 0.99), tok("#0421", 100, 10, 0.99), tok("12/05/2024", 200, 10, 0.99),
				tok("Blue", 20, 40, 0.80), tok("Bottle", 90, 40, 0.80),
				tok("Coffee", 20, 300, 0.90), tok("4.50", 300, 300, 0.90),
			},
			want: "Blue Bottle",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewParser().Parse(tt.tokens)
			require.NotNil(t, got.MerchantName)
			assert.Equal(t, tt.want, *got.MerchantName)
		})
	}
}

func TestTopRegionConfidence_SkipsNoise(t *testing.T) {
	layout := Layout{
		Top:    0,
		Bottom: 400,
		Lines: []Line{
			{Text: "www.example.com", CenterY: 10, Confidence: 0.99},
			{Text: "Tel: 555-123-4567", CenterY: 30, Confidence: 0.99},
			{Text: "Blue Bottle", CenterY: 50, Confidence: 0.70},
			{Text: "Receipt # 8841", CenterY: 70, Confidence: 0.98},
			{Text: "Hollow Pine", CenterY: 300, Confidence: 0.99},
		},
	}
	name, ok := TopRegionConfidence(layout)
	assert.True(t, ok)
	assert.Equal(t, "Blue Bottle", name)
}

func TestKeywordTotal(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		want  string
	}{
		{"same line", []string{"TOTAL 12.00"}, "12"},
		{"next line", []string{"TOTAL", "$45.10"}, "45.1"},
		{"subtotal ignored", []string{"SUBTOTAL 40.00", "TAX 3.20", "Total: 43.20"}, "43.2"},
		{"grand total preferred", []string{"TOTAL 40.00", "GRAND TOTAL 44.00"}, "44"},
		{"amount due", []string{"AMOUNT DUE 9.99"}, "9.99"},
		{"partial totals skipped", []string{"TOTAL SAVINGS 2.00", "TOTAL TAX 5.45", "TOTAL 123.45"}, "123.45"},
		{"item count skipped", []string{"TOTAL ITEMS 4", "TOTAL", "9.00"}, "9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var layout Layout
			for _, l := range tt.lines {
				layout.Lines = append(layout.Lines, Line{Text: l})
			}
			got, ok := KeywordTotal(layout)
			require.True(t, ok)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s", got)
		})
	}

	_, ok := KeywordTotal(Layout{Lines: []Line{{Text: "SUBTOTAL 40.00"}, {Text: "CASH 50.00"}}})
	assert.False(t, ok)

	_, ok = KeywordTotal(Layout{Lines: []Line{{Text: "TOTAL TAX 5.45"}, {Text: "CASH 50.00"}}})
	assert.False(t, ok)
}

func TestLargestAmount(t *testing.T) {
	got, ok := LargestAmount(Layout{Lines: []Line{{Text: "A 3.50"}, {Text: "B 1,204.99 C 7.10"}, {Text: "no price"}}})
	require.True(t, ok)
	assert.Equal(t, "1204.99", got.StringFixed(2))

	_, ok = LargestAmount(Layout{Lines: []Line{{Text: "no price"}}})
	assert.False(t, ok)
}

func TestFindAmounts(t *testing.T) {
	tests := []struct {
		text string
		want []string
	}{
		{"$123.45", []string{"123.45"}},
		{"€ 7,50", []string{"7.50"}},
		{"1.234,56", []string{"1234.56"}},
		{"R12.00", []string{"12.00"}},
		{"TOTAL $I2S.4O", []string{"125.40"}},
		{"12.05.2024", nil},
		{"123.456", nil},
		{"qty 3", nil},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			var got []string
			for _, d := range findAmounts(tt.text) {
				got = append(got, d.StringFixed(2))
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeOCRDigits(t *testing.T) {
	assert.Equal(t, "SOLD 12.00", NormalizeOCRDigits("SOLD 12.00"))
	assert.Equal(t, "$105.80", NormalizeOCRDigits("$1O5.8O"))
	assert.Equal(t, "TOTAL 10.00", NormalizeOCRDigits("TOTAL lO.OO"))
}

func TestCleanMerchantName(t *testing.T) {
	assert.Equal(t, "TRADER JOE'S 552", CleanMerchantName("TRADER JOE'S #552!"))
	assert.Equal(t, "M&M Market", CleanMerchantName("  M&M   Market* "))
	assert.Equal(t, "", CleanMerchantName("***"))
	assert.Equal(t, "WALMART -", CleanMerchantName("- WALMART -"))
}
