// backend/src/processors/feature_processor.go
package processors

import (
	"math"
	"strings"

	"github.com/username/merchantguard/backend/src/models"
)

// Feature names in vector order. This order is the contract with the trained model:
// the first ten match the training-time preprocessing, the rest are derived signals.
const (
	FeatStep              = "step"
	FeatAmount            = "amount"
	FeatOldBalanceOrg     = "oldbalanceOrg"
	FeatNewBalanceOrig    = "newbalanceOrig"
	FeatOldBalanceDest    = "oldbalanceDest"
	FeatNewBalanceDest    = "newbalanceDest"
	FeatBalanceDiffOrig   = "balanceDiffOrig"
	FeatBalanceDiffDest   = "balanceDiffDest"
	FeatTypeCode          = "type_code"
	FeatIsFlaggedFraud    = "isFlaggedFraud"
	FeatAmountToOrigRatio = "amount_to_orig_ratio"
	FeatOrigBalanceError  = "orig_balance_error"
	FeatDestBalanceError  = "dest_balance_error"
	FeatNegativeBalance   = "negative_balance_flag"
	FeatHasDeviceID       = "has_device_id"
	FeatHasGeo            = "has_geo"
	FeatGeoLat            = "geo_lat"
	FeatGeoLon            = "geo_lon"
	FeatHasBIN            = "has_bin"
	FeatBINNetwork        = "bin_network"
)

// FeatureNames is the fixed feature order produced by FeatureBuilder.
var FeatureNames = []string{
	FeatStep, FeatAmount, FeatOldBalanceOrg, FeatNewBalanceOrig, FeatOldBalanceDest,
	FeatNewBalanceDest, FeatBalanceDiffOrig, FeatBalanceDiffDest, FeatTypeCode, FeatIsFlaggedFraud,
	FeatAmountToOrigRatio, FeatOrigBalanceError, FeatDestBalanceError, FeatNegativeBalance,
	FeatHasDeviceID, FeatHasGeo, FeatGeoLat, FeatGeoLon, FeatHasBIN, FeatBINNetwork,
}

// FeatureWidth is len(FeatureNames).
var FeatureWidth = len(FeatureNames)

// UnknownTypeCode encodes a transfer category the model never saw.
const UnknownTypeCode = -1

// typeCodes mirrors the label encoder fitted at training time (sorted class names).
var typeCodes = map[string]float64{
	models.TypeCashIn:   0,
	models.TypeCashOut:  1,
	models.TypeDebit:    2,
	models.TypePayment:  3,
	models.TypeTransfer: 4,
}

const (
	// Balances at or below this are treated as zero when forming ratios.
	minRatioBalance = 1e-6
	// Ratio used when the originating balance is empty but money still moved.
	maxAmountRatio = 1000.0
)

// FeatureBuilder derives model-ready features from a validated transaction.
// It holds no state; Build is a pure function of its input.
type FeatureBuilder struct{}

func NewFeatureBuilder() *FeatureBuilder { return &FeatureBuilder{} }

// Build encodes a transaction into the fixed-order feature vector.
func (b *FeatureBuilder) Build(tx models.TransactionRecord) models.FeatureVector {
	values := make([]float64, 0, FeatureWidth)

	// 1. Raw fields as seen at training time.
	values = append(values,
		float64(tx.Step),
		tx.Amount,
		tx.OldBalanceOrg,
		tx.NewBalanceOrig,
		tx.OldBalanceDest,
		tx.NewBalanceDest,
		tx.OldBalanceOrg-tx.NewBalanceOrig,
		tx.NewBalanceDest-tx.OldBalanceDest,
		EncodeType(tx.Type),
		float64(tx.IsFlaggedFraud),
	)

	// 2. Balance consistency signals.
	values = append(values,
		amountRatio(tx.Amount, tx.OldBalanceOrg),
		tx.OldBalanceOrg-tx.Amount-tx.NewBalanceOrig,
		tx.OldBalanceDest+tx.Amount-tx.NewBalanceDest,
		flag(tx.OldBalanceOrg < 0 || tx.NewBalanceOrig < 0 || tx.OldBalanceDest < 0 || tx.NewBalanceDest < 0),
	)

	// 3. Optional sign-up context. Absent fields get a zero flag and a neutral filler.
	values = append(values, flag(tx.DeviceID != nil))

	if lat, lon, ok := validGeo(tx.Geo); ok {
		values = append(values, 1, lat, lon)
	} else {
		values = append(values, 0, 0, 0)
	}

	network := CardNetworkUnknown
	hasBIN := false
	if tx.BIN != nil {
		network, hasBIN = ClassifyBIN(*tx.BIN)
	}
	values = append(values, flag(hasBIN), float64(network))

	return models.FeatureVector{Names: FeatureNames, Values: values}
}

// EncodeType maps a transfer category to its training-time code.
func EncodeType(t string) float64 {
	if code, ok := typeCodes[strings.ToUpper(strings.TrimSpace(t))]; ok {
		return code
	}
	return UnknownTypeCode
}

func amountRatio(amount, balance float64) float64 {
	if balance <= minRatioBalance {
		if amount == 0 {
			return 0
		}
		return maxAmountRatio
	}
	return math.Min(amount/balance, maxAmountRatio)
}

func validGeo(g *models.Geo) (float64, float64, bool) {
	if g == nil {
		return 0, 0, false
	}
	if math.IsNaN(g.Lat) || math.IsNaN(g.Lon) || math.Abs(g.Lat) > 90 || math.Abs(g.Lon) > 180 {
		return 0, 0, false
	}
	return g.Lat, g.Lon, true
}

func flag(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
