package models

// FraudScore is a calibrated fraud probability in [0, 1].
type FraudScore float64

// FeatureVector is the fixed-order numeric encoding of a TransactionRecord.
// Names and Values always have the same length.
type FeatureVector struct {
	Names  []string
	Values []float64
}

// Len returns the vector width.
func (v FeatureVector) Len() int { return len(v.Values) }

// Get returns the value of a named feature.
func (v FeatureVector) Get(name string) (float64, bool) {
	for i, n := range v.Names {
		if n == name {
			return v.Values[i], true
		}
	}
	return 0, false
}

// ScoreResponse is the body returned by POST /score.
type ScoreResponse struct {
	FraudScore   FraudScore `json:"fraud_score"`
	MerchantName *string    `json:"merchant_name"`
	Total        *float64   `json:"total"`
}
