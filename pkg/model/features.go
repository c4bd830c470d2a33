package model

import (
	"fmt"
	"strconv"
	"strings"
)

// FeatureCount is the number of inputs every transaction is described by.
const FeatureCount = 6

// Positions of the transaction features in a Features vector.
const (
	Amount = iota
	HighRiskCountry
	Hour
	DayOfWeek
	IsMobile
	TransactionType
)

var featureNames = [FeatureCount]string{
	"amount",
	"high_risk_country",
	"hour",
	"day_of_week",
	"is_mobile",
	"transaction_type",
}

// Features is the ordered numeric description of a single transaction.
// Values are not range checked.
type Features [FeatureCount]float64

// Names returns the feature names in positional order.
func Names() []string {
	return featureNames[:]
}

// ParseFeatures converts exactly FeatureCount string arguments into Features.
func ParseFeatures(args []string) (Features, error) {
	var f Features
	if len(args) != FeatureCount {
		return f, fmt.Errorf("expected %d features, got %d", FeatureCount, len(args))
	}

	for i, arg := range args {
		v, err := strconv.ParseFloat(strings.TrimSpace(arg), 64)
		if err != nil {
			return f, fmt.Errorf("invalid %s %q: %w", featureNames[i], arg, err)
		}
		f[i] = v
	}

	return f, nil
}

// Row returns the vector as a single batch row.
func (f Features) Row() []float64 {
	row := make([]float64, FeatureCount)
	copy(row, f[:])
	return row
}

// Map returns the features keyed by name, used for structured logging.
func (f Features) Map() map[string]float64 {
	m := make(map[string]float64, FeatureCount)
	for i, n := range featureNames {
		m[n] = f[i]
	}
	return m
}
