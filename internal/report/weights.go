package report

import (
	"fmt"
	"math"

	"github.com/jerkytreats/cdnhealth/internal/config"
)

const (
	AvailabilityWeightKey = "scoring.availability_weight"
	ConsistencyWeightKey  = "scoring.consistency_weight"
	CacheWeightKey        = "scoring.cache_weight"
	BrokenWeightKey       = "scoring.broken_weight"

	weightTolerance = 1e-9
)

// Weights are the coefficients of the overall score. They must be
// non-negative and sum to 1.
type Weights struct {
	Availability float64 `json:"availability"`
	Consistency  float64 `json:"consistency"`
	Cache        float64 `json:"cache"`
	Broken       float64 `json:"broken"`
}

// DefaultWeights returns 0.3 / 0.2 / 0.2 / 0.3.
func DefaultWeights() Weights {
	return Weights{Availability: 0.3, Consistency: 0.2, Cache: 0.2, Broken: 0.3}
}

// NewWeights validates and returns a weight set.
func NewWeights(availability, consistency, cache, broken float64) (Weights, error) {
	w := Weights{Availability: availability, Consistency: consistency, Cache: cache, Broken: broken}
	return w, w.Validate()
}

// Validate checks that every weight is non-negative and that they sum to 1.
func (w Weights) Validate() error {
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"availability", w.Availability},
		{"consistency", w.Consistency},
		{"cache", w.Cache},
		{"broken", w.Broken},
	} {
		if f.value < 0 || math.IsNaN(f.value) {
			return fmt.Errorf("%s weight must be non-negative, got %v", f.name, f.value)
		}
	}
	if sum := w.Sum(); math.Abs(sum-1) > weightTolerance {
		return fmt.Errorf("weights must sum to 1.0, got %v", sum)
	}
	return nil
}

// Sum returns the total of all weights.
func (w Weights) Sum() float64 {
	return w.Availability + w.Consistency + w.Cache + w.Broken
}

// WeightsFromConfig reads the scoring.* keys.
func WeightsFromConfig() (Weights, error) {
	return NewWeights(
		config.GetFloat64(AvailabilityWeightKey),
		config.GetFloat64(ConsistencyWeightKey),
		config.GetFloat64(CacheWeightKey),
		config.GetFloat64(BrokenWeightKey),
	)
}
