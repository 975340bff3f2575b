// Package report turns health check results into a scored, tiered report.
package report

import (
	"fmt"

	"github.com/jerkytreats/cdnhealth/internal/healthcheck"
)

// Tier is the qualitative grade of an overall score.
type Tier string

const (
	TierExcellent Tier = "excellent"
	TierGood      Tier = "good"
	TierFair      Tier = "fair"
	TierPoor      Tier = "poor"
)

// tierLadder is ordered from the highest lower bound down. Bounds are inclusive.
var tierLadder = []struct {
	min  float64
	tier Tier
}{
	{80, TierExcellent},
	{60, TierGood},
	{40, TierFair},
	{0, TierPoor},
}

// TierFor maps a score to its tier.
func TierFor(score float64) Tier {
	for _, step := range tierLadder {
		if score >= step.min {
			return step.tier
		}
	}
	return TierPoor
}

// Recommendation trigger thresholds.
const (
	MinAvailabilityRate = 95.0
	MinConsistencyRate  = 90.0
	MinCacheRate        = 80.0
	MaxBrokenRate       = 5.0
	MaxAverageLatencyMs = 2000.0
)

const AllClearMessage = "All resources are healthy. No action needed."

// HealthReport is the scored outcome of one health check.
type HealthReport struct {
	Results         *healthcheck.Results `json:"results"`
	OverallScore    float64              `json:"overallScore"`
	Tier            Tier                 `json:"tier"`
	Recommendations []string             `json:"recommendations"`
	Weights         Weights              `json:"weights"`
}

// Generator scores results with a fixed weight set.
type Generator struct {
	weights Weights
}

// NewGenerator returns a generator; weights must already be valid.
func NewGenerator(weights Weights) (*Generator, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	return &Generator{weights: weights}, nil
}

// Generate computes score, tier and recommendations. It has no side effects
// and returns equal reports for equal input.
func (g *Generator) Generate(results *healthcheck.Results) *HealthReport {
	score := Score(results, g.weights)
	return &HealthReport{
		Results:         results,
		OverallScore:    score,
		Tier:            TierFor(score),
		Recommendations: Recommendations(results),
		Weights:         g.weights,
	}
}

// Score is the weighted combination of the four rated dimensions, with the
// broken-link rate inverted. Rounded to two decimals and bounded to [0, 100].
func Score(r *healthcheck.Results, w Weights) float64 {
	raw := r.Availability.Rate*w.Availability +
		r.Consistency.Rate*w.Consistency +
		r.Cache.Rate*w.Cache +
		(100-r.BrokenLinks.Rate)*w.Broken
	return healthcheck.Clamp(healthcheck.Round2(raw), 0, 100)
}

// Recommendations returns one sentence per triggered threshold in fixed
// order, or the all-clear message when none triggers.
func Recommendations(r *healthcheck.Results) []string {
	var out []string

	if r.Availability.Rate < MinAvailabilityRate {
		out = append(out, fmt.Sprintf(
			"Availability is %s (below %.0f%%): check that the failing resources exist in object storage and that the CDN origin is reachable.",
			healthcheck.FormatRate(r.Availability.Rate), MinAvailabilityRate))
	}
	if r.Consistency.Rate < MinConsistencyRate {
		out = append(out, fmt.Sprintf(
			"Consistency is %s (below %.0f%%): edge nodes are serving different versions; refresh the affected URLs on the CDN.",
			healthcheck.FormatRate(r.Consistency.Rate), MinConsistencyRate))
	}
	if r.Cache.Rate < MinCacheRate {
		out = append(out, fmt.Sprintf(
			"Cache validity is %s (below %.0f%%): set Cache-Control, ETag or Last-Modified headers on the uncached resources.",
			healthcheck.FormatRate(r.Cache.Rate), MinCacheRate))
	}
	if r.BrokenLinks.Rate > MaxBrokenRate {
		out = append(out, fmt.Sprintf(
			"Broken link rate is %s (above %.0f%%): re-upload the missing resources or remove their records.",
			healthcheck.FormatRate(r.BrokenLinks.Rate), MaxBrokenRate))
	}
	if r.Performance.Responded > 0 && r.Performance.AverageMs > MaxAverageLatencyMs {
		out = append(out, fmt.Sprintf(
			"Average response time is %.2fms (above %.0fms): review CDN node coverage and resource sizes.",
			r.Performance.AverageMs, MaxAverageLatencyMs))
	}

	if len(out) == 0 {
		return []string{AllClearMessage}
	}
	return out
}
