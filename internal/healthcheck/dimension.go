package healthcheck

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/jerkytreats/cdnhealth/internal/probe"
)

// Dimension names one of the five health scans.
type Dimension string

const (
	Availability Dimension = "availability"
	Consistency  Dimension = "consistency"
	Cache        Dimension = "cache"
	BrokenLinks  Dimension = "brokenLinks"
	Performance  Dimension = "performance"
)

// Dimensions lists every dimension in report order.
var Dimensions = []Dimension{Availability, Consistency, Cache, BrokenLinks, Performance}

// ProbeResult is one URL's outcome within one dimension. Only the fields
// relevant to the dimension are set.
type ProbeResult struct {
	URL       string         `json:"url"`
	Success   bool           `json:"success"`
	Status    int            `json:"status"`
	Elapsed   time.Duration  `json:"-"`
	ElapsedMs int64          `json:"elapsedMs"`
	Error     string         `json:"error,omitempty"`
	Headers   *probe.Headers `json:"headers,omitempty"`

	// Broken-link
	Working *bool `json:"working,omitempty"`

	// Consistency
	Consistent *bool          `json:"consistent,omitempty"`
	First      *probe.Headers `json:"first,omitempty"`
	Second     *probe.Headers `json:"second,omitempty"`

	// Cache
	Cached       *bool                  `json:"cached,omitempty"`
	CacheControl *probe.CacheDirectives `json:"cacheControl,omitempty"`

	// matched is the dimension's counted predicate.
	matched bool
}

// Matched reports whether the result counts toward the dimension's Matching total.
func (r ProbeResult) Matched() bool {
	return r.matched
}

func fromProbe(p probe.Result) ProbeResult {
	return ProbeResult{
		URL:       p.URL,
		Success:   p.Success,
		Status:    p.Status,
		Elapsed:   p.Elapsed,
		ElapsedMs: p.ElapsedMs(),
		Error:     p.Error,
	}
}

// DimensionSummary aggregates the results of one dimension. For BrokenLinks,
// Matching counts broken URLs so Rate is a defect rate.
type DimensionSummary struct {
	Dimension Dimension
	Total     int
	Matching  int
	Rate      float64
	// Performance only, computed over probes that received a response.
	Responded int
	AverageMs float64
	MinMs     int64
	MaxMs     int64
	Results   []ProbeResult
}

// Summarize counts matched results and computes the rate.
func Summarize(d Dimension, results []ProbeResult) DimensionSummary {
	s := DimensionSummary{Dimension: d, Total: len(results), Results: results}
	for _, r := range results {
		if r.matched {
			s.Matching++
		}
	}
	s.Rate = Rate(s.Matching, s.Total)

	if d == Performance {
		var sum int64
		for _, r := range results {
			if !r.Success {
				continue
			}
			ms := r.ElapsedMs
			if s.Responded == 0 || ms < s.MinMs {
				s.MinMs = ms
			}
			if ms > s.MaxMs {
				s.MaxMs = ms
			}
			sum += ms
			s.Responded++
		}
		if s.Responded > 0 {
			s.AverageMs = Round2(float64(sum) / float64(s.Responded))
		}
	}
	return s
}

// Rate returns matching/total as a percentage rounded to two decimals and
// bounded to [0, 100]. A zero total yields 0.
func Rate(matching, total int) float64 {
	if total <= 0 {
		return 0
	}
	return Clamp(Round2(float64(matching)/float64(total)*100), 0, 100)
}

// Round2 rounds to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// FormatRate renders a rate the way reports show it, e.g. "33.33%".
func FormatRate(rate float64) string {
	return fmt.Sprintf("%.2f%%", rate)
}

// MarshalJSON uses dimension-specific key names.
func (s DimensionSummary) MarshalJSON() ([]byte, error) {
	results := s.Results
	if results == nil {
		results = []ProbeResult{}
	}
	rest := s.Total - s.Matching

	switch s.Dimension {
	case Availability:
		return json.Marshal(struct {
			Total       int           `json:"total"`
			Success     int           `json:"success"`
			Failed      int           `json:"failed"`
			SuccessRate string        `json:"successRate"`
			Results     []ProbeResult `json:"results"`
		}{s.Total, s.Matching, rest, FormatRate(s.Rate), results})
	case Consistency:
		return json.Marshal(struct {
			Total           int           `json:"total"`
			Consistent      int           `json:"consistent"`
			Inconsistent    int           `json:"inconsistent"`
			ConsistencyRate string        `json:"consistencyRate"`
			Results         []ProbeResult `json:"results"`
		}{s.Total, s.Matching, rest, FormatRate(s.Rate), results})
	case Cache:
		return json.Marshal(struct {
			Total     int           `json:"total"`
			Cached    int           `json:"cached"`
			NotCached int           `json:"notCached"`
			CacheRate string        `json:"cacheRate"`
			Results   []ProbeResult `json:"results"`
		}{s.Total, s.Matching, rest, FormatRate(s.Rate), results})
	case BrokenLinks:
		return json.Marshal(struct {
			Total      int           `json:"total"`
			Working    int           `json:"working"`
			Broken     int           `json:"broken"`
			BrokenRate string        `json:"brokenRate"`
			Results    []ProbeResult `json:"results"`
		}{s.Total, rest, s.Matching, FormatRate(s.Rate), results})
	case Performance:
		return json.Marshal(struct {
			Total     int           `json:"total"`
			Responded int           `json:"responded"`
			AverageMs float64       `json:"averageMs"`
			MinMs     int64         `json:"minMs"`
			MaxMs     int64         `json:"maxMs"`
			Results   []ProbeResult `json:"results"`
		}{s.Total, s.Responded, s.AverageMs, s.MinMs, s.MaxMs, results})
	default:
		return json.Marshal(struct {
			Total    int           `json:"total"`
			Matching int           `json:"matching"`
			Rate     string        `json:"rate"`
			Results  []ProbeResult `json:"results"`
		}{s.Total, s.Matching, FormatRate(s.Rate), results})
	}
}

// Results holds the five dimension summaries of one run.
type Results struct {
	Availability DimensionSummary `json:"availability"`
	Consistency  DimensionSummary `json:"consistency"`
	Cache        DimensionSummary `json:"cache"`
	BrokenLinks  DimensionSummary `json:"brokenLinks"`
	Performance  DimensionSummary `json:"performance"`
}

// MarshalJSON writes each summary under its own dimension's key names, so a
// zero Results still encodes with the full report shape.
func (r Results) MarshalJSON() ([]byte, error) {
	type plain Results
	out := plain(r)
	out.Availability.Dimension = Availability
	out.Consistency.Dimension = Consistency
	out.Cache.Dimension = Cache
	out.BrokenLinks.Dimension = BrokenLinks
	out.Performance.Dimension = Performance
	return json.Marshal(out)
}

// Summary returns the summary for d.
func (r *Results) Summary(d Dimension) DimensionSummary {
	switch d {
	case Availability:
		return r.Availability
	case Consistency:
		return r.Consistency
	case Cache:
		return r.Cache
	case BrokenLinks:
		return r.BrokenLinks
	default:
		return r.Performance
	}
}
