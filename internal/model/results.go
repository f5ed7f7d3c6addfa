package model

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"

	"github.com/rotisserie/eris"
)

// Metric is one headline number on the results dashboard.
type Metric struct {
	Value       float64  `json:"value"`
	Description string   `json:"description"`
	Change      *float64 `json:"change,omitempty"`
	IsUp        *bool    `json:"isUp,omitempty"`
}

// Metrics groups the headline numbers.
type Metrics struct {
	TotalDeal         Metric `json:"totalDeal"`
	RecruitingRevenue Metric `json:"recruitingRevenue"`
	TotalCompDelta    Metric `json:"totalCompDelta"`
}

// ComparisonData is one projection year: cumulative compensation per firm key.
// It serializes flat, e.g. {"year":1,"current":480000,"morganStanley":812000}.
type ComparisonData struct {
	Year   int
	Values map[string]float64
}

// MarshalJSON writes the year followed by firm keys in sorted order.
func (c ComparisonData) MarshalJSON() ([]byte, error) {
	keys := make([]string, 0, len(c.Values))
	for k := range c.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteString(`{"year":`)
	buf.WriteString(strconv.Itoa(c.Year))
	for _, k := range keys {
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(c.Values[k])
		if err != nil {
			return nil, err
		}
		buf.WriteByte(',')
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads the flat form written by MarshalJSON.
func (c *ComparisonData) UnmarshalJSON(data []byte) error {
	var raw map[string]float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return eris.Wrap(err, "comparison data: unmarshal")
	}
	year, ok := raw["year"]
	if !ok {
		return eris.New("comparison data: missing year")
	}
	delete(raw, "year")
	c.Year = int(year)
	c.Values = raw
	return nil
}

// Value returns the value for key, or 0 when the firm is absent.
func (c ComparisonData) Value(key string) float64 {
	return c.Values[key]
}

// BackendBreakdown splits the backend package into its three vesting
// components, as whole percentages summing to 100.
type BackendBreakdown struct {
	Growth          float64 `json:"growth"`
	Assets          float64 `json:"assets"`
	LengthOfService float64 `json:"lengthOfService"`
}

// Total returns the sum of the three components.
func (b BackendBreakdown) Total() float64 {
	return b.Growth + b.Assets + b.LengthOfService
}

// FirmProjection is the per-firm detail behind the comparison series.
type FirmProjection struct {
	Key              string           `json:"key"`
	Firm             string           `json:"firm"`
	UpfrontPct       float64          `json:"upfrontPct"`
	BackendPct       float64          `json:"backendPct"`
	Upfront          float64          `json:"upfront"`
	Backend          float64          `json:"backend"`
	TotalDeal        float64          `json:"totalDeal"`
	GridPayoutPct    float64          `json:"gridPayoutPct"`
	DealLength       int              `json:"dealLength"`
	Cumulative       float64          `json:"cumulative"` // value at the projection horizon
	BackendBreakdown BackendBreakdown `json:"backendBreakdown"`
}

// CalculatorResults is the output of one projection.
type CalculatorResults struct {
	Metrics           Metrics            `json:"metrics"`
	ComparisonData    []ComparisonData   `json:"comparisonData"`
	GuaranteedUpfront map[string]float64 `json:"guaranteedUpfront"`
	BackendBreakdown  BackendBreakdown   `json:"backendBreakdown"`
	Firms             []FirmProjection   `json:"firms"`
	OmittedFirms      []string           `json:"omittedFirms,omitempty"`
	Horizon           int                `json:"horizon"`
}

// Upfront returns the guaranteed upfront for key, treating absent firms as 0.
func (r *CalculatorResults) Upfront(key string) float64 {
	if r == nil {
		return 0
	}
	return r.GuaranteedUpfront[key]
}

// Best returns the firm projection with the largest cumulative value at the
// horizon, or nil. Ties keep the earlier firm.
func (r *CalculatorResults) Best() *FirmProjection {
	var best *FirmProjection
	for i := range r.Firms {
		if best == nil || r.Firms[i].Cumulative > best.Cumulative {
			best = &r.Firms[i]
		}
	}
	return best
}
