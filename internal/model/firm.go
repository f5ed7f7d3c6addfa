package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FirmDeal holds the recruiting-deal ranges a firm offers, as percentages of
// trailing revenue.
type FirmDeal struct {
	Key          string    `json:"key" yaml:"key,omitempty"` // canonical firm key
	Firm         string    `json:"firm" yaml:"firm"`
	UpfrontMin   float64   `json:"upfrontMin" yaml:"upfrontMin"`
	UpfrontMax   float64   `json:"upfrontMax" yaml:"upfrontMax"`
	BackendMin   float64   `json:"backendMin" yaml:"backendMin"`
	BackendMax   float64   `json:"backendMax" yaml:"backendMax"`
	TotalDealMin float64   `json:"totalDealMin" yaml:"totalDealMin"`
	TotalDealMax float64   `json:"totalDealMax" yaml:"totalDealMax"`
	Notes        string    `json:"notes" yaml:"notes,omitempty"`
	UpdatedAt    time.Time `json:"updatedAt,omitzero" yaml:"-"`
}

// Validate checks that every range is non-negative and ordered.
func (d *FirmDeal) Validate() error {
	v := &ValidationError{}
	if strings.TrimSpace(d.Firm) == "" {
		v.Add("firm", "is required")
	}
	ranges := []struct {
		name     string
		min, max float64
	}{
		{"upfront", d.UpfrontMin, d.UpfrontMax},
		{"backend", d.BackendMin, d.BackendMax},
		{"totalDeal", d.TotalDealMin, d.TotalDealMax},
	}
	for _, r := range ranges {
		if !finite(r.min) || !finite(r.max) {
			v.Add(r.name, "must be a number")
			continue
		}
		if r.min < 0 {
			v.Add(r.name+"Min", "must be >= 0")
		}
		if r.max < r.min {
			v.Add(r.name+"Max", fmt.Sprintf("must be >= %sMin", r.name))
		}
	}
	return v.OrNil()
}

// ParamValue is a firm parameter value that is either a number or free text
// such as a payout grid range ("40-50%").
type ParamValue struct {
	raw string
	num *float64
}

// NumberValue builds a numeric ParamValue.
func NumberValue(f float64) ParamValue {
	return ParamValue{raw: strconv.FormatFloat(f, 'f', -1, 64), num: &f}
}

// TextValue builds a ParamValue from text, recognizing plain numbers.
func TextValue(s string) ParamValue {
	s = strings.TrimSpace(s)
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return ParamValue{raw: s, num: &f}
	}
	return ParamValue{raw: s}
}

// IsNumber reports whether the value was stored as a number.
func (p ParamValue) IsNumber() bool { return p.num != nil }

// String returns the value as stored.
func (p ParamValue) String() string { return p.raw }

// Float returns the numeric value. Text values are parsed leniently, so
// "12%" yields 12.
func (p ParamValue) Float() (float64, bool) {
	if p.num != nil {
		return *p.num, true
	}
	lo, hi, ok := p.Range()
	if !ok || lo != hi {
		return 0, false
	}
	return lo, true
}

// Range parses values such as "40-50%", "40 to 50" or "45%". A single
// number yields lo == hi.
func (p ParamValue) Range() (lo, hi float64, ok bool) {
	if p.num != nil {
		return *p.num, *p.num, true
	}
	s := strings.NewReplacer("%", "", " to ", "-", "–", "-", " ", "").Replace(strings.ToLower(p.raw))
	if s == "" {
		return 0, 0, false
	}
	parts := strings.SplitN(s, "-", 2)
	if parts[0] == "" && len(parts) == 2 {
		// leading minus sign, not a range separator
		parts = []string{"-" + parts[1]}
	}
	lo, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, 0, false
	}
	if len(parts) == 1 {
		return lo, lo, true
	}
	hi, err = strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return 0, 0, false
	}
	if hi < lo {
		lo, hi = hi, lo
	}
	return lo, hi, true
}

// MarshalJSON writes numbers as JSON numbers and text as JSON strings.
func (p ParamValue) MarshalJSON() ([]byte, error) {
	if p.num != nil {
		return json.Marshal(*p.num)
	}
	return json.Marshal(p.raw)
}

// UnmarshalJSON accepts a JSON number or string.
func (p *ParamValue) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*p = NumberValue(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("param value: expected number or string: %w", err)
	}
	*p = TextValue(s)
	return nil
}

// UnmarshalYAML accepts a scalar YAML node.
func (p *ParamValue) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	*p = TextValue(s)
	return nil
}

// FirmParameter is a named scalar attached to a firm, e.g. its payout grid
// or deal length.
type FirmParameter struct {
	ID        string     `json:"id,omitempty" yaml:"-"`
	Key       string     `json:"key" yaml:"key,omitempty"`
	Firm      string     `json:"firm" yaml:"firm"`
	ParamName string     `json:"paramName" yaml:"paramName"`
	Value     ParamValue `json:"paramValue" yaml:"paramValue"`
	Notes     string     `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// Known parameter names.
const (
	ParamGrid       = "grid"
	ParamUpfrontMax = "upfrontMax"
	ParamBackendMax = "backendMax"
	ParamDealLength = "dealLength"
)
