// Package normalize turns raw calculator form values into a validated
// model.AdvisorInfo.
package normalize

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/faaxis/advisor-calc/internal/model"
)

var requiredNumbers = []string{"aum", "revenue", "feeBasedPercentage"}

var optionalNumbers = []string{"yearsInIndustry", "clientRetentionRate", "currentPayout", "targetAnnualGrowthRate"}

// Profile converts form values into an AdvisorInfo. Values may be JSON
// numbers, booleans, string arrays or strings carrying thousands separators,
// a leading "$" or a trailing "%". Every unparseable or out-of-range field is
// reported in a single *model.ValidationError.
func Profile(raw map[string]any) (*model.AdvisorInfo, error) {
	p := &parser{raw: raw, errs: &model.ValidationError{}}
	a := &model.AdvisorInfo{}

	for _, name := range requiredNumbers {
		v, ok := p.number(name)
		if !ok {
			continue
		}
		switch name {
		case "aum":
			a.AUM = v
		case "revenue":
			a.Revenue = v
		case "feeBasedPercentage":
			a.FeeBasedPercentage = v
		}
	}

	a.City = p.text("city")
	a.State = p.text("state")
	a.CurrentFirm = p.text("currentFirm")
	a.Households = p.integer("households")

	a.DeferredComp = p.flag("deferredComp")
	a.OnADeal = p.flag("onADeal")
	a.Banking = p.flag("banking")
	a.International = p.flag("international")
	a.Lending = p.flag("lending")
	a.SMAs = p.flag("smas")
	if a.International {
		a.InternationalCountries = p.list("internationalCountries")
	}

	for _, name := range optionalNumbers {
		v := p.optionalNumber(name)
		switch name {
		case "yearsInIndustry":
			a.YearsInIndustry = v
		case "clientRetentionRate":
			a.ClientRetentionRate = v
		case "currentPayout":
			a.CurrentPayout = v
		case "targetAnnualGrowthRate":
			a.TargetAnnualGrowthRate = v
		}
	}

	a.TransitionPreference = model.TransitionPreference(p.text("transitionPreference"))
	a.RetirementTimeline = model.RetirementTimeline(p.text("retirementTimeline"))
	a.HasTeam = p.flag("hasTeam")
	a.TeamSize = p.integer("teamSize")
	if !a.HasTeam {
		// A stale team size from a toggled-off form field is not an error.
		a.TeamSize = 0
	}
	a.IncludeIndependent = p.flag("includeIndependent")

	if err := p.errs.OrNil(); err != nil {
		return nil, err
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// FromStrings is Profile for sources that only carry text, such as CSV rows
// or command-line flags. Empty values are treated as absent.
func FromStrings(values map[string]string) (*model.AdvisorInfo, error) {
	raw := make(map[string]any, len(values))
	for k, v := range values {
		if strings.TrimSpace(v) == "" {
			continue
		}
		raw[k] = v
	}
	return Profile(raw)
}

// ParseNumber parses a form number the way the calculator form does: commas,
// "$" and whitespace are stripped, then the longest numeric prefix is read,
// so "1,200,000" is 1200000 and "90%" is 90.
func ParseNumber(s string) (float64, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ',', '$', ' ', '\t':
			return -1
		}
		return r
	}, s)

	end := numericPrefix(cleaned)
	if end == 0 {
		return 0, fmt.Errorf("%q is not a number", s)
	}
	v, err := strconv.ParseFloat(cleaned[:end], 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%q is not a number", s)
	}
	return v, nil
}

// numericPrefix returns the length of the leading
// [+-]digits[.digits][(e|E)[+-]digits] run, or 0 when there is no digit. An
// exponent without digits is not part of the prefix.
func numericPrefix(s string) int {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	digits := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
		digits++
	}
	if i < len(s) && s[i] == '.' {
		j := i + 1
		frac := 0
		for j < len(s) && s[j] >= '0' && s[j] <= '9' {
			j++
			frac++
		}
		if frac > 0 || digits > 0 {
			i = j
			digits += frac
		}
	}
	if digits == 0 {
		return 0
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		start := j
		for j < len(s) && s[j] >= '0' && s[j] <= '9' {
			j++
		}
		if j > start {
			i = j
		}
	}
	return i
}

type parser struct {
	raw  map[string]any
	errs *model.ValidationError
}

func (p *parser) value(name string) (any, bool) {
	v, ok := p.raw[name]
	if !ok || v == nil {
		return nil, false
	}
	if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
		return nil, false
	}
	return v, true
}

func (p *parser) number(name string) (float64, bool) {
	v, ok := p.value(name)
	if !ok {
		p.errs.Add(name, "is required")
		return 0, false
	}
	f, err := toFloat(v)
	if err != nil {
		p.errs.Add(name, err.Error())
		return 0, false
	}
	return f, true
}

func (p *parser) optionalNumber(name string) *float64 {
	v, ok := p.value(name)
	if !ok {
		return nil
	}
	f, err := toFloat(v)
	if err != nil {
		p.errs.Add(name, err.Error())
		return nil
	}
	return &f
}

// integer truncates like parseInt; absent values default to 0.
func (p *parser) integer(name string) int {
	v, ok := p.value(name)
	if !ok {
		return 0
	}
	f, err := toFloat(v)
	if err != nil {
		p.errs.Add(name, err.Error())
		return 0
	}
	return int(math.Trunc(f))
}

func (p *parser) text(name string) string {
	v, ok := p.value(name)
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case fmt.Stringer:
		return strings.TrimSpace(t.String())
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// flag defaults to false unless explicitly set.
func (p *parser) flag(name string) bool {
	v, ok := p.value(name)
	if !ok {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case int:
		return t != 0
	case interface{ Float64() (float64, error) }: // json.Number
		if f, err := t.Float64(); err == nil {
			return f != 0
		}
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "y", "on", "1", "checked":
			return true
		case "false", "no", "n", "off", "0":
			return false
		}
	}
	p.errs.Add(name, fmt.Sprintf("%v is not a boolean", v))
	return false
}

func (p *parser) list(name string) []string {
	v, ok := p.value(name)
	if !ok {
		return nil
	}
	var items []string
	switch t := v.(type) {
	case []string:
		items = t
	case []any:
		for _, it := range t {
			items = append(items, fmt.Sprint(it))
		}
	case string:
		items = strings.FieldsFunc(t, func(r rune) bool { return r == ',' || r == ';' })
	default:
		p.errs.Add(name, "must be a list")
		return nil
	}

	out := make([]string, 0, len(items))
	for _, it := range items {
		if s := strings.TrimSpace(it); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func toFloat(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0, fmt.Errorf("%v is not a number", t)
		}
		return t, nil
	case float32:
		return toFloat(float64(t))
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case string:
		return ParseNumber(t)
	case interface{ Float64() (float64, error) }: // json.Number
		f, err := t.Float64()
		if err != nil {
			return 0, fmt.Errorf("%v is not a number", t)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%v is not a number", v)
	}
}
