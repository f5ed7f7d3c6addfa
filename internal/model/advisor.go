package model

import (
	"fmt"
	"math"
	"strings"
)

// TransitionPreference is the advisor's preferred landing channel.
type TransitionPreference string

const (
	TransitionWirehouse   TransitionPreference = "wirehouse"
	TransitionIndependent TransitionPreference = "independent"
	TransitionRegionalBD  TransitionPreference = "regionalBD"
	TransitionRIA         TransitionPreference = "ria"
)

// Valid reports whether p is empty or one of the known preferences.
func (p TransitionPreference) Valid() bool {
	switch p {
	case "", TransitionWirehouse, TransitionIndependent, TransitionRegionalBD, TransitionRIA:
		return true
	default:
		return false
	}
}

// RetirementTimeline buckets how far the advisor is from retirement.
type RetirementTimeline string

const (
	RetirementSoon    RetirementTimeline = "0-5"
	RetirementMid     RetirementTimeline = "5-10"
	RetirementDistant RetirementTimeline = "10+"
)

// Valid reports whether t is empty or one of the known buckets.
func (t RetirementTimeline) Valid() bool {
	switch t {
	case "", RetirementSoon, RetirementMid, RetirementDistant:
		return true
	default:
		return false
	}
}

// AdvisorInfo is a validated advisor practice profile, built fresh for every
// calculation request.
type AdvisorInfo struct {
	AUM                float64 `json:"aum"`
	Revenue            float64 `json:"revenue"`
	FeeBasedPercentage float64 `json:"feeBasedPercentage"`
	City               string  `json:"city"`
	State              string  `json:"state"`
	CurrentFirm        string  `json:"currentFirm,omitempty"`
	Households         int     `json:"households"`

	// Practice-complexity flags.
	DeferredComp  bool `json:"deferredComp"`
	OnADeal       bool `json:"onADeal"`
	Banking       bool `json:"banking"`
	International bool `json:"international"`
	Lending       bool `json:"lending"`
	SMAs          bool `json:"smas"`

	InternationalCountries []string `json:"internationalCountries,omitempty"`

	// Premium tier. Nil numeric pointers fall back to engine defaults.
	YearsInIndustry        *float64             `json:"yearsInIndustry,omitempty"`
	ClientRetentionRate    *float64             `json:"clientRetentionRate,omitempty"`
	CurrentPayout          *float64             `json:"currentPayout,omitempty"`
	TransitionPreference   TransitionPreference `json:"transitionPreference,omitempty"`
	RetirementTimeline     RetirementTimeline   `json:"retirementTimeline,omitempty"`
	HasTeam                bool                 `json:"hasTeam"`
	TeamSize               int                  `json:"teamSize"`
	TargetAnnualGrowthRate *float64             `json:"targetAnnualGrowthRate,omitempty"`
	IncludeIndependent     bool                 `json:"includeIndependent"`
}

// Flags returns the practice-complexity flags keyed by their JSON names.
func (a *AdvisorInfo) Flags() map[string]bool {
	return map[string]bool{
		"deferredComp":  a.DeferredComp,
		"onADeal":       a.OnADeal,
		"banking":       a.Banking,
		"international": a.International,
		"lending":       a.Lending,
		"smas":          a.SMAs,
	}
}

// FlagNames lists the practice-complexity flags in a stable order.
var FlagNames = []string{"deferredComp", "onADeal", "banking", "international", "lending", "smas"}

// Validate checks the profile invariants: percentages in [0,100], dollar
// amounts non-negative, known enum values and a team size only when the
// advisor has a team. All violations are reported together.
func (a *AdvisorInfo) Validate() error {
	if a == nil {
		return &ValidationError{Fields: []FieldError{{Field: "advisor", Message: "is required"}}}
	}

	v := &ValidationError{}
	v.dollars("aum", a.AUM)
	v.dollars("revenue", a.Revenue)
	v.percent("feeBasedPercentage", a.FeeBasedPercentage)

	if strings.TrimSpace(a.City) == "" {
		v.Add("city", "is required")
	}
	if strings.TrimSpace(a.State) == "" {
		v.Add("state", "is required")
	}
	if a.Households < 0 {
		v.Add("households", "must be >= 0")
	}

	if a.YearsInIndustry != nil {
		v.nonNegative("yearsInIndustry", *a.YearsInIndustry)
	}
	if a.ClientRetentionRate != nil {
		v.percent("clientRetentionRate", *a.ClientRetentionRate)
	}
	if a.CurrentPayout != nil {
		v.percent("currentPayout", *a.CurrentPayout)
	}
	if a.TargetAnnualGrowthRate != nil {
		v.percent("targetAnnualGrowthRate", *a.TargetAnnualGrowthRate)
	}

	if !a.TransitionPreference.Valid() {
		v.Add("transitionPreference", fmt.Sprintf("unknown value %q", a.TransitionPreference))
	}
	if !a.RetirementTimeline.Valid() {
		v.Add("retirementTimeline", fmt.Sprintf("unknown value %q", a.RetirementTimeline))
	}

	switch {
	case a.HasTeam && a.TeamSize < 1:
		v.Add("teamSize", "must be >= 1 when hasTeam is set")
	case !a.HasTeam && a.TeamSize != 0:
		v.Add("teamSize", "must be empty when hasTeam is not set")
	}

	if !a.International && len(a.InternationalCountries) > 0 {
		v.Add("internationalCountries", "only allowed when international is set")
	}

	return v.OrNil()
}

func (v *ValidationError) dollars(field string, x float64) {
	if !finite(x) {
		v.Add(field, "must be a number")
		return
	}
	if x < 0 {
		v.Add(field, "must be >= 0")
	}
}

func (v *ValidationError) nonNegative(field string, x float64) {
	v.dollars(field, x)
}

func (v *ValidationError) percent(field string, x float64) {
	if !finite(x) {
		v.Add(field, "must be a number")
		return
	}
	if x < 0 || x > 100 {
		v.Add(field, "must be between 0 and 100")
	}
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
