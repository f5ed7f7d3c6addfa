package engine

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/faaxis/advisor-calc/internal/config"
	"github.com/faaxis/advisor-calc/internal/firm"
	"github.com/faaxis/advisor-calc/internal/format"
	"github.com/faaxis/advisor-calc/internal/model"
)

// ErrInvalidInput is wrapped by every error Compute returns for a profile
// that fails validation. The underlying *model.ValidationError remains
// reachable through errors.As.
var ErrInvalidInput = eris.New("engine: invalid input")

// BaselineKey is the comparison series key for staying at the current firm.
const BaselineKey = "current"

// Per-firm parameter names read by the engine, lower-cased.
const (
	paramBandPosition  = "bandposition"
	paramWeightGrowth  = "backendweight.growth"
	paramWeightAssets  = "backendweight.assets"
	paramWeightService = "backendweight.lengthofservice"
)

type firmInput struct {
	key    string
	name   string
	deal   model.FirmDeal
	params map[string]model.ParamValue
}

func (f *firmInput) param(name string) (float64, bool) {
	v, ok := f.params[strings.ToLower(name)]
	if !ok {
		return 0, false
	}
	return v.Float()
}

// firmPlan is the per-firm package before it is laid out over the horizon.
type firmPlan struct {
	model.FirmProjection
	weights [3]float64 // growth, assets, length of service; sums to 1
}

// Compute projects compensation for advisor across deals. Parameters are
// matched to deals by canonical firm key. Deals with invalid ranges are left
// out and reported in OmittedFirms; when two deals share a key the first is
// used. Compute performs no I/O and returns identical results for identical
// inputs.
func Compute(advisor *model.AdvisorInfo, deals []model.FirmDeal, params []model.FirmParameter, coef config.EngineConfig) (*model.CalculatorResults, error) {
	if err := advisor.Validate(); err != nil {
		// Two %w verbs: callers match ErrInvalidInput with errors.Is and the
		// field list with errors.As. eris.Wrap exposes only one of them.
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	coef = withDefaults(coef)

	inputs, omitted := collect(deals, params)

	plans := make([]firmPlan, 0, len(inputs))
	horizon := 0
	for i := range inputs {
		p := plan(advisor, &inputs[i], coef)
		horizon = max(horizon, p.DealLength)
		plans = append(plans, p)
	}
	if horizon == 0 {
		horizon = coef.DefaultDealLength
	}

	res := &model.CalculatorResults{
		GuaranteedUpfront: make(map[string]float64, len(plans)),
		Firms:             make([]model.FirmProjection, 0, len(plans)),
		OmittedFirms:      omitted,
		Horizon:           horizon,
	}

	series, baseline := project(advisor, plans, horizon, coef)
	res.ComparisonData = series

	for i := range plans {
		plans[i].Cumulative = series[horizon-1].Values[plans[i].Key]
		res.GuaranteedUpfront[plans[i].Key] = plans[i].Upfront
		res.Firms = append(res.Firms, plans[i].FirmProjection)
	}

	res.Metrics = metrics(advisor, res, baseline, horizon)
	if best := res.Best(); best != nil {
		res.BackendBreakdown = best.BackendBreakdown
	} else {
		res.BackendBreakdown = breakdown(defaultWeights(coef))
	}

	return res, nil
}

// collect pairs each deal with its parameters.
func collect(deals []model.FirmDeal, params []model.FirmParameter) ([]firmInput, []string) {
	byKey := make(map[string]map[string]model.ParamValue)
	for _, p := range params {
		key := p.Key
		if key == "" {
			key = firm.RowKey(p.Firm)
		}
		if byKey[key] == nil {
			byKey[key] = make(map[string]model.ParamValue)
		}
		byKey[key][strings.ToLower(p.ParamName)] = p.Value
	}

	var (
		inputs  []firmInput
		omitted []string
		seen    = make(map[string]bool, len(deals))
	)
	for _, d := range deals {
		key := d.Key
		if key == "" {
			key = firm.RowKey(d.Firm)
		}
		if seen[key] {
			continue
		}
		if err := d.Validate(); err != nil {
			omitted = append(omitted, d.Firm)
			continue
		}
		seen[key] = true

		name := d.Firm
		if name == "" {
			name = firm.DisplayName(key)
		}
		inputs = append(inputs, firmInput{key: key, name: name, deal: d, params: byKey[key]})
	}
	return inputs, omitted
}

// plan computes the upfront and backend package for one firm.
func plan(a *model.AdvisorInfo, f *firmInput, coef config.EngineConfig) firmPlan {
	deal := f.deal
	if v, ok := f.param(model.ParamUpfrontMax); ok && v >= deal.UpfrontMin {
		deal.UpfrontMax = v
	}
	if v, ok := f.param(model.ParamBackendMax); ok && v >= deal.BackendMin {
		deal.BackendMax = v
	}

	pos := bandPosition(a, f, coef)
	upAdj, backAdj := adjustments(a, f, coef)

	upPct := math.Max(0, lerp(deal.UpfrontMin, deal.UpfrontMax, pos)+upAdj)
	backPct := math.Max(0, lerp(deal.BackendMin, deal.BackendMax, pos)+backAdj)

	upfront := format.RoundDollars(a.Revenue * upPct / 100)
	backend := format.RoundDollars(a.Revenue * backPct / 100)
	weights := backendWeights(f, coef)

	return firmPlan{
		FirmProjection: model.FirmProjection{
			Key:              f.key,
			Firm:             f.name,
			UpfrontPct:       format.RoundPercent(upPct),
			BackendPct:       format.RoundPercent(backPct),
			Upfront:          upfront,
			Backend:          backend,
			TotalDeal:        upfront + backend,
			GridPayoutPct:    format.RoundPercent(gridPayout(f, coef)),
			DealLength:       dealLength(f, coef),
			BackendBreakdown: breakdown(weights),
		},
		weights: weights,
	}
}

// bandPosition places the advisor inside the firm's min..max band: 0 is the
// floor, 1 the ceiling. Retention above the pivot moves toward the ceiling.
func bandPosition(a *model.AdvisorInfo, f *firmInput, coef config.EngineConfig) float64 {
	pos := coef.BandPosition
	if v, ok := f.param(paramBandPosition); ok {
		pos = v
	}
	if a.ClientRetentionRate != nil {
		pos += (*a.ClientRetentionRate - coef.RetentionPivot) * coef.RetentionSensitivity
	}
	return clamp(pos, 0, 1)
}

// adjustments sums the fee-based shift and the practice-flag shifts, in
// percentage points, each side capped at ±MaxAdjustment.
func adjustments(a *model.AdvisorInfo, f *firmInput, coef config.EngineConfig) (upfront, backend float64) {
	switch {
	case a.FeeBasedPercentage >= coef.FeeBasedHighThreshold:
		upfront += coef.FeeBasedHighUpfront
		backend += coef.FeeBasedHighBackend
	case a.FeeBasedPercentage < coef.FeeBasedLowThreshold:
		upfront += coef.FeeBasedLowUpfront
		backend += coef.FeeBasedLowBackend
	}

	flags := a.Flags()
	for _, name := range model.FlagNames {
		if !flags[name] {
			continue
		}
		adj := coef.FlagAdjustments[strings.ToLower(name)]
		if v, ok := f.param("flag." + name + ".upfront"); ok {
			adj.Upfront = v
		}
		if v, ok := f.param("flag." + name + ".backend"); ok {
			adj.Backend = v
		}
		upfront += adj.Upfront
		backend += adj.Backend
	}

	return clamp(upfront, -coef.MaxAdjustment, coef.MaxAdjustment),
		clamp(backend, -coef.MaxAdjustment, coef.MaxAdjustment)
}

// gridPayout is the midpoint of the firm's grid range, as a percentage.
func gridPayout(f *firmInput, coef config.EngineConfig) float64 {
	if v, ok := f.params[model.ParamGrid]; ok {
		if lo, hi, ok := v.Range(); ok {
			return clamp((lo+hi)/2, 0, 100)
		}
	}
	return coef.DefaultGridPayout
}

func dealLength(f *firmInput, coef config.EngineConfig) int {
	n := coef.DefaultDealLength
	if v, ok := f.param(model.ParamDealLength); ok {
		n = int(math.Round(v))
	}
	return min(max(n, 1), coef.MaxDealLength)
}

func defaultWeights(coef config.EngineConfig) [3]float64 {
	return normalizeWeights([3]float64{coef.BackendGrowthWeight, coef.BackendAssetsWeight, coef.BackendServiceWeight})
}

func backendWeights(f *firmInput, coef config.EngineConfig) [3]float64 {
	w := [3]float64{coef.BackendGrowthWeight, coef.BackendAssetsWeight, coef.BackendServiceWeight}
	for i, name := range []string{paramWeightGrowth, paramWeightAssets, paramWeightService} {
		if v, ok := f.param(name); ok && v >= 0 {
			w[i] = v
		}
	}
	if w[0]+w[1]+w[2] <= 0 {
		return defaultWeights(coef)
	}
	return normalizeWeights(w)
}

func normalizeWeights(w [3]float64) [3]float64 {
	sum := w[0] + w[1] + w[2]
	return [3]float64{w[0] / sum, w[1] / sum, w[2] / sum}
}

// breakdown converts weight fractions into whole percentages that sum to
// exactly 100, handing leftover points to the largest remainders.
func breakdown(w [3]float64) model.BackendBreakdown {
	var pct [3]float64
	var rem [3]float64
	total := 0.0
	for i := range w {
		raw := math.Round(w[i]*100*1e6) / 1e6
		pct[i] = math.Floor(raw)
		rem[i] = raw - pct[i]
		total += pct[i]
	}
	for left := int(math.Round(100 - total)); left > 0; left-- {
		best := 0
		for i := 1; i < len(rem); i++ {
			if rem[i] > rem[best] {
				best = i
			}
		}
		pct[best]++
		rem[best] = -1
	}
	return model.BackendBreakdown{Growth: pct[0], Assets: pct[1], LengthOfService: pct[2]}
}

// vested returns how much of the backend has been earned by the end of year
// y: the assets component accrues evenly over the deal, the growth component
// evenly from year two (hurdles are measured against the first year) and the
// length-of-service component in full at the end of the deal.
func vested(backend float64, w [3]float64, length, y int) float64 {
	growth, assets, service := backend*w[0], backend*w[1], backend*w[2]

	out := assets * float64(min(y, length)) / float64(length)

	switch {
	case length == 1:
		out += growth
	case y >= 2:
		out += growth * float64(min(y-1, length-1)) / float64(length-1)
	}

	if y >= length {
		out += service
	}
	return out
}

// project lays every plan and the stay-put baseline over the horizon as
// cumulative dollars. It returns the series and the unrounded baseline at
// the horizon.
func project(a *model.AdvisorInfo, plans []firmPlan, horizon int, coef config.EngineConfig) ([]model.ComparisonData, float64) {
	growth := coef.DefaultGrowthRate
	if a.TargetAnnualGrowthRate != nil {
		growth = *a.TargetAnnualGrowthRate
	}
	retention := coef.DefaultRetention
	if a.ClientRetentionRate != nil {
		retention = *a.ClientRetentionRate
	}
	payout := coef.DefaultCurrentPayout
	if a.CurrentPayout != nil {
		payout = *a.CurrentPayout
	}

	grid := make([]float64, len(plans))
	baseline := 0.0
	series := make([]model.ComparisonData, 0, horizon)

	for y := 1; y <= horizon; y++ {
		factor := math.Pow(1+growth/100, float64(y-1))
		baseline += a.Revenue * factor * payout / 100

		values := make(map[string]float64, len(plans)+1)
		values[BaselineKey] = format.RoundDollars(baseline)

		moved := a.Revenue * retention / 100 * factor
		for i, p := range plans {
			grid[i] += moved * p.GridPayoutPct / 100
			total := p.Upfront + grid[i] + vested(p.Backend, p.weights, p.DealLength, y)
			values[p.Key] = format.RoundDollars(total)
		}
		series = append(series, model.ComparisonData{Year: y, Values: values})
	}
	return series, baseline
}

func metrics(a *model.AdvisorInfo, res *model.CalculatorResults, baseline float64, horizon int) model.Metrics {
	m := model.Metrics{
		RecruitingRevenue: model.Metric{
			Value:       format.RoundDollars(a.Revenue),
			Description: "Trailing 12-month revenue",
		},
	}

	// Both headline numbers describe the firm with the largest cumulative value.
	best := res.Best()
	if best == nil {
		m.TotalDeal = model.Metric{Description: "No matching firms in the registry"}
		m.TotalCompDelta = model.Metric{Description: "No matching firms to compare"}
		return m
	}

	m.TotalDeal = model.Metric{
		Value:       best.Cumulative,
		Description: fmt.Sprintf("%d-year cumulative compensation at %s", horizon, best.Firm),
	}
	if a.Revenue > 0 {
		m.TotalDeal.Change = ptr(format.RoundPercent(best.Cumulative / a.Revenue * 100))
		m.TotalDeal.IsUp = ptr(true)
	}

	current := "current firm"
	if a.CurrentFirm != "" {
		current = a.CurrentFirm
	}
	base := format.RoundDollars(baseline)
	delta := best.Cumulative - base
	m.TotalCompDelta = model.Metric{
		Value:       delta,
		Description: fmt.Sprintf("%d-year compensation at %s vs. staying at %s", horizon, best.Firm, current),
		IsUp:        ptr(delta >= 0),
	}
	if base > 0 {
		m.TotalCompDelta.Change = ptr(format.RoundPercent(delta / base * 100))
	}
	return m
}

func lerp(lo, hi, t float64) float64 {
	return lo + (hi-lo)*t
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

func ptr[T any](v T) *T {
	return &v
}
