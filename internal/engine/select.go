package engine

import (
	"strings"

	"github.com/faaxis/advisor-calc/internal/firm"
	"github.com/faaxis/advisor-calc/internal/model"
	"github.com/faaxis/advisor-calc/internal/registry"
)

// SelectDeals picks the deals and parameters for the requested firm names
// from a registry snapshot. Names resolve through the alias table and
// repeats of the same firm are dropped. Names with no registry entry are
// returned in omitted, in request order. An empty request selects every
// firm in the registry. The independent channel is included only when
// requested by name or when includeIndependent is set.
func SelectDeals(s *registry.Snapshot, names []string, includeIndependent bool) (deals []model.FirmDeal, params []model.FirmParameter, omitted []string) {
	seen := make(map[string]bool)
	add := func(key string) {
		if seen[key] {
			return
		}
		seen[key] = true
		d, _ := s.GetDeal(key)
		deals = append(deals, d)
		params = append(params, s.GetParameters(key)...)
	}

	if len(names) == 0 {
		for _, d := range s.Deals() {
			if d.Key != firm.Independent {
				add(d.Key)
			}
		}
	}

	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		key, ok := s.Resolve(name)
		if !ok {
			omitted = append(omitted, name)
			continue
		}
		add(key)
	}

	if includeIndependent {
		if _, ok := s.GetDeal(firm.Independent); ok {
			add(firm.Independent)
		}
	}
	return deals, params, omitted
}
