// Package registry loads the firm deal registry from the store, a YAML seed
// file or the Notion CMS and serves it as immutable snapshots.
package registry

import (
	"maps"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/faaxis/advisor-calc/internal/firm"
	"github.com/faaxis/advisor-calc/internal/model"
)

// Snapshot is a point-in-time, read-only view of the registry. It is safe
// for concurrent use.
type Snapshot struct {
	TakenAt time.Time

	keys   []string // deal keys in first-seen order
	deals  map[string]model.FirmDeal
	params map[string][]model.FirmParameter
}

// NewSnapshot indexes deals and parameters by canonical firm key. When two
// rows share a key the later one wins and a warning is logged.
func NewSnapshot(deals []model.FirmDeal, params []model.FirmParameter) *Snapshot {
	s := &Snapshot{
		TakenAt: time.Now().UTC(),
		deals:   make(map[string]model.FirmDeal, len(deals)),
		params:  make(map[string][]model.FirmParameter),
	}

	for _, d := range deals {
		if d.Key == "" {
			d.Key = firm.RowKey(d.Firm)
		}
		if _, dup := s.deals[d.Key]; dup {
			zap.L().Warn("registry: duplicate firm deal, keeping the later row",
				zap.String("firm_key", d.Key),
				zap.String("firm", d.Firm),
			)
		} else {
			s.keys = append(s.keys, d.Key)
		}
		s.deals[d.Key] = d
	}

	seen := make(map[string]int)
	for _, p := range params {
		if p.Key == "" {
			p.Key = firm.RowKey(p.Firm)
		}
		id := p.Key + "\x00" + strings.ToLower(p.ParamName)
		if i, dup := seen[id]; dup {
			zap.L().Warn("registry: duplicate firm parameter, keeping the later row",
				zap.String("firm_key", p.Key),
				zap.String("param", p.ParamName),
			)
			s.params[p.Key][i] = p
			continue
		}
		seen[id] = len(s.params[p.Key])
		s.params[p.Key] = append(s.params[p.Key], p)
	}

	return s
}

// Resolve maps a requested firm name to a key present in the snapshot.
// Names outside the alias table only resolve to a row stored under their
// own slug, never to the independent fallback.
func (s *Snapshot) Resolve(name string) (string, bool) {
	if _, ok := s.deals[name]; ok {
		return name, true
	}
	key := firm.RowKey(name)
	if key == "" {
		return "", false
	}
	_, ok := s.deals[key]
	return key, ok
}

// GetDeal returns the deal for a firm name or key.
func (s *Snapshot) GetDeal(name string) (model.FirmDeal, bool) {
	key, ok := s.Resolve(name)
	if !ok {
		return model.FirmDeal{}, false
	}
	return s.deals[key], true
}

// GetParameters returns the parameters for a firm name or key.
func (s *Snapshot) GetParameters(name string) []model.FirmParameter {
	key, ok := s.Resolve(name)
	if !ok {
		key = firm.RowKey(name)
	}
	return slices.Clone(s.params[key])
}

// Deals returns every deal in load order.
func (s *Snapshot) Deals() []model.FirmDeal {
	out := make([]model.FirmDeal, 0, len(s.keys))
	for _, k := range s.keys {
		out = append(out, s.deals[k])
	}
	return out
}

// Parameters returns every parameter, grouped by firm in deal order.
// Parameters for firms without a deal follow, sorted by key.
func (s *Snapshot) Parameters() []model.FirmParameter {
	var out []model.FirmParameter
	for _, k := range s.keys {
		out = append(out, s.params[k]...)
	}
	for _, k := range slices.Sorted(maps.Keys(s.params)) {
		if _, ok := s.deals[k]; !ok {
			out = append(out, s.params[k]...)
		}
	}
	return out
}

// Len is the number of firms with a deal.
func (s *Snapshot) Len() int { return len(s.keys) }
