package store

import (
	"time"

	"github.com/faaxis/advisor-calc/internal/model"
)

// scannable is implemented by pgx.Row, pgx.Rows, *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

func scanDeal(row scannable) (model.FirmDeal, error) {
	var d model.FirmDeal
	err := row.Scan(&d.Key, &d.Firm, &d.UpfrontMin, &d.UpfrontMax, &d.BackendMin, &d.BackendMax,
		&d.TotalDealMin, &d.TotalDealMax, &d.Notes, &d.UpdatedAt)
	return d, err
}

func scanParam(row scannable) (model.FirmParameter, error) {
	var (
		p   model.FirmParameter
		raw string
	)
	if err := row.Scan(&p.ID, &p.Key, &p.Firm, &p.ParamName, &raw, &p.Notes); err != nil {
		return p, err
	}
	p.Value = model.TextValue(raw)
	return p, nil
}

func dealArgs(d model.FirmDeal) []any {
	return []any{d.Key, d.Firm, d.UpfrontMin, d.UpfrontMax, d.BackendMin, d.BackendMax,
		d.TotalDealMin, d.TotalDealMax, d.Notes, d.UpdatedAt}
}

func paramArgs(p model.FirmParameter, now time.Time) []any {
	return []any{p.ID, p.Key, p.Firm, p.ParamName, p.Value.String(), p.Notes, now}
}
