package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/faaxis/advisor-calc/internal/db"
	"github.com/faaxis/advisor-calc/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: conn}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS firm_deals (
	firm_key       TEXT PRIMARY KEY,
	firm           TEXT NOT NULL,
	upfront_min    REAL NOT NULL DEFAULT 0,
	upfront_max    REAL NOT NULL DEFAULT 0,
	backend_min    REAL NOT NULL DEFAULT 0,
	backend_max    REAL NOT NULL DEFAULT 0,
	total_deal_min REAL NOT NULL DEFAULT 0,
	total_deal_max REAL NOT NULL DEFAULT 0,
	notes          TEXT NOT NULL DEFAULT '',
	updated_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS firm_parameters (
	id          TEXT PRIMARY KEY,
	firm_key    TEXT NOT NULL,
	firm        TEXT NOT NULL,
	param_name  TEXT NOT NULL,
	param_value TEXT NOT NULL,
	notes       TEXT NOT NULL DEFAULT '',
	updated_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (firm_key, param_name)
);

CREATE INDEX IF NOT EXISTS idx_firm_parameters_firm_key ON firm_parameters(firm_key);
`

const (
	liteListDeals = `SELECT firm_key, firm, upfront_min, upfront_max, backend_min, backend_max, total_deal_min, total_deal_max, notes, updated_at FROM firm_deals ORDER BY firm_key`
	liteGetDeal   = `SELECT firm_key, firm, upfront_min, upfront_max, backend_min, backend_max, total_deal_min, total_deal_max, notes, updated_at FROM firm_deals WHERE firm_key = ?`

	liteListParams     = `SELECT id, firm_key, firm, param_name, param_value, notes FROM firm_parameters ORDER BY firm_key, param_name`
	liteListFirmParams = `SELECT id, firm_key, firm, param_name, param_value, notes FROM firm_parameters WHERE firm_key = ? ORDER BY param_name`
)

var (
	liteUpsertDeal  = mustUpsertSQL(db.SQLite, dealUpsert)
	liteUpsertParam = mustUpsertSQL(db.SQLite, paramUpsert)
)

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) ListDeals(ctx context.Context) ([]model.FirmDeal, error) {
	deals, err := liteDeals(ctx, s.db)
	return deals, eris.Wrap(err, "sqlite: list deals")
}

func (s *SQLiteStore) GetDeal(ctx context.Context, key string) (*model.FirmDeal, error) {
	d, err := scanDeal(s.db.QueryRowContext(ctx, liteGetDeal, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get deal %s", key)
	}
	return &d, nil
}

func (s *SQLiteStore) UpsertDeal(ctx context.Context, deal model.FirmDeal) error {
	d, err := prepareDeal(deal, time.Now().UTC())
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, liteUpsertDeal, dealArgs(d)...)
	return eris.Wrapf(err, "sqlite: upsert deal %s", d.Key)
}

// DeleteDeal removes a deal and its parameters.
func (s *SQLiteStore) DeleteDeal(ctx context.Context, key string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM firm_parameters WHERE firm_key = ?`, key); err != nil {
		return eris.Wrapf(err, "sqlite: delete parameters of %s", key)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM firm_deals WHERE firm_key = ?`, key)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete deal %s", key)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit delete")
}

func (s *SQLiteStore) ListParameters(ctx context.Context, key string) ([]model.FirmParameter, error) {
	params, err := liteParams(ctx, s.db, key)
	return params, eris.Wrap(err, "sqlite: list parameters")
}

func (s *SQLiteStore) UpsertParameter(ctx context.Context, param model.FirmParameter) error {
	p, err := prepareParameter(param)
	if err != nil {
		return err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	_, err = s.db.ExecContext(ctx, liteUpsertParam, paramArgs(p, time.Now().UTC())...)
	return eris.Wrapf(err, "sqlite: upsert parameter %s.%s", p.Key, p.ParamName)
}

func (s *SQLiteStore) DeleteParameter(ctx context.Context, key, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM firm_parameters WHERE firm_key = ? AND param_name = ?`, key, name)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete parameter %s.%s", key, name)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Import upserts deals and parameters in a single transaction.
func (s *SQLiteStore) Import(ctx context.Context, deals []model.FirmDeal, params []model.FirmParameter) error {
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, deal := range deals {
		d, err := prepareDeal(deal, now)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, liteUpsertDeal, dealArgs(d)...); err != nil {
			return eris.Wrapf(err, "sqlite: import deal %s", d.Key)
		}
	}
	for _, param := range params {
		p, err := prepareParameter(param)
		if err != nil {
			return err
		}
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		if _, err := tx.ExecContext(ctx, liteUpsertParam, paramArgs(p, now)...); err != nil {
			return eris.Wrapf(err, "sqlite: import parameter %s.%s", p.Key, p.ParamName)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit import")
}

// Snapshot reads deals and parameters inside one transaction; under WAL the
// reads see a single consistent database state.
func (s *SQLiteStore) Snapshot(ctx context.Context) ([]model.FirmDeal, []model.FirmParameter, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, eris.Wrap(err, "sqlite: begin snapshot")
	}
	defer tx.Rollback() //nolint:errcheck

	deals, err := liteDeals(ctx, tx)
	if err != nil {
		return nil, nil, eris.Wrap(err, "sqlite: snapshot deals")
	}
	params, err := liteParams(ctx, tx, "")
	if err != nil {
		return nil, nil, eris.Wrap(err, "sqlite: snapshot parameters")
	}
	return deals, params, nil
}

type sqlQuerier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func liteDeals(ctx context.Context, q sqlQuerier) ([]model.FirmDeal, error) {
	rows, err := q.QueryContext(ctx, liteListDeals)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var deals []model.FirmDeal
	for rows.Next() {
		d, err := scanDeal(rows)
		if err != nil {
			return nil, err
		}
		deals = append(deals, d)
	}
	return deals, rows.Err()
}

func liteParams(ctx context.Context, q sqlQuerier, key string) ([]model.FirmParameter, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if key == "" {
		rows, err = q.QueryContext(ctx, liteListParams)
	} else {
		rows, err = q.QueryContext(ctx, liteListFirmParams, key)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var params []model.FirmParameter
	for rows.Next() {
		p, err := scanParam(rows)
		if err != nil {
			return nil, err
		}
		params = append(params, p)
	}
	return params, rows.Err()
}
