package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/faaxis/advisor-calc/internal/db"
	"github.com/faaxis/advisor-calc/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

var (
	dealColumns = []string{
		"firm_key", "firm", "upfront_min", "upfront_max", "backend_min", "backend_max",
		"total_deal_min", "total_deal_max", "notes", "updated_at",
	}
	dealUpsert = db.UpsertConfig{
		Table:        "firm_deals",
		Columns:      dealColumns,
		ConflictKeys: []string{"firm_key"},
	}

	paramColumns = []string{"id", "firm_key", "firm", "param_name", "param_value", "notes", "updated_at"}
	paramUpsert  = db.UpsertConfig{
		Table:        "firm_parameters",
		Columns:      paramColumns,
		ConflictKeys: []string{"firm_key", "param_name"},
		UpdateCols:   []string{"firm", "param_value", "notes", "updated_at"},
	}
)

const (
	pgListDeals = `SELECT firm_key, firm, upfront_min, upfront_max, backend_min, backend_max, total_deal_min, total_deal_max, notes, updated_at FROM firm_deals ORDER BY firm_key`
	pgGetDeal   = `SELECT firm_key, firm, upfront_min, upfront_max, backend_min, backend_max, total_deal_min, total_deal_max, notes, updated_at FROM firm_deals WHERE firm_key = $1`

	pgDeleteDeal       = `DELETE FROM firm_deals WHERE firm_key = $1`
	pgDeleteDealParams = `DELETE FROM firm_parameters WHERE firm_key = $1`

	pgListParams     = `SELECT id, firm_key, firm, param_name, param_value, notes FROM firm_parameters ORDER BY firm_key, param_name`
	pgListFirmParams = `SELECT id, firm_key, firm, param_name, param_value, notes FROM firm_parameters WHERE firm_key = $1 ORDER BY param_name`
	pgDeleteParam    = `DELETE FROM firm_parameters WHERE firm_key = $1 AND param_name = $2`
)

var (
	pgUpsertDeal  = mustUpsertSQL(db.Postgres, dealUpsert)
	pgUpsertParam = mustUpsertSQL(db.Postgres, paramUpsert)
)

// preparedStatements are prepared on each new connection.
var preparedStatements = map[string]string{
	"list_deals":        pgListDeals,
	"get_deal":          pgGetDeal,
	"upsert_deal":       pgUpsertDeal,
	"list_params":       pgListParams,
	"list_firm_params":  pgListFirmParams,
	"upsert_param":      pgUpsertParam,
	"delete_firm_param": pgDeleteParam,
}

func mustUpsertSQL(d db.Dialect, cfg db.UpsertConfig) string {
	q, err := db.UpsertSQL(d, cfg)
	if err != nil {
		panic(err)
	}
	return q
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	opts := db.PoolOptions{Prepare: preparedStatements}
	if poolCfg != nil {
		opts.MaxConns = poolCfg.MaxConns
		opts.MinConns = poolCfg.MinConns
	}
	pool, err := db.Connect(ctx, connString, opts)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS firm_deals (
	firm_key       TEXT PRIMARY KEY,
	firm           TEXT NOT NULL,
	upfront_min    DOUBLE PRECISION NOT NULL DEFAULT 0,
	upfront_max    DOUBLE PRECISION NOT NULL DEFAULT 0,
	backend_min    DOUBLE PRECISION NOT NULL DEFAULT 0,
	backend_max    DOUBLE PRECISION NOT NULL DEFAULT 0,
	total_deal_min DOUBLE PRECISION NOT NULL DEFAULT 0,
	total_deal_max DOUBLE PRECISION NOT NULL DEFAULT 0,
	notes          TEXT NOT NULL DEFAULT '',
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS firm_parameters (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	firm_key    TEXT NOT NULL,
	firm        TEXT NOT NULL,
	param_name  TEXT NOT NULL,
	param_value TEXT NOT NULL,
	notes       TEXT NOT NULL DEFAULT '',
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (firm_key, param_name)
);

CREATE INDEX IF NOT EXISTS idx_firm_parameters_firm_key ON firm_parameters(firm_key);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) ListDeals(ctx context.Context) ([]model.FirmDeal, error) {
	deals, err := queryDeals(ctx, s.pool)
	return deals, eris.Wrap(err, "postgres: list deals")
}

func (s *PostgresStore) GetDeal(ctx context.Context, key string) (*model.FirmDeal, error) {
	d, err := scanDeal(s.pool.QueryRow(ctx, pgGetDeal, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get deal %s", key)
	}
	return &d, nil
}

func (s *PostgresStore) UpsertDeal(ctx context.Context, deal model.FirmDeal) error {
	d, err := prepareDeal(deal, time.Now().UTC())
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, pgUpsertDeal, dealArgs(d)...)
	return eris.Wrapf(err, "postgres: upsert deal %s", d.Key)
}

// DeleteDeal removes a deal and its parameters.
func (s *PostgresStore) DeleteDeal(ctx context.Context, key string) error {
	return db.InTx(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, pgDeleteDealParams, key); err != nil {
			return eris.Wrapf(err, "postgres: delete parameters of %s", key)
		}
		tag, err := tx.Exec(ctx, pgDeleteDeal, key)
		if err != nil {
			return eris.Wrapf(err, "postgres: delete deal %s", key)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *PostgresStore) ListParameters(ctx context.Context, key string) ([]model.FirmParameter, error) {
	params, err := queryParams(ctx, s.pool, key)
	return params, eris.Wrap(err, "postgres: list parameters")
}

func (s *PostgresStore) UpsertParameter(ctx context.Context, param model.FirmParameter) error {
	p, err := prepareParameter(param)
	if err != nil {
		return err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	_, err = s.pool.Exec(ctx, pgUpsertParam, paramArgs(p, time.Now().UTC())...)
	return eris.Wrapf(err, "postgres: upsert parameter %s.%s", p.Key, p.ParamName)
}

func (s *PostgresStore) DeleteParameter(ctx context.Context, key, name string) error {
	tag, err := s.pool.Exec(ctx, pgDeleteParam, key, name)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete parameter %s.%s", key, name)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Import bulk-upserts deals, then parameters, each in its own transaction.
func (s *PostgresStore) Import(ctx context.Context, deals []model.FirmDeal, params []model.FirmParameter) error {
	now := time.Now().UTC()

	dealRows := make([][]any, 0, len(deals))
	for _, deal := range deals {
		d, err := prepareDeal(deal, now)
		if err != nil {
			return err
		}
		dealRows = append(dealRows, dealArgs(d))
	}
	if _, err := db.BulkUpsert(ctx, s.pool, dealUpsert, dealRows); err != nil {
		return eris.Wrap(err, "postgres: import deals")
	}

	paramRows := make([][]any, 0, len(params))
	for _, param := range params {
		p, err := prepareParameter(param)
		if err != nil {
			return err
		}
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		paramRows = append(paramRows, paramArgs(p, now))
	}
	if _, err := db.BulkUpsert(ctx, s.pool, paramUpsert, paramRows); err != nil {
		return eris.Wrap(err, "postgres: import parameters")
	}
	return nil
}

// Snapshot reads deals and parameters in one REPEATABLE READ, READ ONLY
// transaction so a concurrent CMS edit cannot produce a mixed view.
func (s *PostgresStore) Snapshot(ctx context.Context) ([]model.FirmDeal, []model.FirmParameter, error) {
	var (
		deals  []model.FirmDeal
		params []model.FirmParameter
	)
	opts := pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}
	err := db.InTx(ctx, s.pool, opts, func(tx pgx.Tx) error {
		var err error
		if deals, err = queryDeals(ctx, tx); err != nil {
			return err
		}
		params, err = queryParams(ctx, tx, "")
		return err
	})
	if err != nil {
		return nil, nil, eris.Wrap(err, "postgres: snapshot")
	}
	return deals, params, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func queryDeals(ctx context.Context, q querier) ([]model.FirmDeal, error) {
	rows, err := q.Query(ctx, pgListDeals)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

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

func queryParams(ctx context.Context, q querier, key string) ([]model.FirmParameter, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if key == "" {
		rows, err = q.Query(ctx, pgListParams)
	} else {
		rows, err = q.Query(ctx, pgListFirmParams, key)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

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
