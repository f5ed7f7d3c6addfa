package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faaxis/advisor-calc/internal/config"
	"github.com/faaxis/advisor-calc/internal/model"
)

func newTestSQLite(t *testing.T) Store {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func ubsDeal() model.FirmDeal {
	return model.FirmDeal{Firm: "UBS Wealth Management", UpfrontMin: 20, UpfrontMax: 25, BackendMin: 10, BackendMax: 15, TotalDealMin: 30, TotalDealMax: 40}
}

func storeTestSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("UpsertAndGetDeal", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.UpsertDeal(ctx, ubsDeal()))

		got, err := s.GetDeal(ctx, "ubs")
		require.NoError(t, err)
		assert.Equal(t, "ubs", got.Key)
		assert.Equal(t, "UBS Wealth Management", got.Firm)
		assert.InDelta(t, 25, got.UpfrontMax, 0.001)
		assert.False(t, got.UpdatedAt.IsZero())

		updated := ubsDeal()
		updated.UpfrontMax = 30
		require.NoError(t, s.UpsertDeal(ctx, updated))

		deals, err := s.ListDeals(ctx)
		require.NoError(t, err)
		require.Len(t, deals, 1)
		assert.InDelta(t, 30, deals[0].UpfrontMax, 0.001)
	})

	t.Run("GetDealNotFound", func(t *testing.T) {
		s := newStore(t)
		_, err := s.GetDeal(context.Background(), "stifel")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("UpsertDealInvalid", func(t *testing.T) {
		s := newStore(t)
		bad := ubsDeal()
		bad.UpfrontMin = 50
		err := s.UpsertDeal(context.Background(), bad)
		require.Error(t, err)
		var verr *model.ValidationError
		assert.True(t, errors.As(err, &verr))
	})

	t.Run("Parameters", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.UpsertDeal(ctx, ubsDeal()))

		require.NoError(t, s.UpsertParameter(ctx, model.FirmParameter{Firm: "UBS", ParamName: "grid", Value: model.TextValue("40-50%")}))
		require.NoError(t, s.UpsertParameter(ctx, model.FirmParameter{Key: "ubs", ParamName: "dealLength", Value: model.NumberValue(9)}))
		require.NoError(t, s.UpsertParameter(ctx, model.FirmParameter{Key: "rbc", ParamName: "grid", Value: model.NumberValue(42)}))

		// same firm and name replaces the value
		require.NoError(t, s.UpsertParameter(ctx, model.FirmParameter{Key: "ubs", ParamName: "dealLength", Value: model.NumberValue(10)}))

		params, err := s.ListParameters(ctx, "ubs")
		require.NoError(t, err)
		require.Len(t, params, 2)
		assert.Equal(t, "dealLength", params[0].ParamName)
		v, ok := params[0].Value.Float()
		require.True(t, ok)
		assert.InDelta(t, 10, v, 0.001)
		assert.Equal(t, "40-50%", params[1].Value.String())
		assert.NotEmpty(t, params[1].ID)

		all, err := s.ListParameters(ctx, "")
		require.NoError(t, err)
		assert.Len(t, all, 3)

		require.NoError(t, s.DeleteParameter(ctx, "ubs", "grid"))
		assert.ErrorIs(t, s.DeleteParameter(ctx, "ubs", "grid"), ErrNotFound)
	})

	t.Run("DeleteDealRemovesParameters", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.UpsertDeal(ctx, ubsDeal()))
		require.NoError(t, s.UpsertParameter(ctx, model.FirmParameter{Key: "ubs", ParamName: "grid", Value: model.NumberValue(45)}))

		require.NoError(t, s.DeleteDeal(ctx, "ubs"))

		_, err := s.GetDeal(ctx, "ubs")
		assert.ErrorIs(t, err, ErrNotFound)
		params, err := s.ListParameters(ctx, "ubs")
		require.NoError(t, err)
		assert.Empty(t, params)

		assert.ErrorIs(t, s.DeleteDeal(ctx, "ubs"), ErrNotFound)
	})

	t.Run("ImportAndSnapshot", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		deals := []model.FirmDeal{
			ubsDeal(),
			{Firm: "RBC", UpfrontMin: 100, UpfrontMax: 150, BackendMin: 50, BackendMax: 100},
		}
		params := []model.FirmParameter{
			{Firm: "RBC", ParamName: "grid", Value: model.TextValue("40-50%")},
		}
		require.NoError(t, s.Import(ctx, deals, params))

		gotDeals, gotParams, err := s.Snapshot(ctx)
		require.NoError(t, err)
		require.Len(t, gotDeals, 2)
		assert.Equal(t, "rbc", gotDeals[0].Key)
		assert.Equal(t, "ubs", gotDeals[1].Key)
		require.Len(t, gotParams, 1)
		assert.Equal(t, "rbc", gotParams[0].Key)
	})

	t.Run("ImportRejectsInvalid", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		bad := ubsDeal()
		bad.BackendMax = 1

		require.Error(t, s.Import(ctx, []model.FirmDeal{{Firm: "RBC", UpfrontMax: 1}, bad}, nil))

		deals, err := s.ListDeals(ctx)
		require.NoError(t, err)
		assert.Empty(t, deals)
	})

	t.Run("UnlistedFirmBesideIndependent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.UpsertDeal(ctx, model.FirmDeal{Firm: "LPL Financial", UpfrontMin: 10, UpfrontMax: 20}))
		require.NoError(t, s.UpsertDeal(ctx, model.FirmDeal{Firm: "Rockefeller Capital", UpfrontMin: 150, UpfrontMax: 200}))
		require.NoError(t, s.UpsertParameter(ctx, model.FirmParameter{Firm: "Rockefeller Capital", ParamName: "grid", Value: model.NumberValue(50)}))

		deals, err := s.ListDeals(ctx)
		require.NoError(t, err)
		require.Len(t, deals, 2)

		lpl, err := s.GetDeal(ctx, "independent")
		require.NoError(t, err)
		assert.Equal(t, "LPL Financial", lpl.Firm)

		rock, err := s.GetDeal(ctx, "rockefeller-capital")
		require.NoError(t, err)
		assert.InDelta(t, 200, rock.UpfrontMax, 0.001)

		params, err := s.ListParameters(ctx, "independent")
		require.NoError(t, err)
		assert.Empty(t, params)

		require.NoError(t, s.DeleteDeal(ctx, "rockefeller-capital"))
		_, err = s.GetDeal(ctx, "independent")
		assert.NoError(t, err, "deleting an unlisted firm leaves the independent deal")
	})

	t.Run("UpsertDealUnusableName", func(t *testing.T) {
		s := newStore(t)
		assert.Error(t, s.UpsertDeal(context.Background(), model.FirmDeal{Firm: "--", UpfrontMax: 1}))
	})

	t.Run("Ping", func(t *testing.T) {
		s := newStore(t)
		assert.NoError(t, s.Ping(context.Background()))
	})
}

func TestSQLiteStore(t *testing.T) {
	storeTestSuite(t, newTestSQLite)
}

func TestSQLiteMigrateIdempotent(t *testing.T) {
	s := newTestSQLite(t)
	assert.NoError(t, s.Migrate(context.Background()))
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	s, err := New(ctx, config.StoreConfig{Driver: "sqlite", DatabaseURL: filepath.Join(t.TempDir(), "x.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	_, err = New(ctx, config.StoreConfig{Driver: "mongo"})
	assert.ErrorContains(t, err, "unknown driver")
}

func TestPrepareParameter(t *testing.T) {
	_, err := prepareParameter(model.FirmParameter{Key: "ubs"})
	assert.ErrorContains(t, err, "name is required")

	_, err = prepareParameter(model.FirmParameter{ParamName: "grid"})
	assert.ErrorContains(t, err, "has no firm")

	p, err := prepareParameter(model.FirmParameter{Key: "merrillLynch", ParamName: "grid"})
	require.NoError(t, err)
	assert.Equal(t, "Merrill Lynch", p.Firm)
}

func TestPrepareDeal_Keys(t *testing.T) {
	tests := []struct {
		name    string
		firm    string
		want    string
		wantErr bool
	}{
		{"alias", "LPL Financial", "independent", false},
		{"unlisted", "Rockefeller Capital", "rockefeller-capital", false},
		{"punctuation only", "--", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := prepareDeal(model.FirmDeal{Firm: tt.firm, UpfrontMax: 1}, time.Now())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Key)
		})
	}

	p, err := prepareParameter(model.FirmParameter{Firm: "Rockefeller Capital", ParamName: "grid"})
	require.NoError(t, err)
	assert.Equal(t, "rockefeller-capital", p.Key)
}
