package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seedYAML = `
deals:
  - firm: UBS
    upfrontMin: 20
    upfrontMax: 25
    backendMin: 10
    backendMax: 15
    totalDealMin: 30
    totalDealMax: 40
  - key: independent
    firm: Independent (LPL)
    upfrontMin: 0
    upfrontMax: 20
parameters:
  - firm: UBS
    paramName: grid
    paramValue: 40-50%
  - firm: UBS
    paramName: dealLength
    paramValue: 9
`

func writeFixture(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "firms.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFile(t *testing.T) {
	f, err := LoadFile(writeFixture(t, seedYAML))
	require.NoError(t, err)

	require.Len(t, f.Deals, 2)
	assert.Equal(t, "UBS", f.Deals[0].Firm)
	assert.InDelta(t, 25, f.Deals[0].UpfrontMax, 0.001)
	assert.Equal(t, "independent", f.Deals[1].Key)

	require.Len(t, f.Parameters, 2)
	lo, hi, ok := f.Parameters[0].Value.Range()
	require.True(t, ok)
	assert.InDelta(t, 40, lo, 0.001)
	assert.InDelta(t, 50, hi, 0.001)
	assert.True(t, f.Parameters[1].Value.IsNumber())
}

func TestLoadFile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{"bad yaml", "deals: [", "parse fixture"},
		{"inverted range", "deals:\n  - firm: UBS\n    upfrontMin: 30\n    upfrontMax: 20\n", "fixture deal 0"},
		{"missing firm", "deals:\n  - upfrontMax: 20\n", "fixture deal 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFile(writeFixture(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}

	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read fixture")
}

func TestFileSource(t *testing.T) {
	src := FileSource{Path: writeFixture(t, seedYAML)}
	s, err := Load(context.Background(), src, fastRetry(1))
	require.NoError(t, err)

	d, ok := s.GetDeal("UBS Financial Services")
	require.True(t, ok)
	assert.Equal(t, "ubs", d.Key)
	assert.Len(t, s.GetParameters("ubs"), 2)
}

func TestLoadFile_DevSeed(t *testing.T) {
	f, err := LoadFile(filepath.Join("..", "..", "testdata", "firms.yaml"))
	require.NoError(t, err)

	snap := NewSnapshot(f.Deals, f.Parameters)
	assert.Equal(t, 8, snap.Len())

	deal, ok := snap.GetDeal("Independent")
	require.True(t, ok)
	assert.Equal(t, "transition assistance only", deal.Notes)
	assert.Len(t, snap.GetParameters("RBC Wealth Management"), 2)
}
