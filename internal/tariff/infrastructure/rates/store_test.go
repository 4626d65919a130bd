package rates

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tariff "meterbill/internal/tariff/domain"
)

const sampleYAML = `
rates:
  - retailer: ergon
    financial_year: 2016
    split: regional
    general_supply: 98.5292
    general_usage: 27.0710
    demand_peak: 67.9690
    demand_offpeak: 12.3838
  - retailer: energex
    financial_year: 2016
    split: seq
    general_supply: 111.4366
    general_usage: 24.6100
`

func writeRates(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rates.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFile(t *testing.T) {
	store, err := LoadFile(writeRates(t, sampleYAML))
	require.NoError(t, err)

	r, err := store.Rates(context.Background(), "ergon", 2016)
	require.NoError(t, err)
	assert.Equal(t, tariff.SplitRegional, r.Split)
	assert.InDelta(t, 98.5292, r.GeneralSupply, 1e-9)
	assert.InDelta(t, 67.9690, r.DemandPeak, 1e-9)

	r, err = store.Rates(context.Background(), "energex", 2016)
	require.NoError(t, err)
	assert.Equal(t, tariff.SplitSEQ, r.Split)
}

func TestStore_MissesReturnErrUnknownTariff(t *testing.T) {
	store, err := LoadFile(writeRates(t, sampleYAML))
	require.NoError(t, err)

	_, err = store.Rates(context.Background(), "nobody", 2016)
	assert.ErrorIs(t, err, tariff.ErrUnknownTariff)

	_, err = store.Rates(context.Background(), "ergon", 1999)
	assert.ErrorIs(t, err, tariff.ErrUnknownTariff)
}

func TestStore_Retailers(t *testing.T) {
	store, err := LoadFile(writeRates(t, sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, []string{"energex", "ergon"}, store.Retailers())
}

func TestLoadFile_BadSplit(t *testing.T) {
	_, err := LoadFile(writeRates(t, `
rates:
  - retailer: ergon
    financial_year: 2016
    split: lunar
`))
	assert.Error(t, err)
}

func TestLoadFile_MissingFile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadFile_MalformedYAML(t *testing.T) {
	_, err := LoadFile(writeRates(t, "rates: ["))
	assert.Error(t, err)
}
