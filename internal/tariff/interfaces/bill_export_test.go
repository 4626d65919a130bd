package interfaces

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	tariff "meterbill/internal/tariff/domain"
)

func sampleResult() tariff.Result {
	return tariff.Result{
		Retailer:          "ergon",
		Tariff:            tariff.TariffTOUDemand,
		Start:             time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC),
		End:               time.Date(2017, 2, 1, 0, 0, 0, 0, time.UTC),
		SupplyCharge:      2063.53,
		ConsumptionCharge: 4945.05,
		DemandCharge:      33984.5,
		BilledDemandKW:    5,
		PeakSeason:        true,
		TotalExGST:        40993.08,
		TotalIncGST:       45092.39,
	}
}

func TestBuildBillPDF(t *testing.T) {
	data, err := BuildBillPDF("NMI001", sampleResult())
	require.NoError(t, err)
	require.NotEmpty(t, data)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
}

func TestBuildBillXLSX(t *testing.T) {
	data, err := BuildBillXLSX("NMI001", sampleResult())
	require.NoError(t, err)
	require.NotEmpty(t, data)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	meter, err := f.GetCellValue("bill", "B3")
	require.NoError(t, err)
	assert.Equal(t, "NMI001", meter)

	retailer, err := f.GetCellValue("bill", "B4")
	require.NoError(t, err)
	assert.Equal(t, "ergon", retailer)
}

func TestChargeRows_SkipZeroCharges(t *testing.T) {
	res := sampleResult()
	rows := chargeRows(res)
	// Supply, consumption and demand only: no TOU components.
	require.Len(t, rows, 3)
	assert.Equal(t, "Supply charge", rows[0].label)
	assert.Equal(t, "Demand", rows[2].label)
}

func TestDollars(t *testing.T) {
	assert.Equal(t, "$12.34", dollars(1234))
	assert.Equal(t, "$0.00", dollars(0))
}
