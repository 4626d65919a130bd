package interfaces

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	tariff "meterbill/internal/tariff/domain"
)

// chargeRow pairs a charge label with its amount for rendering. Zero
// rows are skipped so a flat-rate bill does not show empty TOU lines.
type chargeRow struct {
	label string
	cents float64
}

func chargeRows(res tariff.Result) []chargeRow {
	rows := []chargeRow{
		{"Supply charge", res.SupplyCharge},
		{"Consumption", res.ConsumptionCharge},
		{"Peak consumption", res.PeakCharge},
		{"Shoulder consumption", res.ShoulderCharge},
		{"Off-peak consumption", res.OffPeakCharge},
		{"Demand", res.DemandCharge},
	}
	out := rows[:0]
	for _, r := range rows {
		if r.cents != 0 {
			out = append(out, r)
		}
	}
	return out
}

func dollars(cents float64) string {
	return fmt.Sprintf("$%.2f", cents/100)
}

// BuildBillPDF renders a bill as a PDF.
func BuildBillPDF(meterID string, res tariff.Result) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Electricity Bill")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Meter: %s", meterID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Retailer: %s", res.Retailer))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Tariff: %s", res.Tariff))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Period: %s to %s", res.Start.Format("2006-01-02"), res.End.Format("2006-01-02")))
	pdf.Ln(5)
	if res.Tariff == tariff.TariffTOUDemand {
		pdf.Cell(0, 6, fmt.Sprintf("Billed demand (kW): %.3f", res.BilledDemandKW))
		pdf.Ln(5)
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(90, 6, "Charge", "1", 0, "C", false, 0, "")
	pdf.CellFormat(50, 6, "Amount", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, row := range chargeRows(res) {
		pdf.CellFormat(90, 6, row.label, "1", 0, "L", false, 0, "")
		pdf.CellFormat(50, 6, dollars(row.cents), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(90, 6, "Total ex GST", "1", 0, "L", false, 0, "")
	pdf.CellFormat(50, 6, dollars(res.TotalExGST), "1", 0, "R", false, 0, "")
	pdf.Ln(-1)
	pdf.CellFormat(90, 6, "Total inc GST", "1", 0, "L", false, 0, "")
	pdf.CellFormat(50, 6, dollars(res.TotalIncGST), "1", 0, "R", false, 0, "")
	pdf.Ln(-1)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildBillXLSX renders a bill as an XLSX workbook.
func BuildBillXLSX(meterID string, res tariff.Result) ([]byte, error) {
	f := excelize.NewFile()
	sheet := "bill"
	f.SetSheetName("Sheet1", sheet)

	_ = f.SetCellValue(sheet, "A1", "Electricity Bill")
	_ = f.SetCellValue(sheet, "A3", "Meter")
	_ = f.SetCellValue(sheet, "B3", meterID)
	_ = f.SetCellValue(sheet, "A4", "Retailer")
	_ = f.SetCellValue(sheet, "B4", res.Retailer)
	_ = f.SetCellValue(sheet, "A5", "Tariff")
	_ = f.SetCellValue(sheet, "B5", res.Tariff)
	_ = f.SetCellValue(sheet, "A6", "Period start")
	_ = f.SetCellValue(sheet, "B6", res.Start.Format("2006-01-02"))
	_ = f.SetCellValue(sheet, "A7", "Period end")
	_ = f.SetCellValue(sheet, "B7", res.End.Format("2006-01-02"))
	if res.Tariff == tariff.TariffTOUDemand {
		_ = f.SetCellValue(sheet, "A8", "Billed demand (kW)")
		_ = f.SetCellValue(sheet, "B8", res.BilledDemandKW)
	}

	row := 10
	_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", row), "Charge")
	_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", row), "Amount ($)")
	for _, cr := range chargeRows(res) {
		row++
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", row), cr.label)
		_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", row), cr.cents/100)
	}
	row++
	_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", row), "Total ex GST")
	_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", row), res.TotalExGST/100)
	row++
	_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", row), "Total inc GST")
	_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", row), res.TotalIncGST/100)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
