package periods

import (
	"bytes"
	"encoding/csv"
	"strconv"

	"github.com/xuri/excelize/v2"
)

var exportHeader = []string{"Matricula", "Nome", "Setor", "Centro de Custo", "Valor Total", "Competencia"}

// ExportCSV renders snapshot rows in the payroll-discount CSV layout.
func ExportCSV(period Period, rows []SnapshotRow) ([]byte, error) {
	buf := new(bytes.Buffer)
	w := csv.NewWriter(buf)
	w.Comma = ';'
	_ = w.Write(exportHeader)
	for _, r := range rows {
		_ = w.Write([]string{
			r.Registration,
			r.Name,
			r.Sector,
			r.CostCenter,
			r.Consumed.StringFixed(2),
			period.Code(),
		})
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// ExportXLSX renders snapshot rows as a spreadsheet for the payroll system.
func ExportXLSX(period Period, rows []SnapshotRow) ([]byte, error) {
	f := excelize.NewFile()
	sheet := "Desconto Folha"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, err
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	for c, v := range exportHeader {
		cell, _ := excelize.CoordinatesToCellName(c+1, 1)
		_ = f.SetCellValue(sheet, cell, v)
	}
	for i, r := range rows {
		consumed, _ := strconv.ParseFloat(r.Consumed.StringFixed(2), 64)
		values := []any{
			r.Registration,
			r.Name,
			r.Sector,
			r.CostCenter,
			consumed,
			period.Code(),
		}
		for c, v := range values {
			cell, _ := excelize.CoordinatesToCellName(c+1, i+2)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}

	_ = f.SetColWidth(sheet, "A", "A", 14)
	_ = f.SetColWidth(sheet, "B", "B", 32)
	_ = f.SetColWidth(sheet, "C", "D", 20)
	_ = f.SetColWidth(sheet, "E", "F", 14)

	style, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#1F2937"}, Pattern: 1},
	})
	_ = f.SetCellStyle(sheet, "A1", "F1", style)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
