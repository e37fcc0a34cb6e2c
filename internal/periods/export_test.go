package periods

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func exportFixture() (Period, []SnapshotRow) {
	p := Period{ID: 9, Year: 2025, Month: 3, Status: StatusClosed}
	rows := []SnapshotRow{
		{EmployeeID: 2, Registration: "1002", Name: "João Lima", Sector: "Administração", CostCenter: "CC-01", Consumed: dec("12.50")},
		{EmployeeID: 1, Registration: "1001", Name: "Maria Souza", Sector: "Enfermagem", CostCenter: "CC-10", Consumed: dec("84.00")},
	}
	return p, rows
}

func TestExportCSV(t *testing.T) {
	p, rows := exportFixture()

	out, err := ExportCSV(p, rows)
	require.NoError(t, err)

	lines := bytes.Split(bytes.TrimSpace(out), []byte("\n"))
	require.Len(t, lines, 3)
	require.Equal(t, "Matricula;Nome;Setor;Centro de Custo;Valor Total;Competencia", string(lines[0]))
	require.Equal(t, "1002;João Lima;Administração;CC-01;12.50;03/2025", string(lines[1]))
	require.Equal(t, "1001;Maria Souza;Enfermagem;CC-10;84.00;03/2025", string(lines[2]))
}

func TestExportXLSX(t *testing.T) {
	p, rows := exportFixture()

	out, err := ExportXLSX(p, rows)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close()

	sheet := "Desconto Folha"
	require.Contains(t, f.GetSheetList(), sheet)

	header, err := f.GetCellValue(sheet, "A1")
	require.NoError(t, err)
	require.Equal(t, "Matricula", header)

	name, err := f.GetCellValue(sheet, "B2")
	require.NoError(t, err)
	require.Equal(t, "João Lima", name)

	amount, err := f.GetCellValue(sheet, "E3")
	require.NoError(t, err)
	require.Equal(t, "84", amount)

	code, err := f.GetCellValue(sheet, "F2")
	require.NoError(t, err)
	require.Equal(t, "03/2025", code)
}
