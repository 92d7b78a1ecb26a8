package export

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/analysis-cli/internal/sample"
)

// CutflowSheet is one workbook sheet: a queryable's name and its cutflow.
type CutflowSheet struct {
	Name string
	Rows []sample.CutYield
}

// CutflowXLSX writes one sheet per queryable with cut / yield / uncertainty
// columns.
func CutflowXLSX(path string, sheets []CutflowSheet) error {
	f := xlsx.NewFile()
	for _, s := range sheets {
		sheet, err := f.AddSheet(s.Name)
		if err != nil {
			return eris.Wrapf(err, "export: add sheet %s", s.Name)
		}
		header := sheet.AddRow()
		header.AddCell().SetString("Cut")
		header.AddCell().SetString("Yield")
		header.AddCell().SetString("Uncertainty")
		for _, row := range s.Rows {
			r := sheet.AddRow()
			r.AddCell().SetString(row.Cut.String())
			r.AddCell().SetFloat(row.Yield.Value)
			r.AddCell().SetFloat(row.Yield.Error)
		}
	}
	return eris.Wrapf(f.Save(path), "export: save %s", path)
}
