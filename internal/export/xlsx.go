package export

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/desguapro/stock-cli/pkg/pricing"
)

// WriteXLSX writes results to an Excel workbook at path, same columns as
// the CSV export. Numeric columns stay numeric so the sheet sorts and
// filters correctly.
func WriteXLSX(path string, results []pricing.Result) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Resultados")
	if err != nil {
		return eris.Wrap(err, "export: add xlsx sheet")
	}

	header := sheet.AddRow()
	for _, col := range csvHeader {
		header.AddCell().Value = col
	}

	for _, r := range results {
		row := sheet.AddRow()
		row.AddCell().Value = r.RefID
		row.AddCell().Value = r.RefOEM
		row.AddCell().Value = r.PartType
		row.AddCell().SetFloatWithFormat(r.PriceActual, "0.00")
		row.AddCell().SetFloatWithFormat(r.PriceMarket, "0.00")
		if r.PriceSuggested != nil {
			row.AddCell().SetFloatWithFormat(*r.PriceSuggested, "0.00")
		} else {
			row.AddCell().Value = ""
		}
		row.AddCell().SetFloatWithFormat(r.DifferencePct, "0.0")
		row.AddCell().Value = r.Family
		row.AddCell().Value = estado(r)
	}

	return eris.Wrapf(file.Save(path), "export: save xlsx %s", path)
}
