// Package export renders verification results in the formats the
// DesguaPro back office consumes: semicolon CSV with comma decimals,
// grouped ZIP bundles, and XLSX worksheets.
package export

import (
	"encoding/csv"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/desguapro/stock-cli/pkg/pricing"
)

// csvHeader is the fixed column order of every exported CSV.
var csvHeader = []string{
	"ID", "OEM", "Tipo Pieza", "Precio Actual", "Precio Mercado",
	"Precio Sugerido", "Diferencia %", "Familia", "Estado",
}

// utf8BOM makes Excel open the file as UTF-8.
const utf8BOM = "\xef\xbb\xbf"

// formatDecimal renders a price the way the back office expects: two
// decimals, comma as the decimal separator (the inverse of the ingestion
// convention).
func formatDecimal(v float64) string {
	return strings.Replace(strconv.FormatFloat(v, 'f', 2, 64), ".", ",", 1)
}

// estado returns the Estado column value for a result.
func estado(r pricing.Result) string {
	if r.IsOutlier {
		return "OUTLIER"
	}
	return "OK"
}

func resultRow(r pricing.Result) []string {
	suggested := ""
	if r.PriceSuggested != nil {
		suggested = formatDecimal(*r.PriceSuggested)
	}
	return []string{
		r.RefID,
		r.RefOEM,
		r.PartType,
		formatDecimal(r.PriceActual),
		formatDecimal(r.PriceMarket),
		suggested,
		formatDecimal(r.DifferencePct),
		r.Family,
		estado(r),
	}
}

// WriteCSV writes results as a semicolon-separated, BOM-prefixed CSV.
func WriteCSV(w io.Writer, results []pricing.Result) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return eris.Wrap(err, "export: write bom")
	}

	cw := csv.NewWriter(w)
	cw.Comma = ';'

	if err := cw.Write(csvHeader); err != nil {
		return eris.Wrap(err, "export: write header")
	}
	for _, r := range results {
		if err := cw.Write(resultRow(r)); err != nil {
			return eris.Wrap(err, "export: write row")
		}
	}

	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush csv")
}

// GroupKey buckets a suggested price by truncating to the whole unit,
// so 10.2 and 10.8 land in the same "10" bundle.
func GroupKey(suggested float64) string {
	return strconv.Itoa(int(math.Trunc(suggested)))
}
