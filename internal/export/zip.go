package export

import (
	"archive/zip"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/rotisserie/eris"

	"github.com/desguapro/stock-cli/internal/sched"
	"github.com/desguapro/stock-cli/pkg/pricing"
)

const noSuggestionFile = "sin_precio_sugerido.csv"

// GroupBySuggested buckets results by their truncated suggested price.
// Results without a suggestion land under the "" key.
func GroupBySuggested(results []pricing.Result) map[string][]pricing.Result {
	groups := make(map[string][]pricing.Result)
	for _, r := range results {
		key := ""
		if r.PriceSuggested != nil {
			key = GroupKey(*r.PriceSuggested)
		}
		groups[key] = append(groups[key], r)
	}
	return groups
}

// WriteZIP writes one CSV per suggested-price group, one CSV for results
// without a suggestion, and a plain-text summary with aggregate and
// per-group counts.
func WriteZIP(w io.Writer, results []pricing.Result, summary sched.Summary) error {
	zw := zip.NewWriter(w)

	groups := GroupBySuggested(results)
	keys := make([]string, 0, len(groups))
	for k := range groups {
		if k != "" {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		a, _ := strconv.Atoi(keys[i])
		b, _ := strconv.Atoi(keys[j])
		return a < b
	})

	for _, key := range keys {
		f, err := zw.Create(fmt.Sprintf("precio_%s.csv", key))
		if err != nil {
			return eris.Wrapf(err, "export: create zip entry %s", key)
		}
		if err := WriteCSV(f, groups[key]); err != nil {
			return err
		}
	}

	if noSugg := groups[""]; len(noSugg) > 0 {
		f, err := zw.Create(noSuggestionFile)
		if err != nil {
			return eris.Wrap(err, "export: create zip entry for unsuggested")
		}
		if err := WriteCSV(f, noSugg); err != nil {
			return err
		}
	}

	f, err := zw.Create("resumen.txt")
	if err != nil {
		return eris.Wrap(err, "export: create summary entry")
	}
	if err := writeSummary(f, results, groups, keys, summary); err != nil {
		return err
	}

	return eris.Wrap(zw.Close(), "export: close zip")
}

func writeSummary(w io.Writer, results []pricing.Result, groups map[string][]pricing.Result, keys []string, summary sched.Summary) error {
	writeLine := func(format string, args ...any) error {
		_, err := fmt.Fprintf(w, format+"\n", args...)
		return err
	}

	estado := "completado"
	if summary.Cancelled {
		estado = "detenido por el usuario"
	}

	lines := []error{
		writeLine("Resumen de verificación de stock"),
		writeLine("Estado: %s", estado),
		writeLine("Duración: %s", summary.Elapsed.Round(time.Second)),
		writeLine(""),
		writeLine("Piezas procesadas: %d de %d", summary.Counters.Processed, summary.Counters.Total),
		writeLine("Resultados: %d", len(results)),
		writeLine("Outliers: %d", summary.Counters.Outliers),
		writeLine("Ignoradas (bajo mercado): %d", summary.Counters.Ignored),
		writeLine("Sin datos de mercado: %d", summary.Counters.NoData),
		writeLine("Errores de petición: %d", summary.Counters.Failed),
		writeLine(""),
		writeLine("Grupos por precio sugerido:"),
	}
	for _, err := range lines {
		if err != nil {
			return eris.Wrap(err, "export: write summary")
		}
	}

	for _, key := range keys {
		if err := writeLine("  %s €: %d piezas", key, len(groups[key])); err != nil {
			return eris.Wrap(err, "export: write summary group")
		}
	}
	if n := len(groups[""]); n > 0 {
		if err := writeLine("  sin precio sugerido: %d piezas", n); err != nil {
			return eris.Wrap(err, "export: write summary group")
		}
	}
	return nil
}
