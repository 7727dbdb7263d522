// =============================================================================
// Aging Report Converter - Console Output
// =============================================================================
//
// Helpers shared by the commands for printing conversion results: preview
// tables, warnings and one-line summaries.
//
// =============================================================================

package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/ginjaninja78/aging-to-qb-converter/internal/report"
)

// previewRows is the number of records shown per preview table.
const previewRows = 20

// setTitle returns the heading printed above a record set.
func setTitle(name string) string {
	switch name {
	case report.SetBills:
		return "Bills to Import"
	case report.SetCredits:
		return "Vendor Credits to Import"
	default:
		return "Records to Import"
	}
}

// printPreview writes one aligned table per record set.
//
// PARAMETERS:
//   - w: The destination, usually stdout.
//   - result: The conversion result to show.
//   - limit: The maximum number of rows per table. 0 shows every row.
func printPreview(w io.Writer, result *report.Result, limit int) {
	for _, set := range result.Sets {
		fmt.Fprintf(w, "\n%s (%d)\n", setTitle(set.Name), set.Len())

		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, strings.Join(report.OutputColumns, "\t"))

		for i, record := range set.Records {
			if limit > 0 && i == limit {
				break
			}
			fmt.Fprintln(tw, strings.Join(record.Values(), "\t"))
		}
		tw.Flush()

		if limit > 0 && set.Len() > limit {
			fmt.Fprintf(w, "... %d more\n", set.Len()-limit)
		}
		fmt.Fprintf(w, "Total: %s\n", set.Total().StringFixed(2))
	}
}

// printWarnings writes every non-fatal warning of a result.
func printWarnings(w io.Writer, result *report.Result) {
	for _, warning := range result.Warnings {
		fmt.Fprintf(w, "Warning: %s\n", warning.Message)
	}
}

// describeCounts summarizes the record sets of a result, e.g.
// "12 bill(s), 3 vendor credit(s)".
func describeCounts(result *report.Result) string {
	if !result.Split {
		set, _ := result.Set(report.SetRecords)
		return fmt.Sprintf("%d record(s)", set.Len())
	}

	bills, _ := result.Set(report.SetBills)
	credits, _ := result.Set(report.SetCredits)
	return fmt.Sprintf("%d bill(s), %d vendor credit(s)", bills.Len(), credits.Len())
}

// countSets returns the bill, credit and total record counts of a result.
// Non-split results count every record as a bill.
func countSets(result *report.Result) (bills, credits, records int) {
	for _, set := range result.Sets {
		switch set.Name {
		case report.SetCredits:
			credits += set.Len()
		default:
			bills += set.Len()
		}
	}
	return bills, credits, bills + credits
}
