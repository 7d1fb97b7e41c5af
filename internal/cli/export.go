package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mvoigt/decledger/internal/export"
)

var (
	exportFormat string
	exportOut    string
)

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "json", "Export format (json|csv|compliance_report)")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Write to file instead of stdout")

	// Exports reuse the query selection flags.
	exportCmd.Flags().StringVar(&queryFrom, "from", "", "Earliest timestamp (RFC 3339)")
	exportCmd.Flags().StringVar(&queryTo, "to", "", "Latest timestamp (RFC 3339)")
	exportCmd.Flags().StringVar(&queryCriticality, "min-criticality", "", "Criticality floor (low|medium|high|critical)")
	exportCmd.Flags().StringVar(&queryPath, "path", "", "Exact decision path")
	exportCmd.Flags().StringVar(&querySession, "session", "", "Exact session id")
	exportCmd.Flags().BoolVar(&queryViolations, "violations", false, "Only entries carrying violation tags")
	exportCmd.Flags().IntVarP(&queryLimit, "limit", "n", 10000, "Maximum entries to export")
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export audit entries",
	Long: "Exports entries matching the selection criteria as a JSON\n" +
		"envelope, flattened CSV, or an aggregated compliance report.",
	RunE: runExport,
}

func runExport(cmd *cobra.Command, args []string) error {
	format, err := export.ParseFormat(exportFormat)
	if err != nil {
		return err
	}
	criteria, err := criteriaFromFlags()
	if err != nil {
		return err
	}

	l, _, err := openLedger()
	if err != nil {
		return err
	}
	defer l.Close()

	w := os.Stdout
	if exportOut != "" {
		f, err := os.Create(exportOut)
		if err != nil {
			return fmt.Errorf("create export file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if err := l.Export(cmd.Context(), w, format, *criteria, queryLimit); err != nil {
		return err
	}
	if exportOut != "" {
		fmt.Fprintf(os.Stderr, "exported to %s\n", exportOut)
	}
	return nil
}
