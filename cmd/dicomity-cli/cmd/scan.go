package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/CodeChoreography/dicomity/internal/domain"
)

var showFailures bool

var scanCmd = &cobra.Command{
	Use:   "scan <path>...",
	Short: "Scan paths and summarize what was found",
	Long: `Scan files and directories, group DICOM images into series and
print a summary of the scan.

Example:
  dicomity-cli scan ~/data/study1 ~/data/study2`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, report, err := scan(cmd, args)
		if err != nil {
			return err
		}
		printReport(cmd.OutOrStdout(), report, reg)
		return nil
	},
}

func printReport(w io.Writer, r *domain.ScanReport, reg *domain.Registry) {
	fmt.Fprintf(w, "%d files in %s: %d parsed, %d from cache, %d unreadable\n",
		r.FilesProcessed, r.Duration.Round(1e6), r.Parsed, r.CacheHits, len(r.Failures))
	fmt.Fprintf(w, "%d patients, %d series\n", len(reg.Patients()), reg.Len())
	if n := len(r.Duplicates); n > 0 {
		fmt.Fprintf(w, "%d duplicate instances excluded\n", n)
	}
	for _, s := range reg.SplitSeries() {
		fmt.Fprintf(w, "series %s split into %d groups (%s)\n", s.Key.SeriesUID, s.Split.Siblings, s.ID)
	}
	for _, e := range r.GroupErrors {
		fmt.Fprintf(w, "error: %v\n", e)
	}
	if showFailures {
		for _, f := range r.Failures {
			fmt.Fprintf(w, "unreadable: %s: %v\n", f.Path, f.Err)
		}
	}
}

func init() {
	scanCmd.Flags().BoolVar(&showFailures, "failures", false, "list unreadable files")
	rootCmd.AddCommand(scanCmd)
}
