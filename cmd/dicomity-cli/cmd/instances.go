package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/CodeChoreography/dicomity/internal/application/commands"
	"github.com/CodeChoreography/dicomity/internal/domain"
)

var instancesCmd = &cobra.Command{
	Use:   "instances <series-id> <path>...",
	Short: "Print the files of a series in display order",
	Long: `Scan paths and print the files of one series, one per line, in the
order they should be displayed. Series IDs are stable across scans.

Example:
  dicomity-cli instances 3f2a9c1e04b7d658 ~/data`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, _, err := scan(cmd, args[1:])
		if err != nil {
			return err
		}
		series, err := commands.NewGetSeriesCommand(reg, args[0]).Execute(cmd.Context())
		if err != nil {
			return err
		}
		printInstances(cmd, series)
		return nil
	},
}

var largestCmd = &cobra.Command{
	Use:   "largest <path>...",
	Short: "Print the files of the largest series in display order",
	Long: `Scan paths and print the ordered files of the series with the most
images, usually the main volume of a study.

Example:
  dicomity-cli largest ~/data/study1`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, _, err := scan(cmd, args)
		if err != nil {
			return err
		}
		series, err := commands.NewLargestSeriesCommand(reg).Execute(cmd.Context())
		if err != nil {
			return err
		}
		printInstances(cmd, series)
		return nil
	},
}

func printInstances(cmd *cobra.Command, s domain.SeriesView) {
	if !s.Confident {
		fmt.Fprintf(cmd.ErrOrStderr(), "order by %s is a best guess\n", s.Method)
	}
	for _, ref := range s.OrderedInstances() {
		fmt.Fprintln(cmd.OutOrStdout(), ref.Path)
	}
}

func init() {
	rootCmd.AddCommand(instancesCmd)
	rootCmd.AddCommand(largestCmd)
}
