package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/CodeChoreography/dicomity/internal/application/commands"
	"github.com/CodeChoreography/dicomity/internal/domain"
)

var (
	seriesPatient string
	seriesStudy   string
)

var seriesCmd = &cobra.Command{
	Use:   "series <path>...",
	Short: "List series with their IDs and ordering method",
	Long: `Scan paths and list every series, or the series of one study.

Examples:
  dicomity-cli series ~/data
  dicomity-cli series --patient P1 --study 1.2.840.1 ~/data`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, _, err := scan(cmd, args)
		if err != nil {
			return err
		}
		list := commands.NewListSeriesCommand(reg, seriesPatient, seriesStudy)
		list.All = seriesStudy == ""
		series, err := list.Execute(cmd.Context())
		if err != nil {
			return err
		}
		for _, s := range series {
			fmt.Fprintln(cmd.OutOrStdout(), seriesLine(s))
		}
		return nil
	},
}

func seriesLine(s domain.SeriesView) string {
	number := "-"
	if s.SeriesNumber != nil {
		number = fmt.Sprint(*s.SeriesNumber)
	}
	method := s.Method.String()
	if !s.Confident {
		method += "?"
	}
	return fmt.Sprintf("%s #%-3s %-3s %4d  %-18s %s", s.ID, number, s.Modality, s.InstanceCount, method, s.Description)
}

func init() {
	seriesCmd.Flags().StringVar(&seriesPatient, "patient", "", "patient ID of the study")
	seriesCmd.Flags().StringVar(&seriesStudy, "study", "", "study instance UID")
	rootCmd.AddCommand(seriesCmd)
}
