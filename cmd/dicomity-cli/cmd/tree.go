package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/CodeChoreography/dicomity/internal/application/commands"
)

var treeCmd = &cobra.Command{
	Use:   "tree <path>...",
	Short: "Display patients, studies and series as a tree",
	Long: `Scan paths and display the patient / study / series hierarchy.

Example:
  dicomity-cli tree ~/data`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, _, err := scan(cmd, args)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		ctx := cmd.Context()

		patients, err := commands.NewListPatientsCommand(reg).Execute(ctx)
		if err != nil {
			return err
		}
		for _, p := range patients {
			fmt.Fprintf(out, "%s %s\n", p.ID, p.Name)
			studies, err := commands.NewListStudiesCommand(reg, p.ID).Execute(ctx)
			if err != nil {
				return err
			}
			for _, st := range studies {
				fmt.Fprintf(out, "  %s %s %s\n", st.Date, st.UID, st.Description)
				series, err := commands.NewListSeriesCommand(reg, p.ID, st.UID).Execute(ctx)
				if err != nil {
					return err
				}
				for _, s := range series {
					fmt.Fprintf(out, "    %s\n", seriesLine(s))
				}
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(treeCmd)
}
