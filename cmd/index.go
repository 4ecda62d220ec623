package cmd

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index [ROOT_DIR]",
	Short: "Rescan every staging mod folder and rebuild modindex.txt",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := parseConfig(cmd, args)
		p, err := buildProfile(cfg)
		if err != nil {
			return err
		}

		if pterm.RawOutput {
			err = p.RebuildIndex()
		} else {
			spinner, _ := pterm.DefaultSpinner.Start("Rebuilding mod index...")
			err = p.RebuildIndex()
			if err != nil {
				spinner.Warning("Index rebuild finished with errors")
			} else {
				spinner.Success("Index rebuilt")
			}
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(indexCmd)
}
