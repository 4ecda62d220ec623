package cmd

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var restoreCmd = &cobra.Command{
	Use:   "restore [ROOT_DIR]",
	Short: "Undo the last deploy, rescuing any runtime-created files",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := parseConfig(cmd, args)
		p, err := buildProfile(cfg)
		if err != nil {
			return err
		}

		if pterm.RawOutput {
			pterm.Info.Println("Restoring...")
			err = p.Restore()
		} else {
			spinner, _ := pterm.DefaultSpinner.Start("Restoring...")
			err = p.Restore()
			if err != nil {
				spinner.Warning("Restore finished with errors")
			} else {
				spinner.Success("Restore complete")
			}
		}
		if err != nil {
			return err
		}
		if pterm.RawOutput {
			pterm.Success.Println("Restore complete")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(restoreCmd)
}
