package cmd

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var deployCmd = &cobra.Command{
	Use:   "deploy [ROOT_DIR]",
	Short: "Build the filemap and deploy the enabled mods into the destination",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := parseConfig(cmd, args)
		p, err := buildProfile(cfg)
		if err != nil {
			return err
		}
		mode, err := parseLinkMode(cfg.LinkMode)
		if err != nil {
			return err
		}

		if pterm.RawOutput {
			pterm.Info.Println("Deploying...")
			err = p.Deploy(mode)
		} else {
			spinner, _ := pterm.DefaultSpinner.Start("Deploying...")
			err = p.Deploy(mode)
			if err != nil {
				spinner.Warning("Deploy finished with errors")
			} else {
				spinner.Success("Deploy complete")
			}
		}
		if err != nil {
			return err
		}
		if pterm.RawOutput {
			pterm.Success.Println("Deploy complete")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deployCmd)
}
