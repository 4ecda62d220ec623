package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var backupCmd = &cobra.Command{
	Use:   "backup [ROOT_DIR]",
	Short: "Manage timestamped snapshots of modlist.txt and plugins.txt",
}

var backupCreateCmd = &cobra.Command{
	Use:   "create [ROOT_DIR]",
	Short: "Snapshot the current profile files into profile_dir/backups/",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := parseConfig(cmd, args)
		p, err := buildProfile(cfg)
		if err != nil {
			return err
		}
		if err := p.Backup(); err != nil {
			return err
		}
		if pterm.RawOutput {
			fmt.Println("Backup created")
		} else {
			pterm.Success.Println("Backup created")
		}
		return nil
	},
}

var backupListCmd = &cobra.Command{
	Use:   "list [ROOT_DIR]",
	Short: "List available profile snapshots, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := parseConfig(cmd, args)
		p, err := buildProfile(cfg)
		if err != nil {
			return err
		}
		snaps, err := p.Backups()
		if err != nil {
			return err
		}
		if len(snaps) == 0 {
			fmt.Println("No backups found")
			return nil
		}
		if pterm.RawOutput {
			for _, s := range snaps {
				fmt.Println(s.Name)
			}
			return nil
		}
		tableData := pterm.TableData{{"Backup"}}
		for _, s := range snaps {
			tableData = append(tableData, []string{s.Name})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(tableData).Render()
	},
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore [ROOT_DIR] NAME",
	Short: "Restore profile files from a named snapshot",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[len(args)-1]
		cfg := parseConfig(cmd, args[:len(args)-1])
		p, err := buildProfile(cfg)
		if err != nil {
			return err
		}
		if err := p.RestoreBackup(filepath.Join(p.Dir, "backups", name)); err != nil {
			return err
		}
		if pterm.RawOutput {
			fmt.Println("Backup restored:", name)
		} else {
			pterm.Success.Println("Backup restored: " + name)
		}
		return nil
	},
}

func init() {
	backupCmd.AddCommand(backupCreateCmd, backupListCmd, backupRestoreCmd)
	rootCmd.AddCommand(backupCmd)
}
