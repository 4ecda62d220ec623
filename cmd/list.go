package cmd

import (
	"fmt"

	"modcore/internal/modlist"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list [ROOT_DIR]",
	Short: "List the mods tracked in modlist.txt with their enabled state",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := parseConfig(cmd, args)
		p, err := buildProfile(cfg)
		if err != nil {
			return err
		}

		mods, err := p.Mods()
		if err != nil {
			return err
		}

		printModList(mods)
		return nil
	},
}

func printModList(mods []modlist.Entry) {
	enabled, disabled, separators := 0, 0, 0

	tableData := pterm.TableData{{"Mod Name", "Enabled", "Locked"}}
	for _, mod := range mods {
		if mod.IsSeparator {
			separators++
			continue
		}
		if mod.Enabled {
			enabled++
		} else {
			disabled++
		}

		enabledStr := pterm.Red("false")
		if mod.Enabled {
			enabledStr = pterm.Green("true")
		}
		lockedStr := ""
		if mod.Locked {
			lockedStr = pterm.Yellow("true")
		}
		tableData = append(tableData, []string{mod.DisplayName(), enabledStr, lockedStr})
	}

	summary := fmt.Sprintf("%d enabled, %d disabled, %d separators (%d total)", enabled, disabled, separators, len(mods))

	if pterm.RawOutput {
		for _, mod := range mods {
			if mod.IsSeparator {
				continue
			}
			state := "DISABLED"
			if mod.Enabled {
				state = "ENABLED "
			}
			fmt.Printf("  %s  %s\n", state, mod.DisplayName())
		}
		fmt.Printf("\n%s\n", summary)
		return
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(tableData).Render()
	pterm.Println(summary)
}

func init() {
	rootCmd.AddCommand(listCmd)
}
