package cmd

import (
	"fmt"

	"modcore/internal/filemap"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var filemapCmd = &cobra.Command{
	Use:   "filemap [ROOT_DIR]",
	Short: "Build filemap.txt and print each mod's conflict status",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := parseConfig(cmd, args)
		p, err := buildProfile(cfg)
		if err != nil {
			return err
		}

		result, err := p.BuildFilemap()
		if err != nil {
			return err
		}

		printConflicts(result)
		return nil
	},
}

func printConflicts(result filemap.Result) {
	tableData := pterm.TableData{{"Mod", "Conflict"}}
	for _, name := range result.PriorityOrder {
		c := result.Conflicts[name]
		row := []string{name, c.String()}
		switch c.String() {
		case "wins":
			row[1] = pterm.Green(row[1])
		case "loses", "full":
			row[1] = pterm.Red(row[1])
		case "partial":
			row[1] = pterm.Yellow(row[1])
		}
		tableData = append(tableData, row)
	}

	if pterm.RawOutput {
		for _, name := range result.PriorityOrder {
			fmt.Printf("%-30s %s\n", name, result.Conflicts[name])
		}
		fmt.Printf("\n%d entries written to filemap.txt and filemap_root.txt\n", result.Count)
		return
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(tableData).Render()
	pterm.Printf("%d entries written to filemap.txt and filemap_root.txt\n", result.Count)
}

func init() {
	rootCmd.AddCommand(filemapCmd)
}
