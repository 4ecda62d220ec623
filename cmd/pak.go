package cmd

import (
	"fmt"

	"modcore/internal/lspk"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var pakCmd = &cobra.Command{
	Use:   "pak",
	Short: "Inspect and extract LSPK v18 package archives",
}

var pakListCmd = &cobra.Command{
	Use:   "list ARCHIVE",
	Short: "List the files packed into an LSPK archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := lspk.Open(args[0])
		if err != nil {
			return err
		}
		defer a.Close()

		records, err := a.ReadRecords()
		if err != nil {
			return err
		}

		if pterm.RawOutput {
			for _, r := range records {
				fmt.Printf("%-60s %10d bytes\n", r.Name, r.UncompressedSize)
			}
			fmt.Printf("\n%d files\n", len(records))
			return nil
		}

		tableData := pterm.TableData{{"Name", "Size"}}
		for _, r := range records {
			tableData = append(tableData, []string{r.Name, fmt.Sprintf("%d", r.UncompressedSize)})
		}
		if err := pterm.DefaultTable.WithHasHeader().WithData(tableData).Render(); err != nil {
			return err
		}
		pterm.Printf("%d files\n", len(records))
		return nil
	},
}

var pakExtractCmd = &cobra.Command{
	Use:   "extract ARCHIVE DEST_DIR",
	Short: "Extract every file in an LSPK archive into DEST_DIR",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := lspk.Open(args[0])
		if err != nil {
			return err
		}
		defer a.Close()

		var n int
		if pterm.RawOutput {
			n, err = a.ExtractAll(args[1])
		} else {
			spinner, _ := pterm.DefaultSpinner.Start("Extracting archive...")
			n, err = a.ExtractAll(args[1])
			if err != nil {
				spinner.Warning("Extraction finished with errors")
			} else {
				spinner.Success(fmt.Sprintf("Extracted %d files", n))
			}
		}
		if err != nil {
			return err
		}
		if pterm.RawOutput {
			fmt.Printf("Extracted %d files\n", n)
		}
		return nil
	},
}

func init() {
	pakCmd.AddCommand(pakListCmd, pakExtractCmd)
	rootCmd.AddCommand(pakCmd)
}
