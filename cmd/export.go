package cmd

import (
	"bytes"
	"fmt"
	"os"

	"github.com/KaramelBytes/datalens-cli/internal/export"
	"github.com/KaramelBytes/datalens-cli/internal/utils"
	"github.com/spf13/cobra"
)

var (
	exIngest ingestFlags
	exTable  tableFlags
	exOutput string
)

var exportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Write the processed table as CSV (missing cells empty, original cell text kept)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := exIngest.options(cmd)
		if err != nil {
			return err
		}
		ds, err := loadDataset(args[0], in)
		if err != nil {
			return err
		}
		if ds, err = exTable.apply(ds); err != nil {
			return err
		}
		if exOutput == "" || exOutput == "-" {
			return export.WriteCSV(os.Stdout, ds)
		}
		var buf bytes.Buffer
		if err := export.WriteCSV(&buf, ds); err != nil {
			return err
		}
		if err := utils.SafeWriteFile(exOutput, buf.Bytes()); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		fmt.Printf("✓ Exported %d rows x %d columns to %s\n", ds.Rows(), len(ds.Columns), exOutput)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exIngest.register(exportCmd)
	exTable.register(exportCmd, true)
	exportCmd.Flags().StringVarP(&exOutput, "output", "o", "", "CSV file to write (stdout if omitted)")
}
