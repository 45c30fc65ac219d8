package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export [entry-id]",
	Short: "Export a unit to EPUB",
	Long:  "Fetch every page of a unit and write it to an EPUB in the export directory",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		unit, _ := cmd.Flags().GetInt("unit")

		ctrl, err := newController()
		cobra.CheckErr(err)
		defer ctrl.Close()

		fmt.Printf("📥 Exporting unit %d...\n", unit)
		path, err := ctrl.ExportUnit(cmd.Context(), args[0], unit-1)
		if err != nil {
			cobra.CheckErr(fmt.Errorf("export failed: %w", err))
		}
		fmt.Printf("📖 EPUB created: %s\n", path)
	},
}

func init() {
	exportCmd.Flags().IntP("unit", "u", 1, "Unit number to export (1-based)")
}
