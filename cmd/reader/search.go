package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/kerbaras/reader/pkg/sources"
	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search a source",
	Long:  "Search a source's catalog and display results in a table",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		query := strings.Join(args, " ")
		source, _ := cmd.Flags().GetString("source")

		ctrl, err := newController()
		cobra.CheckErr(err)
		defer ctrl.Close()

		results, err := ctrl.Search(cmd.Context(), source, query)
		if err != nil {
			cobra.CheckErr(fmt.Errorf("search failed: %w", err))
		}

		if len(results) == 0 {
			fmt.Println("No results found.")
			return
		}

		var (
			purple = lipgloss.Color("99")

			headerStyle = lipgloss.NewStyle().Foreground(purple).Bold(true).Align(lipgloss.Center)
			cellStyle   = lipgloss.NewStyle().Padding(0, 1)
		)

		t := table.New().
			Border(lipgloss.HiddenBorder()).
			BorderStyle(lipgloss.NewStyle().Foreground(purple)).
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return headerStyle
				}
				return cellStyle
			}).
			Headers("#", "Title", "Type", "ID")

		for i, entry := range results {
			t.Row(fmt.Sprintf("%d", i+1), truncateString(entry.Title, 58), string(entry.MediaType), entry.ID)
		}

		fmt.Println(t)
		fmt.Printf("💡 To add one, use: reader add --source %s --id <ID>\n", source)
	},
}

var addCmd = &cobra.Command{
	Use:   "add [query]",
	Short: "Add an entry to your library",
	Long:  "Add an entry by ID, or search a source and add the first result",
	Run: func(cmd *cobra.Command, args []string) {
		source, _ := cmd.Flags().GetString("source")
		id, _ := cmd.Flags().GetString("id")
		query := strings.Join(args, " ")
		if id == "" && query == "" {
			cobra.CheckErr(fmt.Errorf("either a query or --id is required"))
		}

		ctrl, err := newController()
		cobra.CheckErr(err)
		defer ctrl.Close()

		if id == "" {
			fmt.Printf("🔍 Searching %s for '%s'...\n", source, query)
			results, err := ctrl.Search(cmd.Context(), source, query)
			if err != nil {
				cobra.CheckErr(fmt.Errorf("search failed: %w", err))
			}
			if len(results) == 0 {
				fmt.Println("❌ No results found.")
				return
			}
			id = results[0].ID
			fmt.Printf("✅ Found: %s (ID: %s)\n", results[0].Title, id)
		}

		entry, err := ctrl.AddEntry(cmd.Context(), source, id)
		if err != nil {
			cobra.CheckErr(fmt.Errorf("failed to add entry: %w", err))
		}
		units, err := ctrl.Units(cmd.Context(), entry.ID, false)
		cobra.CheckErr(err)

		fmt.Printf("✅ Added '%s' to library with %d units\n", entry.Title, len(units))
		fmt.Printf("💡 To start reading, use: reader read %s\n", entry.ID)
	},
}

func init() {
	searchCmd.Flags().StringP("source", "s", sources.MangaDexName, "Source to search")
	addCmd.Flags().StringP("source", "s", sources.MangaDexName, "Source the entry comes from")
	addCmd.Flags().String("id", "", "Entry ID at the source")
}
