package main

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
	"github.com/kerbaras/reader/pkg/app/components"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all entries in your library",
	Long:  "Display all entries in your library with their reading progress",
	Run: func(cmd *cobra.Command, args []string) {
		ctrl, err := newController()
		cobra.CheckErr(err)
		defer ctrl.Close()

		entries, err := ctrl.ListEntries()
		cobra.CheckErr(err)

		if len(entries) == 0 {
			fmt.Println("📚 Library is empty. Use 'reader search' to find something to add.")
			return
		}

		columns := []table.Column{
			{Title: "ID", Width: 24},
			{Title: "Title", Width: 36},
			{Title: "Source", Width: 12},
			{Title: "Units", Width: 6},
			{Title: "Progress", Width: 28},
		}

		rows := []table.Row{}
		for _, entry := range entries {
			item := components.EntryListItem{Entry: entry}
			if units, err := ctrl.Units(cmd.Context(), entry.ID, false); err == nil {
				item.UnitCount = len(units)
			}
			if cp, err := ctrl.Checkpoint(cmd.Context(), entry.ID); err == nil {
				item.Checkpoint = cp
			}

			rows = append(rows, table.Row{
				truncateString(entry.ID, 24),
				truncateString(entry.Title, 34),
				entry.Source,
				strconv.Itoa(item.UnitCount),
				item.ProgressText(),
			})
		}

		fmt.Printf("\n📚 Library (%d entries)\n\n", len(entries))
		fmt.Println(renderTable(columns, rows))
	},
}

var unitsCmd = &cobra.Command{
	Use:   "units [entry-id]",
	Short: "List the units of an entry",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		refresh, _ := cmd.Flags().GetBool("refresh")

		ctrl, err := newController()
		cobra.CheckErr(err)
		defer ctrl.Close()

		entry, err := ctrl.GetEntry(args[0])
		cobra.CheckErr(err)
		units, err := ctrl.Units(cmd.Context(), entry.ID, refresh)
		cobra.CheckErr(err)
		cp, err := ctrl.Checkpoint(cmd.Context(), entry.ID)
		cobra.CheckErr(err)

		columns := []table.Column{
			{Title: "#", Width: 5},
			{Title: "", Width: 2},
			{Title: "Unit", Width: 50},
			{Title: "Translator", Width: 20},
		}
		rows := make([]table.Row, len(units))
		for i, unit := range units {
			marker := ""
			if cp != nil && unit.Ordinal == cp.UnitOrdinal {
				marker = "●"
			}
			rows[i] = table.Row{strconv.Itoa(i + 1), marker, truncateString(unit.Label(), 48), unit.Translator}
		}

		fmt.Printf("\n📖 %s (%d units)\n\n", entry.Title, len(units))
		fmt.Println(renderTable(columns, rows))
	},
}

var progressCmd = &cobra.Command{
	Use:   "progress [entry-id]",
	Short: "Show the stored reading progress of an entry",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctrl, err := newController()
		cobra.CheckErr(err)
		defer ctrl.Close()

		entry, err := ctrl.GetEntry(args[0])
		cobra.CheckErr(err)
		cp, err := ctrl.Checkpoint(cmd.Context(), entry.ID)
		cobra.CheckErr(err)

		item := components.EntryListItem{Entry: entry, Checkpoint: cp}
		fmt.Printf("%s: %s\n", entry.Title, item.ProgressText())
		if cp != nil && !cp.UpdatedAt.IsZero() {
			fmt.Printf("Last read %s\n", cp.UpdatedAt.Local().Format("2006-01-02 15:04"))
		}
	},
}

func init() {
	unitsCmd.Flags().BoolP("refresh", "r", false, "Fetch the unit list from the source")
}

func renderTable(columns []table.Column, rows []table.Row) string {
	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(false),
		table.WithHeight(len(rows)),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.NoColor{}).
		Bold(false)
	t.SetStyles(s)
	return t.View()
}
