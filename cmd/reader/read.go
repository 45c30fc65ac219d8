package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/kerbaras/reader/pkg/app/components"
	"github.com/kerbaras/reader/pkg/data"
	"github.com/kerbaras/reader/pkg/services"
	"github.com/spf13/cobra"
)

var readCmd = &cobra.Command{
	Use:   "read [entry-id]",
	Short: "Read an entry in the terminal",
	Long: `Open a reading session and print pages in reading order.

Progress is recorded as pages are turned, so the next 'reader read --resume'
continues where this one stopped.

Examples:
  reader read long_road --resume --pages 3
  reader read 1c8f0a --unit 12
  reader read series-42 --unit 3 --at 754`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		unit, _ := cmd.Flags().GetInt("unit")
		resume, _ := cmd.Flags().GetBool("resume")
		pages, _ := cmd.Flags().GetInt("pages")
		at, _ := cmd.Flags().GetInt("at")

		ctrl, err := newController()
		cobra.CheckErr(err)
		defer ctrl.Close()

		ctx := cmd.Context()
		r, err := ctrl.OpenReader(ctx, args[0], unit-1, resume)
		cobra.CheckErr(err)
		defer func() {
			if err := r.Close(context.WithoutCancel(ctx)); err != nil {
				fmt.Printf("⚠️  Failed to save progress: %v\n", err)
			}
		}()

		if r.MediaType() == data.MediaVideo {
			printEpisode(ctx, r, at)
			return
		}
		if err := readPages(ctx, r, pages); err != nil {
			fmt.Printf("❌ %v\n", err)
		}
	},
}

func init() {
	readCmd.Flags().IntP("unit", "u", 1, "Unit number to open (1-based)")
	readCmd.Flags().BoolP("resume", "c", false, "Continue from the stored checkpoint")
	readCmd.Flags().IntP("pages", "n", 1, "Number of pages to read")
	readCmd.Flags().Int("at", -1, "Record the playback position of an episode, in seconds")
}

// readPages prints n pages, stepping forward across unit boundaries.
func readPages(ctx context.Context, r services.Reader, n int) error {
	for i := 0; i < n; i++ {
		if i > 0 {
			before := r.Position()
			res, err := r.Step(ctx, 1)
			if err != nil {
				return err
			}
			if res.Index == before.Index && res.Offset == before.Offset {
				fmt.Println("🏁 End of entry")
				return nil
			}
		}
		content, err := r.Content(ctx)
		if err != nil {
			return err
		}
		printPage(r.Entry(), content)
	}
	return nil
}

func printPage(entry *data.Entry, c services.Content) {
	fmt.Printf("\n── %s · %s · page %d/%d ──\n\n", entry.Title, c.Unit.Label(), c.Offset+1, max(c.Total, 1))
	switch {
	case c.Page != nil:
		fmt.Printf("[%s image, %.1f KB]\n", c.Page.ContentType, float64(len(c.Page.Data))/1024)
	default:
		fmt.Println(strings.Join(c.Lines, "\n"))
	}
}

func printEpisode(ctx context.Context, r services.Reader, at int) {
	c, err := r.Content(ctx)
	cobra.CheckErr(err)

	fmt.Printf("\n── %s · %s ──\n\n", r.Entry().Title, c.Unit.Label())
	for _, p := range c.Providers {
		fmt.Printf("%s\n", p.Provider)
		for _, s := range p.Streams {
			fmt.Printf("  %s (%s) %s\n", s.Quality, s.Format, s.URL)
		}
	}
	if resumeAt := r.ResumeAt(); resumeAt > 0 {
		fmt.Printf("\n▶ Resume at %s\n", components.FormatPlayback(resumeAt))
	}
	if at >= 0 {
		r.Playback(at)
		fmt.Printf("💾 Recorded position %s\n", components.FormatPlayback(at))
	}
}
