package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kerbaras/reader/pkg/config"
	"github.com/kerbaras/reader/pkg/integrations"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Run: func(cmd *cobra.Command, args []string) {
		force, _ := cmd.Flags().GetBool("force")

		path := cfgFile
		if path == "" {
			path = filepath.Join(config.DefaultConfigPath(), "config.yaml")
		}
		if _, err := os.Stat(path); err == nil && !force {
			cobra.CheckErr(fmt.Errorf("%s already exists (use --force to overwrite)", path))
		}

		cobra.CheckErr(config.Save(config.DefaultConfig(), path))
		fmt.Printf("✅ Wrote %s\n", path)
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("reader.prefetch_radius:   %d\n", cfg.Reader.PrefetchRadius)
		fmt.Printf("reader.reading_direction: %s\n", cfg.Reader.ReadingDirection)
		fmt.Printf("reader.auto_advance:      %t\n", cfg.Reader.AutoAdvance)
		fmt.Printf("sync.enabled:             %t\n", cfg.IsSyncConfigured())
		fmt.Printf("sync.interval:            %s\n", cfg.Sync.Interval)
		fmt.Printf("library.db_path:          %s\n", cfg.Library.DBPath)
		fmt.Printf("library.export_dir:       %s\n", cfg.Library.ExportDir)
		fmt.Printf("display.profile:          %s\n", cfg.Display.Profile)
		fmt.Printf("logging.file:             %s\n", cfg.Logging.File)
	},
}

var configProfilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List display profiles",
	Run: func(cmd *cobra.Command, args []string) {
		for _, name := range integrations.ListDisplayProfiles() {
			profile, _ := integrations.GetDisplayProfile(name)
			marker := " "
			if name == cfg.Display.Profile {
				marker = "*"
			}
			fmt.Printf("%s %-24s %s\n", marker, name, profile.Name)
		}
	},
}

func init() {
	configInitCmd.Flags().BoolP("force", "f", false, "Overwrite an existing file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configProfilesCmd)
}
